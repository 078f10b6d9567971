/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: fuzzer.go
Description: Mutation-based input generation for the Akaylee Fuzzer. Replays the supplied seeds
verbatim, then mutates schedule-selected population members with a chain of elementary
character mutations. Every emitted input is kept in the fuzzer history.
*/

package core

import (
	"fmt"
	"math/rand"

	"github.com/kleascm/akaylee-cfm/pkg/strategies"
)

// MutationFuzzer produces candidate inputs
type MutationFuzzer struct {
	seeds      []string
	cursor     int
	population *Population
	history    []string
	schedule   PowerSchedule
	mutator    *strategies.CompositeMutator
	rng        *rand.Rand
}

// NewMutationFuzzer creates a fuzzer whose population starts with one seed per seed string.
// A nil schedule selects the UniformSchedule.
func NewMutationFuzzer(seeds []string, schedule PowerSchedule, rng *rand.Rand) *MutationFuzzer {
	if schedule == nil {
		schedule = NewUniformSchedule()
	}
	f := &MutationFuzzer{
		seeds:    append([]string(nil), seeds...),
		schedule: schedule,
		mutator:  strategies.NewCompositeMutator(strategies.NewMutator(rng), rng),
		rng:      rng,
	}
	f.Reset()
	return f
}

// Reset rewinds the seed cursor and rebuilds the population from the seed strings
func (f *MutationFuzzer) Reset() {
	f.cursor = 0
	initial := make([]*Seed, 0, len(f.seeds))
	for _, s := range f.seeds {
		initial = append(initial, NewSeed(s))
	}
	f.population = NewPopulation(initial...)
}

// GenerateNext returns the next candidate input.
// Unconsumed seeds are emitted first in order; afterwards a population member chosen by the
// schedule is mutated. Fails with ErrEmptyPopulation when there is nothing to mutate.
func (f *MutationFuzzer) GenerateNext() (string, error) {
	var input string
	if f.cursor < len(f.seeds) {
		input = f.seeds[f.cursor]
		f.cursor++
	} else {
		candidate, err := f.createCandidate()
		if err != nil {
			return "", err
		}
		input = candidate
	}
	f.history = append(f.history, input)
	return input, nil
}

func (f *MutationFuzzer) createCandidate() (string, error) {
	seed, err := f.population.Choose(f.rng, f.schedule)
	if err != nil {
		return "", fmt.Errorf("failed to choose seed: %w", err)
	}
	return f.mutator.Mutate(seed.Data), nil
}

// Population returns the mutation population
func (f *MutationFuzzer) Population() *Population {
	return f.population
}

// History returns every input emitted so far
func (f *MutationFuzzer) History() []string {
	return append([]string(nil), f.history...)
}

// SeedsRemaining returns the number of seeds not yet replayed
func (f *MutationFuzzer) SeedsRemaining() int {
	return len(f.seeds) - f.cursor
}
