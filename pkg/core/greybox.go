/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: greybox.go
Description: Coverage-guided fuzzing for the Akaylee Fuzzer. The greybox fuzzer executes each
candidate, derives its ordered coverage signature and grows the population whenever a new
signature appears. The coverage recorder additionally samples inputs per signature into a Record.
*/

package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/kleascm/akaylee-cfm/pkg/coverage"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
)

// GreyboxFuzzer is a MutationFuzzer driven by coverage feedback
type GreyboxFuzzer struct {
	*MutationFuzzer
	seen map[string]struct{}
}

// NewGreyboxFuzzer creates a greybox fuzzer. Its population starts empty and only grows
// through new signatures, beginning with those of the replayed seeds.
func NewGreyboxFuzzer(seeds []string, schedule PowerSchedule, rng *rand.Rand) *GreyboxFuzzer {
	g := &GreyboxFuzzer{MutationFuzzer: NewMutationFuzzer(seeds, schedule, rng)}
	g.Reset()
	return g
}

// Reset rewinds the seeds, empties the population and forgets all signatures
func (g *GreyboxFuzzer) Reset() {
	g.MutationFuzzer.Reset()
	g.population = NewPopulation()
	g.seen = make(map[string]struct{})
}

// Run generates the next input and executes it against target.
// A faulting target still contributes its partial trace.
func (g *GreyboxFuzzer) Run(ctx context.Context, target interfaces.Target) (RunResult, error) {
	input, err := g.GenerateNext()
	if err != nil {
		return RunResult{}, err
	}

	start := time.Now()
	outcome, trace := target.Run(ctx, input)
	result := RunResult{
		Input:     input,
		Outcome:   outcome,
		Trace:     trace,
		Signature: coverage.SignatureOf(trace),
		Duration:  time.Since(start),
	}

	key := result.Signature.Key()
	if _, ok := g.seen[key]; !ok {
		g.seen[key] = struct{}{}
		seed := NewSeed(input)
		seed.Coverage = result.Signature
		g.population.Add(seed)
		result.NewCoverage = true
	}
	return result, nil
}

// SignaturesSeen returns the number of distinct signatures observed
func (g *GreyboxFuzzer) SignaturesSeen() int {
	return len(g.seen)
}

// CoverageRecorder is a GreyboxFuzzer that also maintains a Record
type CoverageRecorder struct {
	*GreyboxFuzzer
	record *Record
}

// NewCoverageRecorder creates a recording greybox fuzzer. recordCap <= 0 selects DefaultRecordCap.
func NewCoverageRecorder(seeds []string, schedule PowerSchedule, rng *rand.Rand, recordCap int) *CoverageRecorder {
	return &CoverageRecorder{
		GreyboxFuzzer: NewGreyboxFuzzer(seeds, schedule, rng),
		record:        NewRecord(recordCap),
	}
}

// Run executes one greybox trial and samples its input into the record
func (r *CoverageRecorder) Run(ctx context.Context, target interfaces.Target) (RunResult, error) {
	result, err := r.GreyboxFuzzer.Run(ctx, target)
	if err != nil {
		return result, err
	}
	r.record.Observe(result.Signature, result.Input)
	return result, nil
}

// Record returns the live record
func (r *CoverageRecorder) Record() *Record {
	return r.record
}
