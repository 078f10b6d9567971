/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: search.go
Description: Fitness-driven predicate search. Scores candidate predicates on how well they separate
accepted from rejected inputs and keeps the best candidate of a randomized search, stopping early
on a perfect separator.
*/

package inference

import (
	"errors"
	"math/rand"
)

// ErrNoCandidate is returned when a search produced no predicate at all
var ErrNoCandidate = errors.New("no candidate predicate generated")

// Fitness scores p: +1 per correctly and -1 per wrongly classified example.
// The score lies in [-(|accepts|+|rejects|), |accepts|+|rejects|].
func Fitness(p Predicate, accepts, rejects []string) int {
	score := 0
	for _, x := range accepts {
		if p.Eval(x) {
			score++
		} else {
			score--
		}
	}
	for _, x := range rejects {
		if !p.Eval(x) {
			score++
		} else {
			score--
		}
	}
	return score
}

// Estimate is the outcome of a predicate search
type Estimate struct {
	Predicate  Predicate `json:"-" yaml:"-"`
	Formula    string    `json:"formula" yaml:"formula"`
	Fitness    int       `json:"fitness" yaml:"fitness"`
	Confidence float64   `json:"confidence" yaml:"confidence"` // Fitness normalized to [-1, 1]
	Trials     int       `json:"trials" yaml:"trials"`         // Trials consumed
}

// Perfect reports whether the predicate classifies every example correctly
func (e *Estimate) Perfect() bool {
	return e.Confidence == 1
}

// drawSample returns a uniformly chosen element of set, or false when set is empty
func drawSample(rng *rand.Rand, set []string) (string, bool) {
	if len(set) == 0 {
		return "", false
	}
	return set[rng.Intn(len(set))], true
}

// EstimatePredicate searches for a predicate true on accepts and false on rejects.
// Each trial flips a fair coin between a positive candidate from a random accept and a negative
// candidate from a random reject. A draw from an empty set still consumes its trial.
func EstimatePredicate(rng *rand.Rand, accepts, rejects []string, maxTrials int) (*Estimate, error) {
	total := len(accepts) + len(rejects)
	if total == 0 || maxTrials <= 0 {
		return nil, ErrNoCandidate
	}

	gen := NewGenerator(rng)
	var best *Estimate
	trials := 0
	for trials < maxTrials {
		trials++
		positive := rng.Float64() < 0.5
		pool := rejects
		if positive {
			pool = accepts
		}
		sample, ok := drawSample(rng, pool)
		if !ok {
			continue
		}

		candidate := gen.Generate(sample, positive)
		fitness := Fitness(candidate, accepts, rejects)
		if best == nil || fitness > best.Fitness {
			best = &Estimate{Predicate: candidate, Formula: candidate.String(), Fitness: fitness}
		}
		if fitness == total {
			break
		}
	}

	if best == nil {
		return nil, ErrNoCandidate
	}
	best.Trials = trials
	best.Confidence = float64(best.Fitness) / float64(total)
	return best, nil
}
