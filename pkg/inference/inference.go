/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: inference.go
Description: Main entry point for branch condition inference. Provides the Estimator interface
used by the control-flow model and the randomized template search that implements it.
*/

package inference

import (
	"fmt"
	"math/rand"
)

// DefaultMaxTrials is the search budget per branch edge
const DefaultMaxTrials = 1000

// Estimator defines the interface for branch condition estimators
type Estimator interface {
	Estimate(accepts, rejects []string) (*Estimate, error)
	Name() string
}

// RandomSearch estimates predicates by randomized template search
type RandomSearch struct {
	rng       *rand.Rand
	maxTrials int
}

// NewRandomSearch creates a search with its own generator. maxTrials <= 0 selects DefaultMaxTrials.
func NewRandomSearch(rng *rand.Rand, maxTrials int) *RandomSearch {
	if maxTrials <= 0 {
		maxTrials = DefaultMaxTrials
	}
	return &RandomSearch{rng: rng, maxTrials: maxTrials}
}

// Estimate runs EstimatePredicate with the configured budget
func (s *RandomSearch) Estimate(accepts, rejects []string) (*Estimate, error) {
	return EstimatePredicate(s.rng, accepts, rejects, s.maxTrials)
}

// Name returns the estimator name
func (s *RandomSearch) Name() string {
	return "random-search"
}

// NewEstimator returns the estimator registered under name
func NewEstimator(name string, rng *rand.Rand, maxTrials int) (Estimator, error) {
	switch name {
	case "", "random-search":
		return NewRandomSearch(rng, maxTrials), nil
	default:
		return nil, fmt.Errorf("unknown estimator: %s", name)
	}
}
