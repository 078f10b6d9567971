/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: composite.go
Description: Composite mutator for the Akaylee Fuzzer. Chains a power-of-two number of
elementary character mutations to turn a seed into a fresh candidate input.
*/

package strategies

import (
	"math/rand"
)

// CompositeMutator chains successive Mutate calls of a base Mutator.
// The chain length is 2^k with k drawn uniformly from [minExp, maxExp].
type CompositeMutator struct {
	base   *Mutator
	rng    *rand.Rand
	minExp int
	maxExp int
}

// NewCompositeMutator creates a CompositeMutator producing 2..32 mutations per candidate
func NewCompositeMutator(base *Mutator, rng *rand.Rand) *CompositeMutator {
	return &CompositeMutator{
		base:   base,
		rng:    rng,
		minExp: 1,
		maxExp: 5,
	}
}

// ChainLength draws the number of mutations for the next candidate
func (c *CompositeMutator) ChainLength() int {
	exp := c.minExp + c.rng.Intn(c.maxExp-c.minExp+1)
	return 1 << uint(exp)
}

// Mutate applies a freshly drawn chain of mutations to s
func (c *CompositeMutator) Mutate(s string) string {
	n := c.ChainLength()
	for i := 0; i < n; i++ {
		s = c.base.Mutate(s)
	}
	return s
}

// Name returns the name of this mutator.
func (c *CompositeMutator) Name() string {
	return "CompositeMutator"
}

// Description returns a description of this mutator.
func (c *CompositeMutator) Description() string {
	return "Chains 2 to 32 character mutations (log-uniform chain length)"
}
