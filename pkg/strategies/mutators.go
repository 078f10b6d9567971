/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: mutators.go
Description: Character-level mutation strategies for the Akaylee Fuzzer. Implements random
character insertion, deletion and bit flipping over code points, plus the targeted single
position mutation used by sensitivity analysis.
*/

package strategies

import (
	"math/rand"
)

const (
	printableMin = 32  // ' '
	printableMax = 126 // '~'
)

// operator is a single named string mutation
type operator struct {
	name  string
	apply func(s string) string
}

// Mutator implements elementary character mutations over strings
// All positions are code point positions; randomness comes from the injected generator
type Mutator struct {
	rng       *rand.Rand
	operators []operator
}

// NewMutator creates a new mutator drawing from rng
func NewMutator(rng *rand.Rand) *Mutator {
	m := &Mutator{rng: rng}
	m.operators = []operator{
		{name: "delete", apply: m.DeleteRandomCharacter},
		{name: "insert", apply: m.InsertRandomCharacter},
		{name: "flip", apply: m.FlipRandomCharacter},
	}
	return m
}

// RandomCharacter returns a random printable ASCII character
func (m *Mutator) RandomCharacter() rune {
	return rune(printableMin + m.rng.Intn(printableMax-printableMin+1))
}

// InsertRandomCharacter inserts a random printable character at a random position (end included)
func (m *Mutator) InsertRandomCharacter(s string) string {
	runes := []rune(s)
	pos := m.rng.Intn(len(runes) + 1)
	out := make([]rune, 0, len(runes)+1)
	out = append(out, runes[:pos]...)
	out = append(out, m.RandomCharacter())
	out = append(out, runes[pos:]...)
	return string(out)
}

// DeleteRandomCharacter removes one random character; falls back to insertion on empty input
func (m *Mutator) DeleteRandomCharacter(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return m.InsertRandomCharacter(s)
	}
	pos := m.rng.Intn(len(runes))
	out := make([]rune, 0, len(runes)-1)
	out = append(out, runes[:pos]...)
	out = append(out, runes[pos+1:]...)
	return string(out)
}

// FlipRandomCharacter flips one of the low 7 bits of a random character; falls back to insertion on empty input
func (m *Mutator) FlipRandomCharacter(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return m.InsertRandomCharacter(s)
	}
	pos := m.rng.Intn(len(runes))
	bit := rune(1) << uint(m.rng.Intn(7))
	runes[pos] ^= bit
	return string(runes)
}

// Mutate applies one uniformly chosen operator
func (m *Mutator) Mutate(s string) string {
	op := m.operators[m.rng.Intn(len(m.operators))]
	return op.apply(s)
}

// MutateAt replaces the character at idx with a different random printable character.
// The length is preserved and every other position is left untouched.
// An out-of-range idx returns s unchanged.
func (m *Mutator) MutateAt(s string, idx int) string {
	runes := []rune(s)
	if idx < 0 || idx >= len(runes) {
		return s
	}
	orig := runes[idx]
	c := orig
	for c == orig {
		c = m.RandomCharacter()
	}
	runes[idx] = c
	return string(runes)
}

// Name returns the name of this mutator
func (m *Mutator) Name() string {
	return "CharacterMutator"
}

// Description returns a description of this mutator
func (m *Mutator) Description() string {
	return "Inserts, deletes or bit-flips a single random character"
}
