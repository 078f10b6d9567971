/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: generator.go
Description: Template-based predicate generation. Given a sample input and whether the sample
should satisfy the predicate, proposes a random length, unary, binary or range comparison
anchored on the sample's characters.
*/

package inference

import (
	"math/rand"
)

// Generator proposes candidate predicates from sample inputs
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator drawing from rng
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate proposes a predicate that the sample satisfies (positive) or violates (negative).
// The template depends on the sample length: the empty template for empty samples, unary or
// range for one character, and unary, range or binary with equal probability otherwise.
func (g *Generator) Generate(sample string, positive bool) Predicate {
	x := []rune(sample)
	switch len(x) {
	case 0:
		if positive {
			return LengthZero()
		}
		return LengthNonZero()
	case 1:
		if g.rng.Float64() < 0.5 {
			return g.unary(x, positive)
		}
		return g.rangeComp(x, positive)
	default:
		u := g.rng.Float64()
		switch {
		case u < 1.0/3:
			return g.unary(x, positive)
		case u < 2.0/3:
			return g.rangeComp(x, positive)
		default:
			return g.binary(x, positive)
		}
	}
}

func (g *Generator) unary(x []rune, positive bool) Predicate {
	pos := g.rng.Intn(len(x))
	ops := NegativeOps
	if positive {
		ops = PositiveOps
	}
	return Unary(pos, ops[g.rng.Intn(len(ops))], x[pos])
}

// binary picks distinct positions and an operator that the positions themselves satisfy
// (positive) or violate (negative) as integers
func (g *Generator) binary(x []rune, positive bool) Predicate {
	pos1 := g.rng.Intn(len(x))
	pos2 := g.rng.Intn(len(x) - 1)
	if pos2 >= pos1 {
		pos2++
	}
	var ops []Op
	for _, op := range AllOps {
		if op.Compare(pos1, pos2) == positive {
			ops = append(ops, op)
		}
	}
	return Binary(pos1, ops[g.rng.Intn(len(ops))], pos2)
}

func (g *Generator) rangeComp(x []rune, positive bool) Predicate {
	pos := g.rng.Intn(len(x))
	v := x[pos]
	if v < 0 || v > MaxCodePoint {
		v = 0xFFFD
	}
	below := func() rune { return rune(g.rng.Intn(int(v) + 1)) }
	above := func() rune { return v + rune(g.rng.Intn(MaxCodePoint-int(v)+1)) }

	switch {
	case positive:
		lo := below()
		return InRange(pos, lo, above())
	case v == 0:
		return Above(pos, above())
	case v == MaxCodePoint:
		return Below(pos, below())
	default:
		lo := below()
		return Outside(pos, lo, above())
	}
}
