/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lp.go
Description: Linear program behind the call-context range optimizer. Every call site gets a
window [lb, ub); the total window width is minimized such that each call stack's own window
spans its essential positions and the offsets accumulated along the stack bracket them.
The relaxation is solved with gonum's simplex and rounded outward to integer positions.
*/

package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// ErrInfeasible is returned when the range program cannot be solved
var ErrInfeasible = errors.New("context range program has no solution")

const (
	lpTolerance = 1e-10
	roundSlack  = 1e-7
)

// constraint is sum(coef[j]*x[j]) <= rhs, or >= rhs when geq is set
type constraint struct {
	coef map[int]float64
	rhs  float64
	geq  bool
}

// SolveContextRanges computes one window per call site occurring in essentials.
// For every call stack c0..ck with essential positions E the result satisfies
//
//	ub(c0) - lb(c0)            >= max(E) - min(E) + 1
//	lb(c0) + ... + lb(ck)      <= min(E)
//	lb(c0) + ... + lb(ck-1) + ub(ck) >= max(E) + 1
//
// and lb <= ub for every call site. Call stacks without essential positions are ignored;
// if none remain the map is empty.
func SolveContextRanges(essentials []Essentials) (cm ContextMap, err error) {
	var considered []Essentials
	for _, e := range essentials {
		if len(e.Indices) > 0 && !e.Context.IsEmpty() {
			considered = append(considered, e)
		}
	}
	if len(considered) == 0 {
		return ContextMap{}, nil
	}

	var tokens []interfaces.Location
	index := make(map[interfaces.Location]int)
	bound := 0
	for _, e := range considered {
		for _, frame := range e.Context.Frames() {
			if _, ok := index[frame]; !ok {
				index[frame] = len(tokens)
				tokens = append(tokens, frame)
			}
		}
		if e.Max()+1 > bound {
			bound = e.Max() + 1
		}
	}
	n := len(tokens)
	lbVar := func(t int) int { return t }
	ubVar := func(t int) int { return n + t }

	var rows []constraint
	for t := 0; t < n; t++ {
		rows = append(rows,
			constraint{coef: map[int]float64{lbVar(t): 1, ubVar(t): -1}, rhs: 0},
			constraint{coef: map[int]float64{ubVar(t): 1}, rhs: float64(bound)},
		)
	}
	for _, e := range considered {
		frames := e.Context.Frames()
		head := index[frames[0]]
		last := index[frames[len(frames)-1]]

		rows = append(rows, constraint{
			coef: map[int]float64{ubVar(head): 1, lbVar(head): -1},
			rhs:  float64(e.Max() - e.Min() + 1),
			geq:  true,
		})
		// the same call site may occur more than once in a recursive stack
		prefix := make(map[int]float64)
		for _, frame := range frames[:len(frames)-1] {
			prefix[lbVar(index[frame])]++
		}
		lower := cloneCoef(prefix)
		lower[lbVar(last)]++
		rows = append(rows, constraint{coef: lower, rhs: float64(e.Min())})

		upper := cloneCoef(prefix)
		upper[ubVar(last)]++
		rows = append(rows, constraint{coef: upper, rhs: float64(e.Max() + 1), geq: true})
	}

	x, err := solveStandardForm(2*n, rows, func(c []float64) {
		for t := 0; t < n; t++ {
			c[lbVar(t)] = -1
			c[ubVar(t)] = 1
		}
	})
	if err != nil {
		return nil, err
	}

	lb := make([]int, n)
	ub := make([]int, n)
	for t := 0; t < n; t++ {
		lb[t] = int(math.Max(0, math.Floor(x[lbVar(t)]+roundSlack)))
		ub[t] = int(math.Max(float64(lb[t]), math.Ceil(x[ubVar(t)]-roundSlack)))
	}
	repairBrackets(considered, index, lb, ub)

	cm = make(ContextMap, n)
	for t, loc := range tokens {
		cm[loc] = Range{Lo: lb[t], Hi: ub[t]}
	}
	return cm, nil
}

// repairBrackets raises upper bounds until every span and upper bracket holds again after
// rounding. Lower bounds only ever move down, so the lower bracket is already satisfied.
func repairBrackets(considered []Essentials, index map[interfaces.Location]int, lb, ub []int) {
	for _, e := range considered {
		frames := e.Context.Frames()
		head := index[frames[0]]
		if span := e.Max() - e.Min() + 1; ub[head]-lb[head] < span {
			ub[head] = lb[head] + span
		}
	}
	for _, e := range considered {
		frames := e.Context.Frames()
		sum := 0
		for _, frame := range frames[:len(frames)-1] {
			sum += lb[index[frame]]
		}
		last := index[frames[len(frames)-1]]
		if need := e.Max() + 1 - sum; ub[last] < need {
			ub[last] = need
		}
	}
}

// solveStandardForm minimizes c.x over the first vars columns subject to rows, adding one
// slack or surplus column per row so that A x = b, x >= 0 holds for lp.Simplex
func solveStandardForm(vars int, rows []constraint, objective func(c []float64)) (x []float64, err error) {
	m := len(rows)
	cols := vars + m
	a := mat.NewDense(m, cols, nil)
	b := make([]float64, m)
	for r, row := range rows {
		sign := 1.0
		if row.rhs < 0 {
			sign = -1
		}
		for j, v := range row.coef {
			a.Set(r, j, sign*v)
		}
		slack := 1.0
		if row.geq {
			slack = -1
		}
		a.Set(r, vars+r, sign*slack)
		b[r] = sign * row.rhs
	}
	c := make([]float64, cols)
	objective(c)

	defer func() {
		if r := recover(); r != nil {
			x = nil
			err = fmt.Errorf("%w: solver panic: %v", ErrInfeasible, r)
		}
	}()
	_, sol, err := lp.Simplex(c, a, b, lpTolerance, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInfeasible, err)
	}
	return sol[:vars], nil
}

func cloneCoef(src map[int]float64) map[int]float64 {
	dst := make(map[int]float64, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
