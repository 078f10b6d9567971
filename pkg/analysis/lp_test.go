/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lp_test.go
Description: Tests for the context range program and input projection.
*/

package analysis_test

import (
	"math/rand"
	"testing"

	"github.com/kleascm/akaylee-cfm/pkg/analysis"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func site(fn string, line int) interfaces.Location {
	return interfaces.Location{Function: fn, Line: line}
}

func stack(frames ...interfaces.Location) interfaces.CallContext {
	return interfaces.NewCallContext(frames...)
}

// requireBrackets checks every inequality of the range program on cm
func requireBrackets(t *testing.T, essentials []analysis.Essentials, cm analysis.ContextMap) {
	t.Helper()
	for loc, r := range cm {
		assert.GreaterOrEqual(t, r.Lo, 0, loc.String())
		assert.LessOrEqual(t, r.Lo, r.Hi, loc.String())
	}
	for _, e := range essentials {
		frames := e.Context.Frames()
		head, ok := cm[frames[0]]
		require.True(t, ok, "call site %s has no range", frames[0])
		assert.GreaterOrEqual(t, head.Hi-head.Lo, e.Max()-e.Min()+1, "span of %s", e.Context)

		prefix := 0
		for _, f := range frames[:len(frames)-1] {
			prefix += cm[f].Lo
		}
		last := cm[frames[len(frames)-1]]
		assert.LessOrEqual(t, prefix+last.Lo, e.Min(), "lower bracket of %s", e.Context)
		assert.GreaterOrEqual(t, prefix+last.Hi, e.Max()+1, "upper bracket of %s", e.Context)
	}
}

// TestSolveContextRangesSingle tests that a single position gives a unit window
func TestSolveContextRangesSingle(t *testing.T) {
	essentials := []analysis.Essentials{{Context: stack(site("outer", 1)), Indices: []int{2}}}
	cm, err := analysis.SolveContextRanges(essentials)
	require.NoError(t, err)
	assert.Equal(t, analysis.ContextMap{site("outer", 1): {Lo: 2, Hi: 3}}, cm)
}

// TestSolveContextRangesNested tests nested and shared call sites
func TestSolveContextRangesNested(t *testing.T) {
	essentials := []analysis.Essentials{
		{Context: stack(site("main", 4)), Indices: []int{3, 4, 5}},
		{Context: stack(site("main", 6)), Indices: []int{6, 8}},
		{Context: stack(site("main", 4), site("check", 2)), Indices: []int{4}},
		{Context: stack(site("main", 6), site("check", 2)), Indices: []int{7}},
	}
	cm, err := analysis.SolveContextRanges(essentials)
	require.NoError(t, err)
	assert.Len(t, cm, 3)
	requireBrackets(t, essentials, cm)
}

// TestSolveContextRangesRecursive tests stacks repeating the same call site
func TestSolveContextRangesRecursive(t *testing.T) {
	rec := site("count", 5)
	essentials := []analysis.Essentials{
		{Context: stack(rec), Indices: []int{1}},
		{Context: stack(rec, rec), Indices: []int{2}},
		{Context: stack(rec, rec, rec), Indices: []int{3}},
	}
	cm, err := analysis.SolveContextRanges(essentials)
	require.NoError(t, err)
	requireBrackets(t, essentials, cm)
}

// TestSolveContextRangesEmpty tests that nothing to bracket gives an empty map
func TestSolveContextRangesEmpty(t *testing.T) {
	cm, err := analysis.SolveContextRanges(nil)
	require.NoError(t, err)
	assert.Empty(t, cm)

	cm, err = analysis.SolveContextRanges([]analysis.Essentials{
		{Context: stack(), Indices: []int{1}},
		{Context: stack(site("f", 1)), Indices: nil},
	})
	require.NoError(t, err)
	assert.Empty(t, cm)
}

// TestContextMapProject tests projection onto the smallest window start along a stack
func TestContextMapProject(t *testing.T) {
	cm := analysis.ContextMap{
		site("main", 4): {Lo: 3, Hi: 6},
		site("main", 6): {Lo: 1, Hi: 2},
		site("deep", 1): {Lo: 20, Hi: 21},
	}
	input := "100123456789"

	assert.Equal(t, "123456789", cm.Project(stack(site("main", 4)), input))
	assert.Equal(t, "00123456789", cm.Project(stack(site("main", 4), site("main", 6)), input))
	assert.Equal(t, input, cm.Project(stack(site("other", 1)), input), "unmapped stacks keep the input")
	assert.Equal(t, input, cm.Project(stack(), input))
	assert.Equal(t, "", cm.Project(stack(site("deep", 1)), input))
	assert.Equal(t, input, analysis.ContextMap{}.Project(stack(site("main", 4)), input))
	assert.Equal(t, "é", cm.Project(stack(site("main", 6)), "aé"))
}

// TestContextMapSorted tests call site ordering
func TestContextMapSorted(t *testing.T) {
	cm := analysis.ContextMap{
		site("b", 1): {Lo: 0, Hi: 1},
		site("a", 9): {Lo: 1, Hi: 2},
		site("a", 2): {Lo: 2, Hi: 3},
	}
	sorted := cm.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, site("a", 2), sorted[0].CallSite)
	assert.Equal(t, site("a", 9), sorted[1].CallSite)
	assert.Equal(t, site("b", 1), sorted[2].CallSite)
	assert.Equal(t, "[2, 3)", sorted[0].Range.String())
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
