/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: model_test.go
Description: Tests for the control-flow model. Covers branch identification, edge partitions,
condition inference with and without context windows, sensitivity analysis and reproducibility.
*/

package analysis_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kleascm/akaylee-cfm/pkg/analysis"
	"github.com/kleascm/akaylee-cfm/pkg/core"
	"github.com/kleascm/akaylee-cfm/pkg/coverage"
	"github.com/kleascm/akaylee-cfm/pkg/execution"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/kleascm/akaylee-cfm/pkg/targets"
	"github.com/kleascm/akaylee-cfm/pkg/trace"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// suffixCheck branches on the third character inside a helper called from outer line 1
func suffixCheck(tr *trace.Recorder, input string) error {
	defer tr.Enter("outer")()
	s := []rune(input)
	tr.Line(1)
	if len(s) >= 3 {
		inner(tr, s[2:])
	}
	tr.Line(2)
	return nil
}

func inner(tr *trace.Recorder, s []rune) {
	defer tr.Enter("inner")()
	tr.Line(1)
	if s[0] == 'x' {
		tr.Line(2)
		return
	}
	tr.Line(3)
}

func recordOf(t *testing.T, target interfaces.Target, inputs ...string) *core.Record {
	t.Helper()
	record := core.NewRecord(0)
	for _, in := range inputs {
		_, events := target.Run(context.Background(), in)
		record.Observe(coverage.SignatureOf(events), in)
	}
	return record
}

func testConfig(contextSensitive bool) *analysis.ModelConfig {
	config := analysis.DefaultModelConfig()
	config.ContextSensitive = contextSensitive
	config.Workers = 2
	config.RandomSeed = 7
	return config
}

// TestModelLengthThree tests the edge into the three-character branch after a short session
func TestModelLengthThree(t *testing.T) {
	spec, err := targets.Lookup("length3")
	require.NoError(t, err)
	target := spec.Target(0)

	fuzz := core.DefaultFuzzerConfig()
	fuzz.Seeds = []string{"a", "abc", "ab"}
	fuzz.Trials = 3
	session, err := core.NewSession(fuzz, target, quietLogger())
	require.NoError(t, err)
	require.NoError(t, session.Run(context.Background()))

	model, err := analysis.NewControlFlowModel(session.Record(), target, testConfig(true), quietLogger())
	require.NoError(t, err)
	results, err := model.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, model.Branches(), 1)
	assert.Equal(t, site("length3", 1), model.Branches()[0].Label())
	require.Len(t, results, 2)
	assert.Empty(t, model.ContextMap(), "a single function has no call sites")

	cond, ok := model.EdgeCondition(analysis.Edge{Src: site("length3", 1), Dest: site("length3", 2)})
	require.True(t, ok)
	require.True(t, cond.Decided())
	assert.Equal(t, 1.0, *cond.Confidence)
	assert.Equal(t, 1, cond.Accepts)
	assert.Equal(t, 2, cond.Rejects)
	assert.Contains(t, *cond.Formula, "x[2]")

	other, ok := model.EdgeCondition(analysis.Edge{Src: site("length3", 1), Dest: site("length3", 3)})
	require.True(t, ok)
	assert.Equal(t, 2, other.Accepts)
	assert.Equal(t, 1, other.Rejects)
	require.NotNil(t, other.Confidence)
	assert.GreaterOrEqual(t, *other.Confidence, -1.0)
	assert.LessOrEqual(t, *other.Confidence, 1.0)

	_, ok = model.EdgeCondition(analysis.Edge{Src: site("length3", 2), Dest: site("length3", 3)})
	assert.False(t, ok)
}

// TestModelSameTwo tests inference of an equality between two positions
func TestModelSameTwo(t *testing.T) {
	spec, err := targets.Lookup("same2")
	require.NoError(t, err)
	target := spec.Target(0)
	record := recordOf(t, target, "aa", "ab", "bb", "ba")

	model, err := analysis.NewControlFlowModel(record, target, testConfig(false), quietLogger())
	require.NoError(t, err)
	_, err = model.Run(context.Background())
	require.NoError(t, err)

	cond, ok := model.EdgeCondition(analysis.Edge{Src: site("same2", 3), Dest: site("same2", 4)})
	require.True(t, ok)
	require.True(t, cond.Decided())
	assert.Contains(t, []string{"x[0] == x[1]", "x[1] == x[0]"}, *cond.Formula)
	assert.Equal(t, 1.0, *cond.Confidence)
}

// TestModelUndecidedEdge tests that an edge without rejected inputs stays undecided
func TestModelUndecidedEdge(t *testing.T) {
	target := execution.NewFunctionTarget("outer", suffixCheck, 0)
	record := recordOf(t, target, "a", "abx")

	model, err := analysis.NewControlFlowModel(record, target, testConfig(false), quietLogger())
	require.NoError(t, err)
	results, err := model.Run(context.Background())
	require.NoError(t, err)

	// outer:1 branches into outer:2 and inner:1, and every input reaches outer:2
	require.Len(t, results, 2)
	skipped, ok := model.EdgeCondition(analysis.Edge{Src: site("outer", 1), Dest: site("outer", 2)})
	require.True(t, ok)
	assert.False(t, skipped.Decided())
	assert.Nil(t, skipped.Confidence)
	assert.Equal(t, 2, skipped.Accepts)
	assert.Zero(t, skipped.Rejects)

	taken, ok := model.EdgeCondition(analysis.Edge{Src: site("outer", 1), Dest: site("inner", 1)})
	require.True(t, ok)
	assert.True(t, taken.Decided())
	assert.Equal(t, 1.0, *taken.Confidence)

	model.SetContextMap(nil)
	assert.NotNil(t, model.ContextMap())
}

// TestModelContextWindow tests that the context map projects inputs onto the helper's window
func TestModelContextWindow(t *testing.T) {
	target := execution.NewFunctionTarget("outer", suffixCheck, 0)
	record := recordOf(t, target, "abx", "aby")
	edge := analysis.Edge{Src: site("inner", 1), Dest: site("inner", 2)}

	plain, err := analysis.NewControlFlowModel(record, target, testConfig(false), quietLogger())
	require.NoError(t, err)
	_, err = plain.Run(context.Background())
	require.NoError(t, err)
	cond, ok := plain.EdgeCondition(edge)
	require.True(t, ok)
	require.True(t, cond.Decided())
	assert.Contains(t, *cond.Formula, "x[2]")

	model, err := analysis.NewControlFlowModel(record, target, testConfig(true), quietLogger())
	require.NoError(t, err)
	_, err = model.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, analysis.ContextMap{site("outer", 1): {Lo: 2, Hi: 3}}, model.ContextMap())
	cond, ok = model.EdgeCondition(edge)
	require.True(t, ok)
	require.True(t, cond.Decided())
	assert.Contains(t, *cond.Formula, "x[0]")
	assert.Equal(t, 1.0, *cond.Confidence)
}

// TestEssentialIndices tests the sensitivity analysis on a known essential position
func TestEssentialIndices(t *testing.T) {
	target := execution.NewFunctionTarget("outer", suffixCheck, 0)
	record := recordOf(t, target, "abx", "aby")
	label := interfaces.TraceEvent{Context: stack(site("outer", 1)), Location: site("inner", 1)}

	for _, workers := range []int{1, 4} {
		optimizer := analysis.NewContextRangeOptimizer(analysis.OptimizerConfig{
			InputSampleSize: 1,
			MutationTrials:  3,
			Workers:         workers,
		}, target, record.Entries(), map[interfaces.TraceEvent]struct{}{label: {}}, newRand(1), quietLogger())

		essentials, err := optimizer.EssentialIndices(context.Background())
		require.NoError(t, err)
		require.Len(t, essentials, 1)
		assert.Equal(t, stack(site("outer", 1)), essentials[0].Context)
		assert.Equal(t, []int{2}, essentials[0].Indices)
	}
}

// TestEssentialIndicesCancelled tests that cancellation interrupts the analysis
func TestEssentialIndicesCancelled(t *testing.T) {
	target := execution.NewFunctionTarget("outer", suffixCheck, 0)
	record := recordOf(t, target, "abx", "aby")
	label := interfaces.TraceEvent{Context: stack(site("outer", 1)), Location: site("inner", 1)}
	optimizer := analysis.NewContextRangeOptimizer(analysis.OptimizerConfig{}, target, record.Entries(),
		map[interfaces.TraceEvent]struct{}{label: {}}, newRand(1), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := optimizer.EssentialIndices(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestModelContextTargets tests context modeling on targets with nested and recursive calls
func TestModelContextTargets(t *testing.T) {
	for _, name := range []string{"triangle3", "count"} {
		t.Run(name, func(t *testing.T) {
			spec, err := targets.Lookup(name)
			require.NoError(t, err)
			target := spec.Target(0)

			fuzz := core.DefaultFuzzerConfig()
			fuzz.Seeds = spec.Seeds
			fuzz.Trials = 300
			session, err := core.NewSession(fuzz, target, quietLogger())
			require.NoError(t, err)
			require.NoError(t, session.Run(context.Background()))

			config := testConfig(true)
			config.MaxTrials = 200
			model, err := analysis.NewControlFlowModel(session.Record(), target, config, quietLogger())
			require.NoError(t, err)
			results, err := model.Run(context.Background())
			require.NoError(t, err)
			assert.NotEmpty(t, results)
			assert.NoError(t, model.Graph().Validate())
			assert.NoError(t, model.ContextGraph().Validate())

			for loc, r := range model.ContextMap() {
				assert.LessOrEqual(t, r.Lo, r.Hi, loc.String())
			}
			for _, r := range results {
				if r.Condition.Decided() {
					assert.GreaterOrEqual(t, *r.Condition.Confidence, -1.0)
					assert.LessOrEqual(t, *r.Condition.Confidence, 1.0)
					assert.True(t, strings.Contains(*r.Condition.Formula, "x"), *r.Condition.Formula)
				}
			}
		})
	}
}

// TestModelDeterminism tests that equal seeds give equal conditions and maps
func TestModelDeterminism(t *testing.T) {
	spec, err := targets.Lookup("triangle3")
	require.NoError(t, err)
	target := spec.Target(0)

	fuzz := core.DefaultFuzzerConfig()
	fuzz.Seeds = spec.Seeds
	fuzz.Trials = 200
	session, err := core.NewSession(fuzz, target, quietLogger())
	require.NoError(t, err)
	require.NoError(t, session.Run(context.Background()))

	run := func(workers int) ([]analysis.EdgeResult, analysis.ContextMap) {
		config := testConfig(true)
		config.Workers = workers
		config.MaxTrials = 200
		model, err := analysis.NewControlFlowModel(session.Record(), target, config, quietLogger())
		require.NoError(t, err)
		results, err := model.Run(context.Background())
		require.NoError(t, err)
		return results, model.ContextMap()
	}
	r1, cm1 := run(1)
	r2, cm2 := run(4)
	assert.Equal(t, r1, r2)
	assert.Equal(t, cm1, cm2)
}

// TestModelConfigValidation tests rejected configurations and constructor arguments
func TestModelConfigValidation(t *testing.T) {
	for _, mutate := range []func(c *analysis.ModelConfig){
		func(c *analysis.ModelConfig) { c.MaxTrials = 0 },
		func(c *analysis.ModelConfig) { c.InputSampleSize = 0 },
		func(c *analysis.ModelConfig) { c.MutationTrials = -1 },
		func(c *analysis.ModelConfig) { c.Workers = 0 },
	} {
		config := analysis.DefaultModelConfig()
		mutate(config)
		assert.Error(t, config.Validate())
	}
	assert.NoError(t, analysis.DefaultModelConfig().Validate())

	_, err := analysis.NewControlFlowModel(nil, nil, nil, nil)
	assert.Error(t, err)

	_, err = analysis.NewControlFlowModel(core.NewRecord(0), nil, testConfig(true), quietLogger())
	assert.Error(t, err, "context modeling needs a target")

	config := testConfig(true)
	config.Estimator = "unknown"
	spec, err := targets.Lookup("same2")
	require.NoError(t, err)
	record := recordOf(t, spec.Target(0), "aa", "ab")
	model, err := analysis.NewControlFlowModel(record, spec.Target(0), config, quietLogger())
	require.NoError(t, err)
	_, err = model.Run(context.Background())
	assert.Error(t, err)
}

// TestModelEmptyRecord tests that an empty record has no branches
func TestModelEmptyRecord(t *testing.T) {
	model, err := analysis.NewControlFlowModel(core.NewRecord(0), nil, testConfig(false), quietLogger())
	require.NoError(t, err)
	results, err := model.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, model.Branches())
	assert.Equal(t, 1, model.Graph().Len())
}
