/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine_test.go
Description: Tests for the fuzzing session. Covers statistics, the coverage curve, reporters,
corpus loading, cancellation and reproducibility.
*/

package core_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kleascm/akaylee-cfm/pkg/core"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/kleascm/akaylee-cfm/pkg/targets"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newSession(t *testing.T, name string, trials int, seed int64) *core.Session {
	t.Helper()
	spec, err := targets.Lookup(name)
	require.NoError(t, err)

	config := core.DefaultFuzzerConfig()
	config.Seeds = spec.Seeds
	config.Trials = trials
	config.RandomSeed = seed
	session, err := core.NewSession(config, spec.Target(0), quietLogger())
	require.NoError(t, err)
	return session
}

type countingReporter struct {
	runs  int
	seeds int
}

func (r *countingReporter) OnRunExecuted(core.RunResult) { r.runs++ }
func (r *countingReporter) OnSeedAdded(*core.Seed)       { r.seeds++ }

// TestSessionRun tests statistics and reporter notifications of a session
func TestSessionRun(t *testing.T) {
	session := newSession(t, "magic", 200, 3)
	reporter := &countingReporter{}
	session.AddReporter(reporter)

	require.NoError(t, session.Run(context.Background()))

	stats := session.GetStats()
	assert.Equal(t, int64(200), stats.Executions)
	assert.Equal(t, int64(session.Record().Len()), stats.Signatures)
	assert.Equal(t, int64(session.Population().Size()), stats.PopulationSize)
	assert.Equal(t, int64(session.Record().TotalInputs()), stats.RecordedInputs)
	assert.Equal(t, 200, reporter.runs)
	assert.Equal(t, int(stats.Signatures), reporter.seeds)

	covered, curve := session.PopulationCoverage()
	require.Len(t, curve, 200)
	assert.Equal(t, len(covered), curve[len(curve)-1])
	for i := 1; i < len(curve); i++ {
		assert.GreaterOrEqual(t, curve[i], curve[i-1], "the coverage curve never decreases")
	}
	assert.Contains(t, covered, interfaces.TraceEvent{Location: interfaces.Location{Function: "magic", Line: 1}})

	assert.Len(t, session.History(), 200)
	assert.Equal(t, []string{"ABCD", "good"}, session.History()[:2])
}

// TestSessionDeterminism tests that equal random seeds give equal records
func TestSessionDeterminism(t *testing.T) {
	a := newSession(t, "triangle", 300, 42)
	b := newSession(t, "triangle", 300, 42)
	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, a.History(), b.History())
	assert.Equal(t, a.Record().Entries(), b.Record().Entries())
	assert.NotEqual(t, a.ID, b.ID)
}

// TestSessionCancelled tests that a cancelled session keeps its partial record
func TestSessionCancelled(t *testing.T) {
	session := newSession(t, "triangle", 100, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := session.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, session.GetStats().Executions)
	assert.NotNil(t, session.Record())
}

// TestSessionConfigValidation tests rejected configurations
func TestSessionConfigValidation(t *testing.T) {
	spec, err := targets.Lookup("triangle")
	require.NoError(t, err)

	config := core.DefaultFuzzerConfig()
	_, err = core.NewSession(config, spec.Target(0), quietLogger())
	assert.Error(t, err, "no seeds")

	config.Seeds = []string{"1"}
	config.RecordCap = 0
	_, err = core.NewSession(config, spec.Target(0), quietLogger())
	assert.Error(t, err)

	config.RecordCap = 1
	_, err = core.NewSession(config, nil, quietLogger())
	assert.Error(t, err)
}

// TestLoadSeeds tests corpus loading in file name order
func TestLoadSeeds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte("second"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("first"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	seeds, err := core.LoadSeeds(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, seeds)

	spec, err := targets.Lookup("length3")
	require.NoError(t, err)
	config := core.DefaultFuzzerConfig()
	config.CorpusDir = dir
	config.Trials = 2
	session, err := core.NewSession(config, spec.Target(0), quietLogger())
	require.NoError(t, err)
	require.NoError(t, session.Run(context.Background()))
	assert.Equal(t, []string{"first", "second"}, session.History())
}

// TestPrometheusReporter tests metric export through a private registry
func TestPrometheusReporter(t *testing.T) {
	reg := prometheus.NewRegistry()
	reporter, err := core.NewPrometheusReporter(reg)
	require.NoError(t, err)

	_, err = core.NewPrometheusReporter(reg)
	assert.Error(t, err, "duplicate registration")

	session := newSession(t, "length3", 10, 1)
	session.AddReporter(reporter)
	session.AddReporter(core.NewLoggerReporter(quietLogger()))
	require.NoError(t, session.Run(context.Background()))

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				values[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.Equal(t, 10.0, values["akaylee_executions_total"])
	assert.Equal(t, 10.0, values["akaylee_execution_duration_seconds"])
	assert.Equal(t, float64(session.Record().Len()), values["akaylee_signatures_total"])
}
