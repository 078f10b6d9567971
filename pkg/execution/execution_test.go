/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: execution_test.go
Description: Tests for the in-process and process targets. Covers outcome classification,
partial traces on faults, the trace file format and external program execution.
*/

package execution_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/kleascm/akaylee-cfm/pkg/execution"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/kleascm/akaylee-cfm/pkg/trace"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classify(tr *trace.Recorder, input string) error {
	defer tr.Enter("classify")()
	tr.Line(1)
	switch input {
	case "err":
		tr.Line(2)
		return errors.New("rejected")
	case "panic":
		tr.Line(3)
		panic("boom")
	case "loop":
		for {
			tr.Line(4)
		}
	}
	tr.Line(5)
	return nil
}

// TestFunctionTargetOutcomes tests the outcome of each kind of termination
func TestFunctionTargetOutcomes(t *testing.T) {
	target := execution.NewFunctionTarget("classify", classify, 50)
	assert.Equal(t, "classify", target.Name())

	tests := []struct {
		input   string
		outcome interfaces.Outcome
		last    int
	}{
		{"ok", interfaces.OutcomePass, 5},
		{"err", interfaces.OutcomeFail, 2},
		{"panic", interfaces.OutcomeFail, 3},
		{"loop", interfaces.OutcomeUnresolved, 4},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			outcome, events := target.Run(context.Background(), tt.input)
			assert.Equal(t, tt.outcome, outcome)
			require.NotEmpty(t, events, "the partial trace is kept")
			assert.Equal(t, interfaces.Location{Function: "classify", Line: 1}, events[0].Location)
			assert.Equal(t, tt.last, events[len(events)-1].Location.Line)
		})
	}

	_, events := target.Run(context.Background(), "loop")
	assert.Len(t, events, 50)
}

// TestFunctionTargetCancelled tests that a cancelled execution is unresolved
func TestFunctionTargetCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	target := execution.NewFunctionTarget("classify", classify, 0)
	outcome, events := target.Run(ctx, "ok")
	assert.Equal(t, interfaces.OutcomeUnresolved, outcome)
	assert.Empty(t, events)
}

// TestTraceRecordFormat tests the trace file record format
func TestTraceRecordFormat(t *testing.T) {
	ev := interfaces.TraceEvent{
		Context:  interfaces.NewCallContext(interfaces.Location{Function: "main", Line: 2}),
		Location: interfaces.Location{Function: "check", Line: 9},
	}
	record := execution.FormatTraceRecord(ev)
	assert.Equal(t, "main:2\tcheck\t9", record)

	parsed, err := execution.ParseTraceRecord(record)
	require.NoError(t, err)
	assert.Equal(t, ev, parsed)

	parsed, err = execution.ParseTraceRecord("\tmain\t1")
	require.NoError(t, err)
	assert.True(t, parsed.Context.IsEmpty())

	for _, bad := range []string{"main\t1", "x\tmain\tone", "f\tmain\t1"} {
		_, err := execution.ParseTraceRecord(bad)
		assert.Error(t, err, bad)
	}
}

// TestNewProcessTargetValidation tests process configuration checks
func TestNewProcessTargetValidation(t *testing.T) {
	_, err := execution.NewProcessTarget(execution.ProcessConfig{}, nil)
	assert.Error(t, err)

	_, err = execution.NewProcessTarget(execution.ProcessConfig{Path: "/bin/true", InputMode: "socket"}, nil)
	assert.Error(t, err)
}

const shellTarget = `
read x
printf '\tmain\t1\n' >> "$AKAYLEE_TRACE_FILE"
echo garbage >> "$AKAYLEE_TRACE_FILE"
if [ "$x" = "bad" ]; then
	printf '\tmain\t2\n' >> "$AKAYLEE_TRACE_FILE"
	exit 1
fi
printf 'main:3\tcheck\t7\n' >> "$AKAYLEE_TRACE_FILE"
`

func requireShell(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// TestProcessTargetStdin tests external execution with input on stdin
func TestProcessTargetStdin(t *testing.T) {
	requireShell(t)
	target, err := execution.NewProcessTarget(execution.ProcessConfig{
		Path: "/bin/sh",
		Args: []string{"-c", shellTarget},
	}, quietLogger())
	require.NoError(t, err)

	outcome, events := target.Run(context.Background(), "good\n")
	assert.Equal(t, interfaces.OutcomePass, outcome)
	require.Len(t, events, 2, "malformed records are skipped")
	assert.Equal(t, interfaces.Location{Function: "main", Line: 1}, events[0].Location)
	assert.Equal(t, "main:3", events[1].Context.String())

	outcome, events = target.Run(context.Background(), "bad\n")
	assert.Equal(t, interfaces.OutcomeFail, outcome)
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[1].Location.Line)
}

// TestProcessTargetFile tests external execution with input passed as a file argument
func TestProcessTargetFile(t *testing.T) {
	requireShell(t)
	script := `x=$(cat "$1"); printf '\tmain\t%s\n' "${#x}" >> "$AKAYLEE_TRACE_FILE"`
	target, err := execution.NewProcessTarget(execution.ProcessConfig{
		Path:      "/bin/sh",
		Args:      []string{"-c", script, "target"},
		InputMode: execution.InputModeFile,
	}, quietLogger())
	require.NoError(t, err)

	outcome, events := target.Run(context.Background(), "abcd")
	assert.Equal(t, interfaces.OutcomePass, outcome)
	require.Len(t, events, 1)
	assert.Equal(t, 4, events[0].Location.Line)
}

// TestProcessTargetTimeout tests that a hanging program is unresolved
func TestProcessTargetTimeout(t *testing.T) {
	requireShell(t)
	target, err := execution.NewProcessTarget(execution.ProcessConfig{
		Path:    "/bin/sh",
		Args:    []string{"-c", `printf '\tmain\t1\n' >> "$AKAYLEE_TRACE_FILE"; exec sleep 5`},
		Timeout: 200 * time.Millisecond,
	}, quietLogger())
	require.NoError(t, err)

	outcome, events := target.Run(context.Background(), "")
	assert.Equal(t, interfaces.OutcomeUnresolved, outcome)
	assert.Len(t, events, 1)
}
