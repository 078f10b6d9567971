/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: executor.go
Description: Process target for the Akaylee Fuzzer. Runs an external instrumented program per
input, feeding the input on stdin or as a file argument, and reads back the trace events the
program appended to the trace file named in its environment. Handles timeouts, crashes and
partial traces.
*/

package execution

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// TraceFileEnv names the environment variable holding the trace file path.
// Instrumented programs append one "context<TAB>function<TAB>line" record per executed line.
const TraceFileEnv = "AKAYLEE_TRACE_FILE"

// Input modes
const (
	InputModeStdin = "stdin"
	InputModeFile  = "file"
)

// ProcessConfig describes how to launch an external target
type ProcessConfig struct {
	Path      string        `json:"path"`
	Args      []string      `json:"args"`
	Env       []string      `json:"env"`
	InputMode string        `json:"input_mode"` // "stdin" (default) or "file"
	Timeout   time.Duration `json:"timeout"`
}

// ProcessTarget implements interfaces.Target for external programs
// Each Run uses private temp files, so concurrent runs do not interfere
type ProcessTarget struct {
	config ProcessConfig
	logger *logrus.Logger
}

// NewProcessTarget creates a new process target
func NewProcessTarget(config ProcessConfig, logger *logrus.Logger) (*ProcessTarget, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("process target path must not be empty")
	}
	switch config.InputMode {
	case "":
		config.InputMode = InputModeStdin
	case InputModeStdin, InputModeFile:
	default:
		return nil, fmt.Errorf("unsupported input mode: %s", config.InputMode)
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ProcessTarget{config: config, logger: logger}, nil
}

// Run executes the program on input and returns its outcome and trace
func (t *ProcessTarget) Run(ctx context.Context, input string) (interfaces.Outcome, []interfaces.TraceEvent) {
	traceFile, err := os.CreateTemp("", "akaylee-trace")
	if err != nil {
		t.logger.WithError(err).Error("Failed to create trace file")
		return interfaces.OutcomeUnresolved, nil
	}
	tracePath := traceFile.Name()
	traceFile.Close()
	defer os.Remove(tracePath)

	args := append([]string{}, t.config.Args...)
	if t.config.InputMode == InputModeFile {
		inputFile, err := os.CreateTemp("", "akaylee-input")
		if err != nil {
			t.logger.WithError(err).Error("Failed to create input file")
			return interfaces.OutcomeUnresolved, nil
		}
		defer os.Remove(inputFile.Name())
		if _, err := inputFile.WriteString(input); err != nil {
			inputFile.Close()
			t.logger.WithError(err).Error("Failed to write input file")
			return interfaces.OutcomeUnresolved, nil
		}
		inputFile.Close()
		args = append(args, inputFile.Name())
	}

	runCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.config.Path, args...)
	cmd.Env = append(os.Environ(), t.config.Env...)
	cmd.Env = append(cmd.Env, TraceFileEnv+"="+tracePath)
	if t.config.InputMode == InputModeStdin {
		cmd.Stdin = strings.NewReader(input)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	events, parseErr := readTraceFile(tracePath)
	if parseErr != nil {
		t.logger.WithError(parseErr).Debug("Trace file contained malformed records")
	}

	outcome := interfaces.OutcomePass
	switch {
	case runCtx.Err() != nil:
		outcome = interfaces.OutcomeUnresolved
		t.logger.WithFields(logrus.Fields{
			"target":   t.config.Path,
			"duration": duration,
		}).Warn("Target timed out")
	case runErr != nil:
		outcome = interfaces.OutcomeFail
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			t.logger.WithError(runErr).WithField("target", t.config.Path).Error("Failed to run target")
		}
	}
	return outcome, events
}

// readTraceFile parses trace records, skipping malformed lines
func readTraceFile(path string) ([]interfaces.TraceEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	var events []interfaces.TraceEvent
	var firstErr error
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		event, err := ParseTraceRecord(line)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil && firstErr == nil {
		firstErr = err
	}
	return events, firstErr
}

// ParseTraceRecord parses one "context<TAB>function<TAB>line" record
func ParseTraceRecord(record string) (interfaces.TraceEvent, error) {
	fields := strings.Split(record, "\t")
	if len(fields) != 3 {
		return interfaces.TraceEvent{}, fmt.Errorf("malformed trace record %q", record)
	}
	callCtx, err := interfaces.ParseCallContext(fields[0])
	if err != nil {
		return interfaces.TraceEvent{}, fmt.Errorf("malformed trace record %q: %w", record, err)
	}
	line, err := strconv.Atoi(fields[2])
	if err != nil {
		return interfaces.TraceEvent{}, fmt.Errorf("malformed line number in %q: %w", record, err)
	}
	return interfaces.TraceEvent{
		Context:  callCtx,
		Location: interfaces.Location{Function: fields[1], Line: line},
	}, nil
}

// FormatTraceRecord renders an event in the trace file format
func FormatTraceRecord(event interfaces.TraceEvent) string {
	return event.Context.String() + "\t" + event.Location.Function + "\t" + strconv.Itoa(event.Location.Line)
}
