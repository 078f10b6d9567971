/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: target.go
Description: Instrumented demo target for process fuzzing. Runs one of the built-in example
targets on the input file given as first argument (or stdin) and appends its trace records to
the file named by AKAYLEE_TRACE_FILE. Exits non-zero when the target fails.
*/

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kleascm/akaylee-cfm/pkg/execution"
	"github.com/kleascm/akaylee-cfm/pkg/targets"
	"github.com/kleascm/akaylee-cfm/pkg/trace"
)

func main() {
	name := os.Getenv("AKAYLEE_DEMO_TARGET")
	if name == "" {
		name = "magic"
	}
	spec, err := targets.Lookup(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var input []byte
	if len(os.Args) > 1 {
		input, err = os.ReadFile(os.Args[1])
	} else {
		input, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to read input:", err)
		os.Exit(1)
	}

	rec := trace.NewRecorder(context.Background(), execution.DefaultMaxSteps)
	code := run(rec, spec, string(input))
	if err := writeTrace(rec); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to write trace:", err)
		os.Exit(1)
	}
	os.Exit(code)
}

// run executes the target and maps panics and errors to exit code 2
func run(rec *trace.Recorder, spec targets.Spec, input string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "target panicked:", r)
			code = 2
		}
	}()
	if err := spec.Function(rec, input); err != nil {
		fmt.Fprintln(os.Stderr, "target failed:", err)
		return 2
	}
	return 0
}

func writeTrace(rec *trace.Recorder) error {
	path := os.Getenv(execution.TraceFileEnv)
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, ev := range rec.Events() {
		fmt.Fprintln(w, execution.FormatTraceRecord(ev))
	}
	return w.Flush()
}
