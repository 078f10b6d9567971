/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: function.go
Description: In-process target runner. Executes an instrumented Go function under a fresh trace
recorder, converting returned errors and panics into FAIL outcomes and step budget exhaustion or
cancellation into UNRESOLVED, always keeping the trace captured up to the fault.
*/

package execution

import (
	"context"
	"errors"

	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/kleascm/akaylee-cfm/pkg/trace"
)

// DefaultMaxSteps bounds the number of traced lines of a single in-process execution
const DefaultMaxSteps = 100000

// TargetFunction is an instrumented function under analysis.
// Returning an error (or panicking) marks the execution as failed.
type TargetFunction func(tr *trace.Recorder, input string) error

// FunctionTarget runs a TargetFunction in the current process.
// Every execution gets its own Recorder, so Run is safe for concurrent use
// as long as the function itself is.
type FunctionTarget struct {
	name     string
	fn       TargetFunction
	maxSteps int
}

// NewFunctionTarget wraps fn. maxSteps <= 0 selects DefaultMaxSteps.
func NewFunctionTarget(name string, fn TargetFunction, maxSteps int) *FunctionTarget {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &FunctionTarget{name: name, fn: fn, maxSteps: maxSteps}
}

// Name returns the target name
func (t *FunctionTarget) Name() string {
	return t.name
}

// Run executes the function on input and returns its outcome and trace
func (t *FunctionTarget) Run(ctx context.Context, input string) (outcome interfaces.Outcome, events []interfaces.TraceEvent) {
	rec := trace.NewRecorder(ctx, t.maxSteps)
	defer func() {
		if r := recover(); r != nil {
			events = rec.Events()
			var abort trace.Abort
			if err, ok := r.(error); ok && errors.As(err, &abort) {
				outcome = interfaces.OutcomeUnresolved
				return
			}
			outcome = interfaces.OutcomeFail
		}
	}()

	if err := t.fn(rec, input); err != nil {
		return interfaces.OutcomeFail, rec.Events()
	}
	return interfaces.OutcomePass, rec.Events()
}
