/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: recorder.go
Description: In-process instrumentation for Go targets. Instrumented functions report every
executed line and every call/return to a Recorder, which threads the calling context through
nested calls and produces the ordered trace of a single execution.
*/

package trace

import (
	"context"
	"errors"

	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
)

// ErrStepBudget is raised when an execution records more lines than its budget allows
var ErrStepBudget = errors.New("step budget exhausted")

// Abort is the panic value a Recorder uses to stop a runaway or cancelled execution.
// Target runners recover it and report the execution as unresolved.
type Abort struct {
	Err error
}

func (a Abort) Error() string { return "execution aborted: " + a.Err.Error() }

func (a Abort) Unwrap() error { return a.Err }

type frame struct {
	function string
	line     int
}

// Recorder collects the trace of one execution. It is not safe for concurrent use;
// create one per execution.
//
// Usage inside an instrumented function:
//
//	defer tr.Enter("triangle")()
//	tr.Line(3)
type Recorder struct {
	ctx      context.Context
	maxSteps int
	steps    int
	stack    []frame
	events   []interfaces.TraceEvent
}

// NewRecorder creates a recorder bound to ctx. maxSteps <= 0 disables the step budget.
func NewRecorder(ctx context.Context, maxSteps int) *Recorder {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Recorder{ctx: ctx, maxSteps: maxSteps}
}

// Enter pushes a function frame and returns the matching Leave for deferral.
// The caller's current line becomes its call-site tag for everything executed below.
// Lines of the entry function carry the empty context.
func (r *Recorder) Enter(function string) func() {
	r.stack = append(r.stack, frame{function: function})
	return r.Leave
}

// Leave pops the innermost frame
func (r *Recorder) Leave() {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

// Line records that line n of the innermost function is executing
func (r *Recorder) Line(n int) {
	if err := r.ctx.Err(); err != nil {
		panic(Abort{Err: err})
	}
	r.steps++
	if r.maxSteps > 0 && r.steps > r.maxSteps {
		panic(Abort{Err: ErrStepBudget})
	}
	if len(r.stack) == 0 {
		r.stack = append(r.stack, frame{function: "main"})
	}
	top := &r.stack[len(r.stack)-1]
	top.line = n

	// the executing frame is the location, every frame above it is context
	var callers []interfaces.Location
	if len(r.stack) > 1 {
		callers = make([]interfaces.Location, 0, len(r.stack)-1)
		for _, f := range r.stack[:len(r.stack)-1] {
			callers = append(callers, interfaces.Location{Function: f.function, Line: f.line})
		}
	}
	r.events = append(r.events, interfaces.TraceEvent{
		Context:  interfaces.NewCallContext(callers...),
		Location: interfaces.Location{Function: top.function, Line: n},
	})
}

// Events returns the trace recorded so far
func (r *Recorder) Events() []interfaces.TraceEvent {
	out := make([]interfaces.TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Steps returns the number of lines recorded
func (r *Recorder) Steps() int {
	return r.steps
}
