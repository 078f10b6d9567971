/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Shared types for the Akaylee control-flow model inferrer. Defines source locations,
calling contexts, trace events, execution outcomes and the Target contract used across all
packages to break import cycles.
*/

package interfaces

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Location identifies an executed source line inside a function
type Location struct {
	Function string `json:"function" yaml:"function"`
	Line     int    `json:"line" yaml:"line"`
}

// String renders the location as fn:line
func (l Location) String() string {
	return l.Function + ":" + strconv.Itoa(l.Line)
}

const (
	frameSep = "\x1e"
	fieldSep = "\x1f"
)

// CallContext is an immutable, ordered chain of call sites describing how a location was reached.
// Each frame is an enclosing function tagged with the line that was active when it made the call.
// The zero value is the empty context (code executed directly by the entry function).
// Values are comparable and can be used as map keys.
type CallContext struct {
	key string
}

// NewCallContext builds a context from outermost to innermost frame
func NewCallContext(frames ...Location) CallContext {
	if len(frames) == 0 {
		return CallContext{}
	}
	var b strings.Builder
	for _, f := range frames {
		b.WriteString(f.Function)
		b.WriteString(fieldSep)
		b.WriteString(strconv.Itoa(f.Line))
		b.WriteString(frameSep)
	}
	return CallContext{key: b.String()}
}

// ParseCallContext parses the dash-joined display form (f:3-g:7). The empty string is the empty context.
func ParseCallContext(s string) (CallContext, error) {
	if s == "" {
		return CallContext{}, nil
	}
	parts := strings.Split(s, "-")
	frames := make([]Location, 0, len(parts))
	for _, part := range parts {
		idx := strings.LastIndex(part, ":")
		if idx <= 0 {
			return CallContext{}, fmt.Errorf("invalid call context token %q", part)
		}
		line, err := strconv.Atoi(part[idx+1:])
		if err != nil {
			return CallContext{}, fmt.Errorf("invalid line in call context token %q: %w", part, err)
		}
		frames = append(frames, Location{Function: part[:idx], Line: line})
	}
	return NewCallContext(frames...), nil
}

// Frames returns a copy of the frames, outermost first
func (c CallContext) Frames() []Location {
	if c.key == "" {
		return nil
	}
	raw := strings.Split(strings.TrimSuffix(c.key, frameSep), frameSep)
	frames := make([]Location, 0, len(raw))
	for _, r := range raw {
		fields := strings.SplitN(r, fieldSep, 2)
		line, _ := strconv.Atoi(fields[1])
		frames = append(frames, Location{Function: fields[0], Line: line})
	}
	return frames
}

// Head returns the outermost frame
func (c CallContext) Head() (Location, bool) {
	frames := c.Frames()
	if len(frames) == 0 {
		return Location{}, false
	}
	return frames[0], true
}

// Len returns the number of frames
func (c CallContext) Len() int {
	return strings.Count(c.key, frameSep)
}

// IsEmpty reports whether the context has no frames
func (c CallContext) IsEmpty() bool {
	return c.key == ""
}

// String renders the context in dash-joined form
func (c CallContext) String() string {
	frames := c.Frames()
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = f.String()
	}
	return strings.Join(parts, "-")
}

// MarshalText implements encoding.TextMarshaler
func (c CallContext) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *CallContext) UnmarshalText(text []byte) error {
	parsed, err := ParseCallContext(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TraceEvent is a single executed line together with the context it was reached through
type TraceEvent struct {
	Context  CallContext `json:"context" yaml:"context"`
	Location Location    `json:"location" yaml:"location"`
}

// String renders the event as (context, fn:line)
func (e TraceEvent) String() string {
	return fmt.Sprintf("(%s, %s)", e.Context, e.Location)
}

// Outcome is the verdict of a single target execution
type Outcome string

const (
	OutcomePass       Outcome = "PASS"
	OutcomeFail       Outcome = "FAIL"
	OutcomeUnresolved Outcome = "UNRESOLVED"
)

// Target is the run-and-observe contract of a program under analysis.
// Run must never panic: faults are reported as OutcomeFail together with the trace captured so far.
// Implementations used with more than one worker must be safe for concurrent use.
type Target interface {
	Run(ctx context.Context, input string) (Outcome, []TraceEvent)
}

// TargetFunc adapts a plain function to the Target interface
type TargetFunc func(ctx context.Context, input string) (Outcome, []TraceEvent)

// Run calls f(ctx, input)
func (f TargetFunc) Run(ctx context.Context, input string) (Outcome, []TraceEvent) {
	return f(ctx, input)
}
