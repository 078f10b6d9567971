/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: context.go
Description: Call-context range optimization. Sensitivity analysis finds, per calling context,
the input positions whose single-character mutation changes which event follows a branch
reached in that context; a linear program then turns those positions into one relevant input
window per call site. Inputs reaching a context-tagged event are projected onto that window.
*/

package analysis

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/kleascm/akaylee-cfm/pkg/core"
	"github.com/kleascm/akaylee-cfm/pkg/coverage"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/kleascm/akaylee-cfm/pkg/strategies"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Range is a half-open window [Lo, Hi) of input positions
type Range struct {
	Lo int `json:"lo" yaml:"lo"`
	Hi int `json:"hi" yaml:"hi"`
}

// String renders the range as [lo, hi)
func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Lo, r.Hi)
}

// ContextMap assigns a relevant input window to call sites. A call site without an entry
// leaves the whole remaining input relevant.
type ContextMap map[interfaces.Location]Range

// Project returns the part of input relevant inside callCtx: the suffix starting at the
// smallest Lo of the call sites along the chain, or the whole input when none is mapped
func (m ContextMap) Project(callCtx interfaces.CallContext, input string) string {
	if len(m) == 0 || callCtx.IsEmpty() {
		return input
	}
	start := -1
	for _, frame := range callCtx.Frames() {
		if r, ok := m[frame]; ok && (start < 0 || r.Lo < start) {
			start = r.Lo
		}
	}
	if start <= 0 {
		return input
	}
	runes := []rune(input)
	if start > len(runes) {
		start = len(runes)
	}
	return string(runes[start:])
}

// Sorted returns the entries ordered by call site
func (m ContextMap) Sorted() []ContextRange {
	out := make([]ContextRange, 0, len(m))
	for loc, r := range m {
		out = append(out, ContextRange{CallSite: loc, Range: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CallSite.Function != out[j].CallSite.Function {
			return out[i].CallSite.Function < out[j].CallSite.Function
		}
		return out[i].CallSite.Line < out[j].CallSite.Line
	})
	return out
}

// ContextRange is one ContextMap entry
type ContextRange struct {
	CallSite interfaces.Location `json:"call_site" yaml:"call_site"`
	Range    Range               `json:"range" yaml:"range"`
}

// Essentials is the set of essential input positions of one call stack
type Essentials struct {
	Context interfaces.CallContext `json:"context" yaml:"context"`
	Indices []int                  `json:"indices" yaml:"indices"` // ascending
}

// Min returns the smallest essential position
func (e Essentials) Min() int { return e.Indices[0] }

// Max returns the largest essential position
func (e Essentials) Max() int { return e.Indices[len(e.Indices)-1] }

// OptimizerConfig tunes the sensitivity analysis
type OptimizerConfig struct {
	InputSampleSize int // Inputs sampled per record entry
	MutationTrials  int // Mutations per input position
	Workers         int // Concurrent re-executions
}

// ContextRangeOptimizer derives the ContextMap of a recorded corpus
type ContextRangeOptimizer struct {
	config  OptimizerConfig
	target  interfaces.Target
	entries []core.RecordEntry
	labels  map[interfaces.TraceEvent]struct{}
	rng     *rand.Rand
	logger  *logrus.Logger
}

// NewContextRangeOptimizer creates an optimizer for the context-tagged branch labels
func NewContextRangeOptimizer(config OptimizerConfig, target interfaces.Target, entries []core.RecordEntry,
	labels map[interfaces.TraceEvent]struct{}, rng *rand.Rand, logger *logrus.Logger) *ContextRangeOptimizer {
	if config.InputSampleSize <= 0 {
		config.InputSampleSize = 1
	}
	if config.MutationTrials <= 0 {
		config.MutationTrials = 1
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ContextRangeOptimizer{
		config:  config,
		target:  target,
		entries: entries,
		labels:  labels,
		rng:     rng,
		logger:  logger,
	}
}

// sensitivityTask is one (entry, sampled input, position) triple
type sensitivityTask struct {
	entry int
	input string
	index int
	seed  int64
}

// Optimize runs the sensitivity analysis and solves the range program. Solver failures are
// logged and yield an empty map.
func (o *ContextRangeOptimizer) Optimize(ctx context.Context) (ContextMap, error) {
	essentials, err := o.EssentialIndices(ctx)
	if err != nil {
		return nil, err
	}
	if len(essentials) == 0 {
		o.logger.Info("No essential indices found, context map is empty")
		return ContextMap{}, nil
	}
	cm, err := SolveContextRanges(essentials)
	if err != nil {
		o.logger.WithError(err).Warn("LP solve failed, falling back to an empty context map")
		return ContextMap{}, nil
	}
	for _, cr := range cm.Sorted() {
		o.logger.WithFields(logrus.Fields{
			"call_site": cr.CallSite.String(),
			"range":     cr.Range.String(),
		}).Debug("LP context range")
	}
	return cm, nil
}

// EssentialIndices mutates sampled inputs position by position and collects, per non-empty
// call stack, the positions that change the follower set of a context-tagged branch label.
// Results are independent of the worker count.
func (o *ContextRangeOptimizer) EssentialIndices(ctx context.Context) ([]Essentials, error) {
	// followers of every record entry, computed once
	baseline := make([]map[interfaces.TraceEvent]map[interfaces.TraceEvent]struct{}, len(o.entries))
	var tasks []sensitivityTask
	for i, entry := range o.entries {
		baseline[i] = entry.Signature.Followers(o.labels)
		if len(baseline[i]) == 0 || len(entry.Inputs) == 0 {
			continue
		}
		n := o.config.InputSampleSize
		if n > len(entry.Inputs) {
			n = len(entry.Inputs)
		}
		for _, pick := range o.rng.Perm(len(entry.Inputs))[:n] {
			input := entry.Inputs[pick]
			for idx := 0; idx < len([]rune(input)); idx++ {
				tasks = append(tasks, sensitivityTask{entry: i, input: input, index: idx})
			}
		}
	}
	for i := range tasks {
		tasks[i].seed = o.rng.Int63()
	}

	o.logger.WithFields(logrus.Fields{
		"tasks":   len(tasks),
		"labels":  len(o.labels),
		"workers": o.config.Workers,
	}).Info("Starting CONTEXT sensitivity analysis")

	// essential[t] holds the labels for which task t's position is essential
	essential := make([][]interfaces.TraceEvent, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Workers)
	for t := range tasks {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			essential[t] = o.runTask(gctx, tasks[t], baseline[tasks[t].entry])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sensitivity analysis interrupted: %w", err)
	}

	// merge in task order so the result does not depend on scheduling
	perStack := make(map[interfaces.CallContext]map[int]struct{})
	var order []interfaces.CallContext
	for t, labels := range essential {
		for _, label := range labels {
			if label.Context.IsEmpty() {
				continue
			}
			set, ok := perStack[label.Context]
			if !ok {
				set = make(map[int]struct{})
				perStack[label.Context] = set
				order = append(order, label.Context)
			}
			set[tasks[t].index] = struct{}{}
		}
	}

	out := make([]Essentials, 0, len(order))
	for _, callCtx := range order {
		indices := make([]int, 0, len(perStack[callCtx]))
		for idx := range perStack[callCtx] {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		out = append(out, Essentials{Context: callCtx, Indices: indices})
		o.logger.WithFields(logrus.Fields{
			"context": callCtx.String(),
			"indices": indices,
		}).Debug("CONTEXT essential indices")
	}
	return out, nil
}

// runTask re-executes MutationTrials mutants of one input position and reports the labels
// whose follower set changed while the label itself was still reached
func (o *ContextRangeOptimizer) runTask(ctx context.Context, task sensitivityTask,
	before map[interfaces.TraceEvent]map[interfaces.TraceEvent]struct{}) []interfaces.TraceEvent {
	mutator := strategies.NewMutator(rand.New(rand.NewSource(task.seed)))
	hit := make(map[interfaces.TraceEvent]bool)
	for trial := 0; trial < o.config.MutationTrials; trial++ {
		mutant := mutator.MutateAt(task.input, task.index)
		_, trace := o.target.Run(ctx, mutant)
		after := coverage.SignatureOf(trace).Followers(o.labels)
		for label, followers := range before {
			now, reached := after[label]
			if !reached {
				continue
			}
			if !sameEvents(followers, now) {
				hit[label] = true
			}
		}
	}

	var labels []interfaces.TraceEvent
	for label := range before {
		if hit[label] {
			labels = append(labels, label)
		}
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].String() < labels[j].String() })
	return labels
}

func sameEvents(a, b map[interfaces.TraceEvent]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for ev := range a {
		if _, ok := b[ev]; !ok {
			return false
		}
	}
	return true
}
