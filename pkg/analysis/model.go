/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: model.go
Description: Control-flow model inference. Builds the plain and the calling-context coverage
trees from a record snapshot, identifies branch points, optionally derives the context map and
then searches, for every branch edge, the predicate that best separates the inputs taking that
edge from the other inputs reaching the branch.
*/

package analysis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"github.com/kleascm/akaylee-cfm/pkg/core"
	"github.com/kleascm/akaylee-cfm/pkg/coverage"
	"github.com/kleascm/akaylee-cfm/pkg/inference"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Edge is a branch edge between two source locations
type Edge = coverage.Edge[interfaces.Location]

// EdgeCondition is the inferred guard of an edge. Formula and Confidence are nil when the
// corpus gave no accepted or no rejected inputs for the edge.
type EdgeCondition struct {
	Formula    *string  `json:"formula" yaml:"formula"`
	Confidence *float64 `json:"confidence" yaml:"confidence"`
	Accepts    int      `json:"accepts" yaml:"accepts"`
	Rejects    int      `json:"rejects" yaml:"rejects"`
	Trials     int      `json:"trials" yaml:"trials"`
}

// Decided reports whether a predicate was inferred
func (c EdgeCondition) Decided() bool {
	return c.Formula != nil
}

// EdgeResult pairs an edge with its condition
type EdgeResult struct {
	Edge      Edge          `json:"edge" yaml:"edge"`
	Condition EdgeCondition `json:"condition" yaml:"condition"`
}

// ModelConfig contains the parameters of a model run
type ModelConfig struct {
	ContextSensitive bool   `json:"context_sensitive" yaml:"context_sensitive" mapstructure:"context_sensitive"` // Run the context range optimizer
	MaxTrials        int    `json:"max_trials" yaml:"max_trials" mapstructure:"max_trials"`                      // Predicate search budget per edge
	InputSampleSize  int    `json:"input_sample_size" yaml:"input_sample_size" mapstructure:"input_sample_size"` // Inputs sampled per signature for sensitivity analysis
	MutationTrials   int    `json:"mutation_trials" yaml:"mutation_trials" mapstructure:"mutation_trials"`       // Mutations per input position
	Workers          int    `json:"workers" yaml:"workers" mapstructure:"workers"`                               // Parallel re-executions and edge searches
	RandomSeed       int64  `json:"random_seed" yaml:"random_seed" mapstructure:"random_seed"`                   // Seed of the model's random stream
	Estimator        string `json:"estimator" yaml:"estimator" mapstructure:"estimator"`                         // Predicate estimator name
}

// DefaultModelConfig returns the configuration used when nothing is overridden
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		ContextSensitive: true,
		MaxTrials:        inference.DefaultMaxTrials,
		InputSampleSize:  1,
		MutationTrials:   1,
		Workers:          runtime.NumCPU(),
		RandomSeed:       1,
		Estimator:        "random-search",
	}
}

// Validate checks the configuration for errors
func (c *ModelConfig) Validate() error {
	if c.MaxTrials <= 0 {
		return fmt.Errorf("max_trials must be positive")
	}
	if c.InputSampleSize <= 0 {
		return fmt.Errorf("input_sample_size must be positive")
	}
	if c.MutationTrials <= 0 {
		return fmt.Errorf("mutation_trials must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}

// ControlFlowModel infers branch conditions from a record snapshot
type ControlFlowModel struct {
	config *ModelConfig
	logger *logrus.Logger
	target interfaces.Target
	rng    *rand.Rand

	entries      []core.RecordEntry
	graph        *coverage.Graph[interfaces.Location]
	contextGraph *coverage.Graph[interfaces.TraceEvent]

	branches   []*coverage.Node[interfaces.Location]
	contextMap ContextMap
	results    []EdgeResult
	byEdge     map[Edge]int

	covering map[interfaces.TraceEvent][]string            // inputs reaching each context label
	byLoc    map[interfaces.Location][]interfaces.TraceEvent // context labels per location
}

// NewControlFlowModel snapshots record and builds both coverage trees. It fails with
// coverage.ErrDisconnected if either tree is inconsistent. target is only needed when the
// context range optimizer runs.
func NewControlFlowModel(record *core.Record, target interfaces.Target, config *ModelConfig, logger *logrus.Logger) (*ControlFlowModel, error) {
	if record == nil {
		return nil, fmt.Errorf("record must not be nil")
	}
	if config == nil {
		config = DefaultModelConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}
	if config.ContextSensitive && target == nil {
		return nil, fmt.Errorf("context-sensitive modeling requires a target")
	}
	if logger == nil {
		logger = logrus.New()
	}

	m := &ControlFlowModel{
		config:       config,
		logger:       logger,
		target:       target,
		rng:          rand.New(rand.NewSource(config.RandomSeed)),
		entries:      record.Entries(),
		graph:        coverage.NewGraph[interfaces.Location](),
		contextGraph: coverage.NewGraph[interfaces.TraceEvent](),
		contextMap:   ContextMap{},
		byEdge:       make(map[Edge]int),
		covering:     make(map[interfaces.TraceEvent][]string),
		byLoc:        make(map[interfaces.Location][]interfaces.TraceEvent),
	}

	for _, entry := range m.entries {
		m.graph.Accept(entry.Signature.Locations())
		m.contextGraph.Accept(entry.Signature)
		for ev := range entry.Signature.Events() {
			m.covering[ev] = appendUnique(m.covering[ev], entry.Inputs...)
		}
	}
	if err := m.graph.Validate(); err != nil {
		return nil, fmt.Errorf("coverage graph: %w", err)
	}
	if err := m.contextGraph.Validate(); err != nil {
		return nil, fmt.Errorf("context coverage graph: %w", err)
	}
	for _, label := range m.contextGraph.Labels() {
		m.byLoc[label.Location] = append(m.byLoc[label.Location], label)
	}

	logger.WithFields(logrus.Fields{
		"signatures":    len(m.entries),
		"nodes":         m.graph.Len(),
		"context_nodes": m.contextGraph.Len(),
	}).Info("SIGNATURE coverage graphs built")
	return m, nil
}

// IdentifyBranches scans the coverage tree for nodes with more than one child
func (m *ControlFlowModel) IdentifyBranches() []*coverage.Node[interfaces.Location] {
	m.branches = m.graph.Branches()
	for _, b := range m.branches {
		m.logger.WithFields(logrus.Fields{
			"location": b.Label().String(),
			"children": b.NumChildren(),
		}).Debug("BRANCH identified")
	}
	return m.branches
}

// contextBranchLabels returns the context labels whose location is a branch location
func (m *ControlFlowModel) contextBranchLabels() map[interfaces.TraceEvent]struct{} {
	labels := make(map[interfaces.TraceEvent]struct{})
	for _, b := range m.branches {
		for _, label := range m.byLoc[b.Label()] {
			labels[label] = struct{}{}
		}
	}
	return labels
}

// ModelContext runs the context range optimizer and stores its map. Branches are identified
// first if needed.
func (m *ControlFlowModel) ModelContext(ctx context.Context) (ContextMap, error) {
	if m.target == nil {
		return nil, fmt.Errorf("context modeling requires a target")
	}
	if m.branches == nil {
		m.IdentifyBranches()
	}
	optimizer := NewContextRangeOptimizer(OptimizerConfig{
		InputSampleSize: m.config.InputSampleSize,
		MutationTrials:  m.config.MutationTrials,
		Workers:         m.config.Workers,
	}, m.target, m.entries, m.contextBranchLabels(), m.rng, m.logger)

	cm, err := optimizer.Optimize(ctx)
	if err != nil {
		return nil, err
	}
	m.contextMap = cm
	m.logger.WithField("entries", len(cm)).Info("CONTEXT map computed")
	return cm, nil
}

// projectedInputs returns the inputs reaching label, projected onto its context window
func (m *ControlFlowModel) projectedInputs(label interfaces.TraceEvent) []string {
	var out []string
	for _, input := range m.covering[label] {
		out = appendUnique(out, m.contextMap.Project(label.Context, input))
	}
	return out
}

// inputsAt unions the projected inputs of every context label at loc
func (m *ControlFlowModel) inputsAt(loc interfaces.Location) []string {
	var out []string
	for _, label := range m.byLoc[loc] {
		out = appendUnique(out, m.projectedInputs(label)...)
	}
	return out
}

// edgeJob is one edge to model with its partition
type edgeJob struct {
	edge    Edge
	accepts []string
	rejects []string
	seed    int64
}

// ModelConditions infers a condition for every branch edge. Branches are identified first if
// needed. An edge label pair is modeled once even if it occurs under several tree nodes.
func (m *ControlFlowModel) ModelConditions(ctx context.Context) error {
	if m.branches == nil {
		m.IdentifyBranches()
	}

	var jobs []edgeJob
	seen := make(map[Edge]bool)
	for _, branch := range m.branches {
		pool := m.inputsAt(branch.Label())
		for _, child := range branch.Children() {
			edge := Edge{Src: branch.Label(), Dest: child.Label()}
			if seen[edge] {
				continue
			}
			seen[edge] = true

			taken := make(map[string]bool)
			for _, in := range m.inputsAt(child.Label()) {
				taken[in] = true
			}
			job := edgeJob{edge: edge}
			for _, in := range pool {
				if taken[in] {
					job.accepts = append(job.accepts, in)
				} else {
					job.rejects = append(job.rejects, in)
				}
			}
			jobs = append(jobs, job)
		}
	}
	for i := range jobs {
		jobs[i].seed = m.rng.Int63()
	}

	results := make([]EdgeResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.Workers)
	for i := range jobs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cond, err := m.modelEdge(jobs[i])
			if err != nil {
				return err
			}
			results[i] = EdgeResult{Edge: jobs[i].edge, Condition: cond}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to model conditions: %w", err)
	}

	m.results = results
	m.byEdge = make(map[Edge]int, len(results))
	for i, r := range results {
		m.byEdge[r.Edge] = i
	}
	return nil
}

// modelEdge runs the predicate search for one edge
func (m *ControlFlowModel) modelEdge(job edgeJob) (EdgeCondition, error) {
	cond := EdgeCondition{Accepts: len(job.accepts), Rejects: len(job.rejects)}
	logger := m.logger.WithFields(logrus.Fields{
		"edge":    job.edge.String(),
		"accepts": cond.Accepts,
		"rejects": cond.Rejects,
	})
	if cond.Accepts == 0 || cond.Rejects == 0 {
		logger.Debug("PREDICATE skipped, no accepts or rejects")
		return cond, nil
	}

	estimator, err := inference.NewEstimator(m.config.Estimator, rand.New(rand.NewSource(job.seed)), m.config.MaxTrials)
	if err != nil {
		return cond, err
	}
	est, err := estimator.Estimate(job.accepts, job.rejects)
	if errors.Is(err, inference.ErrNoCandidate) {
		logger.Warn("PREDICATE search produced no candidate")
		return cond, nil
	}
	if err != nil {
		return cond, err
	}

	formula, confidence := est.Formula, est.Confidence
	cond.Formula = &formula
	cond.Confidence = &confidence
	cond.Trials = est.Trials
	logger.WithFields(logrus.Fields{
		"formula":    formula,
		"confidence": confidence,
		"trials":     est.Trials,
	}).Info("PREDICATE inferred")
	return cond, nil
}

// Run identifies branches, derives the context map when enabled and models every edge
func (m *ControlFlowModel) Run(ctx context.Context) ([]EdgeResult, error) {
	m.IdentifyBranches()
	if m.config.ContextSensitive {
		if _, err := m.ModelContext(ctx); err != nil {
			return nil, err
		}
	}
	if err := m.ModelConditions(ctx); err != nil {
		return nil, err
	}
	return m.Conditions(), nil
}

// Conditions returns the modeled edges in branch discovery order
func (m *ControlFlowModel) Conditions() []EdgeResult {
	return append([]EdgeResult(nil), m.results...)
}

// EdgeCondition returns the condition of edge
func (m *ControlFlowModel) EdgeCondition(edge Edge) (EdgeCondition, bool) {
	i, ok := m.byEdge[edge]
	if !ok {
		return EdgeCondition{}, false
	}
	return m.results[i].Condition, true
}

// ContextMap returns the current context map
func (m *ControlFlowModel) ContextMap() ContextMap {
	return m.contextMap
}

// SetContextMap replaces the context map used for projection
func (m *ControlFlowModel) SetContextMap(cm ContextMap) {
	if cm == nil {
		cm = ContextMap{}
	}
	m.contextMap = cm
}

// Branches returns the identified branch nodes
func (m *ControlFlowModel) Branches() []*coverage.Node[interfaces.Location] {
	return m.branches
}

// Graph returns the plain coverage tree
func (m *ControlFlowModel) Graph() *coverage.Graph[interfaces.Location] {
	return m.graph
}

// ContextGraph returns the calling-context coverage tree
func (m *ControlFlowModel) ContextGraph() *coverage.Graph[interfaces.TraceEvent] {
	return m.contextGraph
}

// appendUnique appends the values not yet in dst, keeping order
func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
