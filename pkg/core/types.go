/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Core types for the Akaylee Fuzzer engine. Defines seeds, fuzzing statistics,
per-run results and the fuzzing configuration shared by the mutation fuzzer, the greybox
fuzzer and the fuzzing session.
*/

package core

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/akaylee-cfm/pkg/coverage"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
)

// ErrEmptyPopulation is returned when a seed must be chosen from an empty population
var ErrEmptyPopulation = errors.New("population is empty")

// Seed is an input retained by the fuzzer together with its selection energy
// Seeds are owned by the population and never removed
type Seed struct {
	ID        string             `json:"id"`         // Unique identifier for the seed
	Data      string             `json:"data"`       // The input string
	Energy    float64            `json:"energy"`     // Relative selection weight
	Coverage  coverage.Signature `json:"coverage"`   // Signature of the run that produced it (nil for initial seeds)
	CreatedAt time.Time          `json:"created_at"` // When the seed was created
}

// NewSeed creates a seed with the default energy of 1
func NewSeed(data string) *Seed {
	return &Seed{
		ID:        uuid.New().String(),
		Data:      data,
		Energy:    1,
		CreatedAt: time.Now(),
	}
}

// String returns the seed data
func (s *Seed) String() string {
	return s.Data
}

// RunResult describes one fuzzing trial
type RunResult struct {
	Input       string                  `json:"input"`
	Outcome     interfaces.Outcome      `json:"outcome"`
	Trace       []interfaces.TraceEvent `json:"-"`
	Signature   coverage.Signature      `json:"-"`
	NewCoverage bool                    `json:"new_coverage"` // The signature had not been seen before
	Duration    time.Duration           `json:"duration"`
}

// FuzzerStats tracks overall fuzzer statistics
// Uses atomic operations for thread-safe updates
type FuzzerStats struct {
	Executions          int64     `json:"executions"`            // Total number of executions
	Failures            int64     `json:"failures"`              // Executions with outcome FAIL
	Unresolved          int64     `json:"unresolved"`            // Executions with outcome UNRESOLVED
	Signatures          int64     `json:"signatures"`            // Distinct coverage signatures seen
	PopulationSize      int64     `json:"population_size"`       // Seeds in the population
	RecordedInputs      int64     `json:"recorded_inputs"`       // Inputs stored in the record
	CoveredEvents       int64     `json:"covered_events"`        // Distinct trace events covered so far
	StartTime           time.Time `json:"start_time"`            // When fuzzing started
	ExecutionsPerSecond float64   `json:"executions_per_second"` // Average execution rate
}

// IncrementExecutions atomically increments the execution counter
func (s *FuzzerStats) IncrementExecutions() {
	atomic.AddInt64(&s.Executions, 1)
}

// IncrementFailures atomically increments the failure counter
func (s *FuzzerStats) IncrementFailures() {
	atomic.AddInt64(&s.Failures, 1)
}

// IncrementUnresolved atomically increments the unresolved counter
func (s *FuzzerStats) IncrementUnresolved() {
	atomic.AddInt64(&s.Unresolved, 1)
}

// IncrementSignatures atomically increments the signature counter
func (s *FuzzerStats) IncrementSignatures() {
	atomic.AddInt64(&s.Signatures, 1)
}

// Snapshot returns a consistent copy of the statistics
func (s *FuzzerStats) Snapshot() FuzzerStats {
	snap := FuzzerStats{
		Executions:     atomic.LoadInt64(&s.Executions),
		Failures:       atomic.LoadInt64(&s.Failures),
		Unresolved:     atomic.LoadInt64(&s.Unresolved),
		Signatures:     atomic.LoadInt64(&s.Signatures),
		PopulationSize: atomic.LoadInt64(&s.PopulationSize),
		RecordedInputs: atomic.LoadInt64(&s.RecordedInputs),
		CoveredEvents:  atomic.LoadInt64(&s.CoveredEvents),
		StartTime:      s.StartTime,
	}
	if elapsed := time.Since(s.StartTime).Seconds(); elapsed > 0 && !s.StartTime.IsZero() {
		snap.ExecutionsPerSecond = float64(snap.Executions) / elapsed
	}
	return snap
}

// FuzzerConfig contains all configuration parameters for a fuzzing session
// Supports both command-line flags and configuration files
type FuzzerConfig struct {
	// Seed configuration
	Seeds     []string `json:"seeds" yaml:"seeds" mapstructure:"seeds"`                // Seed inputs, replayed first in order
	CorpusDir string   `json:"corpus_dir" yaml:"corpus_dir" mapstructure:"corpus_dir"` // Optional directory of additional seed files

	// Execution configuration
	Trials     int           `json:"trials" yaml:"trials" mapstructure:"trials"`                // Number of fuzzing trials
	RandomSeed int64         `json:"random_seed" yaml:"random_seed" mapstructure:"random_seed"` // Seed of the random stream
	MaxSteps   int           `json:"max_steps" yaml:"max_steps" mapstructure:"max_steps"`       // Traced line budget for in-process targets
	Timeout    time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`             // Wall-clock limit for process targets

	// Record configuration
	RecordCap int `json:"record_cap" yaml:"record_cap" mapstructure:"record_cap"` // Inputs kept per signature

	// Logging configuration
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"` // Logging level (debug, info, warn, error)
}

// DefaultFuzzerConfig returns the configuration used when nothing is overridden
func DefaultFuzzerConfig() *FuzzerConfig {
	return &FuzzerConfig{
		Trials:     1000,
		RandomSeed: 1,
		MaxSteps:   100000,
		Timeout:    5 * time.Second,
		RecordCap:  DefaultRecordCap,
		LogLevel:   "info",
	}
}

// Validate checks the configuration for errors
func (c *FuzzerConfig) Validate() error {
	if c.Trials < 0 {
		return fmt.Errorf("trials must not be negative, got %d", c.Trials)
	}
	if c.RecordCap <= 0 {
		return fmt.Errorf("record cap must be positive, got %d", c.RecordCap)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max steps must not be negative, got %d", c.MaxSteps)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if len(c.Seeds) == 0 && c.CorpusDir == "" {
		return fmt.Errorf("at least one seed or a corpus directory is required")
	}
	return nil
}
