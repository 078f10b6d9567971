/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine.go
Description: Fuzzing session for the Akaylee Fuzzer. Drives the coverage recorder against a target
for a fixed number of trials, keeps execution statistics and the cumulative coverage curve,
and notifies registered reporters. Trials run sequentially because every trial reads and
writes the population and the record.
*/

package core

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// Session runs one fuzzing campaign against a target
type Session struct {
	ID     string
	config *FuzzerConfig
	stats  *FuzzerStats
	logger *logrus.Logger

	target   interfaces.Target
	recorder *CoverageRecorder

	covered   map[interfaces.TraceEvent]struct{}
	curve     []int
	reporters []Reporter

	running bool
	mu      sync.RWMutex
}

// NewSession creates a session. Seeds found in config.CorpusDir are appended to config.Seeds.
func NewSession(config *FuzzerConfig, target interfaces.Target, logger *logrus.Logger) (*Session, error) {
	if config == nil {
		config = DefaultFuzzerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fuzzer config: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("target must not be nil")
	}
	if logger == nil {
		logger = logrus.New()
	}

	seeds := append([]string(nil), config.Seeds...)
	if config.CorpusDir != "" {
		loaded, err := LoadSeeds(config.CorpusDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize corpus: %w", err)
		}
		seeds = append(seeds, loaded...)
		logger.WithFields(logrus.Fields{
			"dir":   config.CorpusDir,
			"seeds": len(loaded),
		}).Info("Loaded seed inputs from corpus")
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seed inputs available")
	}

	rng := rand.New(rand.NewSource(config.RandomSeed))
	return &Session{
		ID:       uuid.New().String(),
		config:   config,
		stats:    &FuzzerStats{},
		logger:   logger,
		target:   target,
		recorder: NewCoverageRecorder(seeds, NewUniformSchedule(), rng, config.RecordCap),
		covered:  make(map[interfaces.TraceEvent]struct{}),
	}, nil
}

// AddReporter registers a Reporter for telemetry and live reporting.
func (s *Session) AddReporter(reporter Reporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporters = append(s.reporters, reporter)
}

// Run executes config.Trials trials. Cancelling ctx stops the campaign after the current
// trial; the record collected so far stays valid.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("session is already running")
	}
	s.running = true
	if s.stats.StartTime.IsZero() {
		s.stats.StartTime = time.Now()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	logger := s.logger.WithFields(logrus.Fields{"session": s.ID, "trials": s.config.Trials})
	logger.Info("Starting fuzzing session")

	for i := 0; i < s.config.Trials; i++ {
		if err := ctx.Err(); err != nil {
			logger.WithField("completed", i).Warn("Fuzzing session interrupted")
			return fmt.Errorf("fuzzing interrupted after %d trials: %w", i, err)
		}
		result, err := s.recorder.Run(ctx, s.target)
		if err != nil {
			return fmt.Errorf("trial %d failed: %w", i, err)
		}
		s.processResult(result)
	}

	stats := s.stats.Snapshot()
	logger.WithFields(logrus.Fields{
		"executions": stats.Executions,
		"failures":   stats.Failures,
		"unresolved": stats.Unresolved,
		"signatures": stats.Signatures,
		"recorded":   stats.RecordedInputs,
	}).Info("Fuzzing session finished")
	return nil
}

// processResult updates statistics, the coverage curve and reporters
func (s *Session) processResult(result RunResult) {
	s.stats.IncrementExecutions()
	switch result.Outcome {
	case interfaces.OutcomeFail:
		s.stats.IncrementFailures()
	case interfaces.OutcomeUnresolved:
		s.stats.IncrementUnresolved()
	}

	s.mu.Lock()
	for _, ev := range result.Signature {
		s.covered[ev] = struct{}{}
	}
	coveredCount := len(s.covered)
	s.curve = append(s.curve, coveredCount)
	reporters := append([]Reporter(nil), s.reporters...)
	s.mu.Unlock()

	atomic.StoreInt64(&s.stats.CoveredEvents, int64(coveredCount))
	atomic.StoreInt64(&s.stats.PopulationSize, int64(s.recorder.Population().Size()))
	atomic.StoreInt64(&s.stats.RecordedInputs, int64(s.recorder.Record().TotalInputs()))

	var added *Seed
	if result.NewCoverage {
		s.stats.IncrementSignatures()
		seeds := s.recorder.Population().Seeds()
		added = seeds[len(seeds)-1]
	}
	for _, r := range reporters {
		r.OnRunExecuted(result)
		if added != nil {
			r.OnSeedAdded(added)
		}
	}
}

// Record returns the record collected so far
func (s *Session) Record() *Record {
	return s.recorder.Record()
}

// Population returns the seed population
func (s *Session) Population() *Population {
	return s.recorder.Population()
}

// History returns every input executed so far
func (s *Session) History() []string {
	return s.recorder.History()
}

// GetStats returns current fuzzer statistics
func (s *Session) GetStats() FuzzerStats {
	return s.stats.Snapshot()
}

// PopulationCoverage returns the distinct trace events covered by all executed inputs and the
// cumulative number covered after each trial
func (s *Session) PopulationCoverage() (map[interfaces.TraceEvent]struct{}, []int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	covered := make(map[interfaces.TraceEvent]struct{}, len(s.covered))
	for ev := range s.covered {
		covered[ev] = struct{}{}
	}
	return covered, append([]int(nil), s.curve...)
}

// LoadSeeds reads every regular file in dir as one seed input, in file name order
func LoadSeeds(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob corpus files: %w", err)
	}
	sort.Strings(files)

	var seeds []string
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file %s: %w", file, err)
		}
		seeds = append(seeds, string(data))
	}
	return seeds, nil
}
