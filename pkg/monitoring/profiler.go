/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: profiler.go
Description: Performance profiling for Akaylee CFM runs. Captures a CPU profile for the
duration of a fuzzing or model run and a heap profile at its end, so slow sensitivity
analyses or predicate searches can be inspected with go tool pprof.
*/

package monitoring

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProfilerType represents the type of profiling
type ProfilerType string

const (
	ProfilerTypeCPU    ProfilerType = "cpu"
	ProfilerTypeMemory ProfilerType = "memory"
)

// ProfilerConfig represents profiling configuration
type ProfilerConfig struct {
	OutputDir     string `json:"output_dir"`
	CPUProfile    bool   `json:"cpu_profile"`
	MemoryProfile bool   `json:"memory_profile"`
}

// ProfileResult describes one written profile
type ProfileResult struct {
	Type       ProfilerType  `json:"type"`
	StartTime  time.Time     `json:"start_time"`
	Duration   time.Duration `json:"duration"`
	OutputFile string        `json:"output_file"`
	Size       int64         `json:"size"`
}

// Profiler writes pprof profiles around a run
type Profiler struct {
	config *ProfilerConfig
	logger *logrus.Logger

	running   bool
	startTime time.Time
	cpuFile   *os.File
	results   []ProfileResult
	mu        sync.Mutex
}

// NewProfiler creates a new profiler
func NewProfiler(config *ProfilerConfig, logger *logrus.Logger) *Profiler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Profiler{config: config, logger: logger}
}

// Start begins CPU profiling if enabled
func (p *Profiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("profiler already running")
	}
	if err := os.MkdirAll(p.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	p.startTime = time.Now()

	if p.config.CPUProfile {
		file, err := os.Create(p.outputFile(ProfilerTypeCPU))
		if err != nil {
			return fmt.Errorf("failed to create CPU profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(file); err != nil {
			file.Close()
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		p.cpuFile = file
		p.logger.Info("CPU profiling started")
	}

	p.running = true
	return nil
}

// Stop finishes the CPU profile, writes the heap profile and returns what was written
func (p *Profiler) Stop() ([]ProfileResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil, fmt.Errorf("profiler not running")
	}
	p.running = false
	elapsed := time.Since(p.startTime)

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		path := p.cpuFile.Name()
		if err := p.cpuFile.Close(); err != nil {
			return nil, fmt.Errorf("failed to close CPU profile: %w", err)
		}
		p.cpuFile = nil
		p.record(ProfilerTypeCPU, path, elapsed)
	}

	if p.config.MemoryProfile {
		path := p.outputFile(ProfilerTypeMemory)
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory profile file: %w", err)
		}
		runtime.GC()
		err = pprof.WriteHeapProfile(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to write memory profile: %w", err)
		}
		p.record(ProfilerTypeMemory, path, elapsed)
	}

	return append([]ProfileResult(nil), p.results...), nil
}

func (p *Profiler) outputFile(kind ProfilerType) string {
	return filepath.Join(p.config.OutputDir, fmt.Sprintf("%s_%d.prof", kind, p.startTime.UnixNano()))
}

func (p *Profiler) record(kind ProfilerType, path string, elapsed time.Duration) {
	result := ProfileResult{Type: kind, StartTime: p.startTime, Duration: elapsed, OutputFile: path}
	if info, err := os.Stat(path); err == nil {
		result.Size = info.Size()
	}
	p.results = append(p.results, result)
	p.logger.WithFields(logrus.Fields{
		"type": kind,
		"file": path,
		"size": result.Size,
	}).Info("Profile written")
}

// IsRunning reports whether profiling is active
func (p *Profiler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
