/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporter.go
Description: Reporter interface and implementations for Akaylee Fuzzer telemetry and live reporting.
 Supports structured logging and Prometheus metrics for fuzzing trials and population growth.
*/

package core

import (
	"fmt"

	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Reporter defines the interface for telemetry and reporting hooks.
// Allows the fuzzing session to notify listeners of execution and population events.
type Reporter interface {
	// OnRunExecuted is called after every trial.
	OnRunExecuted(result RunResult)
	// OnSeedAdded is called when a new signature adds a seed to the population.
	OnSeedAdded(seed *Seed)
}

// LoggerReporter logs execution and population events.
type LoggerReporter struct {
	logger *logrus.Logger
}

// NewLoggerReporter creates a new LoggerReporter.
func NewLoggerReporter(logger *logrus.Logger) *LoggerReporter {
	return &LoggerReporter{logger: logger}
}

// OnRunExecuted logs execution results.
func (r *LoggerReporter) OnRunExecuted(result RunResult) {
	fields := logrus.Fields{
		"input":   fmt.Sprintf("%q", result.Input),
		"outcome": result.Outcome,
		"events":  len(result.Signature),
	}
	switch result.Outcome {
	case interfaces.OutcomeFail:
		r.logger.WithFields(fields).Debug("Target failed")
	case interfaces.OutcomeUnresolved:
		r.logger.WithFields(fields).Warn("Target run unresolved")
	default:
		r.logger.WithFields(fields).Trace("Input executed")
	}
}

// OnSeedAdded logs population growth.
func (r *LoggerReporter) OnSeedAdded(seed *Seed) {
	r.logger.WithFields(logrus.Fields{
		"id":     seed.ID,
		"input":  fmt.Sprintf("%q", seed.Data),
		"events": len(seed.Coverage),
	}).Info("New signature, seed added to population")
}

// PrometheusReporter exports fuzzing metrics to a Prometheus registry.
type PrometheusReporter struct {
	executions *prometheus.CounterVec
	seeds      prometheus.Counter
	duration   prometheus.Histogram
}

// NewPrometheusReporter creates the collectors and registers them with reg.
// A nil reg selects prometheus.DefaultRegisterer.
func NewPrometheusReporter(reg prometheus.Registerer) (*PrometheusReporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusReporter{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "akaylee",
			Name:      "executions_total",
			Help:      "Target executions by outcome.",
		}, []string{"outcome"}),
		seeds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "akaylee",
			Name:      "signatures_total",
			Help:      "Distinct coverage signatures that added a seed.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "akaylee",
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock time of a single target execution.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
	for _, c := range []prometheus.Collector{r.executions, r.seeds, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return r, nil
}

// OnRunExecuted updates execution counters.
func (r *PrometheusReporter) OnRunExecuted(result RunResult) {
	r.executions.WithLabelValues(string(result.Outcome)).Inc()
	r.duration.Observe(result.Duration.Seconds())
}

// OnSeedAdded counts new signatures.
func (r *PrometheusReporter) OnSeedAdded(seed *Seed) {
	r.seeds.Inc()
}
