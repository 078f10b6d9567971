/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: fuzz.go
Description: Fuzz command implementation for Akaylee CFM. Runs a greybox fuzzing session with
graceful shutdown on SIGINT/SIGTERM, optional Prometheus metrics, and saves the resulting
coverage record to the record store.
*/

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kleascm/akaylee-cfm/pkg/core"
	"github.com/kleascm/akaylee-cfm/pkg/logging"
	"github.com/kleascm/akaylee-cfm/pkg/storage"
	"github.com/kleascm/akaylee-cfm/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// fuzzResult is the JSON summary written to --metrics-dir
type fuzzResult struct {
	Target     string             `json:"target"`
	SessionID  string             `json:"session_id"`
	Config     *core.FuzzerConfig `json:"config"`
	Stats      core.FuzzerStats   `json:"stats"`
	Coverage   []int              `json:"coverage_curve"`
	Signatures int                `json:"signatures"`
}

// RunFuzz executes a fuzzing session
func RunFuzz(cmd *cobra.Command, args []string) error {
	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	stopProfiling, err := startProfiling(logger.GetLogger())
	if err != nil {
		return err
	}
	defer stopProfiling()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolved, err := resolveTarget(logger.GetLogger())
	if err != nil {
		return err
	}
	session, err := runSession(ctx, resolved, logger)
	if err != nil {
		return err
	}

	if name := viper.GetString("save"); name != "" {
		if err := saveRecord(name, resolved.name, session, logger.GetLogger()); err != nil {
			return err
		}
	}

	printFinalStats(cmd, resolved.name, session)
	return nil
}

// runSession fuzzes resolved according to the viper settings. An interrupted session still
// returns its partial record.
func runSession(ctx context.Context, resolved *resolvedTarget, logger *logging.Logger) (*core.Session, error) {
	config := createFuzzerConfig(resolved.seeds)
	log := logger.GetLogger()

	session, err := core.NewSession(config, resolved.target, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if log.IsLevelEnabled(logrus.DebugLevel) {
		session.AddReporter(core.NewLoggerReporter(log))
	}

	if addr := viper.GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		reporter, err := core.NewPrometheusReporter(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		session.AddReporter(reporter)
		defer startMetricsServer(addr, reg, log)()
	}

	log.WithFields(logrus.Fields{
		"target":     resolved.name,
		"session_id": session.ID,
		"seeds":      len(config.Seeds),
		"trials":     config.Trials,
	}).Info("FUZZ session configured")

	runErr := session.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return nil, runErr
	}

	stats := session.GetStats()
	logger.LogStats(stats.Executions, stats.Failures, stats.Signatures, stats.ExecutionsPerSecond)

	if dir := viper.GetString("metrics-dir"); dir != "" {
		_, curve := session.PopulationCoverage()
		path, err := utils.WriteMetricsResult(dir, "fuzz", resolved.name, fuzzResult{
			Target:     resolved.name,
			SessionID:  session.ID,
			Config:     config,
			Stats:      stats,
			Coverage:   curve,
			Signatures: session.Record().Len(),
		})
		if err != nil {
			return nil, err
		}
		log.WithField("path", path).Info("Fuzzing result written")
	}
	return session, nil
}

// saveRecord stores the session's record under name
func saveRecord(name, target string, session *core.Session, logger *logrus.Logger) error {
	store, err := storage.Open(viper.GetString("store"), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Save(storage.RecordMeta{
		Name:      name,
		Target:    target,
		SessionID: session.ID,
	}, session.Record())
}

// printFinalStats prints a short session summary
func printFinalStats(cmd *cobra.Command, target string, session *core.Session) {
	stats := session.GetStats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Target:          %s\n", target)
	fmt.Fprintf(out, "Session:         %s\n", session.ID)
	fmt.Fprintf(out, "Executions:      %d (%.2f/sec)\n", stats.Executions, stats.ExecutionsPerSecond)
	fmt.Fprintf(out, "Failures:        %d\n", stats.Failures)
	fmt.Fprintf(out, "Unresolved:      %d\n", stats.Unresolved)
	fmt.Fprintf(out, "Signatures:      %d\n", stats.Signatures)
	fmt.Fprintf(out, "Recorded inputs: %d\n", stats.RecordedInputs)
	fmt.Fprintf(out, "Covered events:  %d\n", stats.CoveredEvents)
}
