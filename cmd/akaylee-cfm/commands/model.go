/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: model.go
Description: Model command implementation for Akaylee CFM. Obtains a coverage record, either
from the record store or from a fresh fuzzing session, runs the control-flow model and renders
the inferred edge conditions.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kleascm/akaylee-cfm/pkg/analysis"
	"github.com/kleascm/akaylee-cfm/pkg/core"
	"github.com/kleascm/akaylee-cfm/pkg/reporting"
	"github.com/kleascm/akaylee-cfm/pkg/storage"
	"github.com/kleascm/akaylee-cfm/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunModel infers and prints the control-flow model of a target
func RunModel(cmd *cobra.Command, args []string) error {
	format, err := reporting.ParseFormat(viper.GetString("format"))
	if err != nil {
		return err
	}
	config := createModelConfig()
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid model configuration: %w", err)
	}

	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.GetLogger()

	stopProfiling, err := startProfiling(logger.GetLogger())
	if err != nil {
		return err
	}
	defer stopProfiling()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolved, err := resolveTarget(log)
	if err != nil {
		return err
	}

	var record *core.Record
	var session *core.Session
	if name := viper.GetString("load"); name != "" {
		record, err = loadRecord(name, resolved.name, log)
		if err != nil {
			return err
		}
	} else {
		session, err = runSession(ctx, resolved, logger)
		if err != nil {
			return err
		}
		record = session.Record()
	}

	model, err := analysis.NewControlFlowModel(record, resolved.target, config, log)
	if err != nil {
		return fmt.Errorf("failed to build model: %w", err)
	}
	if _, err := model.Run(ctx); err != nil {
		return fmt.Errorf("model run failed: %w", err)
	}

	report := reporting.NewModelReport(resolved.name, model, record.Len()).WithConfig(config)
	if session != nil {
		report.WithSession(session.ID, session.GetStats())
	}

	if dir := viper.GetString("metrics-dir"); dir != "" {
		path, err := utils.WriteMetricsResult(dir, "model", resolved.name, report)
		if err != nil {
			return err
		}
		log.WithField("path", path).Info("Model result written")
	}

	return writeReport(cmd, report, format, log)
}

// loadRecord reads a saved record, warning when it was produced for another target
func loadRecord(name, target string, logger *logrus.Logger) (*core.Record, error) {
	store, err := storage.Open(viper.GetString("store"), logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	record, meta, err := store.Load(name)
	if err != nil {
		return nil, err
	}
	if meta.Target != "" && meta.Target != target {
		logger.WithFields(logrus.Fields{
			"record_target": meta.Target,
			"target":        target,
		}).Warn("Record was produced for a different target")
	}
	return record, nil
}

// writeReport renders the report to stdout or into --output-dir
func writeReport(cmd *cobra.Command, report *reporting.ModelReport, format reporting.Format, logger *logrus.Logger) error {
	dir := viper.GetString("output-dir")
	if dir == "" {
		return report.Write(cmd.OutOrStdout(), format)
	}

	if format == reporting.FormatHTML {
		_, err := reporting.NewHTMLGenerator(dir, logger).Generate(report)
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	ext := map[reporting.Format]string{
		reporting.FormatText:  "txt",
		reporting.FormatJSON:  "json",
		reporting.FormatYAML:  "yaml",
		reporting.FormatTable: "txt",
	}[format]
	path := filepath.Join(dir, filepath.Base(report.Target)+"."+ext)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := report.Write(file, format); err != nil {
		return err
	}
	logger.WithField("path", path).Info("Model report written")
	return nil
}
