/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the Akaylee CFM commands. Provides configuration loading,
logging setup, target resolution and the conversion of viper settings into fuzzer and model
configurations.
*/

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kleascm/akaylee-cfm/pkg/analysis"
	"github.com/kleascm/akaylee-cfm/pkg/core"
	"github.com/kleascm/akaylee-cfm/pkg/execution"
	"github.com/kleascm/akaylee-cfm/pkg/interfaces"
	"github.com/kleascm/akaylee-cfm/pkg/logging"
	"github.com/kleascm/akaylee-cfm/pkg/monitoring"
	"github.com/kleascm/akaylee-cfm/pkg/targets"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// AddTargetFlags registers the flags selecting the program under analysis
func AddTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("target", "", "Built-in target name (see 'targets')")
	cmd.Flags().String("process", "", "Path to an external instrumented program")
	cmd.Flags().StringSlice("process-args", []string{}, "Arguments for the external program")
	cmd.Flags().StringSlice("process-env", []string{}, "Extra environment for the external program (KEY=VALUE)")
	cmd.Flags().String("input-mode", execution.InputModeStdin, "How the external program receives input (stdin, file)")
}

// AddFuzzFlags registers the fuzzing session flags
func AddFuzzFlags(cmd *cobra.Command) {
	defaults := core.DefaultFuzzerConfig()
	cmd.Flags().StringSlice("seeds", []string{}, "Seed inputs (defaults to the built-in target's seeds)")
	cmd.Flags().String("corpus", "", "Directory of additional seed files")
	cmd.Flags().Int("trials", defaults.Trials, "Number of fuzzing trials")
	cmd.Flags().Int64("random-seed", defaults.RandomSeed, "Seed of the fuzzer's random stream")
	cmd.Flags().Int("max-steps", defaults.MaxSteps, "Traced line budget per in-process execution")
	cmd.Flags().Duration("timeout", defaults.Timeout, "Wall-clock limit per external execution")
	cmd.Flags().Int("record-cap", defaults.RecordCap, "Inputs recorded per coverage signature")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().String("metrics-dir", "", "Write a JSON result file into this directory")
}

// AddModelFlags registers the model run flags
func AddModelFlags(cmd *cobra.Command) {
	defaults := analysis.DefaultModelConfig()
	cmd.Flags().String("load", "", "Load the record saved under this name instead of fuzzing")
	cmd.Flags().Bool("context", defaults.ContextSensitive, "Derive input windows per calling context")
	cmd.Flags().Int("max-trials", defaults.MaxTrials, "Predicate search budget per edge")
	cmd.Flags().Int("input-sample-size", defaults.InputSampleSize, "Inputs sampled per signature for sensitivity analysis")
	cmd.Flags().Int("mutation-trials", defaults.MutationTrials, "Mutations per input position")
	cmd.Flags().Int("workers", defaults.Workers, "Parallel re-executions and edge searches")
	cmd.Flags().Int64("model-seed", defaults.RandomSeed, "Seed of the model's random stream")
	cmd.Flags().String("estimator", defaults.Estimator, "Predicate estimator")
	cmd.Flags().String("format", "text", "Report format (text, json, yaml, table, html)")
	cmd.Flags().String("output-dir", "", "Write the report into this directory instead of stdout")
}

// LoadConfig binds the running command's flags, reads the config file and environment
func LoadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvPrefix("AKAYLEE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	return nil
}

// SetupLogging creates the shared logger from the logging settings
func SetupLogging() (*logging.Logger, error) {
	config := &logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log-level")),
		Format:    logging.LogFormat(viper.GetString("log-format")),
		OutputDir: viper.GetString("log-dir"),
		MaxFiles:  viper.GetInt("log-max-files"),
		Timestamp: true,
		Colors:    true,
	}
	logger, err := logging.NewLogger(config)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return logger, nil
}

// resolvedTarget is the program under analysis with its default seeds
type resolvedTarget struct {
	name   string
	target interfaces.Target
	seeds  []string
}

// resolveTarget builds the target selected by --target or --process
func resolveTarget(logger *logrus.Logger) (*resolvedTarget, error) {
	name := viper.GetString("target")
	path := viper.GetString("process")

	switch {
	case name != "" && path != "":
		return nil, errors.New("--target and --process are mutually exclusive")

	case name != "":
		spec, err := targets.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(targets.Names(), ", "))
		}
		return &resolvedTarget{
			name:   spec.Name,
			target: spec.Target(viper.GetInt("max-steps")),
			seeds:  spec.Seeds,
		}, nil

	case path != "":
		target, err := execution.NewProcessTarget(execution.ProcessConfig{
			Path:      path,
			Args:      viper.GetStringSlice("process-args"),
			Env:       viper.GetStringSlice("process-env"),
			InputMode: viper.GetString("input-mode"),
			Timeout:   viper.GetDuration("timeout"),
		}, logger)
		if err != nil {
			return nil, err
		}
		return &resolvedTarget{name: path, target: target}, nil

	default:
		return nil, errors.New("either --target or --process is required")
	}
}

// createFuzzerConfig converts viper settings into a fuzzer configuration
func createFuzzerConfig(defaultSeeds []string) *core.FuzzerConfig {
	seeds := viper.GetStringSlice("seeds")
	if len(seeds) == 0 {
		seeds = defaultSeeds
	}
	return &core.FuzzerConfig{
		Seeds:      seeds,
		CorpusDir:  viper.GetString("corpus"),
		Trials:     viper.GetInt("trials"),
		RandomSeed: viper.GetInt64("random-seed"),
		MaxSteps:   viper.GetInt("max-steps"),
		Timeout:    viper.GetDuration("timeout"),
		RecordCap:  viper.GetInt("record-cap"),
		LogLevel:   viper.GetString("log-level"),
	}
}

// createModelConfig converts viper settings into a model configuration
func createModelConfig() *analysis.ModelConfig {
	return &analysis.ModelConfig{
		ContextSensitive: viper.GetBool("context"),
		MaxTrials:        viper.GetInt("max-trials"),
		InputSampleSize:  viper.GetInt("input-sample-size"),
		MutationTrials:   viper.GetInt("mutation-trials"),
		Workers:          viper.GetInt("workers"),
		RandomSeed:       viper.GetInt64("model-seed"),
		Estimator:        viper.GetString("estimator"),
	}
}

// startMetricsServer serves reg on addr until the returned stop function is called
func startMetricsServer(addr string, reg *prometheus.Registry, logger *logrus.Logger) func() {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()
	logger.WithField("addr", addr).Info("Serving Prometheus metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}

// startProfiling profiles the run when --profile-dir is set; the returned function stops it
func startProfiling(logger *logrus.Logger) (func(), error) {
	dir := viper.GetString("profile-dir")
	if dir == "" {
		return func() {}, nil
	}
	profiler := monitoring.NewProfiler(&monitoring.ProfilerConfig{
		OutputDir:     dir,
		CPUProfile:    true,
		MemoryProfile: true,
	}, logger)
	if err := profiler.Start(); err != nil {
		return nil, err
	}
	return func() {
		if _, err := profiler.Stop(); err != nil {
			logger.WithError(err).Warn("Failed to finish profiling")
		}
	}, nil
}
