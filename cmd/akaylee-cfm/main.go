/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Command-line interface for the Akaylee control-flow model inferrer. Fuzzes a
target to record coverage signatures, infers branch conditions from the record and prints
the model. Flags, an optional config file and AKAYLEE_* environment variables are merged
through viper.
*/

package main

import (
	"fmt"
	"os"

	"github.com/kleascm/akaylee-cfm/cmd/akaylee-cfm/commands"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "akaylee-cfm",
		Short: "Akaylee CFM - infer control-flow models of instrumented programs",
		Long: `Akaylee CFM fuzzes an instrumented target with a coverage-guided greybox fuzzer,
records which inputs reach which ordered coverage signatures, and infers a predicate over
the input for every branch edge of the observed control flow.`,
		Version:           "1.0.0",
		SilenceUsage:      true,
		PersistentPreRunE: commands.LoadConfig,
	}

	rootCmd.PersistentFlags().String("config", "", "Configuration file path (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "custom", "Log format (text, json, custom)")
	rootCmd.PersistentFlags().String("log-dir", "", "Directory for log files (empty disables file logging)")
	rootCmd.PersistentFlags().Int("log-max-files", 10, "Maximum number of log files to keep")
	rootCmd.PersistentFlags().String("store", "./akaylee-store", "Directory of the badger record store")
	rootCmd.PersistentFlags().String("profile-dir", "", "Write CPU and heap profiles of the run into this directory")

	fuzzCmd := &cobra.Command{
		Use:   "fuzz",
		Short: "Fuzz a target and record coverage signatures",
		Long: `Run a greybox fuzzing session against a built-in or external target. Every input
that reaches a new ordered coverage signature becomes a seed; up to --record-cap inputs per
signature are recorded. The record can be saved for later model runs with --save.`,
		RunE: commands.RunFuzz,
	}
	commands.AddTargetFlags(fuzzCmd)
	commands.AddFuzzFlags(fuzzCmd)
	fuzzCmd.Flags().String("save", "", "Save the record under this name in the record store")

	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "Infer the control-flow model of a target",
		Long: `Build coverage trees from a record, derive relevant input windows per calling
context and search a predicate for every branch edge. The record is either loaded from the
store (--load) or produced by a fresh fuzzing session.`,
		RunE: commands.RunModel,
	}
	commands.AddTargetFlags(modelCmd)
	commands.AddFuzzFlags(modelCmd)
	commands.AddModelFlags(modelCmd)

	targetsCmd := &cobra.Command{
		Use:   "targets",
		Short: "List built-in targets",
		RunE:  commands.ListTargets,
	}

	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "List records saved in the record store",
		RunE:  commands.ListRecords,
	}

	rootCmd.AddCommand(fuzzCmd, modelCmd, targetsCmd, recordsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
