package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
	metricsOut string

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	buildVersion = version

	rootCmd := &cobra.Command{
		Use:   "bundlectl",
		Short: "bundlectl - bundle descriptor validation and packaging",
		Long: `bundlectl validates, converts and packages bundle projects.

A bundle is described by a descriptor file (bundle.yaml, bundle.json or
bundle.cue) listing its microservices and micro-frontends.

Features:
  - Structural validation of v5 and v6 descriptors
  - Rego policies and Starlark checks on top of the rule trees
  - Conversion between YAML, JSON and CUE
  - Reproducible bundle archives
  - JSON Schema export of the descriptor rules
  - Local history of validation runs and packages`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default <project>/.bundlectl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "", "write Prometheus metrics to this textfile on exit")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newPackCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newSchemaCommand())

	return rootCmd
}
