package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bundlectl/bundlectl/pkg/policy"
	"github.com/bundlectl/bundlectl/pkg/watch"
)

// watchedExtensions are the file types that trigger a re-validation in watch mode.
var watchedExtensions = []string{".yaml", ".yml", ".json", ".cue", ".rego", ".star"}

func newValidateCommand() *cobra.Command {
	var (
		policies    bool
		noPolicies  bool
		policyPaths []string
		checkPaths  []string
		watchMode   bool
		metricsAddr string
		noRecord    bool
	)

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a bundle descriptor",
		Long: `Validate a bundle descriptor against the rule tree of its descriptor version.

This command checks:
  - Descriptor syntax (YAML, JSON or CUE)
  - Structural rules of the descriptor version
  - Rego policies (built-in and --policy-path)
  - Starlark checks (--checks)

The run is recorded in the history database. Exit code 2 means the
descriptor is invalid, 3 means policies or checks reported violations.`,
		Example: `  # Validate the project descriptor
  bundlectl validate

  # Validate a file with extra checks
  bundlectl validate ./bundle.json --checks ./checks

  # Re-validate on every change and serve metrics
  bundlectl validate --watch --metrics-addr :9090`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(".")
			if err != nil {
				return err
			}
			ctx := ws.withContext(cmd.Context())
			defer closeWorkspace(ctx, ws)

			path := ws.descriptorPath()
			if len(args) > 0 {
				path = args[0]
			}

			opts := pipelineOptions{
				Policies:    (ws.cfg.Policy.Enabled || policies) && !noPolicies,
				PolicyPaths: policyPaths,
				Checks:      checkPaths,
				Operation:   "validate",
				Record:      !noRecord,
			}

			log.Debug().
				Str("descriptor", path).
				Bool("policies", opts.Policies).
				Strs("checks", checkPaths).
				Bool("watch", watchMode).
				Msg("Validating descriptor")

			p, err := newPipeline(ctx, ws, opts)
			if err != nil {
				return err
			}

			if watchMode {
				return watchAndValidate(ctx, cmd.OutOrStdout(), p, path, metricsAddr)
			}

			r := p.Run(ctx, path)
			if err := printReport(cmd.OutOrStdout(), r); err != nil {
				return err
			}
			return r.Err()
		},
	}

	cmd.Flags().BoolVar(&policies, "policies", false, "evaluate policies even when disabled in the config")
	cmd.Flags().BoolVar(&noPolicies, "no-policies", false, "skip policy evaluation")
	cmd.Flags().StringSliceVar(&policyPaths, "policy-path", nil, "extra policy file or directory (repeatable)")
	cmd.Flags().StringSliceVar(&checkPaths, "checks", nil, "Starlark check script or directory (repeatable)")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "re-validate whenever the descriptor, policies or checks change")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address in watch mode")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not record the run in the history database")
	cmd.MarkFlagsMutuallyExclusive("policies", "no-policies")

	return cmd
}

// watchAndValidate validates path once, then again after every change until
// ctx is cancelled. Failed runs are reported but do not stop the watcher.
func watchAndValidate(ctx context.Context, out io.Writer, p *pipeline, path, metricsAddr string) error {
	w, err := watch.New(watch.Config{
		Paths:      p.watchPaths(path),
		Extensions: watchedExtensions,
		SkipHidden: true,
	}, p.ws.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if metricsAddr != "" {
		go func() {
			if err := p.ws.tel.Metrics.Serve(ctx, metricsAddr); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
		log.Info().Str("addr", metricsAddr).Msg("Serving metrics")
	}

	validateOnce := func(ctx context.Context) {
		if err := printReport(out, p.Run(ctx, path)); err != nil {
			log.Error().Err(err).Msg("Failed to print report")
		}
	}

	validateOnce(ctx)
	fmt.Fprintf(out, "watching %s for changes (Ctrl+C to stop)\n", path)

	return w.Run(ctx, func(ctx context.Context, changed []string) {
		for _, file := range changed {
			if policy.IsPolicyFile(file) {
				if err := p.reloadPolicies(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to reload policies")
					return
				}
				break
			}
		}
		log.Info().Strs("changed", changed).Msg("Re-validating")
		validateOnce(ctx)
	})
}
