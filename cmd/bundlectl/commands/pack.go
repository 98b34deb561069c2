package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bundlectl/bundlectl/pkg/packager"
	"github.com/bundlectl/bundlectl/pkg/stores"
	"github.com/bundlectl/bundlectl/pkg/telemetry"
)

func newPackCommand() *cobra.Command {
	var (
		output     string
		noPolicies bool
		checkPaths []string
	)

	cmd := &cobra.Command{
		Use:   "pack [dir]",
		Short: "Validate and package a bundle",
		Long: `Validate the bundle descriptor, then write the bundle directory to
<output>/<name>-<version>.tgz.

Entries are sorted and carry no timestamps, so packing the same files twice
gives the same sha256 digest. The archive is recorded in the history
database together with the validation run that approved it.`,
		Example: `  # Package the current project into dist/
  bundlectl pack

  # Package another project into a custom directory
  bundlectl pack ./orders --output /tmp/bundles`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			ws, err := openWorkspace(dir)
			if err != nil {
				return err
			}
			ctx := ws.withContext(cmd.Context())
			defer closeWorkspace(ctx, ws)

			p, err := newPipeline(ctx, ws, pipelineOptions{
				Policies:  ws.cfg.Policy.Enabled && !noPolicies,
				Checks:    checkPaths,
				Operation: "pack",
				Record:    true,
			})
			if err != nil {
				return err
			}

			r := p.Run(ctx, ws.descriptorPath())
			if err := r.Err(); err != nil {
				if printErr := printReport(cmd.ErrOrStderr(), r); printErr != nil {
					return printErr
				}
				return err
			}

			outputDir := ws.cfg.Pack.OutputDir
			if output != "" {
				outputDir = output
			}

			log.Info().
				Str("bundle", r.bundle.Name).
				Str("version", r.bundle.Version).
				Str("output", outputDir).
				Msg("Packing bundle")

			ctx, span := ws.tel.Tracer.StartPackSpan(ctx, r.bundle.Name, r.bundle.Version)
			artifact, err := packager.Pack(ctx, packager.Options{
				Dir:       dir,
				OutputDir: outputDir,
				Exclude:   ws.cfg.Pack.Exclude,
				Bundle:    r.bundle,
				Logger:    ws.logger,
			})
			if err != nil {
				telemetry.RecordError(span, err)
				span.End()
				return fmt.Errorf("failed to pack bundle: %w", err)
			}
			span.SetAttributes(telemetry.AttrArchiveDigest.String(artifact.Digest))
			telemetry.RecordSuccess(span)
			span.End()

			ws.tel.Metrics.RecordPackage(artifact.Size)

			pkg := &stores.Package{
				BundleName:    r.bundle.Name,
				BundleVersion: r.bundle.Version,
				ArchivePath:   artifact.Path,
				Digest:        artifact.Digest,
				SizeBytes:     artifact.Size,
				FileCount:     len(artifact.Files),
			}
			if r.RunID != "" {
				pkg.ValidationID = &r.RunID
			}
			store, err := ws.openStore(ctx)
			if err != nil {
				return err
			}
			if err := store.CreatePackage(ctx, pkg); err != nil {
				return fmt.Errorf("failed to record package: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, struct {
					*packager.Artifact
					ID string `json:"id"`
				}{artifact, pkg.ID})
			}
			fmt.Fprintf(out, "✓ Packed %s %s\n", r.bundle.Name, r.bundle.Version)
			fmt.Fprintf(out, "  archive: %s\n", artifact.Path)
			fmt.Fprintf(out, "  sha256:  %s\n", artifact.Digest)
			fmt.Fprintf(out, "  files:   %d (%d bytes)\n", len(artifact.Files), artifact.Size)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default from config, relative to dir)")
	cmd.Flags().BoolVar(&noPolicies, "no-policies", false, "skip policy evaluation")
	cmd.Flags().StringSliceVar(&checkPaths, "checks", nil, "Starlark check script or directory (repeatable)")

	return cmd
}
