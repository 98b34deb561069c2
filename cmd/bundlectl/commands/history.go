package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded validation runs and packages",
		Long: `Show the validation runs and packages recorded in the history database
of the project (<data_dir>/history.db).`,
	}

	cmd.AddCommand(newHistoryValidationsCommand())
	cmd.AddCommand(newHistoryPackagesCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

func newHistoryValidationsCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "validations",
		Short: "List validation runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(".")
			if err != nil {
				return err
			}
			ctx := ws.withContext(cmd.Context())
			defer closeWorkspace(ctx, ws)

			store, err := ws.openStore(ctx)
			if err != nil {
				return err
			}
			runs, err := store.ListValidations(ctx, limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), runs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tSTATUS\tVERSION\tDESCRIPTOR\tVIOLATIONS\tDURATION")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					run.ID,
					run.CreatedAt.Local().Format(timeLayout),
					run.Status,
					dash(run.DescriptorVersion),
					run.DescriptorPath,
					run.PolicyViolations+run.CheckViolations,
					time.Duration(run.DurationMs)*time.Millisecond,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}

func newHistoryPackagesCommand() *cobra.Command {
	var (
		limit  int
		offset int
		bundle string
	)

	cmd := &cobra.Command{
		Use:   "packages",
		Short: "List packaged bundles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(".")
			if err != nil {
				return err
			}
			ctx := ws.withContext(cmd.Context())
			defer closeWorkspace(ctx, ws)

			store, err := ws.openStore(ctx)
			if err != nil {
				return err
			}

			var name *string
			if bundle != "" {
				name = &bundle
			}
			packages, err := store.ListPackages(ctx, name, limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), packages)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tBUNDLE\tVERSION\tDIGEST\tSIZE\tARCHIVE")
			for _, pkg := range packages {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					pkg.ID,
					pkg.CreatedAt.Local().Format(timeLayout),
					pkg.BundleName,
					pkg.BundleVersion,
					shortDigest(pkg.Digest),
					pkg.SizeBytes,
					pkg.ArchivePath,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of packages")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of packages to skip")
	cmd.Flags().StringVar(&bundle, "bundle", "", "only list packages of this bundle")

	return cmd
}

func newHistoryPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old validation runs",
		Long: `Delete validation runs older than --older-than. Packages are kept; their
link to the deleted run is cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			ws, err := openWorkspace(".")
			if err != nil {
				return err
			}
			ctx := ws.withContext(cmd.Context())
			defer closeWorkspace(ctx, ws)

			store, err := ws.openStore(ctx)
			if err != nil {
				return err
			}
			deleted, err := store.DeleteValidationsBefore(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d validation runs\n", deleted)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the runs to delete")

	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
