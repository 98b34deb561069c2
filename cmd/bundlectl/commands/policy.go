package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bundlectl/bundlectl/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect descriptor policies",
	}

	cmd.AddCommand(newPolicyListCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	var paths []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in and configured policies",
		Example: `  # List the policies validate would evaluate
  bundlectl policy list

  # Include a directory of team policies
  bundlectl policy list --paths ./policies`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(".")
			if err != nil {
				return err
			}
			ctx := ws.withContext(cmd.Context())
			defer closeWorkspace(ctx, ws)

			engine, err := policy.NewEngine(ws.logger)
			if err != nil {
				return err
			}

			all := paths
			for _, p := range ws.cfg.Policy.Paths {
				all = append(all, ws.path(p))
			}
			if len(all) > 0 {
				if err := engine.LoadPolicies(ctx, all); err != nil {
					return err
				}
			}

			policies := engine.ListPolicies()
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), policies)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSEVERITY\tENABLED\tSOURCE\tDESCRIPTION")
			for _, p := range policies {
				source := "builtin"
				if !p.Builtin {
					source, _ = p.Metadata["source"].(string)
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n",
					p.Name, p.Severity, p.Enabled, dash(source), firstLine(p.Description))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&paths, "paths", nil, "extra policy files or directories")

	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
