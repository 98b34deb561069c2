package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bundlectl/bundlectl/pkg/descriptor"
	"github.com/bundlectl/bundlectl/pkg/schema"
)

func newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Work with the JSON Schema of bundle descriptors",
	}

	cmd.AddCommand(newSchemaExportCommand())
	cmd.AddCommand(newSchemaCheckCommand())

	return cmd
}

func newSchemaExportCommand() *cobra.Command {
	var (
		version string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the descriptor rules as a JSON Schema",
		Long: `Export the rule tree of a descriptor version as a JSON Schema (draft
2020-12) for editors and other tooling. The exported schema is compiled
before it is written.

Custom validators that have no JSON Schema keyword are left out, so the
schema accepts a superset of what validate accepts.`,
		Example: `  # Print the v6 schema
  bundlectl schema export --descriptor-version v6

  # Write the default version's schema to a file
  bundlectl schema export -o bundle.schema.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(".")
			if err != nil {
				return err
			}
			ctx := ws.withContext(cmd.Context())
			defer closeWorkspace(ctx, ws)

			data, err := exportSchema(ws, version)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "descriptor-version", "", "descriptor version (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func newSchemaCheckCommand() *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a descriptor against the exported JSON Schema",
		Long: `Validate a descriptor against the JSON Schema export instead of the rule
tree. Useful to confirm that editor tooling agrees with validate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(".")
			if err != nil {
				return err
			}
			ctx := ws.withContext(cmd.Context())
			defer closeWorkspace(ctx, ws)

			doc, _, err := descriptor.LoadFile(args[0])
			if err != nil {
				return NewInvalidError(err)
			}
			if version == "" {
				version, _, _ = ws.registry.Resolve(doc)
			}

			data, err := exportSchema(ws, version)
			if err != nil {
				return err
			}
			compiled, err := schema.Compile(data)
			if err != nil {
				return err
			}
			if err := compiled.Validate(doc); err != nil {
				return NewInvalidError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s matches the %s schema\n", args[0], version)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "descriptor-version", "", "descriptor version (default from the descriptor)")

	return cmd
}

// exportSchema renders and self-checks the schema of a descriptor version.
func exportSchema(ws *workspace, version string) ([]byte, error) {
	if version == "" {
		version = ws.registry.DefaultVersion()
	}
	rule, ok := ws.registry.Lookup(version)
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", descriptor.ErrUnknownVersion, version, ws.registry.Versions())
	}

	s := schema.Export(rule, fmt.Sprintf("Bundle descriptor %s", version))
	data, err := schema.Marshal(s)
	if err != nil {
		return nil, err
	}
	if _, err := schema.Compile(data); err != nil {
		return nil, fmt.Errorf("exported schema does not compile: %w", err)
	}

	log.Debug().Str("descriptor_version", version).Int("bytes", len(data)).Msg("Schema exported")
	return data, nil
}
