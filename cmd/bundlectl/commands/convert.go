package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bundlectl/bundlectl/pkg/descriptor"
)

func newConvertCommand() *cobra.Command {
	var (
		to         string
		output     string
		noValidate bool
	)

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a descriptor between YAML, JSON and CUE",
		Long: `Convert a bundle descriptor to another format.

The descriptor is validated before it is written unless --no-validate is
given. Without --output the result is printed to stdout.`,
		Example: `  # Print a YAML descriptor as JSON
  bundlectl convert bundle.yaml --to json

  # Write a CUE rendition next to the original
  bundlectl convert bundle.yaml --to cue -o bundle.cue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := descriptor.ParseFormat(to)
			if err != nil {
				return err
			}

			ws, err := openWorkspace(".")
			if err != nil {
				return err
			}
			ctx := ws.withContext(cmd.Context())
			defer closeWorkspace(ctx, ws)

			path := args[0]
			log.Debug().
				Str("descriptor", path).
				Str("to", string(format)).
				Msg("Converting descriptor")

			_, span := ws.tel.Tracer.StartLoadSpan(ctx, path)
			doc, _, err := descriptor.LoadFile(path)
			span.End()
			if err != nil {
				return NewInvalidError(err)
			}

			if !noValidate {
				if _, _, err := ws.registry.Validate(doc); err != nil {
					return NewInvalidError(err)
				}
			}

			data, err := descriptor.Encode(doc, format)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", format, err)
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

	cmd.Flags().StringVar(&to, "to", "", "target format (yaml, json, cue)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&noValidate, "no-validate", false, "convert without validating the descriptor")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
