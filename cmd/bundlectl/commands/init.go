package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bundlectl/bundlectl/pkg/config"
	"github.com/bundlectl/bundlectl/pkg/descriptor"
)

var invalidNameChars = regexp.MustCompile(`[^a-z0-9]+`)

func newInitCommand() *cobra.Command {
	var (
		name    string
		version string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a bundle project",
		Long: `Initialize a bundle project with a descriptor, a configuration file and
the history database.

The bundle name defaults to the directory name, lowercased with every run of
other characters replaced by a dash.`,
		Example: `  # Initialize the current directory
  bundlectl init

  # Initialize a v6 bundle in a new directory
  bundlectl init ./orders --name orders --descriptor-version v6`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}

			if name == "" {
				abs, err := filepath.Abs(dir)
				if err != nil {
					return err
				}
				name = bundleName(filepath.Base(abs))
			}

			log.Info().
				Str("dir", dir).
				Str("name", name).
				Str("descriptor_version", version).
				Msg("Initializing bundle project")

			out := cmd.OutOrStdout()

			// Step 1: configuration file
			cfgPath := configPath
			if cfgPath == "" {
				cfgPath = filepath.Join(dir, config.FileName)
			}
			if err := ensureAbsent(cfgPath, force); err != nil {
				return err
			}
			cfg := config.Default()
			cfg.Descriptor.DefaultVersion = version
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Write(cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Created config file: %s\n", cfgPath)

			ws, err := openWorkspace(dir)
			if err != nil {
				return err
			}
			ctx := ws.withContext(cmd.Context())
			defer closeWorkspace(ctx, ws)

			// Step 2: descriptor
			descPath := ws.descriptorPath()
			if err := ensureAbsent(descPath, force); err != nil {
				return err
			}
			doc := map[string]interface{}{
				"name":              name,
				"version":           "0.0.1",
				"descriptorVersion": version,
				"type":              descriptor.BundleTypeStandard,
				"description":       fmt.Sprintf("%s bundle", name),
				"microservices":     []interface{}{},
				"microfrontends":    []interface{}{},
			}
			if _, _, err := ws.registry.Validate(doc); err != nil {
				return NewInvalidError(fmt.Errorf("invalid bundle %q: %w", name, err))
			}
			format, err := descriptor.FormatFromPath(descPath)
			if err != nil {
				return err
			}
			data, err := descriptor.Encode(doc, format)
			if err != nil {
				return err
			}
			if err := os.WriteFile(descPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write descriptor: %w", err)
			}
			fmt.Fprintf(out, "✓ Created descriptor: %s\n", descPath)

			// Step 3: history database
			if _, err := ws.openStore(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Initialized history database: %s\n", ws.cfg.DatabasePath(dir))

			fmt.Fprintf(out, "\nBundle %s initialized.\n\n", name)
			fmt.Fprintf(out, "Next steps:\n")
			fmt.Fprintf(out, "  1. Describe your microservices and micro-frontends in %s\n", descPath)
			fmt.Fprintf(out, "  2. bundlectl validate\n")
			fmt.Fprintf(out, "  3. bundlectl pack\n")

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "bundle name (default: directory name)")
	cmd.Flags().StringVar(&version, "descriptor-version", descriptor.VersionV5, "descriptor version (v5, v6)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")

	return cmd
}

// bundleName derives a bundle name from a directory name.
func bundleName(dir string) string {
	name := invalidNameChars.ReplaceAllString(strings.ToLower(dir), "-")
	name = strings.Trim(name, "-")
	if name == "" {
		return "bundle"
	}
	return name
}

func ensureAbsent(path string, force bool) error {
	_, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return err
	case force:
		return nil
	default:
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
}
