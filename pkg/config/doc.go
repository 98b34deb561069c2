// Package config loads and validates the bundlectl project configuration.
//
// The configuration lives in .bundlectl.yaml at the project root. Every value
// has a default, so a project without a configuration file still works:
//
//	cfg, err := config.Load(filepath.Join(dir, config.FileName))
//	if err != nil {
//	    return err
//	}
//	dbPath := cfg.DatabasePath(dir)
//
// Load applies three layers in order: the defaults from Default, the YAML
// file, and the BUNDLECTL_* environment variables. The result is checked with
// go-playground/validator and every failing field is reported in one error.
//
// Relative paths in the file (descriptor, data directory, pack output,
// policies and check scripts) are resolved against the project directory
// with Resolve.
package config
