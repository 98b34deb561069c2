package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the project configuration file.
const FileName = ".bundlectl.yaml"

// Environment variables that override file values.
const (
	EnvLogLevel          = "BUNDLECTL_LOG_LEVEL"
	EnvDataDir           = "BUNDLECTL_DATA_DIR"
	EnvDescriptorVersion = "BUNDLECTL_DESCRIPTOR_VERSION"
)

// Config is the bundlectl project configuration.
type Config struct {
	// LogLevel sets the minimum log level (trace, debug, info, warn, error, fatal).
	LogLevel string `yaml:"log_level" validate:"required,oneof=trace debug info warn error fatal"`

	// LogFormat selects console or json log output.
	LogFormat string `yaml:"log_format" validate:"required,oneof=console json"`

	// DataDir holds the history database.
	DataDir string `yaml:"data_dir" validate:"required"`

	Descriptor DescriptorConfig `yaml:"descriptor"`
	Pack       PackConfig       `yaml:"pack"`
	Policy     PolicyConfig     `yaml:"policy"`
	Checks     ChecksConfig     `yaml:"checks"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// DescriptorConfig locates the bundle descriptor.
type DescriptorConfig struct {
	// File is the descriptor path relative to the project directory.
	File string `yaml:"file" validate:"required"`

	// DefaultVersion applies to descriptors without descriptorVersion.
	DefaultVersion string `yaml:"default_version" validate:"required,oneof=v5 v6"`
}

// PackConfig configures bundle packaging.
type PackConfig struct {
	// OutputDir receives the archives, relative to the project directory.
	OutputDir string `yaml:"output_dir" validate:"required"`

	// Exclude lists file or directory names left out of the archive.
	Exclude []string `yaml:"exclude,omitempty"`
}

// PolicyConfig configures Rego policy evaluation.
type PolicyConfig struct {
	// Enabled runs the built-in and configured policies during validate.
	Enabled bool `yaml:"enabled"`

	// Paths lists extra policy files or directories.
	Paths []string `yaml:"paths,omitempty"`

	// FailOn is the lowest severity that fails validation.
	FailOn string `yaml:"fail_on" validate:"required,oneof=info warning error critical"`
}

// ChecksConfig configures Starlark check scripts.
type ChecksConfig struct {
	// Scripts lists check script paths.
	Scripts []string `yaml:"scripts,omitempty"`

	// Timeout bounds the run time of one script.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"required,oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint,omitempty" validate:"required_if=Exporter otlp"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// ListenAddress serves /metrics while validate runs in watch mode.
	ListenAddress string `yaml:"listen_address" validate:"required"`

	// Path is the HTTP path of the metrics endpoint.
	Path string `yaml:"path" validate:"required,startswith=/"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" validate:"required"`
}

// Default returns a configuration with every value set.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "console",
		DataDir:   ".bundlectl",
		Descriptor: DescriptorConfig{
			File:           "bundle.yaml",
			DefaultVersion: "v5",
		},
		Pack: PackConfig{
			OutputDir: "dist",
			Exclude:   []string{".git", "node_modules", "target", ".bundlectl"},
		},
		Policy: PolicyConfig{
			Enabled: true,
			FailOn:  "error",
		},
		Checks: ChecksConfig{
			Timeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{
				Enabled:      false,
				Exporter:     "none",
				Insecure:     true,
				SamplingRate: 1.0,
			},
			Metrics: MetricsConfig{
				ListenAddress: ":9090",
				Path:          "/metrics",
				Namespace:     "bundlectl",
			},
		},
	}
}

// Load reads the configuration at path on top of the defaults and applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides values from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup(EnvDescriptorVersion); ok && v != "" {
		c.Descriptor.DefaultVersion = v
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field and reports all failures at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// describe renders a field error with the yaml path of the field.
func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
	case "gt", "gte", "lte":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

// Write stores the configuration as YAML at path, creating parent directories.
func (c *Config) Write(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Resolve joins a project-relative path onto dir. Absolute paths are kept.
func Resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// DatabasePath returns the history database location inside DataDir.
func (c *Config) DatabasePath(projectDir string) string {
	return filepath.Join(Resolve(projectDir, c.DataDir), "history.db")
}
