package telemetry

import (
	"fmt"
	"time"

	"github.com/bundlectl/bundlectl/pkg/config"
)

// Config contains the telemetry configuration for bundlectl.
type Config struct {
	// ServiceName is the name reported in traces and used as the metrics namespace default.
	ServiceName string

	// ServiceVersion is the version of the binary.
	ServiceVersion string

	// Logging contains logging configuration.
	Logging LoggingConfig

	// Tracing contains tracing configuration.
	Tracing TracingConfig

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error, fatal).
	Level string

	// Format specifies the log format (console, json).
	Format string

	// Output specifies where logs are written (stdout, stderr, file path).
	Output string

	// EnableCaller adds file:line caller information to logs.
	EnableCaller bool

	// NoColor disables colors in console output.
	NoColor bool
}

// TracingConfig configures tracing.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool

	// Exporter specifies the trace exporter (otlp, stdout, none).
	Exporter string

	// Endpoint is the OTLP gRPC endpoint, e.g. "localhost:4317".
	Endpoint string

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64

	// MaxExportBatchSize is the maximum batch size for export.
	MaxExportBatchSize int

	// ExportTimeout is the timeout for trace export.
	ExportTimeout time.Duration

	// Headers are additional headers for the OTLP exporter.
	Headers map[string]string

	// Insecure disables TLS for the exporter connection.
	Insecure bool
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// ListenAddress is the address for the metrics HTTP endpoint.
	ListenAddress string

	// Path is the HTTP path for metrics (default: /metrics).
	Path string

	// Namespace is the metrics namespace prefix.
	Namespace string

	// DurationBuckets are the validation latency buckets in seconds.
	DurationBuckets []float64
}

// DefaultConfig returns a default telemetry configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "bundlectl",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Enabled:            false,
			Exporter:           "none",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "bundlectl",
			DurationBuckets: []float64{
				0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
			},
		},
	}
}

// FromConfig derives the telemetry configuration from the CLI configuration file.
func FromConfig(cfg *config.Config, version string) *Config {
	c := DefaultConfig()
	if version != "" {
		c.ServiceVersion = version
	}

	c.Logging.Level = cfg.LogLevel
	c.Logging.Format = cfg.LogFormat

	t := cfg.Telemetry.Tracing
	c.Tracing.Enabled = t.Enabled && t.Exporter != "none"
	c.Tracing.Exporter = t.Exporter
	c.Tracing.Endpoint = t.Endpoint
	c.Tracing.Insecure = t.Insecure
	c.Tracing.SamplingRate = t.SamplingRate

	m := cfg.Telemetry.Metrics
	c.Metrics.ListenAddress = m.ListenAddress
	c.Metrics.Path = m.Path
	if m.Namespace != "" {
		c.Metrics.Namespace = m.Namespace
	}

	return c
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	if c.ServiceVersion == "" {
		return fmt.Errorf("service version is required")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate logging format
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	// Validate tracing exporter
	validExporters := map[string]bool{
		"otlp": true, "stdout": true, "none": true,
	}
	if c.Tracing.Enabled && !validExporters[c.Tracing.Exporter] {
		return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fmt.Errorf("otlp exporter requires an endpoint")
	}

	// Validate sampling rate
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", c.Tracing.SamplingRate)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics path is required when metrics are enabled")
	}

	return nil
}
