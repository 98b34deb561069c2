package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Validation results used as the result label.
const (
	ResultPassed     = "passed"
	ResultInvalid    = "invalid"
	ResultViolations = "violations"
	ResultError      = "error"
)

// Metrics provides Prometheus metrics for bundlectl.
type Metrics struct {
	config MetricsConfig

	// Validation metrics
	validations        *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	validationErrors   *prometheus.CounterVec

	// Policy and check metrics
	policyViolations *prometheus.CounterVec
	checkViolations  *prometheus.CounterVec

	// Packaging metrics
	packagesCreated prometheus.Counter
	packageBytes    prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Total number of descriptor validations by descriptor version and result",
			},
			[]string{"version", "result"},
		),
		validationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_duration_seconds",
				Help:      "Duration of descriptor validation in seconds",
				Buckets:   buckets,
			},
			[]string{"version"},
		),
		validationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_errors_total",
				Help:      "Total number of structural validation errors by kind",
			},
			[]string{"kind"},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations by policy and severity",
			},
			[]string{"policy", "severity"},
		),
		checkViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "check_violations_total",
				Help:      "Total number of check script violations by script",
			},
			[]string{"script"},
		),

		packagesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "packages_created_total",
				Help:      "Total number of bundle archives created",
			},
		),
		packageBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "package_size_bytes",
				Help:      "Size of created bundle archives in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
	}

	registry.MustRegister(
		m.validations,
		m.validationDuration,
		m.validationErrors,
		m.policyViolations,
		m.checkViolations,
		m.packagesCreated,
		m.packageBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m, nil
}

// Registry returns the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordValidation records one validation with its result and duration.
func (m *Metrics) RecordValidation(version, result string, duration time.Duration) {
	if m.validations == nil {
		return
	}
	m.validations.WithLabelValues(version, result).Inc()
	m.validationDuration.WithLabelValues(version).Observe(duration.Seconds())
}

// RecordValidationError records a structural validation error. Kind is
// "required", "type", "validator", "load" and so on.
func (m *Metrics) RecordValidationError(kind string) {
	if m.validationErrors == nil {
		return
	}
	m.validationErrors.WithLabelValues(kind).Inc()
}

// RecordPolicyViolation records a policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// RecordCheckViolations adds n violations reported by a check script.
func (m *Metrics) RecordCheckViolations(script string, n int) {
	if m.checkViolations == nil || n <= 0 {
		return
	}
	m.checkViolations.WithLabelValues(script).Add(float64(n))
}

// RecordPackage records a created archive.
func (m *Metrics) RecordPackage(sizeBytes int64) {
	if m.packagesCreated == nil {
		return
	}
	m.packagesCreated.Inc()
	m.packageBytes.Observe(float64(sizeBytes))
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	if m.registry == nil {
		return nil
	}
	if addr == "" {
		addr = m.config.ListenAddress
	}
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// WriteToTextfile writes the current metrics in the text exposition format,
// for pickup by the node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	if m.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
