package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bundlectl/bundlectl/pkg/config"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "empty service", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: "service name"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "log level"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "log format"},
		{
			name: "bad exporter",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "jaeger"
			},
			wantErr: "trace exporter",
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
			},
			wantErr: "endpoint",
		},
		{name: "sampling rate", mutate: func(c *Config) { c.Tracing.SamplingRate = 1.5 }, wantErr: "sampling rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromConfig(t *testing.T) {
	project := config.Default()
	project.LogLevel = "debug"
	project.LogFormat = "json"
	project.Telemetry.Tracing.Enabled = true
	project.Telemetry.Tracing.Exporter = "stdout"
	project.Telemetry.Metrics.Namespace = "ci"

	cfg := FromConfig(project, "1.2.3")
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "ci", cfg.Metrics.Namespace)
	assert.NoError(t, cfg.Validate())

	project.Telemetry.Tracing.Exporter = "none"
	assert.False(t, FromConfig(project, "").Tracing.Enabled)
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.NewComponentLogger("checks").
		WithDescriptor("bundle.yaml", "v6").
		WithError(errors.New("boom")).
		Error("check failed")
	logger.Debug("filtered")

	out := buf.String()
	assert.Contains(t, out, `"component":"checks"`)
	assert.Contains(t, out, `"descriptor":"bundle.yaml"`)
	assert.Contains(t, out, `"descriptor_version":"v6"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.NotContains(t, out, "filtered")
}

func TestFromContext_Default(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	logger.Info("discarded")
}

func TestMetrics_Recorders(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)

	m.RecordValidation("v5", ResultPassed, 2*time.Millisecond)
	m.RecordValidation("v5", ResultInvalid, time.Millisecond)
	m.RecordValidation("v5", ResultInvalid, time.Millisecond)
	m.RecordValidationError("required")
	m.RecordPolicyViolation("bundle.naming", "error")
	m.RecordCheckViolations("ports.star", 3)
	m.RecordCheckViolations("ports.star", 0)
	m.RecordPackage(4096)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("v5", ResultPassed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.validations.WithLabelValues("v5", ResultInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationErrors.WithLabelValues("required")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.policyViolations.WithLabelValues("bundle.naming", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.checkViolations.WithLabelValues("ports.star")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.packagesCreated))
	assert.Equal(t, 1, testutil.CollectAndCount(m.validationDuration))
}

func TestMetrics_Disabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, err)

	m.RecordValidation("v5", ResultPassed, time.Second)
	m.RecordPackage(1)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteToTextfile("/nonexistent/metrics.prom"))
	assert.NoError(t, m.Serve(context.Background(), ":0"))
}

func TestMetrics_Handler(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)
	m.RecordPolicyViolation("microservice.ports", "warning")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `bundlectl_policy_violations_total{policy="microservice.ports",severity="warning"} 1`)
}

func TestMetrics_ServeStopsOnCancel(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(TracingConfig{Exporter: "none"}, "bundlectl", "dev")
	require.NoError(t, err)

	ctx, span := tracer.StartValidateSpan(context.Background(), "bundle.yaml", "v5")
	span.End()
	assert.Empty(t, TraceID(ctx))
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestTracer_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	tracer, err := newTracer(TracingConfig{
		Enabled:      true,
		Exporter:     "stdout",
		SamplingRate: 1,
	}, "bundlectl", "test", &buf)
	require.NoError(t, err)

	ctx, span := tracer.StartPackSpan(context.Background(), "orders", "1.0.0")
	assert.NotEmpty(t, TraceID(ctx))
	RecordError(span, errors.New("disk full"))
	span.End()

	require.NoError(t, tracer.Shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "bundle.pack")
	assert.Contains(t, out, "disk full")
	assert.True(t, strings.Contains(out, "orders"))
}

func TestTracer_UnsupportedExporter(t *testing.T) {
	_, err := NewTracer(TracingConfig{Enabled: true, Exporter: "zipkin"}, "bundlectl", "dev")
	assert.Error(t, err)
}

func TestStartOperation_WithoutTelemetry(t *testing.T) {
	op := StartOperation(context.Background(), "descriptor.load")
	require.NotNil(t, op.Logger)
	op.End(errors.New("ignored"))
}
