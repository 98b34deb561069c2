package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps the OpenTelemetry tracer with bundlectl span helpers.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// NewTracer creates a new tracer with the given configuration. Spans from
// the stdout exporter go to stderr so command output stays parseable.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion string) (*Tracer, error) {
	return newTracer(cfg, serviceName, serviceVersion, os.Stderr)
}

func newTracer(cfg TracingConfig, serviceName, serviceVersion string, out io.Writer) (*Tracer, error) {
	if !cfg.Enabled || cfg.Exporter == "none" {
		return &Tracer{
			tracer: noop.NewTracerProvider().Tracer(serviceName),
			config: cfg,
		}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		exporter, err = createOTLPExporter(cfg)
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithWriter(out),
			stdouttrace.WithPrettyPrint(),
		)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	batchOpts := []sdktrace.BatchSpanProcessorOption{}
	if cfg.MaxExportBatchSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize))
	}
	if cfg.ExportTimeout > 0 {
		batchOpts = append(batchOpts, sdktrace.WithExportTimeout(cfg.ExportTimeout))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
		sdktrace.WithBatcher(exporter, batchOpts...),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		config:   cfg,
	}, nil
}

// createOTLPExporter creates an OTLP gRPC exporter.
func createOTLPExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	if cfg.ExportTimeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.ExportTimeout))
	}

	return otlptracegrpc.New(context.Background(), opts...)
}

// StartSpan starts a span with the given attributes.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// StartLoadSpan starts a span for reading and decoding a descriptor file.
func (t *Tracer) StartLoadSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "descriptor.load",
		AttrDescriptorPath.String(path),
	)
}

// StartValidateSpan starts a span for structural validation.
func (t *Tracer) StartValidateSpan(ctx context.Context, path, version string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "descriptor.validate",
		AttrDescriptorPath.String(path),
		AttrDescriptorVersion.String(version),
	)
}

// StartPolicySpan starts a span for policy evaluation.
func (t *Tracer) StartPolicySpan(ctx context.Context, policies int) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "policy.evaluate",
		AttrPolicyCount.Int(policies),
	)
}

// StartChecksSpan starts a span for running check scripts.
func (t *Tracer) StartChecksSpan(ctx context.Context, scripts int) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "checks.run",
		AttrScriptCount.Int(scripts),
	)
}

// StartPackSpan starts a span for archive creation.
func (t *Tracer) StartPackSpan(ctx context.Context, bundle, version string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "bundle.pack",
		AttrBundleName.String(bundle),
		AttrBundleVersion.String(version),
	)
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSuccess marks the span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// ForceFlush forces all pending spans to be exported immediately.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.ForceFlush(ctx)
}

// TraceID returns the trace ID of the current span in the context.
func TraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// Attribute keys used on bundlectl spans.
var (
	AttrDescriptorPath    = attribute.Key("descriptor.path")
	AttrDescriptorVersion = attribute.Key("descriptor.version")
	AttrValidationResult  = attribute.Key("validation.result")
	AttrErrorPath         = attribute.Key("validation.error_path")

	AttrPolicyCount = attribute.Key("policy.count")
	AttrScriptCount = attribute.Key("checks.script_count")
	AttrViolations  = attribute.Key("violations")

	AttrBundleName    = attribute.Key("bundle.name")
	AttrBundleVersion = attribute.Key("bundle.version")
	AttrArchiveDigest = attribute.Key("bundle.digest")
)
