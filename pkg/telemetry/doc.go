// Package telemetry provides logging, tracing and metrics for bundlectl.
//
// The package combines structured logging (zerolog), tracing (OpenTelemetry)
// and metrics (Prometheus) behind a single Telemetry value that the CLI
// creates once per invocation and carries in the context.
//
// # Usage
//
//	cfg := telemetry.FromConfig(projectConfig, version)
//	tel, err := telemetry.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background(), metricsOut)
//
//	ctx = tel.WithContext(ctx)
//
// # Logging
//
// Loggers are component scoped and travel in the context:
//
//	logger := tel.Logger.NewComponentLogger("policy")
//	logger.WithDescriptor("bundle.yaml", "v5").Info("evaluating policies")
//
// Packages that accept a zerolog.Logger receive Logger.Zerolog().
//
// # Tracing
//
// Spans wrap the load, validate, policy, checks and pack stages. The stdout
// exporter prints spans to stderr; otlp sends them to a collector over gRPC;
// none disables tracing.
//
//	op := telemetry.StartOperation(ctx, "descriptor.validate",
//	    telemetry.AttrDescriptorPath.String(path))
//	defer op.End(err)
//
// # Metrics
//
// Metrics live in a private registry:
//
//   - validations_total{version,result}
//   - validation_duration_seconds{version}
//   - validation_errors_total{kind}
//   - policy_violations_total{policy,severity}
//   - check_violations_total{script}
//   - packages_created_total
//
// Watch mode serves them over HTTP with Metrics.Serve. One-shot commands can
// write them to a node exporter textfile with Metrics.WriteToTextfile.
package telemetry
