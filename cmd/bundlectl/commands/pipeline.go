package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bundlectl/bundlectl/pkg/checks"
	"github.com/bundlectl/bundlectl/pkg/descriptor"
	"github.com/bundlectl/bundlectl/pkg/policy"
	"github.com/bundlectl/bundlectl/pkg/stores"
	"github.com/bundlectl/bundlectl/pkg/telemetry"
	"github.com/bundlectl/bundlectl/pkg/validation"
)

// pipelineOptions selects the stages run after structural validation.
type pipelineOptions struct {
	// Policies enables Rego policy evaluation.
	Policies bool

	// PolicyPaths are extra policy files or directories.
	PolicyPaths []string

	// Checks are Starlark check scripts or directories.
	Checks []string

	// Operation is reported to policies as input.context.operation.
	Operation string

	// Record stores the run in the history database.
	Record bool
}

// report is the outcome of one pipeline run.
type report struct {
	Descriptor       string                  `json:"descriptor"`
	Format           descriptor.Format       `json:"format,omitempty"`
	Version          string                  `json:"descriptorVersion,omitempty"`
	Status           stores.ValidationStatus `json:"status"`
	Error            string                  `json:"error,omitempty"`
	ErrorPath        string                  `json:"errorPath,omitempty"`
	PolicyViolations []policy.Violation      `json:"policyViolations,omitempty"`
	PolicyWarnings   []policy.Violation      `json:"policyWarnings,omitempty"`
	PolicyErrors     []string                `json:"policyErrors,omitempty"`
	CheckViolations  []checks.Violation      `json:"checkViolations,omitempty"`
	Duration         time.Duration           `json:"durationNs"`
	RunID            string                  `json:"runId,omitempty"`

	doc    interface{}
	bundle *descriptor.Bundle
	err    error
}

// Err returns the classified failure of the run, nil when it passed.
func (r *report) Err() error {
	switch r.Status {
	case stores.ValidationPassed:
		return nil
	case stores.ValidationInvalid:
		return NewInvalidError(r.err)
	case stores.ValidationViolations:
		return NewViolationsError(len(r.PolicyViolations), len(r.CheckViolations))
	default:
		return &CommandError{Class: ClassGeneral, Err: r.err}
	}
}

// pipeline runs load, validation, policies and checks against descriptor files.
type pipeline struct {
	ws        *workspace
	opts      pipelineOptions
	engine    *policy.Engine
	evaluator *checks.Evaluator
}

// newPipeline prepares the policy engine and check evaluator once so that
// watch mode reuses them between runs.
func newPipeline(ctx context.Context, ws *workspace, opts pipelineOptions) (*pipeline, error) {
	p := &pipeline{ws: ws, opts: opts}

	if opts.Policies {
		engine, err := policy.NewEngine(ws.logger)
		if err != nil {
			return nil, err
		}
		failOn, err := policy.ParseSeverity(ws.cfg.Policy.FailOn)
		if err != nil {
			return nil, err
		}
		engine.SetFailOn(failOn)
		if paths := p.policyPaths(); len(paths) > 0 {
			if err := engine.LoadPolicies(ctx, paths); err != nil {
				return nil, err
			}
		}
		p.engine = engine
	}

	if len(p.checkPaths()) > 0 {
		p.evaluator = checks.NewEvaluator(ws.cfg.Checks.Timeout, ws.logger)
	}

	return p, nil
}

// policyPaths returns the configured and flag policy locations.
func (p *pipeline) policyPaths() []string {
	var paths []string
	for _, path := range p.ws.cfg.Policy.Paths {
		paths = append(paths, p.ws.path(path))
	}
	return append(paths, p.opts.PolicyPaths...)
}

// checkPaths returns the configured and flag check scripts.
func (p *pipeline) checkPaths() []string {
	var paths []string
	for _, path := range p.ws.cfg.Checks.Scripts {
		paths = append(paths, p.ws.path(path))
	}
	return append(paths, p.opts.Checks...)
}

// watchPaths lists every file the pipeline reads.
func (p *pipeline) watchPaths(descriptorPath string) []string {
	paths := []string{descriptorPath}
	if p.engine != nil {
		paths = append(paths, p.policyPaths()...)
	}
	return append(paths, p.checkPaths()...)
}

// reloadPolicies recompiles the policies after a policy file changed.
func (p *pipeline) reloadPolicies(ctx context.Context) error {
	if p.engine == nil {
		return nil
	}
	return p.engine.ReloadPolicies(ctx, p.policyPaths())
}

// Run validates one descriptor file. Every outcome, including a descriptor
// that cannot be read, is described by the report.
func (p *pipeline) Run(ctx context.Context, path string) *report {
	op := telemetry.StartOperation(ctx, "bundlectl."+p.opts.Operation,
		telemetry.AttrDescriptorPath.String(path))
	ctx = op.Ctx

	r := &report{Descriptor: path}
	p.run(ctx, r)
	r.Duration = op.Timer.Duration()

	op.Span.SetAttributes(telemetry.AttrValidationResult.String(string(r.Status)))
	op.End(r.err)

	p.recordMetrics(r)

	if p.opts.Record {
		if err := p.record(ctx, r); err != nil {
			op.Logger.WithError(err).Warn("Failed to record validation run")
		}
	}

	return r
}

func (p *pipeline) run(ctx context.Context, r *report) {
	tracer := p.ws.tel.Tracer

	_, span := tracer.StartLoadSpan(ctx, r.Descriptor)
	doc, format, err := descriptor.LoadFile(r.Descriptor)
	r.Format = format
	telemetry.RecordError(span, err)
	span.End()
	if err != nil {
		r.fail(stores.ValidationInvalid, err)
		return
	}
	r.doc = doc

	version, _, _ := p.ws.registry.Resolve(doc)
	_, span = tracer.StartValidateSpan(ctx, r.Descriptor, version)
	bundle, version, err := p.ws.registry.Validate(doc)
	r.Version = version
	telemetry.RecordError(span, err)
	span.End()
	if err != nil {
		r.fail(stores.ValidationInvalid, err)
		return
	}
	r.bundle = bundle

	if p.engine != nil {
		if err := p.evaluatePolicies(ctx, r); err != nil {
			r.fail(stores.ValidationError, err)
			return
		}
	}

	if p.evaluator != nil {
		if err := p.runChecks(ctx, r); err != nil {
			r.fail(stores.ValidationError, err)
			return
		}
	}

	if len(r.PolicyViolations) > 0 || len(r.CheckViolations) > 0 {
		r.Status = stores.ValidationViolations
		return
	}
	r.Status = stores.ValidationPassed
}

func (p *pipeline) evaluatePolicies(ctx context.Context, r *report) error {
	ctx, span := p.ws.tel.Tracer.StartPolicySpan(ctx, len(p.engine.ListPolicies()))
	defer span.End()

	result, err := p.engine.Evaluate(ctx, r.doc, &policy.Context{
		DescriptorVersion: r.Version,
		Source:            r.Descriptor,
		Operation:         p.opts.Operation,
		Timestamp:         time.Now(),
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	r.PolicyViolations = result.Violations
	r.PolicyWarnings = result.Warnings
	r.PolicyErrors = result.Errors
	span.SetAttributes(telemetry.AttrViolations.Int(len(result.Violations)))
	return nil
}

func (p *pipeline) runChecks(ctx context.Context, r *report) error {
	paths := p.checkPaths()
	ctx, span := p.ws.tel.Tracer.StartChecksSpan(ctx, len(paths))
	defer span.End()

	violations, err := p.evaluator.RunFiles(ctx, paths, r.doc)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("check failed: %w", err)
	}

	r.CheckViolations = violations
	span.SetAttributes(telemetry.AttrViolations.Int(len(violations)))
	return nil
}

func (r *report) fail(status stores.ValidationStatus, err error) {
	r.Status = status
	r.err = err
	r.Error = err.Error()
	if path, ok := validation.ErrorPath(err); ok {
		r.ErrorPath = path.String()
	}
}

func (p *pipeline) recordMetrics(r *report) {
	m := p.ws.tel.Metrics
	version := r.Version
	if version == "" {
		version = "unknown"
	}
	m.RecordValidation(version, string(r.Status), r.Duration)
	if r.Status == stores.ValidationInvalid {
		m.RecordValidationError(errorKind(r.err))
	}
	for _, v := range r.PolicyViolations {
		m.RecordPolicyViolation(v.Policy, string(v.Severity))
	}
	for _, v := range r.PolicyWarnings {
		m.RecordPolicyViolation(v.Policy, string(v.Severity))
	}
	perScript := make(map[string]int)
	for _, v := range r.CheckViolations {
		perScript[v.Script]++
	}
	for script, n := range perScript {
		m.RecordCheckViolations(script, n)
	}
}

// errorKind labels a validation failure for validation_errors_total.
func errorKind(err error) string {
	var le *descriptor.LoadError
	switch {
	case errors.As(err, &le):
		return "load"
	case errors.Is(err, descriptor.ErrUnknownVersion):
		return "version"
	case validation.IsDependencyError(err):
		return "dependency"
	case validation.IsUnionError(err):
		return "union"
	default:
		return "structural"
	}
}

func (p *pipeline) record(ctx context.Context, r *report) error {
	store, err := p.ws.openStore(ctx)
	if err != nil {
		return err
	}

	run := &stores.ValidationRun{
		DescriptorPath:    r.Descriptor,
		DescriptorVersion: r.Version,
		Status:            r.Status,
		PolicyViolations:  len(r.PolicyViolations),
		CheckViolations:   len(r.CheckViolations),
		DurationMs:        r.Duration.Milliseconds(),
	}
	if abs, err := filepath.Abs(r.Descriptor); err == nil {
		run.DescriptorPath = abs
	}
	if r.Error != "" {
		run.ErrorMessage = &r.Error
	}
	if r.ErrorPath != "" {
		run.ErrorPath = &r.ErrorPath
	}

	if err := store.RecordValidation(ctx, run); err != nil {
		return err
	}
	r.RunID = run.ID
	return nil
}

// printReport writes a report as text or JSON.
func printReport(w io.Writer, r *report) error {
	if jsonOutput {
		return writeJSON(w, r)
	}

	switch r.Status {
	case stores.ValidationPassed:
		fmt.Fprintf(w, "✓ %s is valid (descriptor %s)\n", r.Descriptor, r.Version)
	case stores.ValidationViolations:
		fmt.Fprintf(w, "✗ %s: %d violations\n", r.Descriptor, len(r.PolicyViolations)+len(r.CheckViolations))
	default:
		fmt.Fprintf(w, "✗ %s\n", r.Descriptor)
		fmt.Fprintln(w, indentLines(r.Error, "  "))
	}

	for _, v := range r.PolicyViolations {
		fmt.Fprintf(w, "  [%s] %s%s: %s\n", v.Severity, v.Policy, at(v.Path), v.Message)
	}
	for _, v := range r.CheckViolations {
		fmt.Fprintf(w, "  [check] %s%s: %s\n", v.Script, at(v.Path), v.Message)
	}
	if len(r.PolicyWarnings) > 0 {
		fmt.Fprintln(w, "warnings:")
		for _, v := range r.PolicyWarnings {
			fmt.Fprintf(w, "  [%s] %s%s: %s\n", v.Severity, v.Policy, at(v.Path), v.Message)
		}
	}
	for _, e := range r.PolicyErrors {
		fmt.Fprintf(w, "  policy error: %s\n", e)
	}
	return nil
}

func at(path string) string {
	if path == "" {
		return ""
	}
	return " " + path
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
