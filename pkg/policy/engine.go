package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"
)

// Engine evaluates Rego policies against bundle descriptors.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	loader   *Loader
	failOn   Severity
	logger   zerolog.Logger
}

// compiledPolicy is a policy with its deny query prepared for evaluation.
type compiledPolicy struct {
	policy *Policy
	query  rego.PreparedEvalQuery
}

// NewEngine creates a policy engine with the built-in policies loaded.
// Violations at error severity or above fail evaluation until SetFailOn
// changes the threshold.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		failOn:   SeverityError,
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}
	e.loader = NewLoader(logger)

	if err := e.loadBuiltinPolicies(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return e, nil
}

// SetFailOn sets the lowest severity that makes a descriptor not allowed.
func (e *Engine) SetFailOn(severity Severity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failOn = severity
}

// Evaluate runs every enabled policy against a parsed descriptor. Policies
// that fail to evaluate are reported in Result.Errors and do not affect Allowed.
func (e *Engine) Evaluate(ctx context.Context, descriptor interface{}, pctx *Context) (*Result, error) {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if pctx == nil {
		pctx = &Context{}
	}
	if pctx.Timestamp.IsZero() {
		pctx.Timestamp = start
	}
	input := &Input{Descriptor: descriptor, Context: pctx}

	result := &Result{
		Allowed:           true,
		EvaluatedPolicies: make([]string, 0, len(e.policies)),
		EvaluatedAt:       start,
	}

	for _, name := range e.sortedNames() {
		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result.EvaluatedPolicies = append(result.EvaluatedPolicies, name)

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).Str("policy", name).Msg("Policy evaluation failed")
			result.Errors = append(result.Errors, fmt.Sprintf("policy %s evaluation failed: %v", name, err))
			continue
		}

		for _, v := range violations {
			if v.Severity.AtLeast(e.failOn) {
				result.Violations = append(result.Violations, v)
				result.Allowed = false
			} else {
				result.Warnings = append(result.Warnings, v)
			}
		}
	}

	result.Duration = time.Since(start)

	e.logger.Debug().
		Int("policies", len(result.EvaluatedPolicies)).
		Int("violations", len(result.Violations)).
		Int("warnings", len(result.Warnings)).
		Dur("duration", result.Duration).
		Msg("Policy evaluation completed")

	return result, nil
}

// evaluatePolicy collects the deny set of one policy.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, createViolation(cp.policy, d))
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Path != violations[j].Path {
			return violations[i].Path < violations[j].Path
		}
		return violations[i].Message < violations[j].Message
	})

	return violations, nil
}

// createViolation converts one deny entry. Entries are either a message
// string or an object with message, and optionally severity and path.
func createViolation(policy *Policy, result interface{}) Violation {
	violation := Violation{
		Policy:   policy.Name,
		Severity: policy.Severity,
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		for key, value := range v {
			switch key {
			case "message":
				violation.Message = fmt.Sprint(value)
			case "severity":
				if sev, err := ParseSeverity(fmt.Sprint(value)); err == nil {
					violation.Severity = sev
				}
			case "path":
				violation.Path = fmt.Sprint(value)
			default:
				if violation.Details == nil {
					violation.Details = make(map[string]interface{})
				}
				violation.Details[key] = value
			}
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compileAndStorePolicy parses a policy and prepares its deny query.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	module, err := ast.ParseModule(policy.Name+".rego", policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	query := module.Package.Path.String() + ".deny"
	prepared, err := rego.New(
		rego.ParsedModule(module),
		rego.Query(query),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query %s: %w", query, err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy: policy,
		query:  prepared,
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Str("query", query).
		Msg("Policy compiled")

	return nil
}

func (e *Engine) loadBuiltinPolicies(ctx context.Context) error {
	builtins := GetBuiltinPolicies()
	for i := range builtins {
		if err := e.compileAndStorePolicy(ctx, &builtins[i]); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
	}
	return nil
}

// LoadPolicies loads and compiles policy files. A policy with the same name
// as a loaded one replaces it.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := e.loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded")

	return nil
}

// ReloadPolicies drops every loaded policy, then loads the built-ins and paths again.
// Enabled flags of built-in policies are kept.
func (e *Engine) ReloadPolicies(ctx context.Context, paths []string) error {
	e.mu.Lock()
	disabled := make(map[string]bool)
	for name, cp := range e.policies {
		if !cp.policy.Enabled {
			disabled[name] = true
		}
	}
	e.policies = make(map[string]*compiledPolicy)
	e.loader.ClearCache()
	err := e.loadBuiltinPolicies(ctx)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	if len(paths) > 0 {
		if err := e.LoadPolicies(ctx, paths); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for name := range disabled {
		if cp, ok := e.policies[name]; ok {
			cp.policy.Enabled = false
		}
	}
	return nil
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	return cp.policy, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, name := range e.sortedNames() {
		policies = append(policies, *e.policies[name].policy)
	}
	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = enabled
	e.logger.Debug().Str("policy", name).Bool("enabled", enabled).Msg("Policy toggled")
	return nil
}

func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
