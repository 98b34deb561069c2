package checks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/bundlectl/bundlectl/pkg/validation"
)

// DefaultTimeout bounds a single check script run.
const DefaultTimeout = 5 * time.Second

// ScriptExtension is the file extension RunFiles picks up in directories.
const ScriptExtension = ".star"

// entryPoint is the function every check script must define.
const entryPoint = "check"

// ErrTimeout is returned when a script runs longer than the evaluator timeout.
var ErrTimeout = errors.New("check timed out")

// Violation is one finding reported by a check script.
type Violation struct {
	Script  string                 `json:"script"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Evaluator runs Starlark check scripts against descriptor value trees.
type Evaluator struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewEvaluator creates an evaluator. A zero timeout means DefaultTimeout.
func NewEvaluator(timeout time.Duration, logger zerolog.Logger) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Evaluator{
		timeout: timeout,
		logger:  logger.With().Str("component", "checks").Logger(),
	}
}

// Run executes script, calls its check(descriptor) function and converts the
// returned list into violations. The descriptor is frozen before the call.
func (e *Evaluator) Run(ctx context.Context, name, script string, descriptor interface{}) ([]Violation, error) {
	start := time.Now()

	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			e.logger.Debug().Str("script", name).Msg(msg)
		},
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-evalCtx.Done():
			thread.Cancel(evalCtx.Err().Error())
		case <-done:
		}
	}()

	violations, err := e.run(thread, name, script, descriptor)
	if err != nil {
		if errors.Is(evalCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, name, e.timeout)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	e.logger.Debug().
		Str("script", name).
		Int("violations", len(violations)).
		Dur("duration", time.Since(start)).
		Msg("Check completed")

	return violations, nil
}

func (e *Evaluator) run(thread *starlark.Thread, name, script string, descriptor interface{}) ([]Violation, error) {
	input, err := toStarlarkValue(descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to convert descriptor: %w", err)
	}
	input.Freeze()

	globals, err := starlark.ExecFile(thread, name, script, predeclared())
	if err != nil {
		return nil, fmt.Errorf("failed to load check %s: %w", name, err)
	}

	fn, ok := globals[entryPoint]
	if !ok {
		return nil, fmt.Errorf("check %s does not define %s(descriptor)", name, entryPoint)
	}
	if _, ok := fn.(starlark.Callable); !ok {
		return nil, fmt.Errorf("check %s: %s is a %s, not a function", name, entryPoint, fn.Type())
	}

	result, err := starlark.Call(thread, fn, starlark.Tuple{input}, nil)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("check %s failed: %s", name, evalErr.Backtrace())
		}
		return nil, fmt.Errorf("check %s failed: %w", name, err)
	}

	return toViolations(name, result)
}

// RunFiles runs every script in paths. Directories contribute their .star
// files in lexical order. Violations keep the order of the scripts.
func (e *Evaluator) RunFiles(ctx context.Context, paths []string, descriptor interface{}) ([]Violation, error) {
	files, err := collectScripts(paths)
	if err != nil {
		return nil, err
	}

	var all []Violation
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		script, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read check %s: %w", file, err)
		}
		violations, err := e.Run(ctx, ScriptName(file), string(script), descriptor)
		if err != nil {
			return nil, err
		}
		all = append(all, violations...)
	}

	e.logger.Debug().
		Int("scripts", len(files)).
		Int("violations", len(all)).
		Msg("Checks completed")

	return all, nil
}

// ScriptName derives a check name from its file name.
func ScriptName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ScriptExtension)
}

func collectScripts(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat check path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		var found []string
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ScriptExtension {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct":  starlark.NewBuiltin("struct", starlarkstruct.Make),
		"matches": starlark.NewBuiltin("matches", builtinMatches),
		"path":    starlark.NewBuiltin("path", builtinPath),
	}
}

// toViolations accepts None, a single string or dict, or a list/tuple of them.
func toViolations(script string, result starlark.Value) ([]Violation, error) {
	switch v := result.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String, *starlark.Dict, *starlarkstruct.Struct:
		violation, err := toViolation(script, v)
		if err != nil {
			return nil, err
		}
		return []Violation{violation}, nil
	}

	iterable, ok := result.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("check %s returned %s, want a list of violations", script, result.Type())
	}

	iter := iterable.Iterate()
	defer iter.Done()

	var violations []Violation
	var item starlark.Value
	for iter.Next(&item) {
		violation, err := toViolation(script, item)
		if err != nil {
			return nil, err
		}
		violations = append(violations, violation)
	}
	return violations, nil
}

func toViolation(script string, item starlark.Value) (Violation, error) {
	violation := Violation{Script: script}

	if s, ok := starlark.AsString(item); ok {
		violation.Message = s
		return violation, nil
	}

	fields, err := fromStarlarkValue(item)
	if err != nil {
		return violation, fmt.Errorf("check %s: %w", script, err)
	}
	m, ok := fields.(map[string]interface{})
	if !ok {
		return violation, fmt.Errorf("check %s returned a %s violation, want string or dict", script, item.Type())
	}

	for key, value := range m {
		switch key {
		case "message":
			violation.Message = fmt.Sprint(value)
		case "path":
			violation.Path = fmt.Sprint(value)
		default:
			if violation.Details == nil {
				violation.Details = make(map[string]interface{})
			}
			violation.Details[key] = value
		}
	}
	if violation.Message == "" {
		return violation, fmt.Errorf("check %s returned a violation without a message", script)
	}
	return violation, nil
}

// builtinMatches implements matches(pattern, s).
func builtinMatches(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "s", &s); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.Bool(re.MatchString(s)), nil
}

// builtinPath implements path(*elems), rendering field names and indexes
// the way validation errors do: path("microservices", 0, "name").
func builtinPath(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}

	p := validation.Root()
	for i, arg := range args {
		switch v := arg.(type) {
		case starlark.String:
			p = p.Field(string(v))
		case starlark.Int:
			n, ok := v.Int64()
			if !ok || n < 0 {
				return nil, fmt.Errorf("%s: invalid index %s", b.Name(), v)
			}
			p = p.Index(int(n))
		default:
			return nil, fmt.Errorf("%s: argument %d must be string or int, got %s", b.Name(), i+1, arg.Type())
		}
	}
	return starlark.String(p.String()), nil
}
