package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Policy file extensions.
const (
	RegoExtension = ".rego"
	JSONExtension = ".json"
)

// Loader reads policies from .rego and .json files.
type Loader struct {
	logger zerolog.Logger
	cache  map[string]*Policy
	mu     sync.RWMutex
}

// NewLoader creates a new policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
		cache:  make(map[string]*Policy),
	}
}

// LoadFromPaths loads policies from a list of file or directory paths.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var allPolicies []Policy

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		policies, err := l.loadFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		allPolicies = append(allPolicies, policies...)
	}

	l.logger.Debug().
		Int("total", len(allPolicies)).
		Int("sources", len(paths)).
		Msg("Policies loaded from paths")

	return allPolicies, nil
}

func (l *Loader) loadFromPath(path string) ([]Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return l.loadFromDirectory(path)
	}

	policy, err := l.loadFromFile(path)
	if err != nil {
		return nil, err
	}
	return []Policy{*policy}, nil
}

// loadFromDirectory loads every .rego and .json file below dirPath. Files
// that fail to parse are logged and skipped.
func (l *Loader) loadFromDirectory(dirPath string) ([]Policy, error) {
	var policies []Policy

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !IsPolicyFile(path) {
			return nil
		}

		policy, err := l.loadFromFile(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to load policy file")
			return nil
		}

		policies = append(policies, *policy)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return policies, nil
}

// IsPolicyFile reports whether path has a policy file extension.
func IsPolicyFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == RegoExtension || ext == JSONExtension
}

func (l *Loader) loadFromFile(filePath string) (*Policy, error) {
	l.mu.RLock()
	if cached, exists := l.cache[filePath]; exists {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var policy *Policy
	switch filepath.Ext(filePath) {
	case RegoExtension:
		policy = parseRegoFile(filePath, data)
	case JSONExtension:
		policy, err = parseJSONFile(filePath, data)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filePath)
	}

	l.mu.Lock()
	l.cache[filePath] = policy
	l.mu.Unlock()

	l.logger.Debug().
		Str("path", filePath).
		Str("policy", policy.Name).
		Msg("Policy loaded from file")

	return policy, nil
}

// parseRegoFile builds a Policy named after the file. A `# severity: <level>`
// comment in the header overrides the default warning severity.
func parseRegoFile(filePath string, data []byte) *Policy {
	content := string(data)
	severity := SeverityWarning
	if s, ok := headerValue(content, "severity"); ok {
		if parsed, err := ParseSeverity(s); err == nil {
			severity = parsed
		}
	}

	return &Policy{
		Name:        strings.TrimSuffix(filepath.Base(filePath), RegoExtension),
		Description: extractDescription(content),
		Rego:        content,
		Severity:    severity,
		Enabled:     true,
		Tags:        []string{},
		Metadata: map[string]interface{}{
			"source": filePath,
		},
	}
}

// parseJSONFile parses a JSON policy definition.
func parseJSONFile(filePath string, data []byte) (*Policy, error) {
	var policy Policy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse JSON policy: %w", err)
	}
	if policy.Name == "" {
		policy.Name = strings.TrimSuffix(filepath.Base(filePath), JSONExtension)
	}
	if policy.Rego == "" {
		return nil, fmt.Errorf("policy %s has no rego code", policy.Name)
	}
	if policy.Severity == "" {
		policy.Severity = SeverityWarning
	}
	if policy.Metadata == nil {
		policy.Metadata = make(map[string]interface{})
	}
	policy.Metadata["source"] = filePath

	return &policy, nil
}

// extractDescription joins the leading comment block of a Rego file,
// skipping `key: value` header lines.
func extractDescription(content string) string {
	var description strings.Builder

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if trimmed != "" && description.Len() > 0 {
				break
			}
			continue
		}
		comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if comment == "" || strings.HasPrefix(comment, "package") || isHeader(comment) {
			continue
		}
		if description.Len() > 0 {
			description.WriteString(" ")
		}
		description.WriteString(comment)
	}

	return description.String()
}

func isHeader(comment string) bool {
	key, _, ok := strings.Cut(comment, ":")
	return ok && key == "severity"
}

// headerValue returns the value of a `# key: value` comment line.
func headerValue(content, key string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		k, v, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(trimmed, "#")), ":")
		if ok && strings.TrimSpace(k) == key {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Invalidate drops a cached file so the next load reads it again.
func (l *Loader) Invalidate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, path)
}

// ClearCache clears the policy cache.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*Policy)
}
