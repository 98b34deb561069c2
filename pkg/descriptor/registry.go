package descriptor

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bundlectl/bundlectl/pkg/validation"
)

// ErrUnknownVersion is returned when no rule tree is registered for a descriptor version.
var ErrUnknownVersion = errors.New("unknown descriptor version")

// Registry maps descriptor versions to their rule trees.
type Registry struct {
	rules          map[string]*validation.ObjectRule
	defaultVersion string
	mu             sync.RWMutex
}

// NewRegistry creates a registry with the built-in v5 and v6 rule trees.
// Descriptors without a descriptorVersion resolve to defaultVersion, or to
// DefaultVersion when it is empty.
func NewRegistry(defaultVersion string) *Registry {
	if defaultVersion == "" {
		defaultVersion = DefaultVersion
	}
	r := &Registry{
		rules:          make(map[string]*validation.ObjectRule),
		defaultVersion: defaultVersion,
	}

	r.Register(VersionV5, BundleRule(VersionV5))
	r.Register(VersionV6, BundleRule(VersionV6))

	return r
}

// Register adds or replaces the rule tree for version.
func (r *Registry) Register(version string, rule *validation.ObjectRule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules[version] = rule
}

// Lookup returns the rule tree registered for version.
func (r *Registry) Lookup(version string) (*validation.ObjectRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[version]
	return rule, ok
}

// Versions returns the registered versions in sorted order.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := make([]string, 0, len(r.rules))
	for version := range r.rules {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions
}

// DefaultVersion returns the version used for descriptors that declare none.
func (r *Registry) DefaultVersion() string {
	return r.defaultVersion
}

// Resolve picks the rule tree for a parsed descriptor from its
// descriptorVersion field. A missing or non-string field selects the default
// version; the rule tree itself reports a malformed value.
func (r *Registry) Resolve(doc interface{}) (string, *validation.ObjectRule, error) {
	version := r.defaultVersion
	if obj, ok := doc.(map[string]interface{}); ok {
		if declared, ok := obj["descriptorVersion"].(string); ok {
			version = declared
		}
	}

	rule, ok := r.Lookup(version)
	if !ok {
		return version, nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownVersion, version, r.Versions())
	}
	return version, rule, nil
}

// Validate resolves the rule tree for doc, validates doc against it and
// decodes the result. The returned version is the one that was applied.
func (r *Registry) Validate(doc interface{}) (*Bundle, string, error) {
	version, rule, err := r.Resolve(doc)
	if err != nil {
		return nil, version, err
	}

	bundle, err := validation.ValidateInto[Bundle](doc, rule)
	if err != nil {
		return nil, version, err
	}
	return &bundle, version, nil
}
