// Package schema exports descriptor rule trees as JSON Schema documents, so
// editors and other tooling can check descriptors without bundlectl, and
// compiles such documents back for validation.
package schema
