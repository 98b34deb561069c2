package stores

import (
	"context"
	"time"
)

// ValidationStatus is the outcome of a validation run.
type ValidationStatus string

const (
	// ValidationPassed means the descriptor, policies and checks all passed.
	ValidationPassed ValidationStatus = "passed"

	// ValidationInvalid means the descriptor failed its rule tree.
	ValidationInvalid ValidationStatus = "invalid"

	// ValidationViolations means the descriptor was valid but policies or
	// checks reported blocking violations.
	ValidationViolations ValidationStatus = "violations"

	// ValidationError means the descriptor could not be loaded or evaluated.
	ValidationError ValidationStatus = "error"
)

// ValidationRun records one validation of a descriptor file
type ValidationRun struct {
	ID                string           `json:"id"`
	DescriptorPath    string           `json:"descriptor_path"`
	DescriptorVersion string           `json:"descriptor_version"`
	Status            ValidationStatus `json:"status"`
	ErrorMessage      *string          `json:"error_message,omitempty"`
	ErrorPath         *string          `json:"error_path,omitempty"`
	PolicyViolations  int              `json:"policy_violations"`
	CheckViolations   int              `json:"check_violations"`
	DurationMs        int64            `json:"duration_ms"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Package records a bundle archive written by the packager
type Package struct {
	ID            string    `json:"id"`
	BundleName    string    `json:"bundle_name"`
	BundleVersion string    `json:"bundle_version"`
	ArchivePath   string    `json:"archive_path"`
	Digest        string    `json:"digest"`
	SizeBytes     int64     `json:"size_bytes"`
	FileCount     int       `json:"file_count"`
	ValidationID  *string   `json:"validation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store defines the interface for the history database
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Validation runs
	RecordValidation(ctx context.Context, run *ValidationRun) error
	GetValidation(ctx context.Context, id string) (*ValidationRun, error)
	ListValidations(ctx context.Context, limit, offset int) ([]*ValidationRun, error)
	DeleteValidationsBefore(ctx context.Context, before time.Time) (int64, error)

	// Packages
	CreatePackage(ctx context.Context, pkg *Package) error
	GetPackage(ctx context.Context, id string) (*Package, error)
	ListPackages(ctx context.Context, bundleName *string, limit, offset int) ([]*Package, error)
	DeletePackage(ctx context.Context, id string) error

	// Utility
	HealthCheck(ctx context.Context) error
}
