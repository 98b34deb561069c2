package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail before Init")
	}
	if err := store.Migrate(ctx); err == nil {
		t.Error("expected migrate to fail before Init")
	}

	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"validation_runs", "packages"} {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Running migrations again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second migrate failed: %v", err)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.RecordValidation(ctx, &ValidationRun{DescriptorPath: "bundle.yaml", Status: ValidationPassed}); err != nil {
		t.Fatalf("failed to record validation: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.ListValidations(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 persisted run, got %d", len(runs))
	}
}

// TestValidationRuns tests recording and reading validation runs
func TestValidationRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := &ValidationRun{
		DescriptorPath:    "bundle.yaml",
		DescriptorVersion: "v5",
		Status:            ValidationInvalid,
		ErrorMessage:      strPtr(`Field "name" is required`),
		ErrorPath:         strPtr("$.microservices[0].name"),
		DurationMs:        12,
	}
	if err := store.RecordValidation(ctx, run); err != nil {
		t.Fatalf("failed to record validation: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected an ID to be assigned")
	}
	if run.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be assigned")
	}

	retrieved, err := store.GetValidation(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get validation: %v", err)
	}
	if retrieved.Status != ValidationInvalid {
		t.Errorf("expected status %s, got %s", ValidationInvalid, retrieved.Status)
	}
	if retrieved.ErrorPath == nil || *retrieved.ErrorPath != "$.microservices[0].name" {
		t.Errorf("unexpected error path %v", retrieved.ErrorPath)
	}
	if retrieved.DurationMs != 12 {
		t.Errorf("expected duration 12, got %d", retrieved.DurationMs)
	}
	if !retrieved.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", run.CreatedAt, retrieved.CreatedAt)
	}

	if _, err := store.GetValidation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListValidations_OrderAndPaging(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		run := &ValidationRun{
			ID:             id,
			DescriptorPath: "bundle.yaml",
			Status:         ValidationPassed,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.RecordValidation(ctx, run); err != nil {
			t.Fatalf("failed to record %s: %v", id, err)
		}
	}

	runs, err := store.ListValidations(ctx, 2, 0)
	if err != nil {
		t.Fatalf("failed to list validations: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-3" || runs[1].ID != "run-2" {
		t.Errorf("unexpected first page: %v", ids(runs))
	}

	runs, err = store.ListValidations(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Errorf("unexpected second page: %v", ids(runs))
	}

	deleted, err := store.DeleteValidationsBefore(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("failed to delete validations: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted runs, got %d", deleted)
	}
}

func TestRecordValidation_RejectsUnknownStatus(t *testing.T) {
	store := setupTestStore(t)

	err := store.RecordValidation(context.Background(), &ValidationRun{
		DescriptorPath: "bundle.yaml",
		Status:         ValidationStatus("unknown"),
	})
	if err == nil {
		t.Error("expected check constraint violation")
	}
}

// TestPackageCRUD tests package record operations
func TestPackageCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := &ValidationRun{DescriptorPath: "bundle.yaml", Status: ValidationPassed}
	if err := store.RecordValidation(ctx, run); err != nil {
		t.Fatal(err)
	}

	pkg := &Package{
		BundleName:    "orders",
		BundleVersion: "1.0.0",
		ArchivePath:   "dist/orders-1.0.0.tgz",
		Digest:        "abc123",
		SizeBytes:     2048,
		FileCount:     3,
		ValidationID:  &run.ID,
	}
	if err := store.CreatePackage(ctx, pkg); err != nil {
		t.Fatalf("failed to create package: %v", err)
	}

	other := &Package{
		BundleName:    "billing",
		BundleVersion: "0.1.0",
		ArchivePath:   "dist/billing-0.1.0.tgz",
		Digest:        "def456",
		SizeBytes:     100,
		CreatedAt:     time.Now().Add(time.Minute),
	}
	if err := store.CreatePackage(ctx, other); err != nil {
		t.Fatalf("failed to create package: %v", err)
	}

	retrieved, err := store.GetPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("failed to get package: %v", err)
	}
	if retrieved.Digest != "abc123" || retrieved.SizeBytes != 2048 || retrieved.FileCount != 3 {
		t.Errorf("unexpected package %+v", retrieved)
	}
	if retrieved.ValidationID == nil || *retrieved.ValidationID != run.ID {
		t.Errorf("expected validation id %s, got %v", run.ID, retrieved.ValidationID)
	}

	all, err := store.ListPackages(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list packages: %v", err)
	}
	if len(all) != 2 || all[0].BundleName != "billing" {
		t.Errorf("expected newest package first, got %d packages", len(all))
	}

	name := "orders"
	filtered, err := store.ListPackages(ctx, &name, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].ID != pkg.ID {
		t.Errorf("expected only the orders package, got %d", len(filtered))
	}

	if err := store.DeletePackage(ctx, pkg.ID); err != nil {
		t.Fatalf("failed to delete package: %v", err)
	}
	if _, err := store.GetPackage(ctx, pkg.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeletePackage(ctx, pkg.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestPackage_ValidationDeletedSetsNull(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := &ValidationRun{DescriptorPath: "bundle.yaml", Status: ValidationPassed, CreatedAt: time.Now().Add(-time.Hour)}
	if err := store.RecordValidation(ctx, run); err != nil {
		t.Fatal(err)
	}
	pkg := &Package{BundleName: "orders", BundleVersion: "1.0.0", ArchivePath: "a.tgz", Digest: "d", ValidationID: &run.ID}
	if err := store.CreatePackage(ctx, pkg); err != nil {
		t.Fatal(err)
	}

	if _, err := store.DeleteValidationsBefore(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}

	retrieved, err := store.GetPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if retrieved.ValidationID != nil {
		t.Errorf("expected validation id to be cleared, got %v", *retrieved.ValidationID)
	}
}

func ids(runs []*ValidationRun) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
