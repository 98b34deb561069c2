package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	cfg  Config
	path string
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	// Every connection to :memory: gets its own database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		cfg:  cfg,
		path: cfg.Path,
	}, nil
}

// Open creates, initializes and migrates the store at path.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// dsn builds a modernc.org/sqlite data source name with connection pragmas.
func (s *SQLiteStore) dsn() string {
	pragmas := fmt.Sprintf("_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_txlock=immediate",
		s.cfg.BusyTimeout.Milliseconds())
	if s.path == MemoryPath {
		return s.path + "?" + pragmas
	}
	return "file:" + s.path + "?" + pragmas + "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// Init initializes the database connection and enables WAL mode for file databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RecordValidation stores a validation run. An empty ID or CreatedAt is filled in.
func (s *SQLiteStore) RecordValidation(ctx context.Context, run *ValidationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO validation_runs (
			id, descriptor_path, descriptor_version, status, error_message, error_path,
			policy_violations, check_violations, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.DescriptorPath,
		run.DescriptorVersion,
		run.Status,
		run.ErrorMessage,
		run.ErrorPath,
		run.PolicyViolations,
		run.CheckViolations,
		run.DurationMs,
		run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record validation: %w", err)
	}

	return nil
}

const validationColumns = `id, descriptor_path, descriptor_version, status, error_message, error_path,
		policy_violations, check_violations, duration_ms, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanValidation(row scanner) (*ValidationRun, error) {
	run := &ValidationRun{}
	err := row.Scan(
		&run.ID,
		&run.DescriptorPath,
		&run.DescriptorVersion,
		&run.Status,
		&run.ErrorMessage,
		&run.ErrorPath,
		&run.PolicyViolations,
		&run.CheckViolations,
		&run.DurationMs,
		&run.CreatedAt,
	)
	return run, err
}

// GetValidation retrieves a validation run by ID
func (s *SQLiteStore) GetValidation(ctx context.Context, id string) (*ValidationRun, error) {
	query := `SELECT ` + validationColumns + ` FROM validation_runs WHERE id = ?`

	run, err := scanValidation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("validation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation: %w", err)
	}

	return run, nil
}

// ListValidations lists validation runs, newest first
func (s *SQLiteStore) ListValidations(ctx context.Context, limit, offset int) ([]*ValidationRun, error) {
	query := `SELECT ` + validationColumns + `
		FROM validation_runs
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list validations: %w", err)
	}
	defer rows.Close()

	runs := []*ValidationRun{}
	for rows.Next() {
		run, err := scanValidation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan validation: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validations: %w", err)
	}

	return runs, nil
}

// DeleteValidationsBefore removes validation runs older than before and
// returns how many were deleted. Timestamps are stored in UTC so that they
// compare in time order.
func (s *SQLiteStore) DeleteValidationsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM validation_runs WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete validations: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// CreatePackage stores a package record. An empty ID or CreatedAt is filled in.
func (s *SQLiteStore) CreatePackage(ctx context.Context, pkg *Package) error {
	if pkg.ID == "" {
		pkg.ID = uuid.NewString()
	}
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO packages (
			id, bundle_name, bundle_version, archive_path, digest, size_bytes,
			file_count, validation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		pkg.ID,
		pkg.BundleName,
		pkg.BundleVersion,
		pkg.ArchivePath,
		pkg.Digest,
		pkg.SizeBytes,
		pkg.FileCount,
		pkg.ValidationID,
		pkg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}

	return nil
}

const packageColumns = `id, bundle_name, bundle_version, archive_path, digest, size_bytes,
		file_count, validation_id, created_at`

func scanPackage(row scanner) (*Package, error) {
	pkg := &Package{}
	err := row.Scan(
		&pkg.ID,
		&pkg.BundleName,
		&pkg.BundleVersion,
		&pkg.ArchivePath,
		&pkg.Digest,
		&pkg.SizeBytes,
		&pkg.FileCount,
		&pkg.ValidationID,
		&pkg.CreatedAt,
	)
	return pkg, err
}

// GetPackage retrieves a package by ID
func (s *SQLiteStore) GetPackage(ctx context.Context, id string) (*Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE id = ?`

	pkg, err := scanPackage(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("package %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}

	return pkg, nil
}

// ListPackages lists packages, newest first, optionally for one bundle
func (s *SQLiteStore) ListPackages(ctx context.Context, bundleName *string, limit, offset int) ([]*Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE 1=1`
	args := []interface{}{}

	if bundleName != nil {
		query += " AND bundle_name = ?"
		args = append(args, *bundleName)
	}

	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	packages := []*Package{}
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		packages = append(packages, pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	return packages, nil
}

// DeletePackage deletes a package record by ID. The archive file is left alone.
func (s *SQLiteStore) DeletePackage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete package: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("package %s: %w", id, ErrNotFound)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
