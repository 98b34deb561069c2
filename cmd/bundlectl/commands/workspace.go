package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bundlectl/bundlectl/pkg/config"
	"github.com/bundlectl/bundlectl/pkg/descriptor"
	"github.com/bundlectl/bundlectl/pkg/stores"
	"github.com/bundlectl/bundlectl/pkg/telemetry"
)

// workspace is the per-invocation state shared by commands: configuration,
// telemetry, the descriptor registry and a lazily opened history store.
type workspace struct {
	projectDir string
	cfg        *config.Config
	tel        *telemetry.Telemetry
	logger     zerolog.Logger
	registry   *descriptor.Registry
	store      *stores.SQLiteStore
}

// openWorkspace loads the project configuration of projectDir and sets up telemetry.
func openWorkspace(projectDir string) (*workspace, error) {
	if projectDir == "" {
		projectDir = "."
	}

	path := configPath
	if path == "" {
		path = filepath.Join(projectDir, config.FileName)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	tel, err := telemetry.New(telemetry.FromConfig(cfg, buildVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	log.Logger = tel.Logger.Zerolog()

	return &workspace{
		projectDir: projectDir,
		cfg:        cfg,
		tel:        tel,
		logger:     tel.Logger.Zerolog(),
		registry:   descriptor.NewRegistry(cfg.Descriptor.DefaultVersion),
	}, nil
}

// withContext attaches telemetry to ctx.
func (ws *workspace) withContext(ctx context.Context) context.Context {
	return ws.tel.WithContext(ctx)
}

// path resolves a project-relative path.
func (ws *workspace) path(p string) string {
	return config.Resolve(ws.projectDir, p)
}

// descriptorPath returns the configured descriptor file of the project.
func (ws *workspace) descriptorPath() string {
	return ws.path(ws.cfg.Descriptor.File)
}

// openStore opens the history database on first use.
func (ws *workspace) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	if ws.store != nil {
		return ws.store, nil
	}
	store, err := stores.Open(ctx, ws.cfg.DatabasePath(ws.projectDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	ws.store = store
	return store, nil
}

// Close releases the store, flushes spans and writes --metrics-out.
func (ws *workspace) Close(ctx context.Context) error {
	var errs []error
	if ws.store != nil {
		if err := ws.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := ws.tel.Shutdown(context.WithoutCancel(ctx), metricsOut); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeWorkspace closes ws and logs failures; used in defers.
func closeWorkspace(ctx context.Context, ws *workspace) {
	if err := ws.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down cleanly")
	}
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
