package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, "bundle.yaml", cfg.Descriptor.File)
	assert.Equal(t, "error", cfg.Policy.FailOn)
	assert.Equal(t, 5*time.Second, cfg.Checks.Timeout)
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
descriptor:
  file: descriptor.json
policy:
  fail_on: warning
  paths: [policies]
checks:
  scripts: [checks/naming.star]
  timeout: 2s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "descriptor.json", cfg.Descriptor.File)
	assert.Equal(t, "v5", cfg.Descriptor.DefaultVersion)
	assert.Equal(t, "warning", cfg.Policy.FailOn)
	assert.True(t, cfg.Policy.Enabled)
	assert.Equal(t, []string{"policies"}, cfg.Policy.Paths)
	assert.Equal(t, 2*time.Second, cfg.Checks.Timeout)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvDataDir, "/var/lib/bundlectl")
	t.Setenv(EnvDescriptorVersion, "v6")

	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/var/lib/bundlectl", cfg.DataDir)
	assert.Equal(t, "v6", cfg.Descriptor.DefaultVersion)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	malformed := filepath.Join(dir, "malformed.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("log_level: [debug"), 0o644))
	_, err := Load(malformed)
	assert.ErrorContains(t, err, "failed to parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("log_level: loud\n"), 0o644))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "log_level must be one of")
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	cfg.Descriptor.DefaultVersion = "v2"
	cfg.Telemetry.Tracing.Exporter = "otlp"
	cfg.Telemetry.Tracing.SamplingRate = 2

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "log_format must be one of [console json]")
	assert.Contains(t, msg, "descriptor.default_version must be one of [v5 v6]")
	assert.Contains(t, msg, "telemetry.tracing.endpoint is required")
	assert.Contains(t, msg, "telemetry.tracing.sampling_rate must be lte 1")
}

func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project", FileName)

	cfg := Default()
	cfg.Policy.Paths = []string{"policies"}
	cfg.Checks.Timeout = 750 * time.Millisecond
	require.NoError(t, cfg.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("proj", "bundle.yaml"), Resolve("proj", "bundle.yaml"))
	assert.Equal(t, "/abs/bundle.yaml", Resolve("proj", "/abs/bundle.yaml"))
	assert.Equal(t, filepath.Join("proj", ".bundlectl", "history.db"), Default().DatabasePath("proj"))
}
