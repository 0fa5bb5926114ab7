package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "drive", cfg.Source.Kind)
	assert.Equal(t, "https://www.googleapis.com/drive/v3", cfg.Source.Drive.BaseURL)
	assert.Equal(t, 100, cfg.Source.Drive.PageSize)
	assert.Equal(t, "/exports", cfg.Source.FTP.Root)
	assert.Equal(t, "us-east-1", cfg.Source.S3.Region)
	assert.Equal(t, 120, cfg.Sync.DownloadTimeoutSecs)
	assert.Equal(t, 120*time.Second, cfg.Sync.DownloadTimeout())
	assert.Equal(t, 55*time.Minute, cfg.Redis.CredentialTTL())
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentUsers)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Sync.Retry.MaxAttempts)
	assert.Equal(t, 500, cfg.Sync.Retry.InitialBackoffMs)
	assert.Equal(t, 5, cfg.Server.Breaker.FailureThreshold)
	assert.Equal(t, 30, cfg.Server.Breaker.ResetTimeoutSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: pulse.db
source:
  kind: s3
  s3:
    bucket: wearable-exports
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pulse.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "s3", cfg.Source.Kind)
	assert.Equal(t, "wearable-exports", cfg.Source.S3.Bucket)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 120, cfg.Sync.DownloadTimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PULSE_STORE_DRIVER", "postgres")
	t.Setenv("PULSE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PULSE_SERVER_PORT", "3000")
	t.Setenv("PULSE_SOURCE_KIND", "ftp")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "ftp", cfg.Source.Kind)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouty", Format: "json"})
	assert.Error(t, err)
}
