package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:5001", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, 8, cfg.Prefetch.Workers)
	assert.Equal(t, 30*time.Second, cfg.Subscription.Timeout)
	assert.Equal(t, "clash.meta", cfg.Subscription.UserAgent)
	assert.Equal(t, "explicit", cfg.Render.NoResolveMode)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "configflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
render:
  base_url: https://cfg.example.com
prefetch:
  workers: 4
`), 0o644))
	t.Setenv("CONFIGFLOW_PREFETCH_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, "https://cfg.example.com", cfg.Render.BaseURL)
	assert.Equal(t, 2, cfg.Prefetch.Workers)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
