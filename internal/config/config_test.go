package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Endpoint.Hostname)
	assert.Equal(t, 0, cfg.Endpoint.Port)
	assert.Equal(t, "/", cfg.Endpoint.Path)
	assert.Equal(t, 200, cfg.Endpoint.StatusCode)
	assert.Equal(t, 1, cfg.Endpoint.DelayMs)
	assert.True(t, cfg.Endpoint.Listen)
	assert.True(t, cfg.Endpoint.Respond)
	assert.True(t, cfg.Control.Enabled)
	assert.Equal(t, "127.0.0.1:8090", cfg.Control.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.File())
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint:
  port: 9191
  path: /probe
  status_code: 503
control:
  enabled: false
logging:
  level: debug
  format: json
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Endpoint.Port)
	assert.Equal(t, "/probe", cfg.Endpoint.Path)
	assert.Equal(t, 503, cfg.Endpoint.StatusCode)
	assert.False(t, cfg.Control.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, path, cfg.File())

	// Untouched sections keep their defaults.
	assert.True(t, cfg.Endpoint.Respond)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WEBMONDIAG_PORT", "7000")
	t.Setenv("WEBMONDIAG_ENDPOINT_STATUS_CODE", "418")
	t.Setenv("WEBMONDIAG_CONTROL_ADDR", "127.0.0.1:9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Endpoint.Port)
	assert.Equal(t, 418, cfg.Endpoint.StatusCode)
	assert.Equal(t, "127.0.0.1:9999", cfg.Control.Addr)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, WriteDefault(path, false))
	assert.Error(t, WriteDefault(path, false))
	require.NoError(t, WriteDefault(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Contains(t, parsed, "endpoint")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8090", cfg.Control.Addr)
}
