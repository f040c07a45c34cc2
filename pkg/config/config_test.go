package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meshmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.ListenAddr)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 1500*time.Millisecond, cfg.Serial.ConfigTimeout.Std())
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: "0.0.0.0:9090"
serial:
  config_timeout: 3s
events:
  nng_addr: "tcp://127.0.0.1:5555"
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.ListenAddr)
	assert.Equal(t, 3*time.Second, cfg.Serial.ConfigTimeout.Std())
	assert.Equal(t, "tcp://127.0.0.1:5555", cfg.Events.NNGAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep their defaults
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := writeConfig(t, "log:\n  level: loud\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Log.Level")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "serial:\n  config_timeout: soon\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [listen_addr\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
