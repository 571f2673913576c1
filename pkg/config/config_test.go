package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coup.yaml")
	writeFile(t, path, `
server:
  listen_addr: ":9090"
database:
  host: db.internal
  port: 5433
chat:
  reasoning_url: http://reasoning.internal
session:
  max_players: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode, "unset fields keep built-in defaults")
	assert.Equal(t, "http://reasoning.internal", cfg.Chat.ReasoningURL)
	assert.Equal(t, 4, cfg.Session.MaxPlayers)
	assert.Equal(t, DefaultConfig().Session.Durations, cfg.Session.Durations, "unset durations keep the 50/10/20/10/1/5 default")
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coup.yaml")
	writeFile(t, path, "database:\n  password: ${TEST_DB_PASSWORD}\n")
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coup.yaml")
	writeFile(t, path, "server:\n  listen_addr: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
