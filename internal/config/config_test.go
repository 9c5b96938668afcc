package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, time.Second, cfg.Buffer.FlushInterval)
	assert.Equal(t, 3, cfg.Buffer.MaxBatchRetries)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: 9090
database:
  type: memory
buffer:
  flush_interval: 250ms
  max_batch_retries: 5
insights:
  url: http://llm.internal
  model: mistral-small
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, 250*time.Millisecond, cfg.Buffer.FlushInterval)
	assert.Equal(t, 5, cfg.Buffer.MaxBatchRetries)
	assert.Equal(t, "http://llm.internal", cfg.Insights.URL)
	assert.Equal(t, "mistral-small", cfg.Insights.Model)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ANALYTICS_SERVER.PORT", "7070")
	t.Setenv("ANALYTICS_LOGGING.LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestPostgresConfig_DSN(t *testing.T) {
	c := PostgresConfig{
		Host: "db", Port: 5433, User: "u", Password: "p",
		Database: "analytics", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5433/analytics?sslmode=disable", c.DSN())
}
