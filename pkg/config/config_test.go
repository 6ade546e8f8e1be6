package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg := LoadFromEnv()
	assert.Equal(t, "ws://localhost:8182/gremlin", cfg.Server.URL)
	assert.Equal(t, "g", cfg.Mapper.Graph)
	assert.True(t, cfg.Mapper.AutoCommit)
	assert.Equal(t, 3, cfg.Transport.MaxRetries)
	assert.False(t, cfg.Journal.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("GIZMO_URL", "wss://graph.example:8182/gremlin")
	t.Setenv("GIZMO_USERNAME", "stephen")
	t.Setenv("GIZMO_PASSWORD", "secret")
	t.Setenv("GIZMO_DIAL_TIMEOUT", "2s")
	t.Setenv("GIZMO_REQUEST_TIMEOUT", "30")
	t.Setenv("GIZMO_MAX_RETRIES", "7")
	t.Setenv("GIZMO_AUTO_COMMIT", "off")
	t.Setenv("GIZMO_JOURNAL_ENABLED", "yes")
	t.Setenv("GIZMO_POOL_MAX_BUILDER_SIZE", "not-a-number")

	cfg := LoadFromEnv()
	assert.Equal(t, "wss://graph.example:8182/gremlin", cfg.Server.URL)
	assert.Equal(t, "stephen", cfg.Server.Username)
	assert.Equal(t, 2*time.Second, cfg.Transport.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.Transport.RequestTimeout)
	assert.Equal(t, 7, cfg.Transport.MaxRetries)
	assert.False(t, cfg.Mapper.AutoCommit)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, 64*1024, cfg.Pool.MaxBuilderSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile_EnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gizmo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  url: ws://file-host:8182/gremlin
transport:
  dial_timeout: 5s
  max_retries: 1
mapper:
  graph: graph.traversal()
  auto_commit: false
logging:
  level: debug
  format: json
`), 0o600))
	t.Setenv("GIZMO_LOG_LEVEL", "warn")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://file-host:8182/gremlin", cfg.Server.URL)
	assert.Equal(t, 5*time.Second, cfg.Transport.DialTimeout)
	assert.Equal(t, 1, cfg.Transport.MaxRetries)
	assert.Equal(t, "graph.traversal()", cfg.Mapper.Graph)
	assert.False(t, cfg.Mapper.AutoCommit)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	// untouched sections keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Transport.WriteTimeout)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"http scheme", func(c *Config) { c.Server.URL = "http://localhost:8182" }},
		{"password without user", func(c *Config) { c.Server.Password = "x" }},
		{"negative retries", func(c *Config) { c.Transport.MaxRetries = -1 }},
		{"negative timeout", func(c *Config) { c.Transport.RequestTimeout = -time.Second }},
		{"empty graph", func(c *Config) { c.Mapper.Graph = " " }},
		{"journal without dir", func(c *Config) { c.Journal.Enabled = true; c.Journal.Dir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestString_OmitsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Username = "stephen"
	cfg.Server.Password = "hunter2"
	s := cfg.String()
	assert.Contains(t, s, "Auth: true")
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "stephen")
}
