// Package config loads gizmo configuration from environment variables and
// YAML files.
//
// Environment variables use the GIZMO_ prefix and always win over file
// settings, so a checked-in file can be overridden per deployment:
//
//	GIZMO_URL=ws://graph:8182/gremlin GIZMO_LOG_LEVEL=debug gizmo exec -f batch.groovy
//
// Supported variables:
//
//	GIZMO_URL, GIZMO_USERNAME, GIZMO_PASSWORD
//	GIZMO_DIAL_TIMEOUT, GIZMO_WRITE_TIMEOUT, GIZMO_REQUEST_TIMEOUT
//	GIZMO_MAX_RETRIES, GIZMO_RETRY_INTERVAL
//	GIZMO_GRAPH, GIZMO_AUTO_COMMIT
//	GIZMO_JOURNAL_ENABLED, GIZMO_JOURNAL_DIR, GIZMO_JOURNAL_SYNC_WRITES
//	GIZMO_LOG_LEVEL, GIZMO_LOG_FORMAT
//	GIZMO_METRICS_ADDRESS
//	GIZMO_POOL_ENABLED, GIZMO_POOL_MAX_BUILDER_SIZE
//
// Durations accept Go syntax ("1m30s") or a plain number of seconds.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gizmo settings.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Mapper    MapperConfig    `yaml:"mapper"`
	Journal   JournalConfig   `yaml:"journal"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Pool      PoolConfig      `yaml:"pool"`
}

// ServerConfig locates the Gremlin Server.
type ServerConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TransportConfig tunes the WebSocket client.
type TransportConfig struct {
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// RequestTimeout bounds a whole flush, zero for none.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
}

// MapperConfig tunes script generation.
type MapperConfig struct {
	// Graph is the traversal source variable bound on the server.
	Graph      string `yaml:"graph"`
	AutoCommit bool   `yaml:"auto_commit"`
}

// JournalConfig controls the flush journal.
type JournalConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// LoggingConfig selects level and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// PoolConfig controls script builder pooling.
type PoolConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxBuilderSize int  `yaml:"max_builder_size"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{URL: "ws://localhost:8182/gremlin"},
		Transport: TransportConfig{
			DialTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			MaxRetries:    3,
			RetryInterval: 200 * time.Millisecond,
		},
		Mapper:  MapperConfig{Graph: "g", AutoCommit: true},
		Journal: JournalConfig{Dir: "./data/journal"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Pool:    PoolConfig{Enabled: true, MaxBuilderSize: 64 * 1024},
	}
}

// LoadFromEnv returns the defaults overridden by GIZMO_* variables.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML file over the defaults, then applies GIZMO_*
// variables on top.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Load uses LoadFile when path is set and LoadFromEnv otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromEnv(), nil
	}
	return LoadFile(path)
}

func (c *Config) applyEnv() {
	c.Server.URL = getEnv("GIZMO_URL", c.Server.URL)
	c.Server.Username = getEnv("GIZMO_USERNAME", c.Server.Username)
	c.Server.Password = getEnv("GIZMO_PASSWORD", c.Server.Password)

	c.Transport.DialTimeout = getEnvDuration("GIZMO_DIAL_TIMEOUT", c.Transport.DialTimeout)
	c.Transport.WriteTimeout = getEnvDuration("GIZMO_WRITE_TIMEOUT", c.Transport.WriteTimeout)
	c.Transport.RequestTimeout = getEnvDuration("GIZMO_REQUEST_TIMEOUT", c.Transport.RequestTimeout)
	c.Transport.MaxRetries = getEnvInt("GIZMO_MAX_RETRIES", c.Transport.MaxRetries)
	c.Transport.RetryInterval = getEnvDuration("GIZMO_RETRY_INTERVAL", c.Transport.RetryInterval)

	c.Mapper.Graph = getEnv("GIZMO_GRAPH", c.Mapper.Graph)
	c.Mapper.AutoCommit = getEnvBool("GIZMO_AUTO_COMMIT", c.Mapper.AutoCommit)

	c.Journal.Enabled = getEnvBool("GIZMO_JOURNAL_ENABLED", c.Journal.Enabled)
	c.Journal.Dir = getEnv("GIZMO_JOURNAL_DIR", c.Journal.Dir)
	c.Journal.SyncWrites = getEnvBool("GIZMO_JOURNAL_SYNC_WRITES", c.Journal.SyncWrites)

	c.Logging.Level = getEnv("GIZMO_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("GIZMO_LOG_FORMAT", c.Logging.Format)

	c.Metrics.Address = getEnv("GIZMO_METRICS_ADDRESS", c.Metrics.Address)

	c.Pool.Enabled = getEnvBool("GIZMO_POOL_ENABLED", c.Pool.Enabled)
	c.Pool.MaxBuilderSize = getEnvInt("GIZMO_POOL_MAX_BUILDER_SIZE", c.Pool.MaxBuilderSize)
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", c.Server.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server url must use ws or wss, got %q", c.Server.URL)
	}
	if c.Server.Password != "" && c.Server.Username == "" {
		return fmt.Errorf("password set without username")
	}
	if c.Transport.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d", c.Transport.MaxRetries)
	}
	if c.Transport.DialTimeout < 0 || c.Transport.WriteTimeout < 0 || c.Transport.RequestTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if strings.TrimSpace(c.Mapper.Graph) == "" {
		return fmt.Errorf("mapper graph variable is empty")
	}
	if c.Journal.Enabled && c.Journal.Dir == "" {
		return fmt.Errorf("journal enabled but no directory set")
	}
	return nil
}

// String returns a representation safe for logs; credentials are omitted.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{URL: %s, Auth: %v, Graph: %s, AutoCommit: %v, Journal: %v, Metrics: %q, Log: %s/%s}",
		c.Server.URL,
		c.Server.Username != "",
		c.Mapper.Graph,
		c.Mapper.AutoCommit,
		c.Journal.Enabled,
		c.Metrics.Address,
		c.Logging.Level, c.Logging.Format,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// plain seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
