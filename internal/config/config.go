// Package config handles gateway configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./teamsgw.yaml, ~/.config/teamsgw/teamsgw.yaml, /etc/teamsgw/teamsgw.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"teamsgw.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "teamsgw", "teamsgw.yaml"))
	}

	paths = append(paths, "/etc/teamsgw/teamsgw.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all gateway configuration.
type Config struct {
	Servers  ServersConfig `yaml:"servers"`
	Breaker  BreakerConfig `yaml:"breaker"`
	Catalog  CatalogConfig `yaml:"catalog"`
	DataDir  string        `yaml:"data_dir"`
	LogLevel string        `yaml:"log_level"`
	LogJSON  bool          `yaml:"log_json"`
}

// ServersConfig defines how MCP provider definitions are loaded and managed.
type ServersConfig struct {
	// File is the path to the JSON provider document. Environment variable
	// definitions (MCP_SERVER_N_*) are merged on top of it either way.
	File string `yaml:"file"`
	// ConnectRetries is the number of connection attempts per server (default 3).
	ConnectRetries int `yaml:"connect_retries"`
	// HealthPollSec is the interval between background health probes in
	// seconds. Zero disables the background watcher.
	HealthPollSec int `yaml:"health_poll_sec"`
}

// BreakerConfig defines circuit breaker thresholds shared by all servers.
// Zero values fall back to the built-in defaults (5 failures, 60s recovery,
// 2 successes).
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	RecoveryTimeSec  int `yaml:"recovery_time_sec"`
	SuccessThreshold int `yaml:"success_threshold"`
}

// CatalogConfig defines the on-disk tool catalog cache.
type CatalogConfig struct {
	// Path is the SQLite database file. Empty means DataDir/catalog.db.
	Path string `yaml:"path"`
}

// HealthPollInterval returns the watcher interval as a duration.
func (c *Config) HealthPollInterval() time.Duration {
	return time.Duration(c.Servers.HealthPollSec) * time.Second
}

// RecoveryTimeout returns the breaker recovery window as a duration.
func (b BreakerConfig) RecoveryTimeout() time.Duration {
	return time.Duration(b.RecoveryTimeSec) * time.Second
}

// CatalogPath resolves the catalog database location, preferring the
// explicit path over DataDir.
func (c *Config) CatalogPath() string {
	if c.Catalog.Path != "" {
		return c.Catalog.Path
	}
	return filepath.Join(c.DataDir, "catalog.db")
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Servers: ServersConfig{
			ConnectRetries: 3,
			HealthPollSec:  30,
		},
		DataDir:  "data",
		LogLevel: "info",
	}
}
