package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds sweep configuration. Values layer as flags > environment
// > config file > defaults.
type Config struct {
	Database   string `yaml:"database"`
	ArchiveDir string `yaml:"archive_dir"`
	Changelog  string `yaml:"changelog"`

	BaseURL   string `yaml:"base_url"`
	GeoZip    string `yaml:"geo_zip"`
	GeoRadius int    `yaml:"geo_radius"`
	PageSize  int    `yaml:"page_size"`
	UserAgent string `yaml:"user_agent"`

	// Timeout bounds each HTTP request; Deadline bounds the whole sweep
	// (0 = unbounded).
	Timeout  time.Duration `yaml:"timeout"`
	Deadline time.Duration `yaml:"deadline"`

	FetchAttempts int           `yaml:"fetch_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`

	MetricsAddr string `yaml:"metrics_addr"`

	// SOCKS5 proxy address (host:port). The SOCKS5 environment variable
	// takes precedence over the config file.
	SOCKS5 string `yaml:"socks5"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		ArchiveDir:    "archive",
		Changelog:     "changes.log",
		BaseURL:       "https://www.hertzcarsales.com/apis/widget/INVENTORY_LISTING_GRID_AUTO_ALL:inventory-data-bus1/getInventory",
		GeoZip:        "78701",
		GeoRadius:     0,
		PageSize:      100,
		UserAgent:     "lotwatch/1.0",
		Timeout:       30 * time.Second,
		FetchAttempts: 3,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, and
// the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("SOCKS5"); v != "" {
		c.SOCKS5 = v
	}
	if v := os.Getenv("LOTWATCH_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("LOTWATCH_DB"); v != "" {
		c.Database = v
	}
}
