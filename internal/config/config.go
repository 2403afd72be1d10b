package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration loaded from config.yaml.
type Config struct {
	// ScanPaths are the roots to search. Empty means every local fixed drive.
	ScanPaths     []string `yaml:"scan_paths"     json:"scan_paths"`
	ExcludePaths  []string `yaml:"exclude_paths"  json:"exclude_paths"`
	VersionsFile  string   `yaml:"versions_file"  json:"versions_file"`
	SelectedGames []string `yaml:"selected_games" json:"selected_games"`
	ExecutableExt string   `yaml:"executable_ext" json:"executable_ext"`
	Concurrency   int      `yaml:"concurrency"    json:"concurrency"`
	CacheEnabled  *bool    `yaml:"cache_enabled"  json:"cache_enabled"`
	DBPath        string   `yaml:"db_path"        json:"-"`
	OutputPath    string   `yaml:"output_path"    json:"output_path"`
	Schedule      string   `yaml:"schedule"       json:"schedule"`
	HTTPAddr      string   `yaml:"http_addr"      json:"-"`
	LogLevel      string   `yaml:"log_level"      json:"-"`
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.VersionsFile == "" {
		c.VersionsFile = "versions.js"
	}
	if c.ExecutableExt == "" {
		c.ExecutableExt = ".exe"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 8
	}
	if c.CacheEnabled == nil {
		enabled := true
		c.CacheEnabled = &enabled
	}
	if c.DBPath == "" {
		c.DBPath = "thlocate.db"
	}
	if c.OutputPath == "" {
		c.OutputPath = "games.js"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = "127.0.0.1:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// UseCache reports whether the hash cache is enabled.
func (c *Config) UseCache() bool {
	return c.CacheEnabled != nil && *c.CacheEnabled
}

// Validate rejects settings the scanner cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if !strings.HasPrefix(c.ExecutableExt, ".") || len(c.ExecutableExt) < 2 {
		errs = append(errs, fmt.Errorf("executable_ext %q must look like \".exe\"", c.ExecutableExt))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the tool
// works without any configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		var cfg Config
		cfg.applyDefaults()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}
