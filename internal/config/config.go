package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultLargeFileThreshold is the size above which adding a file asks for confirmation (1 MiB)
const DefaultLargeFileThreshold int64 = 1 << 20

// Config represents the complete igit configuration
type Config struct {
	Paths PathsConfig `yaml:"paths"`
	Stash StashConfig `yaml:"stash"`
	Git   GitConfig   `yaml:"git"`
	Log   LogConfig   `yaml:"log"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir"`
	Manifest   string `yaml:"manifest"`
	StagingDir string `yaml:"staging_dir"`
	CronsDir   string `yaml:"crons_dir"`
	LogDir     string `yaml:"log_dir"`
}

// StashConfig configures manifest editing policy
type StashConfig struct {
	LargeFileThreshold int64 `yaml:"large_file_threshold"`
}

// GitConfig configures the commit/push step
type GitConfig struct {
	Remote string `yaml:"remote"`
	Branch string `yaml:"branch"`
}

// LogConfig configures logging defaults; command-line flags take precedence
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(&cfg)
}

// LoadOrDefault loads path if it exists. A missing file yields the default
// configuration rooted at fallbackBaseDir.
func LoadOrDefault(path, fallbackBaseDir string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return Default(fallbackBaseDir)
}

// Default returns the configuration used when no config file exists
func Default(baseDir string) (*Config, error) {
	return finish(&Config{Paths: PathsConfig{BaseDir: baseDir}})
}

func finish(cfg *Config) (*Config, error) {
	// Expand environment variables in string fields
	cfg.expandEnv()

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandEnv expands environment variables in all path fields
func (c *Config) expandEnv() {
	c.Paths.BaseDir = os.ExpandEnv(c.Paths.BaseDir)
	c.Paths.Manifest = os.ExpandEnv(c.Paths.Manifest)
	c.Paths.StagingDir = os.ExpandEnv(c.Paths.StagingDir)
	c.Paths.CronsDir = os.ExpandEnv(c.Paths.CronsDir)
	c.Paths.LogDir = os.ExpandEnv(c.Paths.LogDir)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Paths.BaseDir == "" {
		return
	}
	if c.Paths.Manifest == "" {
		c.Paths.Manifest = filepath.Join(c.Paths.BaseDir, "config", "stash.json")
	}
	if c.Paths.StagingDir == "" {
		c.Paths.StagingDir = c.Paths.BaseDir
	}
	if c.Paths.CronsDir == "" {
		c.Paths.CronsDir = filepath.Join(c.Paths.BaseDir, "crons")
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = c.Paths.BaseDir
	}
	if c.Stash.LargeFileThreshold == 0 {
		c.Stash.LargeFileThreshold = DefaultLargeFileThreshold
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Paths.BaseDir == "" {
		return fmt.Errorf("paths.base_dir is required")
	}

	// Ensure paths are absolute
	for _, p := range []struct {
		name  string
		value string
	}{
		{"paths.base_dir", c.Paths.BaseDir},
		{"paths.manifest", c.Paths.Manifest},
		{"paths.staging_dir", c.Paths.StagingDir},
		{"paths.crons_dir", c.Paths.CronsDir},
		{"paths.log_dir", c.Paths.LogDir},
	} {
		if !filepath.IsAbs(p.value) {
			return fmt.Errorf("%s must be an absolute path: %s", p.name, p.value)
		}
	}

	if c.Stash.LargeFileThreshold < 0 {
		return fmt.Errorf("stash.large_file_threshold must not be negative: %d", c.Stash.LargeFileThreshold)
	}

	if c.Git.Branch != "" && c.Git.Remote == "" {
		return fmt.Errorf("git.branch requires git.remote to be set")
	}

	if err := ValidateLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if err := ValidateLogFormat(c.Log.Format); err != nil {
		return fmt.Errorf("invalid log.format: %w", err)
	}

	return nil
}

// ValidateLogLevel checks a log level from the config file or a flag
func ValidateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("%s (must be debug, info, warn, or error)", level)
}

// ValidateLogFormat checks a log format from the config file or a flag
func ValidateLogFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("%s (must be text or json)", format)
}

// CronTemplatePath returns the crontab used when the current one cannot be read
func (c *Config) CronTemplatePath() string {
	return filepath.Join(c.Paths.CronsDir, "template.cron")
}

// ReconcileLogPath returns the file scheduled reconcile runs append to
func (c *Config) ReconcileLogPath() string {
	return filepath.Join(c.Paths.LogDir, "reconcile.log")
}

// SyncLogPath returns the file scheduled sync runs append to
func (c *Config) SyncLogPath() string {
	return filepath.Join(c.Paths.LogDir, "sync.log")
}
