package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Paths: PathsConfig{
			BaseDir:    "/srv/igit",
			Manifest:   "/srv/igit/config/stash.json",
			StagingDir: "/srv/igit",
			CronsDir:   "/srv/igit/crons",
			LogDir:     "/srv/igit",
		},
		Stash: StashConfig{LargeFileThreshold: DefaultLargeFileThreshold},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := `
paths:
  base_dir: "/home/user/backups"
  staging_dir: "/home/user/backups/machines"

stash:
  large_file_threshold: 4096

git:
  remote: "origin"
  branch: "main"

log:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Paths.BaseDir != "/home/user/backups" {
		t.Errorf("expected base_dir /home/user/backups, got %s", cfg.Paths.BaseDir)
	}
	if cfg.Paths.StagingDir != "/home/user/backups/machines" {
		t.Errorf("expected staging_dir to be kept, got %s", cfg.Paths.StagingDir)
	}
	if cfg.Paths.Manifest != "/home/user/backups/config/stash.json" {
		t.Errorf("expected default manifest path, got %s", cfg.Paths.Manifest)
	}
	if cfg.Stash.LargeFileThreshold != 4096 {
		t.Errorf("expected threshold 4096, got %d", cfg.Stash.LargeFileThreshold)
	}
	if cfg.Git.Remote != "origin" || cfg.Git.Branch != "main" {
		t.Errorf("unexpected git config: %+v", cfg.Git)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("IGIT_TEST_BASE", tmpDir)

	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte("paths:\n  base_dir: \"$IGIT_TEST_BASE\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paths.BaseDir != tmpDir {
		t.Errorf("expected base_dir %s, got %s", tmpDir, cfg.Paths.BaseDir)
	}
	if cfg.Paths.CronsDir != filepath.Join(tmpDir, "crons") {
		t.Errorf("expected crons_dir under base_dir, got %s", cfg.Paths.CronsDir)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("paths: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOrDefault(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(tmpDir, "missing.yaml"), tmpDir)
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Paths.BaseDir != tmpDir {
		t.Errorf("expected fallback base_dir %s, got %s", tmpDir, cfg.Paths.BaseDir)
	}
	if cfg.Stash.LargeFileThreshold != DefaultLargeFileThreshold {
		t.Errorf("expected default threshold, got %d", cfg.Stash.LargeFileThreshold)
	}

	// A present but broken file must not fall back silently
	broken := filepath.Join(tmpDir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("log: {level: loud}\npaths: {base_dir: /x}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrDefault(broken, tmpDir); err == nil {
		t.Error("expected validation error for present config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing base_dir",
			mutate:  func(c *Config) { c.Paths.BaseDir = "" },
			wantErr: true,
		},
		{
			name:    "relative staging_dir",
			mutate:  func(c *Config) { c.Paths.StagingDir = "relative/staging" },
			wantErr: true,
		},
		{
			name:    "relative manifest",
			mutate:  func(c *Config) { c.Paths.Manifest = "stash.json" },
			wantErr: true,
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.Stash.LargeFileThreshold = -1 },
			wantErr: true,
		},
		{
			name:    "branch without remote",
			mutate:  func(c *Config) { c.Git.Branch = "main" },
			wantErr: true,
		},
		{
			name: "branch with remote",
			mutate: func(c *Config) {
				c.Git.Remote = "origin"
				c.Git.Branch = "main"
			},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := validConfig()

	if got := cfg.CronTemplatePath(); got != "/srv/igit/crons/template.cron" {
		t.Errorf("CronTemplatePath() = %s", got)
	}
	if got := cfg.ReconcileLogPath(); got != "/srv/igit/reconcile.log" {
		t.Errorf("ReconcileLogPath() = %s", got)
	}
	if got := cfg.SyncLogPath(); got != "/srv/igit/sync.log" {
		t.Errorf("SyncLogPath() = %s", got)
	}
}

func TestValidateLogSettings(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if err := ValidateLogLevel(level); err != nil {
			t.Errorf("ValidateLogLevel(%q) = %v", level, err)
		}
	}
	for _, level := range []string{"", "verbose", "INFO"} {
		if err := ValidateLogLevel(level); err == nil {
			t.Errorf("ValidateLogLevel(%q) should fail", level)
		}
	}
	if err := ValidateLogFormat("json"); err != nil {
		t.Errorf("ValidateLogFormat(json) = %v", err)
	}
	if err := ValidateLogFormat("xml"); err == nil {
		t.Error("ValidateLogFormat(xml) should fail")
	}
}
