package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/igitd/igit/internal/config"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "igit",
	Short: "Stash files from this machine into a git repository",
	Long: `igit keeps a per-machine list of files and directories to back up (the stash),
copies them into a machine-named directory of a git working tree, and commits and
pushes that tree on a cron schedule.

Typical setup:
  igit stash create laptop
  igit stash add laptop ~/.bashrc ~/notes --dest home
  igit cron edit laptop "*/30 * * * *" "0 * * * *"`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "igit %s\n", version)
		_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
		_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/igit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json); overrides log.format")

	// Add commands
	rootCmd.AddCommand(stashCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(cronCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration and builds the logger every command uses
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, format := cfg.Log.Level, cfg.Log.Format
	if logLevel != "" {
		if err := config.ValidateLogLevel(logLevel); err != nil {
			return nil, nil, fmt.Errorf("invalid --log-level: %w", err)
		}
		level = logLevel
	}
	if logFormat != "" {
		if err := config.ValidateLogFormat(logFormat); err != nil {
			return nil, nil, fmt.Errorf("invalid --log-format: %w", err)
		}
		format = logFormat
	}
	logger := setupLogger(cmd.ErrOrStderr(), level, format)

	logger.Debug("configuration loaded",
		"path", path,
		"base_dir", cfg.Paths.BaseDir,
		"manifest", cfg.Paths.Manifest,
		"staging_dir", cfg.Paths.StagingDir)

	return cfg, logger, nil
}

func setupLogger(w io.Writer, logLevel, logFormat string) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// loadConfig reads --config, or the default path if it exists. Without any
// config file the current directory is the base directory.
func loadConfig() (*config.Config, string, error) {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		return cfg, cfgFile, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	configPath := filepath.Join(home, ".config", "igit", "config.yaml")

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.LoadOrDefault(configPath, cwd)
	return cfg, configPath, err
}

func setupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
