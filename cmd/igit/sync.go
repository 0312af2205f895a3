package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/igitd/igit/internal/config"
	"github.com/igitd/igit/internal/git"
)

var syncMessage string

// newGitClient builds the client the sync command publishes with
var newGitClient = func(cfg *config.Config, logger *slog.Logger) git.Client {
	return git.NewShellClient(git.ExecRunner{}, logger, cfg.Git.Remote, cfg.Git.Branch)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Commit and push the base directory",
	Long: `Sync runs git add, commit and push in base_dir. An empty commit is not an
error. The commit message defaults to "<timestamp> igit add/commit".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := setupSignalHandler(cmd.Context())
		defer cancel()

		msg := syncMessage
		if msg == "" {
			msg = git.CommitMessage(time.Now())
		}

		return newGitClient(cfg, logger).Sync(ctx, cfg.Paths.BaseDir, msg)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncMessage, "message", "", "commit message")
}
