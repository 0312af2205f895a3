package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/igitd/igit/internal/config"
	"github.com/igitd/igit/internal/manifest"
	"github.com/igitd/igit/internal/stash"
)

var (
	addForce     bool
	addFilesOnly bool
	addDest      string
)

var stashCmd = &cobra.Command{
	Use:   "stash",
	Short: "Edit the list of files each machine backs up",
}

var stashCreateCmd = &cobra.Command{
	Use:   "create <machine>",
	Short: "Add a machine to the stash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, _, err := newEditor(cmd)
		if err != nil {
			return err
		}
		return editor.Create(args[0])
	},
}

var stashAddCmd = &cobra.Command{
	Use:   "add <machine> <path>...",
	Short: "Add files or directories to a machine's stash",
	Long: `Add records each path (made absolute) for the machine. Directories and files
larger than stash.large_file_threshold (1 MiB by default) are only added after
confirmation, or with --force. Without a terminal on stdin confirmation is
declined automatically.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, logger, err := newEditor(cmd)
		if err != nil {
			return err
		}
		added, err := editor.Add(args[0], args[1:], stash.AddOptions{
			Force:     addForce,
			FilesOnly: addFilesOnly,
			Dest:      addDest,
		})
		if err != nil {
			return err
		}
		logger.Info("stash updated", "added", len(added), "requested", len(args)-1)
		return nil
	},
}

var stashListCmd = &cobra.Command{
	Use:   "list [machine|all]",
	Short: "Print a machine's stash, or every machine's, as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, _, err := newEditor(cmd)
		if err != nil {
			return err
		}

		machine := manifest.All
		if len(args) == 1 {
			machine = args[0]
		}

		var v any
		if isAllSelector(machine) {
			v, err = editor.ListAll()
		} else {
			v, err = editor.List(machine)
		}
		if err != nil {
			return err
		}

		data, err := manifest.Marshal(v)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var stashClearCmd = &cobra.Command{
	Use:   "clear <machine|all>",
	Short: "Remove every entry of a machine, or every machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, _, err := newEditor(cmd)
		if err != nil {
			return err
		}
		return editor.Clear(args[0])
	},
}

var stashRemoveCmd = &cobra.Command{
	Use:   "remove <machine> <path>...",
	Short: "Remove paths from a machine's stash",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, logger, err := newEditor(cmd)
		if err != nil {
			return err
		}
		removed, err := editor.Remove(args[0], args[1:])
		if err != nil {
			return err
		}
		logger.Info("stash updated", "removed", len(removed), "requested", len(args)-1)
		return nil
	},
}

func init() {
	stashAddCmd.Flags().BoolVar(&addForce, "force", false, "add directories and large files without asking")
	stashAddCmd.Flags().BoolVar(&addFilesOnly, "files-only", false, "skip directories")
	stashAddCmd.Flags().StringVar(&addDest, "dest", "", "subdirectory of the machine's staging directory")

	stashCmd.AddCommand(stashCreateCmd)
	stashCmd.AddCommand(stashAddCmd)
	stashCmd.AddCommand(stashListCmd)
	stashCmd.AddCommand(stashClearCmd)
	stashCmd.AddCommand(stashRemoveCmd)
}

func newEditor(cmd *cobra.Command) (*stash.Editor, *slog.Logger, error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}
	store := manifest.NewStore(cfg.Paths.Manifest)
	return stash.NewEditor(store, confirmer(cmd, logger), logger, threshold(cfg)), logger, nil
}

// confirmer prompts on a terminal and declines everywhere else, so cron
// and piped runs never wait for an answer.
func confirmer(cmd *cobra.Command, logger *slog.Logger) stash.Confirmer {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return stash.NewPrompt(in, cmd.ErrOrStderr())
	}
	return stash.ConfirmFunc(func(question string) (bool, error) {
		logger.Warn("stdin is not a terminal, declining", "question", question)
		return false, nil
	})
}

func threshold(cfg *config.Config) int64 {
	if cfg.Stash.LargeFileThreshold > 0 {
		return cfg.Stash.LargeFileThreshold
	}
	return config.DefaultLargeFileThreshold
}

func isAllSelector(machine string) bool {
	return strings.EqualFold(strings.TrimSpace(machine), manifest.All)
}
