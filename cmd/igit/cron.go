package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/igitd/igit/internal/config"
	"github.com/igitd/igit/internal/cron"
)

var cronSave bool

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Manage the scheduled reconcile and sync jobs",
}

var cronEditCmd = &cobra.Command{
	Use:   "edit <machine> <reconcile-schedule> <sync-schedule>",
	Short: "Install reconcile and sync jobs into the user's crontab",
	Long: `Edit writes the current crontab, with the igit jobs for machine replaced,
to a timestamped file in crons_dir and installs it with crontab(1).
Schedules take five fields, each *, N or */N, for example "*/30 * * * *".
With --save the previous crontab is kept next to the new file as <file>.old.`,
	Example: `  igit cron edit laptop "*/30 * * * *" "0 * * * *" --save`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		paths, err := cronPaths(cfg)
		if err != nil {
			return err
		}

		editor := cron.NewEditor(cron.NewClient(), paths, logger)
		file, err := editor.Edit(cmd.Context(), cron.Job{
			Machine:           args[0],
			ReconcileSchedule: args[1],
			SyncSchedule:      args[2],
		}, cronSave)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), file)
		return nil
	},
}

func init() {
	cronEditCmd.Flags().BoolVar(&cronSave, "save", false, "keep the previous crontab as <file>.old")
	cronCmd.AddCommand(cronEditCmd)
}

func cronPaths(cfg *config.Config) (cron.Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return cron.Paths{}, fmt.Errorf("failed to locate igit executable: %w", err)
	}

	var configFile string
	if cfgFile != "" {
		if configFile, err = filepath.Abs(cfgFile); err != nil {
			return cron.Paths{}, fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	return cron.Paths{
		Executable:   exe,
		ConfigFile:   configFile,
		CronsDir:     cfg.Paths.CronsDir,
		Template:     cfg.CronTemplatePath(),
		ReconcileLog: cfg.ReconcileLogPath(),
		SyncLog:      cfg.SyncLogPath(),
	}, nil
}
