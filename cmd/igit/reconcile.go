package main

import (
	"github.com/spf13/cobra"

	"github.com/igitd/igit/internal/manifest"
	"github.com/igitd/igit/internal/reconcile"
)

var reconcileMachine string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Copy a machine's stash entries into its staging directory",
	Long: `Reconcile copies every stash entry of --machine into
<staging_dir>/<machine>/<dest>/<basename>, replacing earlier copies.
Entries that fail are logged and skipped; the command still succeeds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := setupSignalHandler(cmd.Context())
		defer cancel()

		engine := reconcile.NewEngine(manifest.NewStore(cfg.Paths.Manifest), cfg.Paths.StagingDir, logger)
		report, err := engine.Reconcile(ctx, reconcileMachine)
		if err != nil {
			return err
		}

		if !report.OK() {
			for _, f := range report.Failed {
				logger.Warn("entry not reconciled", "source", f.Source, "target", f.Target, "error", f.Err)
			}
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileMachine, "machine", "", "machine whose entries to reconcile")
	_ = reconcileCmd.MarkFlagRequired("machine")
}
