package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/model"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Inspect and restore checkpoint backups",
	Long:  "Commands for listing, restoring, and deleting the integrity-checked checkpoint snapshots kept per project.",
}

// -- backups list --

var backupsListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List backups for a project, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := env.Backups.List(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "backups list")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No backups found.")
			return nil
		}

		formatBackupsList(os.Stdout, records)
		return nil
	},
}

// -- backups restore --

var backupsRestoreCmd = &cobra.Command{
	Use:   "restore <project-id> <backup-id>",
	Short: "Restore a backup as the project's current checkpoint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		state, err := env.Backups.Restore(ctx, args[0], args[1])
		if err != nil {
			return eris.Wrap(err, "backups restore")
		}
		if err := env.Checkpoints.Save(state); err != nil {
			return eris.Wrap(err, "write restored checkpoint")
		}

		zap.L().Info("backup restored",
			zap.String("project_id", state.ProjectID),
			zap.String("step", string(state.CurrentStep)),
			zap.Int("progress", state.Progress),
		)
		return nil
	},
}

// -- backups delete --

var backupsDeleteCmd = &cobra.Command{
	Use:   "delete <backup-id>",
	Short: "Delete a backup record and its snapshot file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		removed, err := env.Backups.Delete(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "backups delete")
		}
		if !removed {
			fmt.Fprintln(os.Stderr, "No such backup.")
			return nil
		}
		fmt.Fprintln(os.Stdout, "Deleted.")
		return nil
	},
}

func formatBackupsList(w io.Writer, records []model.BackupRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tCHECKSUM\tPATH")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%.12s\t%s\n",
			rec.ID,
			rec.CreatedAt.Format(time.RFC3339),
			rec.Checksum,
			rec.Path,
		)
	}
	_ = tw.Flush()
}

func init() {
	backupsCmd.AddCommand(backupsListCmd, backupsRestoreCmd, backupsDeleteCmd)
	rootCmd.AddCommand(backupsCmd)
}
