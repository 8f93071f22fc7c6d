package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"pipe-company/internal/backup"
	"pipe-company/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errAborted = errors.New("aborted")

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, verify and restore database backups",
	}
	cmd.AddCommand(
		newBackupCreateCmd(a),
		newBackupListCmd(a),
		newBackupVerifyCmd(a),
		newBackupRestoreCmd(a),
		newBackupDeleteCmd(a),
		newBackupCleanupCmd(a),
	)
	return cmd
}

func newBackupCreateCmd(a *app) *cobra.Command {
	var (
		label      string
		noCompress bool
		upload     bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Dump the database into a new backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := backup.CreateOptions{Label: label}
			if noCompress {
				compress := false
				opts.Compress = &compress
			}

			mgr := a.backups()
			meta, err := mgr.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			a.printf("Created %s (%s, %d bytes, sha256 %s)\n", meta.ID, meta.FileName, meta.SizeBytes, meta.Checksum)

			if upload || a.cfg.Backup.UploadOffsite {
				store, err := storage.New(cmd.Context(), a.cfg.Storage, a.log)
				if err != nil {
					return fmt.Errorf("failed to initialize storage: %w", err)
				}
				if err := mgr.UploadOffsite(cmd.Context(), meta.ID, store); err != nil {
					return err
				}
				a.printf("Uploaded %s\n", meta.ID)
			}

			if policy := mgr.Policy(); policy.KeepLast > 0 || policy.MaxAge > 0 {
				removed, err := mgr.Cleanup(policy)
				if err != nil {
					a.log.Warn("Retention cleanup failed", zap.Error(err))
				}
				for _, id := range removed {
					a.printf("Removed %s\n", id)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "short label appended to the backup id")
	cmd.Flags().BoolVar(&noCompress, "no-compress", false, "write a plain SQL file instead of gzip")
	cmd.Flags().BoolVar(&upload, "upload", false, "copy the backup to object storage")
	return cmd
}

func newBackupListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, err := a.backups().List()
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				a.printf("No backups in %s\n", a.cfg.Backup.Dir)
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSIZE\tCOMPRESSED\tSCHEMA")
			for _, b := range backups {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\n",
					b.ID,
					b.CreatedAt.Local().Format(time.DateTime),
					formatBytes(b.SizeBytes),
					b.Compressed,
					b.SchemaVersion,
				)
			}
			return tw.Flush()
		},
	}
}

func newBackupVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <id>",
		Short: "Check a backup against its recorded checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := a.backups().Verify(args[0])
			if err != nil {
				return err
			}
			a.printf("%s OK (sha256 %s)\n", meta.ID, meta.Checksum)
			return nil
		},
	}
}

func newBackupRestoreCmd(a *app) *cobra.Command {
	var (
		yes        bool
		skipSafety bool
	)

	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Replace the database contents with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := a.backups()
			meta, err := mgr.Verify(args[0])
			if err != nil {
				return err
			}

			if !yes {
				a.printf("Restoring %s (created %s) overwrites database %q.\n",
					meta.ID, meta.CreatedAt.Local().Format(time.DateTime), a.cfg.Database.Database)
				if !a.confirm("Continue?") {
					return errAborted
				}
			}

			result, err := mgr.Restore(cmd.Context(), meta.ID, backup.RestoreOptions{SkipSafetyBackup: skipSafety})
			if err != nil {
				return err
			}
			if result.SafetyBackupID != "" {
				a.printf("Safety backup %s\n", result.SafetyBackupID)
			}
			a.printf("Restored %s in %s\n", result.ID, result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&skipSafety, "skip-safety-backup", false, "do not back up the current database first")
	return cmd
}

func newBackupDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a backup and its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := a.backups()
			if _, err := mgr.Get(args[0]); err != nil {
				return err
			}
			if !yes && !a.confirm(fmt.Sprintf("Delete %s?", args[0])) {
				return errAborted
			}
			if err := mgr.Delete(args[0]); err != nil {
				return err
			}
			a.printf("Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newBackupCleanupCmd(a *app) *cobra.Command {
	var (
		keep   int
		maxAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove backups outside the retention policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := a.backups()
			policy := mgr.Policy()
			if cmd.Flags().Changed("keep") {
				policy.KeepLast = keep
			}
			if cmd.Flags().Changed("max-age") {
				policy.MaxAge = maxAge
			}
			if policy.KeepLast <= 0 && policy.MaxAge <= 0 {
				a.printf("No retention policy configured, nothing to do\n")
				return nil
			}

			removed, err := mgr.Cleanup(policy)
			for _, id := range removed {
				a.printf("Removed %s\n", id)
			}
			if err != nil {
				return err
			}
			a.printf("%d backup(s) removed\n", len(removed))
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "always keep this many newest backups")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "remove backups older than this, e.g. 720h")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
