package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajranjith/gamecheck/internal/report"
	"github.com/ajranjith/gamecheck/internal/store"
	"github.com/ajranjith/gamecheck/internal/support"
)

func newRollbackCmd() *cobra.Command {
	var (
		backupID string
		list     bool
	)
	cmd := &cobra.Command{
		Use:   "rollback <artifact>",
		Short: "Restore an artifact from its most recent (or a named) backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			artifact := args[0]
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			if list {
				backups, err := a.backups(ctx, artifact)
				if err != nil {
					return err
				}
				report.RenderBackups(w, artifact, backups)
				return nil
			}

			b, err := a.findBackup(ctx, artifact, backupID)
			if err != nil {
				return err
			}
			entry := support.AuditEntry{Mode: "rollback", Artifact: artifact, BackupID: b.ID}
			if err := a.store.Restore(b); err != nil {
				entry.Result = "FAIL"
				if aerr := support.AppendAudit(a.cfg.OutputDir(), entry); aerr != nil {
					a.log.Warn("audit entry not written", "error", aerr)
				}
				return fmt.Errorf("rollback %s: %w", artifact, err)
			}
			entry.Result = "RESTORED"
			if err := support.AppendAudit(a.cfg.OutputDir(), entry); err != nil {
				a.log.Warn("audit entry not written", "error", err)
			}
			a.log.Info("artifact restored", "artifact", artifact, "backup", b.ID)
			fmt.Fprintf(w, "Restored %s from backup %s\n", artifact, b.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&backupID, "backup", "", "backup ID to restore (default: most recent)")
	cmd.Flags().BoolVar(&list, "list", false, "list the artifact's backups instead of restoring")
	return cmd
}

// backups lists an artifact's backups from the ledger, or from the backup
// directory when the ledger has none.
func (a *app) backups(ctx context.Context, artifact string) ([]store.Backup, error) {
	if a.ledger != nil {
		indexed, err := a.ledger.Backups(ctx, artifact)
		if err != nil {
			a.log.Warn("ledger lookup failed", "artifact", artifact, "error", err)
		} else if len(indexed) > 0 {
			return indexed, nil
		}
	}
	return a.store.Backups(artifact)
}

func (a *app) findBackup(ctx context.Context, artifact, id string) (store.Backup, error) {
	if a.ledger != nil {
		var (
			b   store.Backup
			err error
		)
		if id == "" {
			b, err = a.ledger.LatestBackup(ctx, artifact)
		} else {
			b, err = a.ledger.Backup(ctx, artifact, id)
		}
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			a.log.Warn("ledger lookup failed", "artifact", artifact, "error", err)
		}
	}

	onDisk, err := a.store.Backups(artifact)
	if err != nil {
		return store.Backup{}, err
	}
	for _, b := range onDisk {
		if id == "" || b.ID == id {
			return b, nil
		}
	}
	if id != "" {
		return store.Backup{}, fmt.Errorf("backup %s of %s: %w", id, artifact, store.ErrNotFound)
	}
	return store.Backup{}, fmt.Errorf("no backups of %s: %w", artifact, store.ErrNotFound)
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded report and fix runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if a.ledger == nil {
				return errors.New("run history unavailable: ledger could not be opened")
			}
			runs, err := a.ledger.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			report.RenderRuns(cmd.OutOrStdout(), runs, a.reportOptions())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	return cmd
}
