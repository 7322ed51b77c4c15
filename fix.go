package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajranjith/gamecheck/internal/fixer"
	"github.com/ajranjith/gamecheck/internal/report"
	"github.com/ajranjith/gamecheck/internal/scan"
	"github.com/ajranjith/gamecheck/internal/support"
)

const (
	fixPlanFile  = "fix-plan.json"
	fixPatchFile = "fix.patch"
)

type fixPlan struct {
	GeneratedAtUtc string          `json:"generatedAtUtc"`
	Category       string          `json:"category,omitempty"`
	Fixes          []string        `json:"fixes,omitempty"`
	Planned        int             `json:"planned"`
	Skipped        int             `json:"skipped"`
	Errors         int             `json:"errors"`
	Outcomes       []fixer.Outcome `json:"outcomes"`
}

func newFixCmd() *cobra.Command {
	var (
		category string
		fixes    []string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:     "fix",
		Aliases: []string{"run-fix"},
		Short:   "Apply fixes with backups, then re-verify",
		Long: `Apply catalog fixes to their target games. Every mutation is preceded by
a backup and validated before it is written. Games that already comply are
skipped. After applying, the games are scanned again and the exit code
follows the gate on the post-fix result.

With --dry-run nothing is written; fix-plan.json and fix.patch are produced
under the output directory instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.cat.Only(category)
			if err != nil {
				return err
			}
			engine := a.engineFor(cat)
			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			opts := a.reportOptions()

			if dryRun {
				outcomes, err := engine.DryRun(ctx, fixes...)
				if err != nil {
					return err
				}
				counts := fixer.Counts(outcomes)
				plan := fixPlan{
					GeneratedAtUtc: nowUTC().Format(time.RFC3339),
					Category:       category,
					Fixes:          fixes,
					Planned:        counts[fixer.StatusPlanned],
					Skipped:        counts[fixer.StatusSkipped],
					Errors:         counts[fixer.StatusError],
					Outcomes:       outcomes,
				}
				out := a.cfg.OutputDir()
				if err := support.WriteJSONAtomic(filepath.Join(out, fixPlanFile), plan); err != nil {
					return fmt.Errorf("write fix plan: %w", err)
				}
				if err := support.WriteFileAtomic(filepath.Join(out, fixPatchFile), []byte(fixer.Patch(outcomes))); err != nil {
					return fmt.Errorf("write fix patch: %w", err)
				}
				if err := support.AppendAudit(out, support.AuditEntry{
					Mode:   "fix",
					DryRun: true,
					Fixes:  fixNames(outcomes),
					Result: fmt.Sprintf("PLANNED %d", plan.Planned),
				}); err != nil {
					a.log.Warn("audit entry not written", "error", err)
				}
				report.RenderFixes(w, outcomes, opts)
				fmt.Fprintf(w, "Dry run: %d planned, %d skipped, %d errors. Plan written to %s\n",
					plan.Planned, plan.Skipped, plan.Errors, filepath.Join(out, fixPlanFile))
				return nil
			}

			outcomes, err := engine.ApplyAll(ctx, fixes...)
			if err != nil {
				return err
			}
			report.RenderFixes(w, outcomes, opts)

			res, err := scan.New(cat, a.store).Run(ctx, a.games())
			if err != nil {
				return fmt.Errorf("re-verify: %w", err)
			}
			rec, _ := a.finishRun(ctx, report.KindFix, cat, res, outcomes)
			report.Render(w, rec, opts)
			if rec.Verdict.ExitCode != 0 {
				return exitError{code: rec.Verdict.ExitCode}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only run fixes whose checks are in this category")
	cmd.Flags().StringSliceVar(&fixes, "fix", nil, "fix names to run (repeatable; default all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "write a plan and patch instead of changing games")
	return cmd
}
