package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/fixer"
	"github.com/ajranjith/gamecheck/internal/gate"
	"github.com/ajranjith/gamecheck/internal/ledger"
	"github.com/ajranjith/gamecheck/internal/report"
	"github.com/ajranjith/gamecheck/internal/scan"
	"github.com/ajranjith/gamecheck/internal/support"
)

func newReportCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"run-report"},
		Short:   "Scan games, apply the gate, and write the run record",
		Long: `Scan every configured game against the check catalog, print the
category and artifact summary, and persist the run record, SARIF, JUnit,
certificate and audit entry under the output directory.

Exit codes:
  0 - gate passed
  1 - gate failed or the scan could not run`,
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
			res, err := scan.New(cat, a.store).Run(cmd.Context(), a.games())
			if err != nil {
				return err
			}
			rec, _ := a.finishRun(cmd.Context(), report.KindReport, cat, res, nil)
			report.Render(cmd.OutOrStdout(), rec, a.reportOptions())
			if rec.Verdict.ExitCode != 0 {
				return exitError{code: rec.Verdict.ExitCode}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only run checks in this category")
	return cmd
}

// finishRun gates a scan and persists every run artifact. Persistence
// failures are logged and never change the verdict.
func (a *app) finishRun(ctx context.Context, kind string, cat *catalog.Catalog, res scan.Result, fixes []fixer.Outcome) (report.Record, string) {
	verdict := gate.Evaluate(a.cfg.Policy, res.Summary)
	rec := report.NewRecord(kind, res, a.cfg.Policy, verdict)
	rec.Fixes = fixes

	out := a.cfg.OutputDir()
	recordPath, err := report.Writer{Dir: out, KeepLast: a.cfg.Reports.KeepLast}.Write(rec)
	if err != nil {
		a.log.Warn("report record not written", "error", err)
	}
	evidence := []string{recordPath}

	if a.cfg.Reports.SARIF.On() {
		p := a.cfg.OutputPath(a.cfg.Reports.SARIF.Path)
		opts := report.SARIFOptions{GamesURI: a.gamesURI(), Version: Version, Catalog: cat}
		if err := report.WriteSARIF(p, rec, opts); err != nil {
			a.log.Warn("sarif not written", "path", p, "error", err)
		} else {
			evidence = append(evidence, p)
		}
	}
	if a.cfg.Reports.JUnit.On() {
		p := a.cfg.OutputPath(a.cfg.Reports.JUnit.Path)
		if err := report.WriteJUnit(p, rec); err != nil {
			a.log.Warn("junit not written", "path", p, "error", err)
		} else {
			evidence = append(evidence, p)
		}
	}

	certHash, err := a.writeCertificate(kind, rec, evidence)
	if err != nil {
		a.log.Warn("certificate not written", "error", err)
	}

	entry := support.AuditEntry{
		RunID:          rec.RunID,
		Mode:           kind,
		Passed:         rec.Summary.Passed,
		Warnings:       rec.Summary.Warnings,
		Failed:         rec.Summary.Failed,
		Missing:        rec.Summary.MissingCount,
		Coverage:       rec.Summary.Coverage,
		CertificateSHA: certHash,
		Result:         verdictResult(verdict),
	}
	if len(fixes) > 0 {
		counts := fixer.Counts(fixes)
		entry.Applied = counts[fixer.StatusApplied]
		entry.Fixes = fixNames(fixes)
	}
	if err := support.AppendAudit(out, entry); err != nil {
		a.log.Warn("audit entry not written", "error", err)
	}

	a.recordRun(ctx, ledger.Run{
		ID:         rec.RunID,
		Kind:       kind,
		StartedAt:  res.StartedAt,
		Artifacts:  rec.Summary.ArtifactCount,
		Coverage:   rec.Summary.Coverage,
		Passed:     rec.Summary.Passed,
		Warnings:   rec.Summary.Warnings,
		Failed:     rec.Summary.Failed,
		Missing:    rec.Summary.MissingCount,
		ExitCode:   verdict.ExitCode,
		ReportPath: recordPath,
	})
	a.log.Info("run complete", "kind", kind, "run_id", rec.RunID, "coverage", rec.Summary.Coverage, "pass", verdict.Pass)
	return rec, recordPath
}

// gamesURI is the games directory relative to the workspace, as SARIF
// consumers expect repository-relative locations.
func (a *app) gamesURI() string {
	rel, err := filepath.Rel(a.cfg.Paths.WorkspaceRoot, a.cfg.GamesDir())
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(a.cfg.GamesDir())
	}
	return filepath.ToSlash(rel)
}

func verdictResult(v gate.Verdict) string {
	if v.Pass {
		return "PASS"
	}
	return "FAIL"
}

func fixNames(outcomes []fixer.Outcome) string {
	var names []string
	seen := map[string]bool{}
	for _, o := range outcomes {
		if !seen[o.Fix] {
			seen[o.Fix] = true
			names = append(names, o.Fix)
		}
	}
	return strings.Join(names, ",")
}

func nowUTC() time.Time { return time.Now().UTC() }
