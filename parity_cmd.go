package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ajranjith/gamecheck/internal/parity"
	"github.com/ajranjith/gamecheck/internal/scan"
	"github.com/ajranjith/gamecheck/internal/support"
)

func newParityCmd() *cobra.Command {
	var expectations string
	cmd := &cobra.Command{
		Use:   "parity",
		Short: "Compare a fresh scan against recorded expectations",
		Long: `Scan the games and compare each one against the expectations file
(parity.expectations, default parity.yml). The comparison is written to
parity-report.json. Exits 1 on any mismatch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			path := expectations
			if path == "" {
				path = a.cfg.WorkspacePath(a.cfg.Parity.Expectations)
			}
			exps, err := parity.Load(path)
			if err != nil {
				return fmt.Errorf("expectations: %w", err)
			}
			res, err := scan.New(a.cat, a.store).Run(cmd.Context(), expectedGames(exps))
			if err != nil {
				return err
			}
			rep := parity.Compare(exps, res)

			out := a.cfg.OutputDir()
			reportPath := filepath.Join(out, parity.ReportFile)
			if err := support.WriteJSONAtomic(reportPath, rep); err != nil {
				return fmt.Errorf("write parity report: %w", err)
			}
			result := "PASS"
			if rep.FailedVectors > 0 {
				result = "FAIL"
			}
			if err := support.AppendAudit(out, support.AuditEntry{
				RunID:    res.RunID,
				Mode:     "parity",
				Passed:   rep.PassedVectors,
				Failed:   rep.FailedVectors,
				Coverage: res.Summary.Coverage,
				Result:   result,
			}); err != nil {
				a.log.Warn("audit entry not written", "error", err)
			}

			w := cmd.OutOrStdout()
			for _, m := range rep.Mismatches {
				subject := m.Game
				if m.Check != "" {
					subject += "/" + m.Check
				}
				fmt.Fprintf(w, "MISMATCH %s: expected %s, got %s\n", subject, m.Expected, m.Actual)
			}
			fmt.Fprintf(w, "Parity: %d/%d vectors (%.1f%%), %d diffs, confidence %s\n",
				rep.PassedVectors, rep.TotalVectors, rep.PassRatePct, rep.DiffCount, rep.Confidence)
			if rep.FailedVectors > 0 {
				return exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&expectations, "expectations", "", "expectations file (default from config)")
	return cmd
}

func expectedGames(exps []parity.Expectation) []string {
	names := make([]string, 0, len(exps))
	for _, e := range exps {
		names = append(names, e.Game)
	}
	return names
}
