package main

import (
	"archive/zip"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ajranjith/gamecheck/internal/parity"
	"github.com/ajranjith/gamecheck/internal/report"
	"github.com/ajranjith/gamecheck/internal/support"
)

func newSupportBundleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "support-bundle",
		Short: "Zip the latest run evidence for troubleshooting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			path, n, err := a.writeSupportBundle()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Support bundle: %s (%d files)\n", path, n)
			return nil
		},
	}
}

// bundleCandidates maps archive names to files; missing files are skipped.
func (a *app) bundleCandidates() map[string]string {
	out := a.cfg.OutputDir()
	files := map[string]string{
		certificateFile:   filepath.Join(out, certificateFile),
		support.AuditFile: filepath.Join(out, support.AuditFile),
		doctorFile:        filepath.Join(out, doctorFile),
		parity.ReportFile: filepath.Join(out, parity.ReportFile),
		fixPlanFile:       filepath.Join(out, fixPlanFile),
		fixPatchFile:      filepath.Join(out, fixPatchFile),
		"results.sarif":   a.cfg.OutputPath(a.cfg.Reports.SARIF.Path),
		"junit.xml":       a.cfg.OutputPath(a.cfg.Reports.JUnit.Path),
	}
	if latest, err := report.Latest(out); err == nil {
		files["reports/"+filepath.Base(latest)] = latest
	}
	if a.cfgPath != "" {
		files["config/"+filepath.Base(a.cfgPath)] = a.cfgPath
	}
	return files
}

func (a *app) writeSupportBundle() (string, int, error) {
	out := a.cfg.OutputDir()
	name := fmt.Sprintf("support-bundle_%s.zip", nowUTC().Format("20060102_150405"))
	outPath := filepath.Join(out, name)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", 0, err
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", outPath, os.Getpid())
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", 0, err
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	zipw := zip.NewWriter(f)
	n := 0
	for _, entry := range sortedEntries(a.bundleCandidates()) {
		if _, err := os.Stat(entry[1]); err != nil {
			continue
		}
		if err := addFileToZip(zipw, entry[1], entry[0]); err != nil {
			_ = zipw.Close()
			cleanup()
			return "", 0, err
		}
		n++
	}
	if err := zipw.Close(); err != nil {
		cleanup()
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, err
	}
	a.log.Info("support bundle written", "path", outPath, "files", n)
	return outPath, n, nil
}

func sortedEntries(m map[string]string) [][2]string {
	out := make([][2]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, [2]string{k, m[k]})
	}
	return out
}

func addFileToZip(zipw *zip.Writer, path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	w, err := zipw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
