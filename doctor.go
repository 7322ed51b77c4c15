package main

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/support"
)

const doctorFile = "doctor.json"

// Fix readiness per artifact.
const (
	fixApplied       = "applied"
	fixReady         = "ready"
	fixAnchorMissing = "anchor missing"
)

type doctorReport struct {
	GeneratedAtUtc string           `json:"generatedAtUtc"`
	WorkspaceRoot  string           `json:"workspaceRoot"`
	ConfigPath     string           `json:"configPath,omitempty"`
	GamesDir       doctorDir        `json:"gamesDir"`
	OutputDir      doctorDir        `json:"outputDir"`
	Artifacts      []doctorArtifact `json:"artifacts"`
	Ledger         bool             `json:"ledgerAvailable"`
	SigningKey     bool             `json:"signingKeyConfigured"`
	Status         string           `json:"status"`
	Reasons        []string         `json:"reasons,omitempty"`
}

type doctorDir struct {
	Path     string `json:"path"`
	Exists   bool   `json:"exists"`
	Writable bool   `json:"writable,omitempty"`
}

type doctorArtifact struct {
	Name    string            `json:"name"`
	Present bool              `json:"present"`
	Fixes   map[string]string `json:"fixes,omitempty"`
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the workspace is ready to scan and fix",
		Long: `Run readiness checks and write doctor.json to the output directory.

This command checks for:
- The games directory and every configured game
- Which fixes can apply to each game (anchor present) or already did
- A writable output directory and an openable ledger
- A configured signing key

Exit codes:
  0 - OK
  1 - DEGRADED`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			rep := a.buildDoctorReport()
			path := filepath.Join(a.cfg.OutputDir(), doctorFile)
			if err := support.WriteJSONAtomic(path, rep); err != nil {
				rep.Status = "DEGRADED"
				rep.Reasons = append(rep.Reasons, "output dir not writable: "+err.Error())
			}
			printDoctor(cmd, rep, a.reportOptions().Color)
			if rep.Status != "OK" {
				return exitError{code: 1}
			}
			return nil
		},
	}
}

func (a *app) buildDoctorReport() doctorReport {
	rep := doctorReport{
		GeneratedAtUtc: nowUTC().Format(time.RFC3339),
		WorkspaceRoot:  a.cfg.Paths.WorkspaceRoot,
		ConfigPath:     a.cfgPath,
		GamesDir:       doctorDir{Path: a.cfg.GamesDir()},
		OutputDir:      doctorDir{Path: a.cfg.OutputDir()},
		Artifacts:      []doctorArtifact{},
		Ledger:         a.ledger != nil,
		Status:         "OK",
	}
	degrade := func(reason string) {
		rep.Status = "DEGRADED"
		rep.Reasons = append(rep.Reasons, reason)
	}

	if info, err := os.Stat(rep.GamesDir.Path); err == nil && info.IsDir() {
		rep.GamesDir.Exists = true
	} else {
		degrade("games dir missing")
	}
	if info, err := os.Stat(rep.OutputDir.Path); err == nil && info.IsDir() {
		rep.OutputDir.Exists = true
		rep.OutputDir.Writable = dirWritable(rep.OutputDir.Path)
	}
	if !rep.OutputDir.Writable {
		degrade("output dir not writable")
	}
	if !rep.Ledger {
		degrade("ledger unavailable")
	}
	_, keyErr := support.LoadSigningKey(a.cfg.OutputDir())
	rep.SigningKey = keyErr == nil
	if keyErr != nil && !errors.Is(keyErr, support.ErrNoSigningKey) {
		degrade("signing key invalid: " + keyErr.Error())
	}

	names := a.cfg.Games
	if len(names) == 0 {
		names, _ = a.store.List()
	}
	if len(names) == 0 && rep.GamesDir.Exists {
		degrade("no games found")
	}
	var missing []string
	for _, name := range names {
		art := doctorArtifact{Name: name}
		text, err := a.store.Read(name)
		if err != nil {
			missing = append(missing, name)
			rep.Artifacts = append(rep.Artifacts, art)
			continue
		}
		art.Present = true
		art.Fixes = fixReadiness(a.cat, name, text)
		rep.Artifacts = append(rep.Artifacts, art)
	}
	if len(missing) > 0 {
		degrade("missing games: " + strings.Join(missing, ", "))
	}
	return rep
}

// fixReadiness reports, for every fix targeting name, whether it already
// applied, can apply, or lacks its anchor.
func fixReadiness(cat *catalog.Catalog, name, text string) map[string]string {
	out := map[string]string{}
	for _, fx := range cat.Fixes() {
		if !slices.Contains(fx.Targets, name) {
			continue
		}
		switch {
		case strings.Contains(text, fx.Marker):
			out[fx.Name] = fixApplied
		case fx.Kind == catalog.FixInject && !strings.Contains(text, fx.Anchor):
			out[fx.Name] = fixAnchorMissing
		default:
			out[fx.Name] = fixReady
		}
	}
	return out
}

func dirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

func printDoctor(cmd *cobra.Command, rep doctorReport, useColor bool) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	for _, c := range []*color.Color{green, red, yellow, cyan} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	w := cmd.OutOrStdout()
	mark := func(ok bool) string {
		if ok {
			return green.Sprint("✓")
		}
		return red.Sprint("✗")
	}

	fmt.Fprintf(w, "%s Workspace %s\n", cyan.Sprint("→"), rep.WorkspaceRoot)
	fmt.Fprintf(w, "  %s games dir %s\n", mark(rep.GamesDir.Exists), rep.GamesDir.Path)
	fmt.Fprintf(w, "  %s output dir %s\n", mark(rep.OutputDir.Writable), rep.OutputDir.Path)
	fmt.Fprintf(w, "  %s ledger\n", mark(rep.Ledger))
	if rep.SigningKey {
		fmt.Fprintf(w, "  %s signing key\n", mark(true))
	} else {
		fmt.Fprintf(w, "  %s no signing key (certificates unsigned)\n", yellow.Sprint("⚠"))
	}

	fmt.Fprintf(w, "%s Games\n", cyan.Sprint("→"))
	for _, art := range rep.Artifacts {
		fmt.Fprintf(w, "  %s %s\n", mark(art.Present), art.Name)
		for _, fx := range slices.Sorted(maps.Keys(art.Fixes)) {
			st := art.Fixes[fx]
			label := st
			if st == fixAnchorMissing {
				label = yellow.Sprint(st)
			}
			fmt.Fprintf(w, "      %-16s %s\n", fx, label)
		}
	}

	fmt.Fprintln(w)
	if rep.Status == "OK" {
		fmt.Fprintf(w, "%s All checks passed\n", green.Sprint("✓"))
		return
	}
	fmt.Fprintf(w, "%s %s\n", red.Sprint("✗"), rep.Status)
	for _, r := range rep.Reasons {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}
