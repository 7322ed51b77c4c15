package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/fixer"
	"github.com/ajranjith/gamecheck/internal/ledger"
	"github.com/ajranjith/gamecheck/internal/score"
	"github.com/ajranjith/gamecheck/internal/store"
)

// Options control console rendering.
type Options struct {
	Color bool
	// Width caps table rows; 0 leaves them unbounded.
	Width int
	// Quiet suppresses the per-artifact table.
	Quiet bool
}

// TerminalOptions detects color support and width for f.
func TerminalOptions(f *os.File) Options {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return Options{}
	}
	opts := Options{Color: os.Getenv("NO_COLOR") == ""}
	if w, _, err := term.GetSize(fd); err == nil {
		opts.Width = w
	}
	return opts
}

type palette struct {
	green, yellow, red, cyan, bold func(a ...interface{}) string
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		green:  mk(color.FgGreen),
		yellow: mk(color.FgYellow),
		red:    mk(color.FgRed),
		cyan:   mk(color.FgCyan),
		bold:   mk(color.Bold),
	}
}

func (p palette) status(st catalog.Status) string {
	switch st {
	case catalog.StatusPass:
		return p.green("PASS")
	case catalog.StatusWarning:
		return p.yellow("WARN")
	default:
		return p.red("FAIL")
	}
}

type categoryTally struct {
	passed, warnings, failed, scoreSum, n int
}

// Render prints the human summary of rec.
func Render(w io.Writer, rec Record, opts Options) {
	p := newPalette(opts.Color)

	fmt.Fprintf(w, "%s  run %s  (%s)\n\n", p.bold("gamecheck "+rec.Kind), rec.RunID, rec.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	var order []string
	tallies := map[string]*categoryTally{}
	for _, a := range rec.Artifacts {
		for _, c := range a.Categories {
			t, ok := tallies[c.Name]
			if !ok {
				t = &categoryTally{}
				tallies[c.Name] = t
				order = append(order, c.Name)
			}
			for _, r := range c.Results {
				switch r.Status {
				case catalog.StatusPass:
					t.passed++
				case catalog.StatusWarning:
					t.warnings++
				default:
					t.failed++
				}
				t.scoreSum += r.Score
				t.n++
			}
		}
	}

	cats := newTable(opts)
	cats.AppendHeader(table.Row{"Category", "Pass", "Warn", "Fail", "Avg score"})
	for _, name := range order {
		t := tallies[name]
		avg := 100
		if t.n > 0 {
			avg = (t.scoreSum + t.n/2) / t.n
		}
		cats.AppendRow(table.Row{name, t.passed, t.warnings, t.failed, avg})
	}
	s := rec.Summary
	cats.AppendFooter(table.Row{"Total", s.Passed, s.Warnings, s.Failed, ""})
	fmt.Fprintln(w, cats.Render())

	if !opts.Quiet && len(rec.Artifacts) > 0 {
		arts := newTable(opts)
		arts.AppendHeader(table.Row{"Artifact", "Status", "Score", "Pass", "Warn", "Fail"})
		for _, a := range rec.Artifacts {
			passed, warnings, failed := a.Counts()
			arts.AppendRow(table.Row{a.Artifact, p.status(a.Status), fmt.Sprintf("%.1f", a.Score), passed, warnings, failed})
		}
		fmt.Fprintln(w, arts.Render())
	}

	for _, m := range rec.Missing {
		fmt.Fprintf(w, "%s %s: %s\n", p.red("MISSING"), m.Name, m.Error)
	}
	if len(rec.Missing) > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Coverage %d%% (%d/%d checks)  ROI %.1f%%  mean load %.1f ms\n",
		s.Coverage, s.Passed, s.TotalChecks, s.ROI, s.MeanLoadMs)
	fmt.Fprintf(w, "Tier: %s\n", tierColor(p, s.Tier)(s.Tier.Describe()))
	if rec.Verdict.Pass {
		fmt.Fprintf(w, "%s %s\n", p.green("GATE PASS"), rec.Verdict.Message)
	} else {
		fmt.Fprintf(w, "%s %s\n", p.red("GATE FAIL"), rec.Verdict.Message)
		if len(rec.Verdict.Reasons) > 1 {
			for _, r := range rec.Verdict.Reasons[1:] {
				fmt.Fprintf(w, "  - %s\n", r)
			}
		}
	}
}

func tierColor(p palette, t score.Tier) func(a ...interface{}) string {
	switch t {
	case score.TierExcellent:
		return p.green
	case score.TierGood:
		return p.cyan
	case score.TierNeedsImprovement:
		return p.yellow
	default:
		return p.red
	}
}

func newTable(opts Options) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	if opts.Width > 0 {
		tw.SetAllowedRowLength(opts.Width)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	return tw
}

// RenderFixes prints one row per fix outcome.
func RenderFixes(w io.Writer, outcomes []fixer.Outcome, opts Options) {
	p := newPalette(opts.Color)
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No fixes selected.")
		return
	}
	tw := newTable(Options{Width: opts.Width})
	tw.AppendHeader(table.Row{"Fix", "Artifact", "Status", "Changes", "Detail"})
	for _, o := range outcomes {
		detail := o.Reason
		if o.Backup != nil {
			detail = "backup " + o.Backup.ID
		}
		tw.AppendRow(table.Row{o.Fix, o.Artifact, p.outcome(o.Status), o.Changes, detail})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
	fmt.Fprintln(w, tw.Render())
}

func (p palette) outcome(st fixer.Status) string {
	switch st {
	case fixer.StatusApplied:
		return p.green("APPLIED")
	case fixer.StatusPlanned:
		return p.cyan("PLANNED")
	case fixer.StatusSkipped:
		return p.yellow("SKIPPED")
	default:
		return p.red("ERROR")
	}
}

// RenderRuns prints recorded runs, newest first.
func RenderRuns(w io.Writer, runs []ledger.Run, opts Options) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	p := newPalette(opts.Color)
	tw := newTable(opts)
	tw.AppendHeader(table.Row{"Started", "Kind", "Artifacts", "Coverage", "Pass", "Warn", "Fail", "Exit", "Run"})
	for _, r := range runs {
		exit := p.green("0")
		if r.ExitCode != 0 {
			exit = p.red(fmt.Sprint(r.ExitCode))
		}
		tw.AppendRow(table.Row{
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"), r.Kind, r.Artifacts,
			fmt.Sprintf("%d%%", r.Coverage), r.Passed, r.Warnings, r.Failed, exit, r.ID,
		})
	}
	tw.SetColumnConfigs(nil)
	fmt.Fprintln(w, tw.Render())
}

// RenderBackups prints an artifact's backups, newest first.
func RenderBackups(w io.Writer, artifact string, backups []store.Backup) {
	if len(backups) == 0 {
		fmt.Fprintf(w, "No backups for %s.\n", artifact)
		return
	}
	tw := newTable(Options{})
	tw.AppendHeader(table.Row{"Backup", "Created", "Fix"})
	for _, b := range backups {
		fix := b.Fix
		if fix == "" {
			fix = "-"
		}
		tw.AppendRow(table.Row{b.ID, b.CreatedAt.UTC().Format(time.RFC3339), fix})
	}
	tw.SetColumnConfigs(nil)
	fmt.Fprintln(w, tw.Render())
}
