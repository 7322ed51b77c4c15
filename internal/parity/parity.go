// Package parity compares a scan against recorded expectations.
package parity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/scan"
	"github.com/ajranjith/gamecheck/internal/score"
	"github.com/ajranjith/gamecheck/internal/support"
)

// ReportFile is the parity report name inside the output directory.
const ReportFile = "parity-report.json"

// Expectation is what one artifact is expected to score.
type Expectation struct {
	Game     string                    `yaml:"game"`
	Status   catalog.Status            `yaml:"status"`
	MinScore *float64                  `yaml:"minScore"`
	Checks   map[string]catalog.Status `yaml:"checks"`
}

type Report struct {
	TotalVectors  int        `json:"totalVectors"`
	PassedVectors int        `json:"passedVectors"`
	FailedVectors int        `json:"failedVectors"`
	PassRatePct   float64    `json:"passRatePct"`
	DiffCount     int        `json:"diffCount"`
	Confidence    string     `json:"confidence"`
	Mismatches    []Mismatch `json:"mismatches"`
}

type Mismatch struct {
	Game     string `json:"game"`
	Check    string `json:"check,omitempty"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Load reads a YAML list of expectations.
func Load(path string) ([]Expectation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var exps []Expectation
	if err := yaml.Unmarshal(support.StripBOM(data), &exps); err != nil {
		return nil, fmt.Errorf("parse expectations %s: %w", path, err)
	}
	for i, e := range exps {
		if e.Game == "" {
			return nil, fmt.Errorf("expectation %d: missing game", i)
		}
		if err := validStatus(e.Status, true); err != nil {
			return nil, fmt.Errorf("expectation %s: %w", e.Game, err)
		}
		for chk, st := range e.Checks {
			if err := validStatus(st, false); err != nil {
				return nil, fmt.Errorf("expectation %s/%s: %w", e.Game, chk, err)
			}
		}
	}
	return exps, nil
}

func validStatus(st catalog.Status, allowEmpty bool) error {
	switch st {
	case catalog.StatusPass, catalog.StatusWarning, catalog.StatusFail:
		return nil
	case "":
		if allowEmpty {
			return nil
		}
	}
	return fmt.Errorf("invalid status %q", st)
}

// Compare checks every expectation against res. An expectation counts as
// passed when all of its assertions hold.
func Compare(exps []Expectation, res scan.Result) Report {
	byName := map[string]score.ArtifactReport{}
	for _, r := range res.Reports {
		byName[r.Artifact] = r
	}

	rep := Report{TotalVectors: len(exps), Mismatches: []Mismatch{}}
	for _, e := range exps {
		diffs := compareOne(e, byName)
		if len(diffs) == 0 {
			rep.PassedVectors++
			continue
		}
		rep.FailedVectors++
		rep.Mismatches = append(rep.Mismatches, diffs...)
	}
	rep.DiffCount = len(rep.Mismatches)
	if rep.TotalVectors > 0 {
		rep.PassRatePct = float64(rep.PassedVectors) / float64(rep.TotalVectors) * 100
	}
	switch {
	case rep.PassRatePct == 100 && rep.DiffCount == 0:
		rep.Confidence = "HIGH"
	case rep.PassRatePct >= 95 && rep.DiffCount <= 1:
		rep.Confidence = "MEDIUM"
	default:
		rep.Confidence = "LOW"
	}
	return rep
}

func compareOne(e Expectation, byName map[string]score.ArtifactReport) []Mismatch {
	actual, ok := byName[e.Game]
	if !ok || actual.IsMissing() {
		return []Mismatch{{Game: e.Game, Expected: "present", Actual: "missing"}}
	}
	var out []Mismatch
	if e.Status != "" && actual.Status != e.Status {
		out = append(out, Mismatch{Game: e.Game, Expected: string(e.Status), Actual: string(actual.Status)})
	}
	if e.MinScore != nil && actual.Score < *e.MinScore {
		out = append(out, Mismatch{Game: e.Game, Expected: fmt.Sprintf("score >= %g", *e.MinScore), Actual: fmt.Sprintf("score %.2f", actual.Score)})
	}
	results := map[string]catalog.Status{}
	for _, r := range actual.Results() {
		results[r.Check] = r.Status
	}
	for chk, want := range e.Checks {
		got, ok := results[chk]
		if !ok {
			out = append(out, Mismatch{Game: e.Game, Check: chk, Expected: string(want), Actual: "not run"})
			continue
		}
		if got != want {
			out = append(out, Mismatch{Game: e.Game, Check: chk, Expected: string(want), Actual: string(got)})
		}
	}
	return out
}
