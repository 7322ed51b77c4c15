// Package report persists and renders scan results.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ajranjith/gamecheck/internal/fixer"
	"github.com/ajranjith/gamecheck/internal/gate"
	"github.com/ajranjith/gamecheck/internal/scan"
	"github.com/ajranjith/gamecheck/internal/score"
	"github.com/ajranjith/gamecheck/internal/support"
)

// Run kinds.
const (
	KindReport = "report"
	KindFix    = "fix"
	KindWatch  = "watch"
)

const (
	recordsDir   = "reports"
	recordPrefix = "report_"
	fileTime     = "20060102_150405"
)

// MissingArtifact is an artifact that could not be read.
type MissingArtifact struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Record is the persisted result of one run.
type Record struct {
	RunID       string                 `json:"run_id"`
	Kind        string                 `json:"kind"`
	GeneratedAt time.Time              `json:"generated_at"`
	Summary     score.Summary          `json:"summary"`
	Verdict     gate.Verdict           `json:"verdict"`
	Policy      gate.Policy            `json:"policy"`
	Artifacts   []score.ArtifactReport `json:"artifacts"`
	Missing     []MissingArtifact      `json:"missing,omitempty"`
	Fixes       []fixer.Outcome        `json:"fixes,omitempty"`
}

// NewRecord builds a record from a scan and its verdict.
func NewRecord(kind string, res scan.Result, policy gate.Policy, v gate.Verdict) Record {
	rec := Record{
		RunID:       res.RunID,
		Kind:        kind,
		GeneratedAt: res.Summary.GeneratedAt,
		Summary:     res.Summary,
		Verdict:     v,
		Policy:      policy,
		Artifacts:   []score.ArtifactReport{},
	}
	for _, rep := range res.Reports {
		if rep.IsMissing() {
			rec.Missing = append(rec.Missing, MissingArtifact{Name: rep.Artifact, Error: rep.Error})
			continue
		}
		rec.Artifacts = append(rec.Artifacts, rep)
	}
	return rec
}

// Writer persists records as <dir>/reports/report_<UTC time>_<run id>.json.
type Writer struct {
	Dir string
	// KeepLast bounds the records kept after a write; 0 keeps all.
	KeepLast int
}

// Write persists rec and returns its path. Existing records are never
// overwritten.
func (w Writer) Write(rec Record) (string, error) {
	dir := filepath.Join(w.Dir, recordsDir)
	id := rec.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	base := recordPrefix + rec.GeneratedAt.UTC().Format(fileTime) + "_" + id
	path := filepath.Join(dir, base+".json")
	for i := 2; ; i++ {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.json", base, i))
	}
	if err := support.WriteJSONAtomic(path, rec); err != nil {
		return "", fmt.Errorf("write report record: %w", err)
	}
	if w.KeepLast > 0 {
		if err := w.rotate(); err != nil {
			return path, fmt.Errorf("rotate report records: %w", err)
		}
	}
	return path, nil
}

func (w Writer) rotate() error {
	records, err := List(w.Dir)
	if err != nil {
		return err
	}
	if len(records) <= w.KeepLast {
		return nil
	}
	for _, p := range records[:len(records)-w.KeepLast] {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// List returns record paths under dir, oldest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dir, recordsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), recordPrefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, recordsDir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Latest returns the newest record path under dir.
func Latest(dir string) (string, error) {
	records, err := List(dir)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", errors.New("no report records found")
	}
	return records[len(records)-1], nil
}
