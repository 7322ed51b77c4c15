// Package scan runs the read path: catalog checks over every artifact,
// composed into artifact reports and a portfolio summary.
package scan

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/detect"
	"github.com/ajranjith/gamecheck/internal/logging"
	"github.com/ajranjith/gamecheck/internal/score"
	"github.com/ajranjith/gamecheck/internal/store"
)

// Source is the read side of the artifact store.
type Source interface {
	Read(name string) (string, error)
	List() ([]string, error)
}

// Result is one scan over a set of artifacts.
type Result struct {
	RunID     string                 `json:"run_id"`
	StartedAt time.Time              `json:"started_at"`
	Reports   []score.ArtifactReport `json:"artifacts"`
	Summary   score.Summary          `json:"summary"`
}

// Missing returns the reports of artifacts that could not be read.
func (r Result) Missing() []score.ArtifactReport {
	var out []score.ArtifactReport
	for _, rep := range r.Reports {
		if rep.IsMissing() {
			out = append(out, rep)
		}
	}
	return out
}

// Scanner evaluates a catalog against a source.
type Scanner struct {
	cat   *catalog.Catalog
	src   Source
	log   *slog.Logger
	now   func() time.Time
	newID func() string
}

// New returns a scanner.
func New(cat *catalog.Catalog, src Source) *Scanner {
	return &Scanner{
		cat:   cat,
		src:   src,
		log:   logging.New("scan"),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// WithClock fixes the scanner's clock and run ID source.
func (s *Scanner) WithClock(now func() time.Time, newID func() string) *Scanner {
	c := *s
	c.now = now
	c.newID = newID
	return &c
}

// Catalog returns the catalog the scanner evaluates.
func (s *Scanner) Catalog() *catalog.Catalog { return s.cat }

// Run scans names, or every artifact in the source when names is empty.
func (s *Scanner) Run(ctx context.Context, names []string) (Result, error) {
	res := Result{RunID: s.newID(), StartedAt: s.now().UTC()}
	if len(names) == 0 {
		listed, err := s.src.List()
		if err != nil {
			return res, err
		}
		names = listed
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		text, err := s.src.Read(name)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.log.Warn("artifact unreadable", "artifact", name, "error", err)
			}
			res.Reports = append(res.Reports, score.Missing(name, err))
			continue
		}
		rep := score.Compose(name, detect.RunAll(s.cat, text))
		s.log.Debug("artifact scanned", "artifact", name, "score", rep.Score, "status", rep.Status)
		res.Reports = append(res.Reports, rep)
	}
	res.Summary = score.Summarize(res.Reports, res.StartedAt)
	return res, nil
}
