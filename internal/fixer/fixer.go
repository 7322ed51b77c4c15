// Package fixer applies catalog fixes to artifacts with backup and
// idempotence guarantees.
package fixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/detect"
	"github.com/ajranjith/gamecheck/internal/logging"
	"github.com/ajranjith/gamecheck/internal/store"
)

var htmlClose = regexp.MustCompile(`(?i)</html\s*>`)

var (
	ErrAnchorNotFound = errors.New("anchor not found")
	ErrUnknownFix     = errors.New("unknown fix")
)

// Skip and error reasons reported in outcomes.
const (
	ReasonAlreadyApplied = "already applied"
	ReasonNotFound       = "artifact not found"
	ReasonAnchorNotFound = "anchor not found"
)

// StructuralError reports a transformation that changed more than the fix
// is allowed to change. Nothing is written when it occurs.
type StructuralError struct {
	Artifact string
	Fix      string
	Reason   string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("non-structural change blocked: %s/%s (%s)", e.Artifact, e.Fix, e.Reason)
}

// Status is the per-artifact result of a fix.
type Status string

const (
	StatusApplied Status = "applied"
	StatusPlanned Status = "planned"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Outcome describes what one fix did to one artifact.
type Outcome struct {
	Fix      string        `json:"fix"`
	Artifact string        `json:"artifact"`
	Status   Status        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Changes  int           `json:"changes"`
	Backup   *store.Backup `json:"backup,omitempty"`
	Diff     string        `json:"-"`
	Err      error         `json:"-"`
}

// Store is the artifact access the engine needs.
type Store interface {
	Read(name string) (string, error)
	Write(name, text string) error
	Backup(name, fix, text string) (store.Backup, error)
}

// BackupIndex records backups for later rollback.
type BackupIndex interface {
	RecordBackup(ctx context.Context, b store.Backup) error
}

// Engine applies fixes from a catalog.
type Engine struct {
	cat   *catalog.Catalog
	store Store
	index BackupIndex
	log   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIndex records every backup in idx.
func WithIndex(idx BackupIndex) Option { return func(e *Engine) { e.index = idx } }

// WithLogger overrides the engine logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// New returns an engine over cat and st.
func New(cat *catalog.Catalog, st Store, opts ...Option) *Engine {
	e := &Engine{cat: cat, store: st, log: logging.New("fixer")}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Apply runs one fix over its targets.
func (e *Engine) Apply(ctx context.Context, name string) ([]Outcome, error) {
	fx, ok := e.cat.Fix(name)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFix, name)
	}
	return e.run(ctx, fx, false)
}

// ApplyAll runs the named fixes (every fix when none are named) in catalog
// order.
func (e *Engine) ApplyAll(ctx context.Context, names ...string) ([]Outcome, error) {
	return e.runMany(ctx, false, names)
}

// DryRun computes outcomes and diffs without creating backups or writing.
// Fixes are evaluated independently against current content.
func (e *Engine) DryRun(ctx context.Context, names ...string) ([]Outcome, error) {
	return e.runMany(ctx, true, names)
}

func (e *Engine) runMany(ctx context.Context, dry bool, names []string) ([]Outcome, error) {
	fixes, err := e.selectFixes(names)
	if err != nil {
		return nil, err
	}
	var out []Outcome
	for _, fx := range fixes {
		res, err := e.run(ctx, fx, dry)
		out = append(out, res...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (e *Engine) selectFixes(names []string) ([]catalog.Fix, error) {
	all := e.cat.Fixes()
	if len(names) == 0 {
		return all, nil
	}
	want := map[string]bool{}
	for _, n := range names {
		if _, ok := e.cat.Fix(n); !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownFix, n)
		}
		want[n] = true
	}
	var out []catalog.Fix
	for _, fx := range all {
		if want[fx.Name] {
			out = append(out, fx)
		}
	}
	return out, nil
}

func (e *Engine) run(ctx context.Context, fx catalog.Fix, dry bool) ([]Outcome, error) {
	out := make([]Outcome, 0, len(fx.Targets))
	for _, artifact := range fx.Targets {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		o := e.applyOne(ctx, fx, artifact, dry)
		switch o.Status {
		case StatusError:
			e.log.Warn("fix failed", "fix", fx.Name, "artifact", artifact, "error", o.Err)
		case StatusSkipped:
			e.log.Debug("fix skipped", "fix", fx.Name, "artifact", artifact, "reason", o.Reason)
		default:
			e.log.Info("fix "+string(o.Status), "fix", fx.Name, "artifact", artifact, "changes", o.Changes)
		}
		out = append(out, o)
	}
	return out, nil
}

func (e *Engine) applyOne(ctx context.Context, fx catalog.Fix, artifact string, dry bool) Outcome {
	o := Outcome{Fix: fx.Name, Artifact: artifact}
	fail := func(reason string, err error) Outcome {
		o.Status = StatusError
		o.Reason = reason
		o.Err = err
		return o
	}

	original, err := e.store.Read(artifact)
	if errors.Is(err, store.ErrNotFound) {
		return fail(ReasonNotFound, err)
	}
	if err != nil {
		return fail(err.Error(), err)
	}

	if strings.Contains(original, fx.Marker) || e.compliant(fx, original) {
		o.Status = StatusSkipped
		o.Reason = ReasonAlreadyApplied
		return o
	}

	updated, changes, err := Transform(fx, original)
	if errors.Is(err, ErrAnchorNotFound) {
		return fail(ReasonAnchorNotFound, fmt.Errorf("%s: %w %q", artifact, err, fx.Anchor))
	}
	if err != nil {
		return fail(err.Error(), err)
	}
	if err := e.validate(fx, artifact, original, updated); err != nil {
		return fail(err.Error(), err)
	}
	o.Changes = changes

	if dry {
		o.Status = StatusPlanned
		o.Diff = Diff(artifact, original, updated)
		return o
	}

	b, err := e.store.Backup(artifact, fx.Name, original)
	if err != nil {
		return fail("backup failed: "+err.Error(), err)
	}
	o.Backup = &b
	if e.index != nil {
		if err := e.index.RecordBackup(ctx, b); err != nil {
			e.log.Warn("backup not indexed", "artifact", artifact, "backup", b.ID, "error", err)
		}
	}
	if err := e.store.Write(artifact, updated); err != nil {
		return fail("write failed: "+err.Error(), err)
	}
	o.Status = StatusApplied
	return o
}

// compliant reports whether every check the fix targets already passes.
func (e *Engine) compliant(fx catalog.Fix, text string) bool {
	for _, name := range fx.Checks {
		chk, ok := e.cat.Check(name)
		if !ok {
			return false
		}
		if detect.Run(chk, text).Status != catalog.StatusPass {
			return false
		}
	}
	return true
}

// Transform computes the fixed text and a change count without side effects.
func Transform(fx catalog.Fix, text string) (string, int, error) {
	switch fx.Kind {
	case catalog.FixInject:
		idx := strings.Index(text, fx.Anchor)
		if idx < 0 {
			return "", 0, ErrAnchorNotFound
		}
		return text[:idx] + fx.Block + text[idx:], 1, nil
	case catalog.FixRewrite:
		cur := text
		changes := 0
		for _, rw := range fx.Rewrites {
			changes += len(rw.From.FindAllStringIndex(cur, -1))
			cur = rw.From.ReplaceAllString(cur, rw.To)
		}
		return placeMarker(cur, fx.Marker), changes, nil
	}
	return "", 0, fmt.Errorf("fix %q: unknown kind %q", fx.Name, fx.Kind)
}

// placeMarker puts marker on its own line before the last </html>, or at the
// end of text when there is none.
func placeMarker(text, marker string) string {
	if locs := htmlClose.FindAllStringIndex(text, -1); len(locs) > 0 {
		idx := locs[len(locs)-1][0]
		return text[:idx] + marker + "\n" + text[idx:]
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text + marker + "\n"
}

// validate checks that updated differs from original only by the fix's own
// additions and that no targeted check got worse.
func (e *Engine) validate(fx catalog.Fix, artifact, original, updated string) error {
	blocked := func(reason string) error {
		return &StructuralError{Artifact: artifact, Fix: fx.Name, Reason: reason}
	}
	if strings.Count(updated, fx.Marker) != 1 {
		return blocked("marker must appear exactly once")
	}
	switch fx.Kind {
	case catalog.FixInject:
		idx := strings.Index(original, fx.Anchor)
		if idx < 0 || !strings.HasPrefix(updated[idx:], fx.Block) {
			return blocked("block not at anchor")
		}
		if updated[:idx]+updated[idx+len(fx.Block):] != original {
			return blocked("content outside the injected block changed")
		}
	case catalog.FixRewrite:
		if !strings.Contains(updated, fx.Marker+"\n") {
			return blocked("marker not placed")
		}
		body := strings.Replace(updated, fx.Marker+"\n", "", 1)
		if strings.TrimSuffix(body, "\n") != strings.TrimSuffix(rewriteOnly(fx, original), "\n") {
			return blocked("rewrite is not reproducible")
		}
	}
	for _, name := range fx.Checks {
		chk, ok := e.cat.Check(name)
		if !ok {
			continue
		}
		before := detect.Run(chk, original)
		after := detect.Run(chk, updated)
		if after.Status.Rank() < before.Status.Rank() {
			return blocked(fmt.Sprintf("check %s regressed from %s to %s", name, before.Status, after.Status))
		}
	}
	return nil
}

func rewriteOnly(fx catalog.Fix, text string) string {
	for _, rw := range fx.Rewrites {
		text = rw.From.ReplaceAllString(text, rw.To)
	}
	return text
}

// Counts tallies outcomes by status.
func Counts(outcomes []Outcome) map[Status]int {
	m := map[Status]int{}
	for _, o := range outcomes {
		m[o.Status]++
	}
	return m
}
