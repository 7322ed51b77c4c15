package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/score"
	"github.com/ajranjith/gamecheck/internal/store"
)

const complete = `<!DOCTYPE html>
<html><head>
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>
.game { width: 90vw; max-width: 100%; }
@media (max-width: 600px) { .game { width: 100vw; } }
@media (prefers-reduced-motion: reduce) { * { animation: none; } }
button:focus-visible { outline: 2px solid; }
</style></head>
<body>
<div role="main" aria-label="game" aria-live="polite"></div>
<script>
window.addEventListener('error', function () {});
window.addEventListener('unhandledrejection', function () {});
try { init(); } catch (e) {}
const Ctx = window.AudioContext || window.webkitAudioContext;
let audioEnabled = true;
sound.play().catch(function () { audioEnabled = false; });
canvas.width = w * window.devicePixelRatio;
const best = localStorage.getItem('best') ?? 0;
const el = document.getElementById('x')?.value;
if (typeof window.foo === 'undefined' && el !== null) {}
</script>
</body></html>
`

func newSource(t *testing.T, games map[string]string) *store.FS {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "games")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	st := store.New(dir, filepath.Join(root, "backups"))
	for name, text := range games {
		require.NoError(t, st.Write(name, text))
	}
	return st
}

func fixedScanner(cat *catalog.Catalog, src Source) *Scanner {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return New(cat, src).WithClock(func() time.Time { return at }, func() string { return "run-1" })
}

func TestCompleteGamePassesEverything(t *testing.T) {
	src := newSource(t, map[string]string{"complete": complete})
	res, err := fixedScanner(catalog.Default(), src).Run(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, res.Reports, 1)
	rep := res.Reports[0]
	for _, r := range rep.Results() {
		assert.Equal(t, catalog.StatusPass, r.Status, "%s: %s", r.Check, r.Message)
	}
	assert.InDelta(t, 100.0, rep.Score, 1e-9)
	assert.Equal(t, 100, res.Summary.Coverage)
	assert.Equal(t, score.TierExcellent, res.Summary.Tier)
	assert.Equal(t, "run-1", res.RunID)
}

func TestMissingArtifactExcluded(t *testing.T) {
	src := newSource(t, map[string]string{"complete": complete})
	res, err := fixedScanner(catalog.Default(), src).Run(context.Background(), []string{"complete", "ghost"})
	require.NoError(t, err)

	require.Len(t, res.Reports, 2)
	missing := res.Missing()
	require.Len(t, missing, 1)
	assert.Equal(t, "ghost", missing[0].Artifact)
	assert.Contains(t, missing[0].Error, "artifact not found")
	assert.Equal(t, 1, res.Summary.MissingCount)
	assert.Equal(t, 8, res.Summary.TotalChecks)
}

func TestCategoryFilter(t *testing.T) {
	src := newSource(t, map[string]string{"blank": "<html></html>"})
	visual, err := catalog.Default().Only("visual")
	require.NoError(t, err)

	res, err := fixedScanner(visual, src).Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Reports, 1)
	assert.Len(t, res.Reports[0].Results(), 2)
	assert.Equal(t, 2, res.Summary.Failed)
	assert.Equal(t, 1, score.ExitCode(res.Summary))
}

func TestRunIsDeterministic(t *testing.T) {
	games := map[string]string{}
	for i := 0; i < 5; i++ {
		games[fmt.Sprintf("g%d", i)] = complete[:len(complete)/(i+1)]
	}
	src := newSource(t, games)
	a, err := fixedScanner(catalog.Default(), src).Run(context.Background(), nil)
	require.NoError(t, err)
	b, err := fixedScanner(catalog.Default(), src).Run(context.Background(), nil)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("scan not deterministic:\n%s", diff)
	}
}

type brokenSource struct{}

func (brokenSource) Read(string) (string, error) { return "", errors.New("io") }
func (brokenSource) List() ([]string, error)     { return nil, errors.New("no dir") }

func TestListErrorPropagates(t *testing.T) {
	_, err := New(catalog.Default(), brokenSource{}).Run(context.Background(), nil)
	assert.Error(t, err)

	res, err := New(catalog.Default(), brokenSource{}).Run(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.True(t, res.Reports[0].IsMissing())
}
