package fixer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/detect"
	"github.com/ajranjith/gamecheck/internal/logging"
	"github.com/ajranjith/gamecheck/internal/store"
)

const plainGame = `<!DOCTYPE html>
<html>
<head>
<style>
body { background: #000; }
</style>
</head>
<body>
<canvas id="board"></canvas>
<script>
const ctx = new AudioContext();
const best = localStorage.getItem('best') || 0;
document.getElementById('start').addEventListener('click', start);
function start() { music.play(); }
</script>
</body>
</html>
`

type memIndex struct {
	backups []store.Backup
	err     error
}

func (m *memIndex) RecordBackup(_ context.Context, b store.Backup) error {
	if m.err != nil {
		return m.err
	}
	m.backups = append(m.backups, b)
	return nil
}

type fixture struct {
	st    *store.FS
	idx   *memIndex
	eng   *Engine
	cat   *catalog.Catalog
	games string
}

func newFixture(t *testing.T, games map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "games")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	st := store.New(dir, filepath.Join(root, ".gamecheck", "backups"))
	var names []string
	for name, text := range games {
		require.NoError(t, st.Write(name, text))
		names = append(names, name)
	}
	return newFixtureWith(t, st, catalog.Default().WithTargets(names))
}

func newFixtureWith(t *testing.T, st *store.FS, cat *catalog.Catalog) *fixture {
	t.Helper()
	idx := &memIndex{}
	return &fixture{
		st:    st,
		idx:   idx,
		cat:   cat,
		games: st.GamesDir(),
		eng:   New(cat, st, WithIndex(idx), WithLogger(logging.Discard())),
	}
}

func (f *fixture) backups(t *testing.T, name string) []store.Backup {
	t.Helper()
	list, err := f.st.Backups(name)
	require.NoError(t, err)
	return list
}

func TestInjectAppliesBeforeAnchor(t *testing.T) {
	f := newFixture(t, map[string]string{"snake": plainGame})

	out, err := f.eng.Apply(context.Background(), "responsive-css")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, StatusApplied, out[0].Status)
	assert.Equal(t, 1, out[0].Changes)
	require.NotNil(t, out[0].Backup)

	text, err := f.st.Read("snake")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(text, catalog.MarkerResponsiveCSS))
	assert.Less(t, strings.Index(text, catalog.MarkerResponsiveCSS), strings.Index(text, "</style>"))

	bs := f.backups(t, "snake")
	require.Len(t, bs, 1)
	saved, err := os.ReadFile(bs[0].Path)
	require.NoError(t, err)
	assert.Equal(t, plainGame, string(saved))
	require.Len(t, f.idx.backups, 1)
	assert.Equal(t, "responsive-css", f.idx.backups[0].Fix)
}

func TestApplyTwiceIsNoop(t *testing.T) {
	f := newFixture(t, map[string]string{"snake": plainGame})
	ctx := context.Background()

	for _, name := range []string{"responsive-css", "motion-css", "error-handlers", "audio-fallback", "null-safety"} {
		_, err := f.eng.Apply(ctx, name)
		require.NoError(t, err)
		once, err := f.st.Read("snake")
		require.NoError(t, err)
		backupsAfterOnce := len(f.backups(t, "snake"))

		out, err := f.eng.Apply(ctx, name)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, StatusSkipped, out[0].Status, name)
		assert.Equal(t, ReasonAlreadyApplied, out[0].Reason, name)

		twice, err := f.st.Read("snake")
		require.NoError(t, err)
		assert.Equal(t, once, twice, name)
		assert.Len(t, f.backups(t, "snake"), backupsAfterOnce, name)
	}
}

func TestCompliantArtifactSkipped(t *testing.T) {
	game := `<html><head><meta name="viewport" content="width=device-width">
<style>@media (max-width: 600px) { canvas { max-width: 100%; width: 90vw; } }</style></head><body></body></html>`
	f := newFixture(t, map[string]string{"pong": game})

	chk, _ := f.cat.Check("responsive-layout")
	res := detect.Run(chk, game)
	require.Equal(t, catalog.StatusPass, res.Status)
	require.Equal(t, 100, res.Score)

	out, err := f.eng.Apply(context.Background(), "responsive-css")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, StatusSkipped, out[0].Status)
	assert.Equal(t, ReasonAlreadyApplied, out[0].Reason)
	assert.Empty(t, f.backups(t, "pong"))
	assert.Empty(t, f.idx.backups)
}

func TestMissingAnchorLeavesContent(t *testing.T) {
	game := "<html><body><p>no styles here</p></body></html>"
	f := newFixture(t, map[string]string{"tetris": game})

	out, err := f.eng.Apply(context.Background(), "responsive-css")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, StatusError, out[0].Status)
	assert.Equal(t, ReasonAnchorNotFound, out[0].Reason)
	assert.True(t, errors.Is(out[0].Err, ErrAnchorNotFound))

	text, err := f.st.Read("tetris")
	require.NoError(t, err)
	assert.Equal(t, game, text)
	assert.Empty(t, f.backups(t, "tetris"))
}

func TestErrorsAreIsolatedPerArtifact(t *testing.T) {
	root := t.TempDir()
	st := store.New(filepath.Join(root, "games"), filepath.Join(root, "backups"))
	require.NoError(t, st.Write("good", plainGame))
	f := newFixtureWith(t, st, catalog.Default().WithTargets([]string{"ghost", "good"}))

	out, err := f.eng.Apply(context.Background(), "error-handlers")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, StatusError, out[0].Status)
	assert.Equal(t, ReasonNotFound, out[0].Reason)
	assert.True(t, errors.Is(out[0].Err, store.ErrNotFound))
	assert.Equal(t, StatusApplied, out[1].Status)
}

func TestRewriteCountsChanges(t *testing.T) {
	f := newFixture(t, map[string]string{"snake": plainGame})

	out, err := f.eng.Apply(context.Background(), "audio-fallback")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, StatusApplied, out[0].Status)
	assert.Equal(t, 2, out[0].Changes)

	text, err := f.st.Read("snake")
	require.NoError(t, err)
	assert.Contains(t, text, "new (window.AudioContext || window.webkitAudioContext)(")
	assert.Contains(t, text, "music.play().catch(function () {});")
	assert.True(t, strings.HasSuffix(text, catalog.MarkerAudioFallback+"\n</html>\n"))
}

func TestRewriteMarkerStaysInsideDocument(t *testing.T) {
	f := newFixture(t, map[string]string{"snake": plainGame})
	ctx := context.Background()

	for _, name := range []string{"audio-fallback", "null-safety"} {
		out, err := f.eng.Apply(ctx, name)
		require.NoError(t, err)
		require.Len(t, out, 1)
		require.Equal(t, StatusApplied, out[0].Status, out[0].Reason)
	}

	text, err := f.st.Read("snake")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(text, "</html>\n"))
	end := strings.LastIndex(text, "</html>")
	assert.Less(t, strings.Index(text, catalog.MarkerAudioFallback), end)
	assert.Less(t, strings.Index(text, catalog.MarkerNullSafety), end)
}

func TestRewriteMarkerWithoutHTMLClose(t *testing.T) {
	f := newFixture(t, map[string]string{"frag": "<script>music.play();</script>"})

	out, err := f.eng.Apply(context.Background(), "audio-fallback")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, StatusApplied, out[0].Status, out[0].Reason)

	text, err := f.st.Read("frag")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(text, "\n"+catalog.MarkerAudioFallback+"\n"))
}

func TestRewriteWithNoMatchesStillBacksUp(t *testing.T) {
	game := "<html><body><script>let x = 1;</script></body></html>"
	f := newFixture(t, map[string]string{"quiet": game})

	out, err := f.eng.Apply(context.Background(), "null-safety")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, StatusApplied, out[0].Status)
	assert.Equal(t, 0, out[0].Changes)
	assert.Len(t, f.backups(t, "quiet"), 1)
}

func TestMonotonicCompliance(t *testing.T) {
	f := newFixture(t, map[string]string{"snake": plainGame})
	ctx := context.Background()

	for _, fx := range f.cat.Fixes() {
		before, err := f.st.Read("snake")
		require.NoError(t, err)

		_, err = f.eng.Apply(ctx, fx.Name)
		require.NoError(t, err)

		after, err := f.st.Read("snake")
		require.NoError(t, err)
		for _, name := range fx.Checks {
			chk, _ := f.cat.Check(name)
			b, a := detect.Run(chk, before), detect.Run(chk, after)
			assert.GreaterOrEqual(t, a.Status.Rank(), b.Status.Rank(), "%s/%s", fx.Name, name)
			assert.GreaterOrEqual(t, a.Score, b.Score, "%s/%s", fx.Name, name)
		}
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	f := newFixture(t, map[string]string{"snake": plainGame})

	out, err := f.eng.DryRun(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 5)
	for _, o := range out {
		assert.Equal(t, StatusPlanned, o.Status, o.Fix)
		assert.Contains(t, o.Diff, "+++ b/snake.html", o.Fix)
	}

	text, err := f.st.Read("snake")
	require.NoError(t, err)
	assert.Equal(t, plainGame, text)
	assert.Empty(t, f.backups(t, "snake"))

	patch := Patch(out)
	assert.Contains(t, patch, "# fix responsive-css on snake")
	assert.Contains(t, patch, "+"+catalog.MarkerMotionCSS)
}

func TestApplyAllCatalogOrderAndUnknownFix(t *testing.T) {
	f := newFixture(t, map[string]string{"snake": plainGame})
	ctx := context.Background()

	out, err := f.eng.ApplyAll(ctx, "null-safety", "responsive-css")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "responsive-css", out[0].Fix)
	assert.Equal(t, "null-safety", out[1].Fix)

	_, err = f.eng.Apply(ctx, "sparkles")
	assert.ErrorIs(t, err, ErrUnknownFix)
	_, err = f.eng.ApplyAll(ctx, "sparkles")
	assert.ErrorIs(t, err, ErrUnknownFix)
}

func TestIndexFailureDoesNotBlockWrite(t *testing.T) {
	f := newFixture(t, map[string]string{"snake": plainGame})
	f.idx.err = errors.New("disk full")

	out, err := f.eng.Apply(context.Background(), "motion-css")
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, out[0].Status)
	assert.Len(t, f.backups(t, "snake"), 1)
}

func TestRegressingRewriteIsBlocked(t *testing.T) {
	chk := catalog.Check{
		Name:     "keepers",
		Detector: catalog.MarkerSet{catalog.Literal("keep", "keep"), catalog.Literal("other", "other")},
		Grader:   catalog.CountGrader{WarnAt: 1},
	}
	cat, err := catalog.New(
		[]catalog.Category{{Name: "misc", Checks: []catalog.Check{chk}}},
		[]catalog.Fix{{
			Name:     "vandal",
			Kind:     catalog.FixRewrite,
			Checks:   []string{"keepers"},
			Marker:   "<!-- vandal -->",
			Rewrites: []catalog.Rewrite{catalog.Replace(`keep`, `gone`)},
			Targets:  []string{"a"},
		}},
	)
	require.NoError(t, err)

	root := t.TempDir()
	st := store.New(filepath.Join(root, "games"), filepath.Join(root, "backups"))
	require.NoError(t, st.Write("a", "keep"))
	f := newFixtureWith(t, st, cat)

	out, err := f.eng.Apply(context.Background(), "vandal")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, StatusError, out[0].Status)
	var se *StructuralError
	require.ErrorAs(t, out[0].Err, &se)
	assert.Contains(t, se.Reason, "regressed")

	text, err := st.Read("a")
	require.NoError(t, err)
	assert.Equal(t, "keep", text)
	assert.Empty(t, f.backups(t, "a"))
}

func TestContextCancelled(t *testing.T) {
	f := newFixture(t, map[string]string{"snake": plainGame})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.eng.Apply(ctx, "responsive-css")
	assert.ErrorIs(t, err, context.Canceled)
}
