package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajranjith/gamecheck/internal/store"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "out", FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestBackupIndex(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t)

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	older := store.Backup{ID: "a", Artifact: "snake", Path: "/b/a", CreatedAt: base, Fix: "responsive-css"}
	newer := store.Backup{ID: "b", Artifact: "snake", Path: "/b/b", CreatedAt: base.Add(time.Second), Fix: "motion-css"}
	other := store.Backup{ID: "c", Artifact: "pong", Path: "/b/c", CreatedAt: base.Add(time.Hour)}
	for _, b := range []store.Backup{older, newer, other} {
		require.NoError(t, l.RecordBackup(ctx, b))
	}

	latest, err := l.LatestBackup(ctx, "snake")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
	assert.Equal(t, "motion-css", latest.Fix)
	assert.True(t, latest.CreatedAt.Equal(newer.CreatedAt))

	list, err := l.Backups(ctx, "snake")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"b", "a"}, []string{list[0].ID, list[1].ID})

	got, err := l.Backup(ctx, "snake", "a")
	require.NoError(t, err)
	assert.Equal(t, "/b/a", got.Path)

	_, err = l.LatestBackup(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = l.Backup(ctx, "snake", "zzz")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Error(t, l.RecordBackup(ctx, older), "duplicate backup ids are rejected")
}

func TestRunHistory(t *testing.T) {
	ctx := context.Background()
	l := openLedger(t)

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for i, kind := range []string{"report", "fix", "report"} {
		require.NoError(t, l.RecordRun(ctx, Run{
			ID:        kind + string(rune('0'+i)),
			Kind:      kind,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Coverage:  80 + i,
			Passed:    i,
		}))
	}

	runs, err := l.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "report2", runs[0].ID)
	assert.Equal(t, 82, runs[0].Coverage)
	assert.Equal(t, "fix1", runs[1].ID)

	all, err := l.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.RecordBackup(ctx, store.Backup{ID: "x", Artifact: "snake", Path: "p", CreatedAt: time.Now()}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	b, err := l.LatestBackup(ctx, "snake")
	require.NoError(t, err)
	assert.Equal(t, "x", b.ID)
}
