// Package ledger keeps the backup index and run history in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ajranjith/gamecheck/internal/store"
)

// FileName is the ledger database name inside the output directory.
const FileName = "ledger.db"

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS backups (
	id         TEXT NOT NULL,
	artifact   TEXT NOT NULL,
	path       TEXT NOT NULL,
	fix        TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	PRIMARY KEY (artifact, id)
);
CREATE INDEX IF NOT EXISTS idx_backups_artifact ON backups(artifact, created_at);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	artifacts   INTEGER NOT NULL DEFAULT 0,
	coverage    INTEGER NOT NULL DEFAULT 0,
	passed      INTEGER NOT NULL DEFAULT 0,
	warnings    INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	missing     INTEGER NOT NULL DEFAULT 0,
	exit_code   INTEGER NOT NULL DEFAULT 0,
	report_path TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Run is one report or fix invocation.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	Artifacts  int       `json:"artifacts"`
	Coverage   int       `json:"coverage"`
	Passed     int       `json:"passed"`
	Warnings   int       `json:"warnings"`
	Failed     int       `json:"failed"`
	Missing    int       `json:"missing"`
	ExitCode   int       `json:"exit_code"`
	ReportPath string    `json:"report_path,omitempty"`
}

// Ledger is a handle on the ledger database.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+filepath.ToSlash(path)+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// RecordBackup indexes a backup.
func (l *Ledger) RecordBackup(ctx context.Context, b store.Backup) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO backups (id, artifact, path, fix, created_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Artifact, b.Path, b.Fix, b.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record backup %s/%s: %w", b.Artifact, b.ID, err)
	}
	return nil
}

// Backups lists the indexed backups of artifact, newest first.
func (l *Ledger) Backups(ctx context.Context, artifact string) ([]store.Backup, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, artifact, path, fix, created_at FROM backups WHERE artifact = ? ORDER BY created_at DESC, id DESC`,
		artifact)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LatestBackup returns the most recent backup of artifact.
func (l *Ledger) LatestBackup(ctx context.Context, artifact string) (store.Backup, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, artifact, path, fix, created_at FROM backups WHERE artifact = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		artifact)
	b, err := scanBackup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Backup{}, fmt.Errorf("no backup for %s: %w", artifact, store.ErrNotFound)
	}
	return b, err
}

// Backup returns a backup by artifact and id.
func (l *Ledger) Backup(ctx context.Context, artifact, id string) (store.Backup, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, artifact, path, fix, created_at FROM backups WHERE artifact = ? AND id = ?`,
		artifact, id)
	b, err := scanBackup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Backup{}, fmt.Errorf("backup %s/%s: %w", artifact, id, store.ErrNotFound)
	}
	return b, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBackup(s scanner) (store.Backup, error) {
	var b store.Backup
	var created string
	if err := s.Scan(&b.ID, &b.Artifact, &b.Path, &b.Fix, &created); err != nil {
		return store.Backup{}, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return store.Backup{}, fmt.Errorf("backup %s: bad timestamp %q: %w", b.ID, created, err)
	}
	b.CreatedAt = t
	return b, nil
}

// RecordRun stores a run summary.
func (l *Ledger) RecordRun(ctx context.Context, r Run) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, started_at, artifacts, coverage, passed, warnings, failed, missing, exit_code, report_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.StartedAt.UTC().Format(timeLayout), r.Artifacts, r.Coverage,
		r.Passed, r.Warnings, r.Failed, r.Missing, r.ExitCode, r.ReportPath)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, started_at, artifacts, coverage, passed, warnings, failed, missing, exit_code, report_path
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &r.Kind, &started, &r.Artifacts, &r.Coverage,
			&r.Passed, &r.Warnings, &r.Failed, &r.Missing, &r.ExitCode, &r.ReportPath); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: bad timestamp %q: %w", r.ID, started, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
