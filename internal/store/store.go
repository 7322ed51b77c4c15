// Package store reads, writes and backs up HTML game artifacts on disk.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ajranjith/gamecheck/internal/support"
)

// Ext is the artifact file extension.
const Ext = ".html"

const (
	backupExt = ".html.bak"
	// BackupTimeLayout sorts lexically in time order.
	BackupTimeLayout = "20060102T150405.000000000Z"
)

// ErrNotFound is returned when an artifact or backup does not exist.
var ErrNotFound = errors.New("artifact not found")

// Backup is an immutable copy of an artifact's content.
type Backup struct {
	ID        string    `json:"id"`
	Artifact  string    `json:"artifact"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Fix       string    `json:"fix,omitempty"`
}

// FS stores artifacts as <gamesDir>/<name>.html and backups under backupDir.
type FS struct {
	gamesDir  string
	backupDir string
	now       func() time.Time
}

// New returns a store rooted at the two directories.
func New(gamesDir, backupDir string) *FS {
	return &FS{gamesDir: gamesDir, backupDir: backupDir, now: time.Now}
}

func (s *FS) GamesDir() string  { return s.gamesDir }
func (s *FS) BackupDir() string { return s.backupDir }

// Path returns the file path for an artifact name.
func (s *FS) Path(name string) string {
	return filepath.Join(s.gamesDir, name+Ext)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

// Read returns an artifact's content.
func (s *FS) Read(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(support.StripBOM(data)), nil
}

// Write replaces an artifact's content atomically.
func (s *FS) Write(name, text string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := support.WriteFileAtomic(s.Path(name), []byte(text)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// List returns the names of every artifact in the games directory, sorted.
func (s *FS) List() ([]string, error) {
	entries, err := os.ReadDir(s.gamesDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Ext))
	}
	sort.Strings(names)
	return names, nil
}

// Backup writes text as a new backup of name. The file is created
// exclusively so an existing backup is never overwritten.
func (s *FS) Backup(name, fix, text string) (Backup, error) {
	if err := validName(name); err != nil {
		return Backup{}, err
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return Backup{}, err
	}
	at := s.now().UTC()
	for attempt := 0; attempt < 100; attempt++ {
		id := at.Format(BackupTimeLayout)
		path := filepath.Join(s.backupDir, name+"."+id+backupExt)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			at = at.Add(time.Nanosecond)
			continue
		}
		if err != nil {
			return Backup{}, err
		}
		if _, err := f.WriteString(text); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return Backup{}, err
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return Backup{}, err
		}
		if err := f.Close(); err != nil {
			return Backup{}, err
		}
		return Backup{ID: id, Artifact: name, Path: path, CreatedAt: at, Fix: fix}, nil
	}
	return Backup{}, fmt.Errorf("backup %s: could not allocate a unique name", name)
}

// Backups lists the backups of name found on disk, newest first. Fix is not
// recoverable from the file name and is left empty.
func (s *FS) Backups(name string) ([]Backup, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	prefix := name + "."
	var out []Backup
	for _, e := range entries {
		fn := e.Name()
		if e.IsDir() || !strings.HasPrefix(fn, prefix) || !strings.HasSuffix(fn, backupExt) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(fn, prefix), backupExt)
		at, err := time.Parse(BackupTimeLayout, id)
		if err != nil {
			// a different artifact whose name shares our prefix
			continue
		}
		out = append(out, Backup{ID: id, Artifact: name, Path: filepath.Join(s.backupDir, fn), CreatedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Restore copies a backup's content over its artifact.
func (s *FS) Restore(b Backup) error {
	data, err := os.ReadFile(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("backup %s: %w", b.ID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return s.Write(b.Artifact, string(data))
}
