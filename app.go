package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ajranjith/gamecheck/internal/catalog"
	"github.com/ajranjith/gamecheck/internal/config"
	"github.com/ajranjith/gamecheck/internal/fixer"
	"github.com/ajranjith/gamecheck/internal/ledger"
	"github.com/ajranjith/gamecheck/internal/logging"
	"github.com/ajranjith/gamecheck/internal/report"
	"github.com/ajranjith/gamecheck/internal/store"
)

// app is the resolved state shared by every command.
type app struct {
	cfg     config.Config
	cfgPath string
	cat     *catalog.Catalog
	store   *store.FS
	// ledger is nil when the database could not be opened; callers fall
	// back to the backup directory.
	ledger *ledger.Ledger
	log    *slog.Logger
}

func loadApp() (*app, error) {
	cfg, cfgPath, err := config.Resolve(config.Flags{
		ConfigPath:    globalFlags.configPath,
		WorkspaceRoot: globalFlags.workspace,
		LogLevel:      globalFlags.logLevel,
		JSONLogs:      globalFlags.jsonLogs,
	})
	if err != nil {
		return nil, err
	}
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	format := "text"
	if cfg.Logging.JSON {
		format = "json"
	}
	logging.Init(level, format, logOutput)

	a := &app{
		cfg:     cfg,
		cfgPath: cfgPath,
		store:   store.New(cfg.GamesDir(), cfg.BackupDir()),
		log:     logging.New("cli"),
	}

	games := cfg.Games
	if len(games) == 0 {
		games, err = a.store.List()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("list games: %w", err)
		}
	}
	a.cat, err = catalog.Default().WithTargets(games).Retarget(cfg.Fixes)
	if err != nil {
		return nil, fmt.Errorf("fixes: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	l, err := ledger.Open(filepath.Join(cfg.OutputDir(), ledger.FileName))
	if err != nil {
		a.log.Warn("ledger unavailable", "error", err)
	} else {
		a.ledger = l
	}
	return a, nil
}

func (a *app) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.log.Warn("ledger close failed", "error", err)
		}
	}
}

// games returns the artifacts a scan should cover; nil means discover.
func (a *app) games() []string {
	return a.cfg.Games
}

func (a *app) reportOptions() report.Options {
	opts := report.TerminalOptions(os.Stdout)
	if globalFlags.noColor {
		opts.Color = false
	}
	return opts
}

func (a *app) engineFor(cat *catalog.Catalog) *fixer.Engine {
	opts := []fixer.Option{fixer.WithLogger(logging.New("fixer"))}
	if a.ledger != nil {
		opts = append(opts, fixer.WithIndex(a.ledger))
	}
	return fixer.New(cat, a.store, opts...)
}

func (a *app) recordRun(ctx context.Context, r ledger.Run) {
	if a.ledger == nil {
		return
	}
	if err := a.ledger.RecordRun(ctx, r); err != nil {
		a.log.Warn("ledger record failed", "run_id", r.ID, "error", err)
	}
}
