package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ajranjith/gamecheck/internal/report"
	"github.com/ajranjith/gamecheck/internal/scan"
	"github.com/ajranjith/gamecheck/internal/store"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run the report whenever a game changes",
		Long: `Watch the games directory and re-run the report after changes settle.
Bursts of file events are collapsed into one run by the watch.debounceMs
setting. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd.OutOrStdout(), nil)
		},
	}
}

// watch runs one report immediately, then one per settled burst of changes
// to *.html files, until ctx is done. ran, when set, receives the path of
// every record written.
func (a *app) watch(ctx context.Context, w io.Writer, ran chan<- string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}
	defer watcher.Close()

	dir := a.cfg.GamesDir()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	debounce := time.Duration(a.cfg.Watch.DebounceMs) * time.Millisecond
	timer := time.NewTimer(debounce)
	timer.Stop()
	errLog := rate.Sometimes{First: 1, Interval: 10 * time.Second}
	opts := a.reportOptions()

	trigger := func() {
		// nil games means rediscover, so new files are picked up
		res, err := scan.New(a.cat, a.store).Run(ctx, a.games())
		if err != nil {
			errLog.Do(func() { a.log.Error("watch scan failed", "error", err) })
			return
		}
		rec, path := a.finishRun(ctx, report.KindWatch, a.cat, res, nil)
		report.Render(w, rec, opts)
		if ran != nil {
			select {
			case ran <- path:
			case <-ctx.Done():
			}
		}
	}

	a.log.Info("watching", "dir", dir, "debounce", debounce)
	trigger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			a.log.Debug("change detected", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			timer.Reset(debounce)
		case <-timer.C:
			trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			errLog.Do(func() { a.log.Error("watch error", "error", err) })
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, store.Ext) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
