// Package watcher runs synchronization passes when notebooks change on disk.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/nbpress/internal/publish"
)

// DefaultDebounce is the quiet period after the last event before a pass runs.
const DefaultDebounce = 300 * time.Millisecond

// PassFunc runs one synchronization pass.
type PassFunc func() (*publish.Report, error)

// ReportCallback receives the report of every successful watcher-driven pass.
type ReportCallback func(*publish.Report)

// Watcher debounces fsnotify events on a notebook directory into passes.
type Watcher struct {
	dir      string
	suffix   string
	debounce time.Duration
	pass     PassFunc
	onReport ReportCallback
	logger   *slog.Logger
}

// New creates a watcher for files named *.suffix directly under dir.
// A non-positive debounce uses DefaultDebounce.
func New(dir, suffix string, debounce time.Duration, pass PassFunc, onReport ReportCallback, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		suffix:   "." + strings.TrimPrefix(suffix, "."),
		debounce: debounce,
		pass:     pass,
		onReport: onReport,
		logger:   logger,
	}
}

// Run watches until ctx is cancelled. Passes run on this goroutine, one at a
// time; events that arrive during a pass schedule exactly one more.
// A failing pass is logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", w.dir), slog.String("suffix", w.suffix))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerCh = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			w.runPass()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("watcher: event", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether ev can change a pass result. Chmod is included
// because a bare mtime change (touch) arrives as Chmod on Linux.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) == 0 {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, w.suffix)
}

func (w *Watcher) runPass() {
	report, err := w.pass()
	if err != nil {
		w.logger.Error("watcher: pass failed", slog.String("error", err.Error()))
		return
	}
	if w.onReport != nil {
		w.onReport(report)
	}
}
