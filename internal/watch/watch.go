// Package watch reruns the docs pipeline when sources under the docs
// directory change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	derrors "git.home.luguber.info/inful/docmake/internal/foundation/errors"
	"git.home.luguber.info/inful/docmake/internal/logfields"
	"git.home.luguber.info/inful/docmake/internal/pipeline"
)

// DefaultIgnoreDirs are directory names never watched. _build is where the
// docs Makefile writes its output, so watching it would loop forever.
var DefaultIgnoreDirs = []string{"_build", "__pycache__"}

// Runner is satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Report, error)
}

// Watcher monitors a docs tree and triggers debounced rebuilds.
type Watcher struct {
	root     string
	debounce time.Duration
	ignore   map[string]bool
	skip     []string
	runner   Runner
	logger   *slog.Logger
}

// New creates a Watcher over root. Paths in skip (absolute) are excluded along
// with anything below them.
func New(root string, debounce time.Duration, runner Runner, logger *slog.Logger, skip ...string) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	ignore := make(map[string]bool, len(DefaultIgnoreDirs))
	for _, d := range DefaultIgnoreDirs {
		ignore[d] = true
	}
	cleaned := make([]string, 0, len(skip))
	for _, s := range skip {
		if s != "" {
			cleaned = append(cleaned, filepath.Clean(s))
		}
	}
	return &Watcher{
		root:     filepath.Clean(root),
		debounce: debounce,
		ignore:   ignore,
		skip:     cleaned,
		runner:   runner,
		logger:   logger.With(logfields.Subsystem("watch")),
	}
}

// Run blocks until ctx is done. Reruns happen one at a time on the calling
// goroutine; a failed rerun is logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil {
			w.logger.Error("Error closing file watcher", logfields.Error(cerr))
		}
	}()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("Watching docs sources", logfields.Dir(w.root), "debounce", w.debounce.String())

	triggers := make(chan struct{}, 1)
	go w.watchLoop(ctx, fw, triggers)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping watcher")
			return nil
		case <-triggers:
			report, err := w.runner.Run(ctx, pipeline.Request{})
			if err != nil && ctx.Err() == nil {
				w.logger.Error("Rebuild failed", logfields.RunID(report.RunID), logfields.Error(err))
			}
		}
	}
}

// watchLoop turns bursts of events into a single trigger after the debounce
// window has been quiet.
func (w *Watcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher, triggers chan<- struct{}) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	fire := func() {
		select {
		case triggers <- struct{}{}:
		default:
			// rerun already pending
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if w.skipped(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// new directories need their own watch
				if err := w.addTree(fw, event.Name); err != nil {
					w.logger.Debug("Could not watch new path", logfields.Path(event.Name), logfields.Error(err))
				}
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("Docs source changed", logfields.Path(event.Name), "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, fire)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", logfields.Error(err))
		}
	}
}

// addTree watches dir and every non-ignored directory below it. A path that is
// not a directory is ignored.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.skipped(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to watch directory").
			WithContext("dir", dir).
			Build()
	}
	return nil
}

// skipped reports whether path is hidden, inside an ignored directory, or at
// or below one of the skip paths.
func (w *Watcher) skipped(path string) bool {
	path = filepath.Clean(path)
	for _, s := range w.skip {
		if path == s || strings.HasPrefix(path, s+string(filepath.Separator)) {
			return true
		}
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if w.ignore[part] || (strings.HasPrefix(part, ".") && part != "..") {
			return true
		}
	}
	return false
}
