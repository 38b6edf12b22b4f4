// Package watch re-validates a document chain whenever one of its
// documents changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/config"
)

// DefaultDebounce is how long the watcher waits after the last change
// before re-validating.
const DefaultDebounce = 500 * time.Millisecond

// ValidateFunc produces a fresh chain report.
type ValidateFunc func(ctx context.Context) (*chain.Report, error)

// Update is delivered after each debounced re-validation.
type Update struct {
	// Changed lists the document files that triggered the run, sorted.
	Changed []string
	Report  *chain.Report
	Err     error
}

// Watcher watches the files of a chain.
type Watcher struct {
	validate ValidateFunc
	onUpdate func(Update)
	debounce time.Duration
	logger   *slog.Logger

	files map[string]bool // documents configured as single files
	trees []string        // documents configured as directories
	dirs  []string        // directories handed to fsnotify

	pending map[string]bool // touched since the last run; owned by Run
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New prepares a watcher over every document path of cfg. onUpdate is
// called from the watcher goroutine, one update at a time.
func New(cfg *config.Config, validate ValidateFunc, onUpdate func(Update), opts ...Option) (*Watcher, error) {
	if validate == nil || onUpdate == nil {
		return nil, errors.New("watch: validate and onUpdate are required")
	}
	w := &Watcher{
		validate: validate,
		onUpdate: onUpdate,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		files:    make(map[string]bool),
		pending:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]bool)
	for _, docType := range cfg.Order() {
		for _, p := range cfg.DocumentPaths(docType) {
			info, err := os.Stat(p)
			if err == nil && info.IsDir() {
				w.trees = append(w.trees, p)
				if err := collectDirs(p, dirs); err != nil {
					return nil, err
				}
				continue
			}
			// Missing files are watched through their directory so that
			// creating them triggers a run.
			w.files[p] = true
			if _, err := os.Stat(filepath.Dir(p)); err == nil {
				dirs[filepath.Dir(p)] = true
			}
		}
	}
	for d := range dirs {
		w.dirs = append(w.dirs, d)
	}
	sort.Strings(w.dirs)
	if len(w.dirs) == 0 {
		return nil, fmt.Errorf("watch: no existing directory holds a chain document")
	}
	return w, nil
}

// Dirs returns the directories being watched.
func (w *Watcher) Dirs() []string {
	return append([]string(nil), w.dirs...)
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()

	for _, d := range w.dirs {
		if err := fsw.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	w.logger.Info("watching chain documents", "dirs", len(w.dirs), "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				w.addTree(fsw, event.Name)
			}
			if event.Op == fsnotify.Chmod || !w.relevant(event.Name) {
				continue
			}
			w.pending[event.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// flush re-validates once for every change collected since the last run.
func (w *Watcher) flush(ctx context.Context) {
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]bool)
	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)

	report, err := w.validate(ctx)
	if err != nil {
		w.logger.Warn("re-validation failed", "error", err)
	} else {
		w.logger.Info("chain re-validated", "changed", len(changed), "issues", report.Issues())
	}
	w.onUpdate(Update{Changed: changed, Report: report, Err: err})
}

// relevant reports whether path is a chain document or a markdown file
// inside a document directory.
func (w *Watcher) relevant(path string) bool {
	path = filepath.Clean(path)
	if w.files[path] {
		return true
	}
	if !strings.EqualFold(filepath.Ext(path), ".md") {
		return false
	}
	for _, root := range w.trees {
		if rel, err := filepath.Rel(root, path); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

// addTree starts watching a directory created inside a document tree.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	for _, root := range w.trees {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			if err := fsw.Add(path); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
			return
		}
	}
}

// collectDirs adds root and every non-hidden directory below it.
func collectDirs(root string, into map[string]bool) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		into[path] = true
		return nil
	})
}
