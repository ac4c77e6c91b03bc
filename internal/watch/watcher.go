// Package watch rebuilds when model sources change.
//
// A Watcher monitors a set of roots (directories or single files) and calls
// OnChange once per quiet period with every path that changed in it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before OnChange fires.
const DefaultDebounce = 300 * time.Millisecond

var defaultIgnores = []string{
	"**/.git/**",
	"**/.*.swp",
	"**/*~",
	"**/.DS_Store",
}

// Config holds the parameters for a Watcher.
type Config struct {
	// Roots are directories watched recursively, or single files.
	Roots []string

	// Patterns select files below directory roots, matched against the path
	// relative to the root. Empty matches everything. File roots always match.
	Patterns []string

	// Ignore excludes paths relative to a directory root, in addition to the
	// built-in ignores. Absolute directories listed in IgnoreDirs are never
	// entered.
	Ignore     []string
	IgnoreDirs []string

	Debounce time.Duration

	// OnChange receives the sorted absolute paths that changed.
	OnChange func(ctx context.Context, changed []string) error

	Logger *slog.Logger
}

// Watcher monitors roots and fires a debounced callback. Run may be called
// once.
type Watcher struct {
	cfg        Config
	fsw        *fsnotify.Watcher
	dirs       []string
	files      map[string]bool
	ignoreDirs []string
	ignores    []string
	debounce   time.Duration
	logger     *slog.Logger
	started    atomic.Bool
}

// New validates cfg and registers every root.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.New("watch: no roots to watch")
	}
	for _, set := range [][]string{cfg.Patterns, cfg.Ignore} {
		for _, pat := range set {
			if !doublestar.ValidatePattern(pat) {
				return nil, fmt.Errorf("watch: invalid pattern %q", pat)
			}
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		files:    make(map[string]bool),
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: debounce,
		logger:   logger,
	}
	for _, d := range cfg.IgnoreDirs {
		if abs, err := filepath.Abs(d); err == nil {
			w.ignoreDirs = append(w.ignoreDirs, abs)
		}
	}
	if err := w.addRoots(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRoots() error {
	for _, root := range w.cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("watch: resolve %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		if !info.IsDir() {
			// Editors often replace files, so watch the parent directory.
			w.files[abs] = true
			if err := w.fsw.Add(filepath.Dir(abs)); err != nil {
				return fmt.Errorf("watch: add %s: %w", abs, err)
			}
			continue
		}
		w.dirs = append(w.dirs, abs)
		if err := w.addTree(abs); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (strings.HasPrefix(d.Name(), ".") || w.isIgnoredDir(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %s: %w", dir, err)
	}
	return nil
}

// Run processes events until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			// Retry once the running callback is done.
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}
		w.logger.Debug("change detected", slog.Int("files", len(changed)))
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Error("rebuild failed", slog.String("error", err.Error()))
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close watcher", slog.String("error", err.Error()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.Matches(evt.Name) {
				continue
			}
			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// Matches reports whether an absolute path should trigger a rebuild.
func (w *Watcher) Matches(path string) bool {
	if w.files[path] {
		return true
	}
	if w.isIgnoredDir(path) {
		return false
	}
	for _, dir := range w.dirs {
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		if matchAny(w.ignores, rel) {
			return false
		}
		if len(w.cfg.Patterns) == 0 || matchAny(w.cfg.Patterns, rel) {
			return true
		}
	}
	return false
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	for _, dir := range w.dirs {
		if rel, err := filepath.Rel(dir, path); err == nil && !strings.HasPrefix(rel, "..") {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("watch new directory", slog.String("path", path), slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (w *Watcher) isIgnoredDir(path string) bool {
	for _, d := range w.ignoreDirs {
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// isFatal reports resource exhaustion, after which no events arrive.
func isFatal(err error) bool {
	return errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE)
}
