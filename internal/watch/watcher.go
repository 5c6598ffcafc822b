// Package watch turns filesystem events below the source root into debounced
// batches of changed files.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
)

const defaultDebounce = 300 * time.Millisecond

// Config holds the parameters for a Watcher.
type Config struct {
	// Dir is the directory to watch recursively.
	Dir string

	// Ignore are doublestar patterns, relative to Dir, that never trigger a
	// batch. Matching directories are not descended into.
	Ignore []string

	// Debounce is the quiet period after the last event before OnChange fires.
	Debounce time.Duration

	// OnChange receives the sorted, deduplicated files (relative to Dir) that
	// still exist when the batch fires.
	OnChange func(ctx context.Context, changed []string)
}

// Watcher monitors Dir and fires OnChange after the debounce window.
type Watcher struct {
	cfg      Config
	dir      string
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// New validates cfg and registers every non-ignored directory below Dir.
func New(cfg Config) (*Watcher, error) {
	for _, p := range cfg.Ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch directory: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w := &Watcher{
		cfg:      cfg,
		dir:      dir,
		fsw:      fsw,
		debounce: debounce,
		pending:  make(map[string]struct{}),
	}
	if err := w.addTree(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done. A pending batch is dropped on
// shutdown.
func (w *Watcher) Run(ctx context.Context) error {
	slog.Info("Watching for changes", logfields.Path(w.dir), logfields.Duration(w.debounce))
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("file watcher event channel closed")
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("file watcher error channel closed")
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	rel, ok := w.rel(event.Name)
	if !ok || w.ignored(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", logfields.Path(rel), logfields.Error(err))
			}
			w.schedule(ctx, w.filesBelow(event.Name)...)
			return
		}
	}
	slog.Debug("Change detected", logfields.Path(rel), slog.String("op", event.Op.String()))
	w.schedule(ctx, rel)
}

func (w *Watcher) schedule(ctx context.Context, paths ...string) {
	if len(paths) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		w.pending[p] = struct{}{}
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.fire(ctx) })
}

func (w *Watcher) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	w.mu.Lock()
	candidates := slices.Sorted(maps.Keys(w.pending))
	clear(w.pending)
	w.mu.Unlock()

	changed := make([]string, 0, len(candidates))
	for _, rel := range candidates {
		info, err := os.Stat(filepath.Join(w.dir, filepath.FromSlash(rel)))
		if err == nil && info.Mode().IsRegular() {
			changed = append(changed, rel)
		}
	}
	if len(changed) == 0 || w.cfg.OnChange == nil {
		return
	}
	w.cfg.OnChange(ctx, changed)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("Skipping unreadable path", logfields.Path(p), logfields.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(p); ok && rel != "." && w.ignored(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) filesBelow(root string) []string {
	var out []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(p); ok && !w.ignored(rel) {
			out = append(out, rel)
		}
		return nil
	})
	return out
}

func (w *Watcher) rel(p string) (string, bool) {
	rel, err := filepath.Rel(w.dir, p)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || len(rel) > 2 && rel[:3] == "../" {
		return "", false
	}
	return fsys.Clean(rel), true
}

func (w *Watcher) ignored(rel string) bool {
	for _, pat := range w.cfg.Ignore {
		if doublestar.MatchUnvalidated(pat, rel) || doublestar.MatchUnvalidated(pat, rel+"/") {
			return true
		}
	}
	return false
}
