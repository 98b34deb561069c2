// Package watch reports changes to descriptor, policy and check files.
//
// Events are debounced: a burst of writes (editors often write, rename and
// chmod in quick succession) results in a single callback listing every file
// that changed during the burst.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// Config selects what a Watcher observes.
type Config struct {
	// Paths are files or directories. Directories are watched recursively.
	Paths []string

	// Debounce is the quiet period after the last event before the callback runs.
	Debounce time.Duration

	// Extensions limits directory events to these file extensions, e.g. ".rego".
	// Explicitly listed files are always reported.
	Extensions []string

	// SkipHidden ignores files and directories whose name starts with a dot.
	SkipHidden bool
}

// Watcher observes a set of paths and reports changed files.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
	config  Config

	// files holds explicitly watched files; their parent directory is
	// watched so that rename-on-save editors keep being observed.
	files map[string]struct{}
	dirs  map[string]struct{}

	closeOnce sync.Once
	closeErr  error
}

// New creates a Watcher and registers every configured path.
func New(config Config, logger zerolog.Logger) (*Watcher, error) {
	if len(config.Paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher: fsw,
		logger:  logger.With().Str("component", "watch").Logger(),
		config:  config,
		files:   make(map[string]struct{}),
		dirs:    make(map[string]struct{}),
	}

	for _, path := range config.Paths {
		if err := w.add(path); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.IsDir() {
		w.files[abs] = struct{}{}
		return w.addDir(filepath.Dir(abs))
	}

	return filepath.Walk(abs, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		if p != abs && w.config.SkipHidden && strings.HasPrefix(fi.Name(), ".") {
			return filepath.SkipDir
		}
		w.dirs[p] = struct{}{}
		return w.addDir(p)
	})
}

func (w *Watcher) addDir(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Debug().Str("path", dir).Msg("Watching directory")
	return nil
}

// Run delivers changes to onChange until ctx is cancelled, then closes the
// watcher. onChange runs on the Run goroutine and receives the sorted,
// de-duplicated absolute paths that changed since the previous call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	defer w.Close()

	w.logger.Info().
		Strs("paths", w.config.Paths).
		Dur("debounce", w.config.Debounce).
		Msg("Watching for changes")

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.config.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug().Msg("Watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Has(fsnotify.Create) {
				w.watchNewDir(event.Name)
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("File event")

			pending[event.Name] = struct{}{}
			timer.Reset(w.config.Debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]struct{})

			onChange(ctx, changed)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// watchNewDir starts watching a directory created inside a watched tree.
func (w *Watcher) watchNewDir(path string) {
	if _, ok := w.dirs[filepath.Dir(path)]; !ok {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if w.config.SkipHidden && strings.HasPrefix(info.Name(), ".") {
		return
	}
	w.dirs[path] = struct{}{}
	if err := w.addDir(path); err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch new directory")
	}
}

// relevant filters events down to the files the caller asked for.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	if _, ok := w.files[event.Name]; ok {
		return true
	}

	// only directories walked from a configured path report arbitrary files
	if _, ok := w.dirs[filepath.Dir(event.Name)]; !ok {
		return false
	}

	base := filepath.Base(event.Name)
	if w.config.SkipHidden && strings.HasPrefix(base, ".") {
		return false
	}
	if len(w.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, want := range w.config.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// Close releases the underlying watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.watcher.Close()
	})
	return w.closeErr
}
