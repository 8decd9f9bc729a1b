package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/scanner"
)

// Watcher emits debounced batches of image changes under one root.
type Watcher struct {
	opts      Options
	root      string
	matcher   *scanner.Matcher
	skipDirs  map[string]struct{}
	debouncer *Debouncer

	fsw      *fsnotify.Watcher
	snapshot map[string]fileState

	closeOnce sync.Once
}

type fileState struct {
	modTime time.Time
	size    int64
}

// New prepares a watcher for opts.Walk.Root. Directory watches (or the
// polling baseline) are registered before New returns, so changes made
// after it are observed.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	root, err := filepath.Abs(opts.Walk.Root)
	if err == nil {
		root, err = filepath.EvalSymlinks(root)
	}
	if err != nil {
		return nil, amerrors.TraversalError(opts.Walk.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, amerrors.TraversalError(root, err)
	}
	if !info.IsDir() {
		return nil, amerrors.TraversalError(root, fmt.Errorf("not a directory"))
	}

	skip := opts.Walk.SkipDirs
	if skip == nil {
		skip = scanner.DefaultSkipDirs
	}

	w := &Watcher{
		opts:      opts,
		root:      root,
		matcher:   scanner.NewMatcher(&opts.Walk),
		skipDirs:  make(map[string]struct{}, len(skip)),
		debouncer: NewDebouncer(opts.Debounce, opts.BufferSize),
	}
	for _, d := range skip {
		w.skipDirs[d] = struct{}{}
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsw = fsw
			if err := w.addTree(root, false); err != nil {
				_ = fsw.Close()
				return nil, amerrors.TraversalError(root, err)
			}
			return w, nil
		}
		slog.Warn("fsnotify unavailable, falling back to polling", slog.String("error", err.Error()))
	}

	w.snapshot = w.scan()
	return w, nil
}

// Root returns the resolved root directory.
func (w *Watcher) Root() string {
	return w.root
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// Batches returns debounced event batches. The channel is closed when Run
// returns.
func (w *Watcher) Batches() <-chan []Event {
	return w.debouncer.Output()
}

// Run delivers events until ctx is cancelled, then releases resources.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	if w.fsw == nil {
		return w.runPolling(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.debouncer.Stop()
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}

func (w *Watcher) handle(ev fsnotify.Event) {
	now := time.Now()

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.descend(ev.Name) {
				// Files moved in with the directory produce no events of their own.
				if err := w.addTree(ev.Name, true); err != nil {
					slog.Warn("watch_add_failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
				}
			}
			return
		}
	}

	if !w.accept(ev.Name) {
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}
	w.debouncer.Add(Event{Path: ev.Name, Operation: op, Timestamp: now})
}

// addTree watches dir and, when recursive, its sub-directories. With emit
// set, images already present are reported as created.
func (w *Watcher) addTree(dir string, emit bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && !w.descend(path) {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		if emit && w.accept(path) {
			w.debouncer.Add(Event{Path: path, Operation: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
}

// descend reports whether the directory at path is inside the watched set.
func (w *Watcher) descend(path string) bool {
	if !w.opts.Walk.Recursive {
		return path == w.root
	}
	if _, skip := w.skipDirs[filepath.Base(path)]; skip {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if _, skip := w.skipDirs[part]; skip {
			return false
		}
	}
	return true
}

// accept reports whether path is a candidate image in a watched directory.
func (w *Watcher) accept(path string) bool {
	dir := filepath.Dir(path)
	if dir != w.root && !w.descend(dir) {
		return false
	}
	return w.matcher.Match(path)
}

func (w *Watcher) runPolling(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.poll()
		}
	}
}

// scan records the state of every candidate image under the root.
func (w *Watcher) scan() map[string]fileState {
	state := make(map[string]fileState)
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.root && !w.descend(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.matcher.Match(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[path] = fileState{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return state
}

// poll diffs a fresh scan against the previous one.
func (w *Watcher) poll() {
	now := time.Now()
	current := w.scan()

	for path, st := range current {
		prev, ok := w.snapshot[path]
		switch {
		case !ok:
			w.debouncer.Add(Event{Path: path, Operation: OpCreate, Timestamp: now})
		case !prev.modTime.Equal(st.modTime) || prev.size != st.size:
			w.debouncer.Add(Event{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range w.snapshot {
		if _, ok := current[path]; !ok {
			w.debouncer.Add(Event{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}
	w.snapshot = current
}
