package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/scanner"
)

func startWatcher(t *testing.T, opts Options) *Watcher {
	t.Helper()
	w, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

// collect gathers events until want is seen or the timeout passes.
func collect(t *testing.T, w *Watcher, want string, timeout time.Duration) map[string]Operation {
	t.Helper()
	seen := make(map[string]Operation)
	deadline := time.After(timeout)
	for {
		select {
		case batch, ok := <-w.Batches():
			if !ok {
				return seen
			}
			for _, ev := range batch {
				seen[ev.Path] = ev.Operation
			}
			if _, ok := seen[want]; ok {
				return seen
			}
		case <-deadline:
			return seen
		}
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(Options{Walk: scanner.WalkOptions{Root: filepath.Join(t.TempDir(), "nope")}})

	require.Error(t, err)
	assert.ErrorIs(t, err, amerrors.ErrTraversal)
}

func TestNew_RootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.jpg")
	writeFile(t, file)

	_, err := New(Options{Walk: scanner.WalkOptions{Root: file}})

	assert.ErrorIs(t, err, amerrors.ErrTraversal)
}

func TestWatcher_Fsnotify_ReportsNewImagesOnly(t *testing.T) {
	// Given: a recursive watcher over an empty corpus
	w := startWatcher(t, Options{
		Walk:     scanner.WalkOptions{Root: t.TempDir(), Recursive: true},
		Debounce: 50 * time.Millisecond,
	})
	if w.Mode() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}
	root := w.Root()

	// When: a thumbnail, a text file and an image are written
	writeFile(t, filepath.Join(root, "tn_a.jpg"))
	writeFile(t, filepath.Join(root, "notes.txt"))
	img := filepath.Join(root, "a.jpg")
	writeFile(t, img)

	// Then: only the image is reported, as created
	seen := collect(t, w, img, 3*time.Second)
	require.Contains(t, seen, img)
	assert.Equal(t, OpCreate, seen[img])
	assert.NotContains(t, seen, filepath.Join(root, "tn_a.jpg"))
	assert.NotContains(t, seen, filepath.Join(root, "notes.txt"))
}

func TestWatcher_Fsnotify_NewSubdirectory(t *testing.T) {
	w := startWatcher(t, Options{
		Walk:     scanner.WalkOptions{Root: t.TempDir(), Recursive: true},
		Debounce: 50 * time.Millisecond,
	})
	if w.Mode() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}

	img := filepath.Join(w.Root(), "2024", "trip", "b.png")
	writeFile(t, img)

	seen := collect(t, w, img, 3*time.Second)
	assert.Contains(t, seen, img)
}

func TestWatcher_Polling_CreateModifyDelete(t *testing.T) {
	// Given: a polling watcher with one existing image
	root := t.TempDir()
	existing := filepath.Join(root, "old.jpg")
	writeFile(t, existing)

	w := startWatcher(t, Options{
		Walk:         scanner.WalkOptions{Root: root, Recursive: true},
		Debounce:     20 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
		ForcePolling: true,
	})
	require.Equal(t, "polling", w.Mode())
	existing = filepath.Join(w.Root(), "old.jpg")

	// When: the existing image is removed and a new one added
	require.NoError(t, os.Remove(existing))
	added := filepath.Join(w.Root(), "sub", "new.png")
	writeFile(t, added)

	// Then: both changes are reported
	seen := collect(t, w, added, 3*time.Second)
	if _, ok := seen[existing]; !ok {
		for path, op := range collect(t, w, existing, 3*time.Second) {
			seen[path] = op
		}
	}
	assert.Equal(t, OpCreate, seen[added])
	assert.Equal(t, OpDelete, seen[existing])
}

func TestWatcher_Polling_NonRecursiveAndSkipDirs(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, Options{
		Walk:         scanner.WalkOptions{Root: root},
		Debounce:     20 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
		ForcePolling: true,
	})

	writeFile(t, filepath.Join(w.Root(), "nested", "deep.jpg"))
	writeFile(t, filepath.Join(w.Root(), ".amanvis", "cache.png"))
	top := filepath.Join(w.Root(), "top.jpg")
	writeFile(t, top)

	seen := collect(t, w, top, 3*time.Second)
	assert.Contains(t, seen, top)
	assert.Len(t, seen, 1)
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := New(Options{Walk: scanner.WalkOptions{Root: t.TempDir()}, ForcePolling: true})
	require.NoError(t, err)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())

	_, ok := <-w.Batches()
	assert.False(t, ok)
}
