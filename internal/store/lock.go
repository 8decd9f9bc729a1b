package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
)

// IndexLock is an exclusive cross-process lock on an index destination.
// The lock file lives next to the index at <dest>.lock.
type IndexLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewIndexLock creates a lock for dest.
func NewIndexLock(dest string) *IndexLock {
	lockPath := dest + ".lock"
	return &IndexLock{path: lockPath, flock: flock.New(lockPath)}
}

// TryLock attempts to acquire the lock without blocking. A lock held by
// another process is reported as a retryable ErrCodeIndexLocked error.
func (l *IndexLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return amerrors.New(amerrors.ErrCodeIndexLocked, "index is locked by another process", nil).
			WithDetail("lock", l.path).
			WithSuggestion("wait for the other amanvis run to finish")
	}
	l.locked = true
	return nil
}

// Acquire retries TryLock with backoff until it succeeds or cfg is exhausted.
func (l *IndexLock) Acquire(ctx context.Context, cfg amerrors.RetryConfig) error {
	return amerrors.Retry(ctx, cfg, l.TryLock)
}

// Unlock releases the lock. Safe to call when not locked.
func (l *IndexLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *IndexLock) Path() string {
	return l.path
}

// IsLocked reports whether this process holds the lock.
func (l *IndexLock) IsLocked() bool {
	return l.locked
}
