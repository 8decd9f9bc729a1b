package store

import (
	"context"
	"fmt"
	"os"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
)

// ReadInfo summarizes the index written by backend under dataDir.
// It takes the index lock so it never reads a half-written index.
func ReadInfo(ctx context.Context, dataDir, backend string) (*Info, error) {
	path := IndexPath(dataDir, backend)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, amerrors.New(amerrors.ErrCodeFileNotFound,
				fmt.Sprintf("no %s index at %s", backendName(backend), path), err).
				WithSuggestion("run 'amanvis index' first")
		}
		return nil, amerrors.IndexError("stat", err)
	}

	lock := NewIndexLock(path)
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	switch Backend(backend) {
	case BackendBleve:
		return readBleveInfo(path)
	default:
		return readSQLiteInfo(ctx, path)
	}
}

func backendName(backend string) string {
	if backend == "" {
		return string(BackendSQLite)
	}
	return backend
}
