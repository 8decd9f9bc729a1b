// Package store persists feature records into an on-disk index.
//
// Two backends are available: SQLite (default, one row per field) and
// Bleve (one document per record). Both hold an exclusive cross-process
// lock on the destination between Open and Close.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/feature"
)

// Writer is the index-writer used by the batch driver.
//
// Open is called once per run, Add once per built record, then Finalize
// and Close exactly once. Writers are not safe for concurrent Add calls.
type Writer interface {
	// Open prepares dest. With appendMode false any existing index is replaced.
	Open(dest string, appendMode bool) error

	// Add stores one record. A record with an existing identifier replaces it.
	// A buffering writer that loses earlier records on a failed commit
	// returns a *BatchError naming all of them.
	Add(ctx context.Context, rec *feature.Record) error

	// Finalize commits pending data and compacts the index. It may return
	// a *BatchError like Add.
	Finalize() error

	// Close releases the index and its lock.
	Close() error
}

// Reader looks records back up. Both backends implement it while open.
type Reader interface {
	Lookup(ctx context.Context, identifier string) (*feature.Record, error)
	Count(ctx context.Context) (int, error)
}

// Backend names an index implementation.
type Backend string

const (
	// BackendSQLite stores records in SQLite (default).
	BackendSQLite Backend = "sqlite"

	// BackendBleve stores records in a Bleve index.
	BackendBleve Backend = "bleve"
)

// Options configures a writer.
type Options struct {
	// Compression applies to compact payloads.
	Compression Compression

	// BatchSize is the number of records buffered before a Bleve batch
	// is flushed. Zero uses DefaultBatchSize.
	BatchSize int

	// Lock retry policy. Zero value uses errors.DefaultRetryConfig.
	LockRetry amerrors.RetryConfig
}

// DefaultBatchSize is the number of records per Bleve batch.
const DefaultBatchSize = 100

// NewWriter creates a writer for the named backend.
func NewWriter(backend string, opts Options) (Writer, error) {
	if opts.LockRetry.MaxRetries == 0 && opts.LockRetry.InitialDelay == 0 {
		opts.LockRetry = amerrors.DefaultRetryConfig()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	switch Backend(backend) {
	case BackendSQLite, "":
		return NewSQLiteWriter(opts), nil
	case BackendBleve:
		return NewBleveWriter(opts), nil
	default:
		return nil, amerrors.New(amerrors.ErrCodeUnknownBackend,
			fmt.Sprintf("unknown index backend: %s (valid options: sqlite, bleve)", backend), nil)
	}
}

// BatchError reports records that were accepted by Add but dropped because
// the batch holding them failed to commit.
type BatchError struct {
	Identifiers []string
	Err         error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%v (%d queued records dropped)", e.Err, len(e.Identifiers))
}

func (e *BatchError) Unwrap() error { return e.Err }

// IndexPath returns the destination path for a backend inside dataDir.
func IndexPath(dataDir, backend string) string {
	base := filepath.Join(dataDir, "images")
	if Backend(backend) == BackendBleve {
		return base + ".bleve"
	}
	return base + ".db"
}

// Info summarizes a persisted index.
type Info struct {
	Backend   Backend
	Path      string
	Records   int
	Finalized bool
}
