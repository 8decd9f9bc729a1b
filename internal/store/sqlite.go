package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/feature"
)

const sqliteSchemaVersion = 1

// SQLiteWriter stores one row per record and one row per field.
type SQLiteWriter struct {
	mu     sync.Mutex
	opts   Options
	db     *sql.DB
	path   string
	lock   *IndexLock
	closed bool
}

var (
	_ Writer = (*SQLiteWriter)(nil)
	_ Reader = (*SQLiteWriter)(nil)
)

// NewSQLiteWriter creates an unopened SQLite writer.
func NewSQLiteWriter(opts Options) *SQLiteWriter {
	return &SQLiteWriter{opts: opts}
}

// validateSQLiteIntegrity returns nil for a missing or healthy index.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
	                   WHERE type='table' AND name IN ('records', 'fields')`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count != 2 {
		return errors.New("records/fields tables missing")
	}
	return nil
}

func removeSQLiteFiles(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	return nil
}

// Open acquires the destination lock and opens (or replaces) the database.
func (w *SQLiteWriter) Open(dest string, appendMode bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db != nil {
		return amerrors.IndexError("open", errors.New("writer already open"))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return amerrors.IndexError("open", fmt.Errorf("failed to create directory: %w", err))
	}

	lock := NewIndexLock(dest)
	if err := lock.Acquire(context.Background(), w.opts.LockRetry); err != nil {
		return err
	}

	if err := w.prepare(dest, appendMode); err != nil {
		_ = lock.Unlock()
		return err
	}

	db, err := sql.Open(sqliteDriver, dest)
	if err != nil {
		_ = lock.Unlock()
		return amerrors.IndexError("open", err)
	}

	// Single writer; the lock already excludes other processes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return amerrors.IndexError("open", fmt.Errorf("failed to set pragma: %w", err))
		}
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return amerrors.IndexError("open", fmt.Errorf("failed to initialize schema: %w", err))
	}

	// The index is unfinished until this run's Finalize.
	if _, err := db.Exec(`DELETE FROM index_state WHERE key = 'finalized_at'`); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return amerrors.IndexError("open", fmt.Errorf("failed to clear finalized marker: %w", err))
	}

	w.db = db
	w.path = dest
	w.lock = lock
	w.closed = false

	slog.Debug("sqlite_index_opened",
		slog.String("path", dest),
		slog.Bool("append", appendMode),
		slog.String("compression", string(w.opts.Compression)))
	return nil
}

// prepare clears dest in replace mode, or a corrupt dest in append mode.
func (w *SQLiteWriter) prepare(dest string, appendMode bool) error {
	if !appendMode {
		if err := removeSQLiteFiles(dest); err != nil {
			return amerrors.IndexError("open", fmt.Errorf("failed to remove existing index: %w", err))
		}
		return nil
	}

	if validErr := validateSQLiteIntegrity(dest); validErr != nil {
		slog.Warn("sqlite_index_corrupted",
			slog.String("path", dest),
			slog.String("error", validErr.Error()))
		if err := removeSQLiteFiles(dest); err != nil {
			return amerrors.New(amerrors.ErrCodeCorruptIndex,
				"index corrupted and cannot be removed", err).WithDetail("path", dest)
		}
		slog.Info("sqlite_index_cleared",
			slog.String("path", dest),
			slog.String("reason", "corruption detected, appending into a fresh index"))
	}
	return nil
}

func initSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS records (
		identifier  TEXT PRIMARY KEY,
		indexed_at  INTEGER NOT NULL,
		field_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fields (
		identifier  TEXT NOT NULL REFERENCES records(identifier) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		name        TEXT NOT NULL,
		encoding    TEXT NOT NULL,
		compression TEXT NOT NULL,
		raw_size    INTEGER NOT NULL,
		payload     BLOB,
		text        TEXT,
		PRIMARY KEY (identifier, name)
	);

	CREATE TABLE IF NOT EXISTS index_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, sqliteSchemaVersion)
	return err
}

// Add upserts rec and all its fields in one transaction.
func (w *SQLiteWriter) Add(ctx context.Context, rec *feature.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil || w.closed {
		return amerrors.IndexError("add", errors.New("index is not open"))
	}
	if rec == nil || rec.Identifier == "" {
		return amerrors.IndexError("add", errors.New("record has no identifier"))
	}

	if err := w.add(ctx, rec); err != nil {
		return amerrors.IndexError("add", err).WithDetail("identifier", rec.Identifier)
	}
	return nil
}

func (w *SQLiteWriter) add(ctx context.Context, rec *feature.Record) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Cascade removes the previous fields of a re-added identifier.
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE identifier = ?`, rec.Identifier); err != nil {
		return fmt.Errorf("failed to delete previous record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records(identifier, indexed_at, field_count) VALUES (?, ?, ?)`,
		rec.Identifier, time.Now().Unix(), len(rec.Fields)); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fields
		(identifier, position, name, encoding, compression, raw_size, payload, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare field statement: %w", err)
	}
	defer stmt.Close()

	for i, f := range rec.Fields {
		var (
			payload     []byte
			text        sql.NullString
			compression = CompressionNone
		)
		if f.Encoding == feature.EncodingCompact {
			compression = w.compression()
			payload, err = pack(compression, f.Payload)
			if err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		} else {
			text = sql.NullString{String: f.Text, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, rec.Identifier, i, f.Name, f.Encoding.String(),
			string(compression), f.Size(), payload, text); err != nil {
			return fmt.Errorf("failed to insert field %s: %w", f.Name, err)
		}
	}

	return tx.Commit()
}

func (w *SQLiteWriter) compression() Compression {
	if w.opts.Compression == "" {
		return CompressionNone
	}
	return w.opts.Compression
}

// Lookup reads a record back with fields in insertion order.
func (w *SQLiteWriter) Lookup(ctx context.Context, identifier string) (*feature.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil || w.closed {
		return nil, amerrors.IndexError("lookup", errors.New("index is not open"))
	}
	return lookupSQLite(ctx, w.db, identifier)
}

func lookupSQLite(ctx context.Context, db *sql.DB, identifier string) (*feature.Record, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, encoding, payload, text FROM fields
		WHERE identifier = ? ORDER BY position`, identifier)
	if err != nil {
		return nil, amerrors.IndexError("lookup", err)
	}
	defer rows.Close()

	rec := feature.NewRecord(identifier)
	for rows.Next() {
		var (
			name, encoding string
			payload        []byte
			text           sql.NullString
		)
		if err := rows.Scan(&name, &encoding, &payload, &text); err != nil {
			return nil, amerrors.IndexError("lookup", err)
		}

		f := feature.Field{Name: name, Encoding: feature.EncodingVerbose, Text: text.String}
		if encoding == feature.EncodingCompact.String() {
			raw, err := unpack(payload)
			if err != nil {
				return nil, amerrors.IndexError("lookup", fmt.Errorf("field %s: %w", name, err))
			}
			f = feature.Field{Name: name, Encoding: feature.EncodingCompact, Payload: raw}
		}
		rec.Fields = append(rec.Fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, amerrors.IndexError("lookup", err)
	}
	if len(rec.Fields) == 0 {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE identifier = ?`, identifier).Scan(&exists)
		if err != nil {
			return nil, amerrors.IndexError("lookup", err)
		}
		if exists == 0 {
			return nil, nil
		}
	}
	return rec, nil
}

// Count returns the number of stored records.
func (w *SQLiteWriter) Count(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil || w.closed {
		return 0, amerrors.IndexError("count", errors.New("index is not open"))
	}
	var n int
	if err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, amerrors.IndexError("count", err)
	}
	return n, nil
}

// Finalize records completion, optimizes and checkpoints the WAL.
func (w *SQLiteWriter) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil || w.closed {
		return amerrors.IndexError("finalize", errors.New("index is not open"))
	}

	if _, err := w.db.Exec(`INSERT OR REPLACE INTO index_state(key, value) VALUES ('finalized_at', ?)`,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return amerrors.IndexError("finalize", err)
	}
	for _, stmt := range []string{"PRAGMA optimize", "VACUUM", "PRAGMA wal_checkpoint(TRUNCATE)"} {
		if _, err := w.db.Exec(stmt); err != nil {
			return amerrors.IndexError("finalize", fmt.Errorf("%s: %w", stmt, err))
		}
	}
	return nil
}

// Close closes the database and releases the lock. Idempotent.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.db == nil {
		return nil
	}
	w.closed = true

	err := w.db.Close()
	w.db = nil
	if unlockErr := w.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	if err != nil {
		return amerrors.IndexError("close", err)
	}
	return nil
}

// readSQLiteInfo opens path read-only and summarizes it.
func readSQLiteInfo(ctx context.Context, path string) (*Info, error) {
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, amerrors.IndexError("stat", err)
	}
	defer db.Close()

	info := &Info{Backend: BackendSQLite, Path: path}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&info.Records); err != nil {
		return nil, amerrors.IndexError("stat", err)
	}
	var finalizedAt string
	err = db.QueryRowContext(ctx, `SELECT value FROM index_state WHERE key = 'finalized_at'`).Scan(&finalizedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, amerrors.IndexError("stat", err)
	default:
		info.Finalized = true
	}
	return info, nil
}
