package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/feature"
)

const (
	// recordKeyPrefix namespaces stored records in Bleve's internal storage.
	recordKeyPrefix = "rec:"

	finalizedKey = "amanvis:finalized_at"
)

// BleveWriter indexes one document per record. Field names and encodings
// are keyword-indexed; full field values live in internal storage.
type BleveWriter struct {
	mu      sync.Mutex
	opts    Options
	index   bleve.Index
	path    string
	lock    *IndexLock
	batch   *bleve.Batch
	queued  []string
	closed  bool
}

var (
	_ Writer = (*BleveWriter)(nil)
	_ Reader = (*BleveWriter)(nil)
)

// bleveDocument is the searchable part of a record.
type bleveDocument struct {
	Identifier string   `json:"identifier"`
	Fields     []string `json:"fields"`
	Encodings  []string `json:"encodings"`
	IndexedAt  string   `json:"indexed_at"`
}

// storedField is a field value as kept in internal storage.
type storedField struct {
	Name        string      `json:"name"`
	Encoding    string      `json:"encoding"`
	Compression Compression `json:"compression,omitempty"`
	Payload     []byte      `json:"payload,omitempty"`
	Text        string      `json:"text,omitempty"`
}

// NewBleveWriter creates an unopened Bleve writer.
func NewBleveWriter(opts Options) *BleveWriter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &BleveWriter{opts: opts}
}

func createRecordMapping() *mapping.IndexMappingImpl {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	storedOnly := bleve.NewTextFieldMapping()
	storedOnly.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("identifier", keywordField)
	doc.AddFieldMappingsAt("fields", keywordField)
	doc.AddFieldMappingsAt("encodings", keywordField)
	doc.AddFieldMappingsAt("indexed_at", storedOnly)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = keyword.Name
	return indexMapping
}

// validateBleveIntegrity returns nil for a missing or healthy index directory.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	data, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return errors.New("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	if len(data) == 0 {
		return errors.New("index_meta.json is empty (corrupted)")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isBleveCorruption(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return errors.Is(err, bleve.ErrorIndexMetaCorrupt) ||
		strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}

// Open acquires the destination lock and opens (or replaces) the index.
func (b *BleveWriter) Open(dest string, appendMode bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil {
		return amerrors.IndexError("open", errors.New("writer already open"))
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return amerrors.IndexError("open", fmt.Errorf("failed to create directory: %w", err))
	}

	lock := NewIndexLock(dest)
	if err := lock.Acquire(context.Background(), b.opts.LockRetry); err != nil {
		return err
	}

	idx, err := openBleve(dest, appendMode)
	if err != nil {
		_ = lock.Unlock()
		return err
	}

	// The index is unfinished until this run's Finalize.
	if err := idx.DeleteInternal([]byte(finalizedKey)); err != nil {
		_ = idx.Close()
		_ = lock.Unlock()
		return amerrors.IndexError("open", fmt.Errorf("failed to clear finalized marker: %w", err))
	}

	b.index = idx
	b.path = dest
	b.lock = lock
	b.batch = idx.NewBatch()
	b.queued = nil
	b.closed = false

	slog.Debug("bleve_index_opened",
		slog.String("path", dest),
		slog.Bool("append", appendMode),
		slog.Int("batch_size", b.opts.BatchSize))
	return nil
}

func openBleve(dest string, appendMode bool) (bleve.Index, error) {
	if !appendMode {
		if err := os.RemoveAll(dest); err != nil {
			return nil, amerrors.IndexError("open", fmt.Errorf("failed to remove existing index: %w", err))
		}
		idx, err := bleve.New(dest, createRecordMapping())
		if err != nil {
			return nil, amerrors.IndexError("open", err)
		}
		return idx, nil
	}

	if validErr := validateBleveIntegrity(dest); validErr != nil {
		slog.Warn("bleve_index_corrupted",
			slog.String("path", dest),
			slog.String("error", validErr.Error()))
		if err := os.RemoveAll(dest); err != nil {
			return nil, amerrors.New(amerrors.ErrCodeCorruptIndex,
				"index corrupted and cannot be removed", err).WithDetail("path", dest)
		}
	}

	idx, err := bleve.Open(dest)
	switch {
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		idx, err = bleve.New(dest, createRecordMapping())
	case isBleveCorruption(err):
		slog.Warn("bleve_index_open_failed",
			slog.String("path", dest),
			slog.String("error", err.Error()))
		if removeErr := os.RemoveAll(dest); removeErr != nil {
			return nil, amerrors.New(amerrors.ErrCodeCorruptIndex,
				"index corrupted and cannot be removed", removeErr).WithDetail("path", dest)
		}
		idx, err = bleve.New(dest, createRecordMapping())
	}
	if err != nil {
		return nil, amerrors.IndexError("open", err)
	}
	return idx, nil
}

// Add queues rec into the current batch, flushing when it is full.
func (b *BleveWriter) Add(ctx context.Context, rec *feature.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index == nil || b.closed {
		return amerrors.IndexError("add", errors.New("index is not open"))
	}
	if rec == nil || rec.Identifier == "" {
		return amerrors.IndexError("add", errors.New("record has no identifier"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := bleveDocument{
		Identifier: rec.Identifier,
		Fields:     rec.Names(),
		Encodings:  make([]string, len(rec.Fields)),
		IndexedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	stored := make([]storedField, len(rec.Fields))
	for i, f := range rec.Fields {
		doc.Encodings[i] = f.Encoding.String()
		sf := storedField{Name: f.Name, Encoding: f.Encoding.String(), Text: f.Text}
		if f.Encoding == feature.EncodingCompact {
			sf.Compression = b.compression()
			packed, err := pack(sf.Compression, f.Payload)
			if err != nil {
				return amerrors.IndexError("add", fmt.Errorf("field %s: %w", f.Name, err)).
					WithDetail("identifier", rec.Identifier)
			}
			sf.Payload = packed
		}
		stored[i] = sf
	}

	value, err := json.Marshal(stored)
	if err != nil {
		return amerrors.IndexError("add", err).WithDetail("identifier", rec.Identifier)
	}
	if err := b.batch.Index(rec.Identifier, doc); err != nil {
		return amerrors.IndexError("add", err).WithDetail("identifier", rec.Identifier)
	}
	b.batch.SetInternal([]byte(recordKeyPrefix+rec.Identifier), value)
	b.queued = append(b.queued, rec.Identifier)

	if len(b.queued) >= b.opts.BatchSize {
		return b.flush()
	}
	return nil
}

func (b *BleveWriter) compression() Compression {
	if b.opts.Compression == "" {
		return CompressionNone
	}
	return b.opts.Compression
}

// flush executes the pending batch. The batch is discarded either way, so
// a failure is reported once for every queued identifier. Caller holds mu.
func (b *BleveWriter) flush() error {
	if len(b.queued) == 0 {
		return nil
	}
	err := b.index.Batch(b.batch)
	queued := b.queued
	b.batch = b.index.NewBatch()
	b.queued = nil
	if err != nil {
		slog.Warn("bleve_batch_failed",
			slog.Int("records", len(queued)),
			slog.String("error", err.Error()))
		return &BatchError{
			Identifiers: queued,
			Err:         amerrors.IndexError("flush", fmt.Errorf("failed to execute batch: %w", err)),
		}
	}
	return nil
}

// Lookup returns the stored record, or nil when identifier is absent.
func (b *BleveWriter) Lookup(ctx context.Context, identifier string) (*feature.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index == nil || b.closed {
		return nil, amerrors.IndexError("lookup", errors.New("index is not open"))
	}
	if err := b.flush(); err != nil {
		return nil, err
	}
	return lookupBleve(b.index, identifier)
}

func lookupBleve(idx bleve.Index, identifier string) (*feature.Record, error) {
	value, err := idx.GetInternal([]byte(recordKeyPrefix + identifier))
	if err != nil {
		return nil, amerrors.IndexError("lookup", err)
	}
	if value == nil {
		return nil, nil
	}

	var stored []storedField
	if err := json.Unmarshal(value, &stored); err != nil {
		return nil, amerrors.IndexError("lookup", err)
	}

	rec := feature.NewRecord(identifier)
	for _, sf := range stored {
		f := feature.Field{Name: sf.Name, Encoding: feature.EncodingVerbose, Text: sf.Text}
		if sf.Encoding == feature.EncodingCompact.String() {
			raw, err := unpack(sf.Payload)
			if err != nil {
				return nil, amerrors.IndexError("lookup", fmt.Errorf("field %s: %w", sf.Name, err))
			}
			f = feature.Field{Name: sf.Name, Encoding: feature.EncodingCompact, Payload: raw}
		}
		rec.Fields = append(rec.Fields, f)
	}
	return rec, nil
}

// Count returns the number of indexed records.
func (b *BleveWriter) Count(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index == nil || b.closed {
		return 0, amerrors.IndexError("count", errors.New("index is not open"))
	}
	if err := b.flush(); err != nil {
		return 0, err
	}
	n, err := b.index.DocCount()
	if err != nil {
		return 0, amerrors.IndexError("count", err)
	}
	return int(n), nil
}

// Finalize flushes the last batch and marks the index complete.
func (b *BleveWriter) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index == nil || b.closed {
		return amerrors.IndexError("finalize", errors.New("index is not open"))
	}
	if err := b.flush(); err != nil {
		return err
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339))
	if err := b.index.SetInternal([]byte(finalizedKey), stamp); err != nil {
		return amerrors.IndexError("finalize", err)
	}
	return nil
}

// Close releases the index and its lock. Records queued since the last
// flush are discarded unless Finalize ran first. Idempotent.
func (b *BleveWriter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.index == nil {
		return nil
	}
	b.closed = true

	err := b.index.Close()
	b.index = nil
	b.batch = nil
	b.queued = nil
	if unlockErr := b.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	if err != nil {
		return amerrors.IndexError("close", err)
	}
	return nil
}

func readBleveInfo(path string) (*Info, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, amerrors.IndexError("stat", err)
	}
	defer idx.Close()

	n, err := idx.DocCount()
	if err != nil {
		return nil, amerrors.IndexError("stat", err)
	}
	stamp, err := idx.GetInternal([]byte(finalizedKey))
	if err != nil {
		return nil, amerrors.IndexError("stat", err)
	}
	return &Info{Backend: BackendBleve, Path: path, Records: int(n), Finalized: len(stamp) > 0}, nil
}
