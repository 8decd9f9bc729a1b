// Package index drives batch indexing: walk a corpus, acquire each image,
// build its record and hand it to the index writer, reporting progress
// after every item.
package index

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/Aman-CERP/amanvis/internal/acquire"
	"github.com/Aman-CERP/amanvis/internal/builder"
	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/feature"
	"github.com/Aman-CERP/amanvis/internal/scanner"
	"github.com/Aman-CERP/amanvis/internal/store"
)

// Walker enumerates candidate image paths.
type Walker interface {
	Walk(ctx context.Context, opts *scanner.WalkOptions) ([]string, error)
}

// Acquirer loads one image.
type Acquirer interface {
	Acquire(ctx context.Context, path string) (image.Image, acquire.Source, error)
}

// Progress is emitted after every processed item.
type Progress struct {
	// Percentage is Completed/Total in [0,1].
	Percentage float64

	// ETASeconds estimates the remaining time; 0 means no estimate.
	ETASeconds float64

	Completed int
	Total     int

	// Identifier is the item just processed, Err its failure if any.
	Identifier string
	Err        error
}

// ETA returns ETASeconds as a duration.
func (p Progress) ETA() time.Duration {
	return time.Duration(p.ETASeconds * float64(time.Second))
}

// ProgressSink observes a run. Report must return quickly.
type ProgressSink interface {
	Report(p Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(Progress)

// Report implements ProgressSink.
func (f ProgressFunc) Report(p Progress) { f(p) }

// Failure is one image that could not be indexed.
type Failure struct {
	Identifier string
	Cause      error
}

// Reason returns a one-line human-readable cause.
func (f Failure) Reason() string {
	return amerrors.FormatCause(f.Cause)
}

// Summary is the outcome of a run. Success + len(Failures) == Total
// unless the run was cancelled.
type Summary struct {
	Total      int
	Success    int
	Failures   []Failure
	Thumbnails int // records built from an embedded thumbnail
	Duration   time.Duration
}

// Completed returns the number of processed items.
func (s *Summary) Completed() int {
	return s.Success + len(s.Failures)
}

// RunConfig configures one run.
type RunConfig struct {
	// Walk selects the corpus. Ignored when Paths is set.
	Walk scanner.WalkOptions

	// Paths, when non-nil, is the explicit candidate list (used by watch).
	Paths []string

	// Destination is passed to Writer.Open.
	Destination string

	// Append augments an existing index instead of replacing it.
	Append bool

	// Workers > 1 acquires and builds in parallel. Records are still
	// added by a single goroutine.
	Workers int
}

// DriverDependencies are the collaborators of a Driver.
type DriverDependencies struct {
	Walker   Walker
	Acquirer Acquirer
	Builder  builder.Builder
	Writer   store.Writer

	// Progress is optional.
	Progress ProgressSink
}

// Driver runs indexing batches.
type Driver struct {
	walker   Walker
	acquirer Acquirer
	builder  builder.Builder
	writer   store.Writer
	progress ProgressSink
	now      func() time.Time
}

// NewDriver validates deps and creates a Driver.
func NewDriver(deps DriverDependencies) (*Driver, error) {
	if deps.Walker == nil {
		return nil, errors.New("walker is required")
	}
	if deps.Acquirer == nil {
		return nil, errors.New("acquirer is required")
	}
	if deps.Builder == nil {
		return nil, errors.New("builder is required")
	}
	if deps.Writer == nil {
		return nil, errors.New("index writer is required")
	}

	progress := deps.Progress
	if progress == nil {
		progress = ProgressFunc(func(Progress) {})
	}

	return &Driver{
		walker:   deps.Walker,
		acquirer: deps.Acquirer,
		builder:  deps.Builder,
		writer:   deps.Writer,
		progress: progress,
		now:      time.Now,
	}, nil
}

// item is the result of acquiring and building one path.
type item struct {
	path   string
	record *feature.Record
	source acquire.Source
	err    error
}

// Run indexes the corpus described by cfg.
//
// Traversal and writer open/finalize/close errors are fatal. Per-image
// decode, extraction and add failures are collected in the summary.
// On cancellation the records added so far are finalized and the summary
// is returned together with the context error.
func (d *Driver) Run(ctx context.Context, cfg RunConfig) (*Summary, error) {
	start := d.now()

	paths, err := d.candidates(ctx, cfg)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Total: len(paths), Failures: []Failure{}}
	if len(paths) == 0 {
		slog.Info("index_no_candidates", slog.String("root", cfg.Walk.Root))
		summary.Duration = d.now().Sub(start)
		return summary, nil
	}

	if err := d.writer.Open(cfg.Destination, cfg.Append); err != nil {
		return nil, err
	}

	slog.Info("index_run_started",
		slog.String("destination", cfg.Destination),
		slog.Int("total", len(paths)),
		slog.Bool("append", cfg.Append),
		slog.Int("workers", max(cfg.Workers, 1)))

	tracker := &runState{driver: d, summary: summary, start: start, thumbnails: map[string]struct{}{}}
	if cfg.Workers > 1 {
		d.runPool(ctx, paths, cfg.Workers, tracker)
	} else {
		d.runSequential(ctx, paths, tracker)
	}

	runErr := ctx.Err()
	if err := d.finish(); err != nil {
		tracker.revoke(err, "")
		return summary, err
	}

	summary.Duration = d.now().Sub(start)
	slog.Info("index_run_finished",
		slog.Int("total", summary.Total),
		slog.Int("success", summary.Success),
		slog.Int("failures", len(summary.Failures)),
		slog.Int("thumbnails", summary.Thumbnails),
		slog.Duration("duration", summary.Duration),
		slog.Bool("cancelled", runErr != nil))

	return summary, runErr
}

func (d *Driver) candidates(ctx context.Context, cfg RunConfig) ([]string, error) {
	if cfg.Paths == nil {
		return d.walker.Walk(ctx, &cfg.Walk)
	}

	matcher := scanner.NewMatcher(&cfg.Walk)
	seen := make(map[string]struct{}, len(cfg.Paths))
	paths := make([]string, 0, len(cfg.Paths))
	for _, p := range cfg.Paths {
		if _, dup := seen[p]; dup || !matcher.Match(p) {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	return paths, nil
}

// finish finalizes then closes the writer; close always runs.
func (d *Driver) finish() error {
	finalizeErr := d.writer.Finalize()
	closeErr := d.writer.Close()
	if finalizeErr != nil {
		return finalizeErr
	}
	return closeErr
}

// process acquires and builds one path. It is safe to call concurrently.
func (d *Driver) process(ctx context.Context, path string) item {
	img, source, err := d.acquirer.Acquire(ctx, path)
	if err != nil {
		return item{path: path, err: err}
	}
	rec, err := d.builder.Build(img, path)
	if err != nil {
		return item{path: path, source: source, err: err}
	}
	return item{path: path, record: rec, source: source}
}

func (d *Driver) runSequential(ctx context.Context, paths []string, st *runState) {
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		it := d.process(ctx, path)
		if ctx.Err() != nil {
			return
		}
		st.record(ctx, it)
	}
}

// runState is owned by the goroutine that calls record.
type runState struct {
	driver  *Driver
	summary *Summary
	start   time.Time

	// thumbnails holds successful identifiers built from a thumbnail.
	thumbnails map[string]struct{}
}

// record adds a built item to the index, updates counters and reports progress.
func (st *runState) record(ctx context.Context, it item) {
	d, s := st.driver, st.summary

	err := it.err
	if err == nil {
		if addErr := d.writer.Add(ctx, it.record); addErr != nil {
			err = addErr
			st.revoke(addErr, it.path)
		}
	}

	if err != nil {
		s.Failures = append(s.Failures, Failure{Identifier: it.path, Cause: err})
		attrs := append([]any{slog.String("path", it.path)}, amerrors.LogAttrs(err)...)
		slog.Warn("index_item_failed", attrs...)
	} else {
		s.Success++
		if it.source == acquire.SourceThumbnail {
			s.Thumbnails++
			st.thumbnails[it.path] = struct{}{}
		}
	}

	completed := s.Completed()
	percentage := float64(completed) / float64(s.Total)
	d.progress.Report(Progress{
		Percentage: percentage,
		ETASeconds: EstimateRemaining(d.now().Sub(st.start), completed, s.Total),
		Completed:  completed,
		Total:      s.Total,
		Identifier: it.path,
		Err:        err,
	})
}

// revoke turns earlier successes into failures when a writer reports that
// their batch was dropped. current is the item being recorded, if any; it
// is counted by the caller.
func (st *runState) revoke(err error, current string) {
	var batchErr *store.BatchError
	if !errors.As(err, &batchErr) {
		return
	}
	s := st.summary
	for _, id := range batchErr.Identifiers {
		if id == current {
			continue
		}
		s.Success--
		if _, ok := st.thumbnails[id]; ok {
			s.Thumbnails--
			delete(st.thumbnails, id)
		}
		s.Failures = append(s.Failures, Failure{Identifier: id, Cause: batchErr.Err})
		slog.Warn("index_item_dropped",
			slog.String("path", id),
			slog.String("error", batchErr.Err.Error()))
	}
}

// EstimateRemaining returns elapsed*(1-p)/p seconds with p = completed/total.
// It is 0 before the first item completes and never negative.
func EstimateRemaining(elapsed time.Duration, completed, total int) float64 {
	if completed <= 0 || total <= 0 || completed >= total || elapsed <= 0 {
		return 0
	}
	p := float64(completed) / float64(total)
	return elapsed.Seconds() * (1 - p) / p
}

// String renders a one-line summary.
func (s *Summary) String() string {
	return fmt.Sprintf("%d/%d indexed, %d failed in %s",
		s.Success, s.Total, len(s.Failures), s.Duration.Round(time.Millisecond))
}
