package index

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanvis/internal/acquire"
	"github.com/Aman-CERP/amanvis/internal/builder"
	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/feature"
	"github.com/Aman-CERP/amanvis/internal/scanner"
	"github.com/Aman-CERP/amanvis/internal/store"
)

// --- stubs ---

type stubWalker struct {
	paths []string
	err   error
	opts  *scanner.WalkOptions
}

func (w *stubWalker) Walk(_ context.Context, opts *scanner.WalkOptions) ([]string, error) {
	w.opts = opts
	return w.paths, w.err
}

type stubAcquirer struct {
	fail  map[string]error
	calls atomic.Int32
}

func (a *stubAcquirer) Acquire(_ context.Context, path string) (image.Image, acquire.Source, error) {
	a.calls.Add(1)
	if err := a.fail[path]; err != nil {
		return nil, acquire.SourceFull, err
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	return img, acquire.SourceThumbnail, nil
}

type builderFunc func(img image.Image, identifier string) (*feature.Record, error)

func (f builderFunc) Build(img image.Image, identifier string) (*feature.Record, error) {
	return f(img, identifier)
}

func okBuilder() builder.Builder {
	return builderFunc(func(_ image.Image, id string) (*feature.Record, error) {
		rec := feature.NewRecord(id)
		return rec, rec.Add(feature.Field{Name: "descriptor.x", Encoding: feature.EncodingVerbose, Text: "1"})
	})
}

type recordingWriter struct {
	mu          sync.Mutex
	failAdd     map[string]bool
	openErr     error
	finalizeErr error

	opened    int
	dest      string
	appended  bool
	added     []string
	finalized int
	closed    int
}

func (w *recordingWriter) Open(dest string, appendMode bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened++
	w.dest, w.appended = dest, appendMode
	return w.openErr
}

func (w *recordingWriter) Add(_ context.Context, rec *feature.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAdd[rec.Identifier] {
		return amerrors.IndexError("add", errors.New("disk on fire"))
	}
	w.added = append(w.added, rec.Identifier)
	return nil
}

func (w *recordingWriter) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finalized++
	return w.finalizeErr
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

// batchingWriter buffers size records per commit and fails the commits
// listed in failCommits (1-based).
type batchingWriter struct {
	size        int
	failCommits map[int]bool

	queued    []string
	committed []string
	commits   int
}

func (w *batchingWriter) Open(string, bool) error { return nil }

func (w *batchingWriter) Add(_ context.Context, rec *feature.Record) error {
	w.queued = append(w.queued, rec.Identifier)
	if len(w.queued) < w.size {
		return nil
	}
	return w.commit()
}

func (w *batchingWriter) commit() error {
	if len(w.queued) == 0 {
		return nil
	}
	w.commits++
	queued := w.queued
	w.queued = nil
	if w.failCommits[w.commits] {
		return &store.BatchError{Identifiers: queued, Err: amerrors.IndexError("flush", errors.New("transient disk error"))}
	}
	w.committed = append(w.committed, queued...)
	return nil
}

func (w *batchingWriter) Finalize() error { return w.commit() }
func (w *batchingWriter) Close() error    { return nil }

type progressLog struct {
	mu     sync.Mutex
	events []Progress
}

func (l *progressLog) Report(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
}

func newDriver(t *testing.T, w Walker, a Acquirer, b builder.Builder, wr store.Writer, sink ProgressSink) *Driver {
	t.Helper()
	d, err := NewDriver(DriverDependencies{Walker: w, Acquirer: a, Builder: b, Writer: wr, Progress: sink})
	require.NoError(t, err)
	return d
}

// --- tests ---

func TestNewDriver_RequiresCollaborators(t *testing.T) {
	full := DriverDependencies{Walker: &stubWalker{}, Acquirer: &stubAcquirer{}, Builder: okBuilder(), Writer: &recordingWriter{}}

	for name, mutate := range map[string]func(*DriverDependencies){
		"walker":   func(d *DriverDependencies) { d.Walker = nil },
		"acquirer": func(d *DriverDependencies) { d.Acquirer = nil },
		"builder":  func(d *DriverDependencies) { d.Builder = nil },
		"writer":   func(d *DriverDependencies) { d.Writer = nil },
	} {
		deps := full
		mutate(&deps)
		_, err := NewDriver(deps)
		assert.Error(t, err, name)
	}

	d, err := NewDriver(full)
	require.NoError(t, err)
	assert.NotNil(t, d.progress, "nil progress sink gets a no-op")
}

func TestDriver_Run_AllSucceed(t *testing.T) {
	// Given: three candidates
	paths := []string{"/c/a.jpg", "/c/b.jpg", "/c/sub/c.jpg"}
	writer := &recordingWriter{}
	sink := &progressLog{}
	d := newDriver(t, &stubWalker{paths: paths}, &stubAcquirer{}, okBuilder(), writer, sink)

	// When: a run replaces the index
	summary, err := d.Run(context.Background(), RunConfig{Destination: "/idx/images.db"})

	// Then: every image is added once, in walk order, then finalized and closed
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Success)
	assert.Empty(t, summary.Failures)
	assert.Equal(t, 3, summary.Thumbnails)
	assert.Equal(t, paths, writer.added)
	assert.Equal(t, "/idx/images.db", writer.dest)
	assert.False(t, writer.appended)
	assert.Equal(t, 1, writer.opened)
	assert.Equal(t, 1, writer.finalized)
	assert.Equal(t, 1, writer.closed)

	// And: one progress event per item, ending at 100% with no ETA left
	require.Len(t, sink.events, 3)
	last := sink.events[2]
	assert.Equal(t, 3, last.Completed)
	assert.Equal(t, 3, last.Total)
	assert.InDelta(t, 1.0, last.Percentage, 1e-9)
	assert.Zero(t, last.ETASeconds)
}

func TestDriver_Run_NoCandidates_DoesNotTouchWriter(t *testing.T) {
	writer := &recordingWriter{}
	d := newDriver(t, &stubWalker{paths: []string{}}, &stubAcquirer{}, okBuilder(), writer, nil)

	summary, err := d.Run(context.Background(), RunConfig{Destination: "x"})

	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Success)
	assert.NotNil(t, summary.Failures)
	assert.Zero(t, writer.opened)
	assert.Zero(t, writer.finalized)
}

func TestDriver_Run_TraversalErrorIsFatal(t *testing.T) {
	writer := &recordingWriter{}
	walker := &stubWalker{err: amerrors.TraversalError("/missing", os.ErrNotExist)}
	d := newDriver(t, walker, &stubAcquirer{}, okBuilder(), writer, nil)

	summary, err := d.Run(context.Background(), RunConfig{Walk: scanner.WalkOptions{Root: "/missing"}})

	assert.Nil(t, summary)
	assert.ErrorIs(t, err, amerrors.ErrTraversal)
	assert.Zero(t, writer.opened)
}

func TestDriver_Run_PassesWalkOptions(t *testing.T) {
	walker := &stubWalker{}
	d := newDriver(t, walker, &stubAcquirer{}, okBuilder(), &recordingWriter{}, nil)

	_, err := d.Run(context.Background(), RunConfig{Walk: scanner.WalkOptions{Root: "/photos", Recursive: true}})

	require.NoError(t, err)
	require.NotNil(t, walker.opts)
	assert.Equal(t, "/photos", walker.opts.Root)
	assert.True(t, walker.opts.Recursive)
}

func TestDriver_Run_OpenErrorIsFatal(t *testing.T) {
	writer := &recordingWriter{openErr: amerrors.New(amerrors.ErrCodeIndexLocked, "locked", nil)}
	acq := &stubAcquirer{}
	d := newDriver(t, &stubWalker{paths: []string{"/a.jpg"}}, acq, okBuilder(), writer, nil)

	_, err := d.Run(context.Background(), RunConfig{Append: true})

	assert.ErrorIs(t, err, amerrors.ErrLocked)
	assert.True(t, writer.appended)
	assert.Zero(t, acq.calls.Load(), "nothing is processed when the index cannot be opened")
}

func TestDriver_Run_FinalizeErrorStillCloses(t *testing.T) {
	writer := &recordingWriter{finalizeErr: errors.New("vacuum failed")}
	d := newDriver(t, &stubWalker{paths: []string{"/a.jpg"}}, &stubAcquirer{}, okBuilder(), writer, nil)

	summary, err := d.Run(context.Background(), RunConfig{})

	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, writer.closed)
}

func TestDriver_Run_FailuresAreCollectedNotThrown(t *testing.T) {
	// Given: one undecodable image, one extraction failure, and one add failure
	paths := []string{"/a.jpg", "/broken.jpg", "/flat.jpg", "/reject.jpg", "/z.jpg"}
	acq := &stubAcquirer{fail: map[string]error{
		"/broken.jpg": amerrors.DecodeError("/broken.jpg", errors.New("bad huffman table")),
	}}
	b := builderFunc(func(img image.Image, id string) (*feature.Record, error) {
		if id == "/flat.jpg" {
			return nil, amerrors.BuildError(id, amerrors.ExtractionError("descriptor.tamura", errors.New("no texture")))
		}
		return okBuilder().Build(img, id)
	})
	writer := &recordingWriter{failAdd: map[string]bool{"/reject.jpg": true}}
	d := newDriver(t, &stubWalker{paths: paths}, acq, b, writer, nil)

	// When: the batch runs
	summary, err := d.Run(context.Background(), RunConfig{})

	// Then: the run succeeds and every item is accounted for
	require.NoError(t, err)
	assert.Equal(t, summary.Total, summary.Success+len(summary.Failures))
	assert.Equal(t, []string{"/a.jpg", "/z.jpg"}, writer.added)
	assert.Equal(t, 1, writer.finalized)

	require.Len(t, summary.Failures, 3)
	ids := []string{summary.Failures[0].Identifier, summary.Failures[1].Identifier, summary.Failures[2].Identifier}
	assert.Equal(t, []string{"/broken.jpg", "/flat.jpg", "/reject.jpg"}, ids)
	assert.ErrorIs(t, summary.Failures[0].Cause, amerrors.ErrDecode)
	assert.ErrorIs(t, summary.Failures[1].Cause, amerrors.ErrBuild)
	assert.ErrorIs(t, summary.Failures[2].Cause, amerrors.ErrIndex)
	assert.Contains(t, summary.Failures[0].Reason(), "bad huffman table")
}

func TestDriver_Run_DroppedBatchRevokesEarlierSuccesses(t *testing.T) {
	// Given: a writer committing two records at a time whose first commit fails
	paths := []string{"/a.jpg", "/b.jpg", "/c.jpg"}
	writer := &batchingWriter{size: 2, failCommits: map[int]bool{1: true}}
	d := newDriver(t, &stubWalker{paths: paths}, &stubAcquirer{}, okBuilder(), writer, nil)

	// When: the batch runs
	summary, err := d.Run(context.Background(), RunConfig{})

	// Then: both records of the dropped batch are failures, only c succeeded
	require.NoError(t, err)
	assert.Equal(t, []string{"/c.jpg"}, writer.committed)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Thumbnails)
	require.Len(t, summary.Failures, 2)
	ids := []string{summary.Failures[0].Identifier, summary.Failures[1].Identifier}
	assert.ElementsMatch(t, []string{"/a.jpg", "/b.jpg"}, ids)
	for _, f := range summary.Failures {
		assert.ErrorIs(t, f.Cause, amerrors.ErrIndex)
	}
	assert.Equal(t, summary.Total, summary.Success+len(summary.Failures))
}

func TestDriver_Run_DroppedFinalBatchIsReported(t *testing.T) {
	// Given: the commit made by Finalize fails
	paths := []string{"/a.jpg", "/b.jpg", "/c.jpg"}
	writer := &batchingWriter{size: 2, failCommits: map[int]bool{2: true}}
	d := newDriver(t, &stubWalker{paths: paths}, &stubAcquirer{}, okBuilder(), writer, nil)

	// When: the batch runs
	summary, err := d.Run(context.Background(), RunConfig{})

	// Then: the run fails and the trailing record is no longer a success
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, []string{"/a.jpg", "/b.jpg"}, writer.committed)
	assert.Equal(t, 2, summary.Success)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "/c.jpg", summary.Failures[0].Identifier)
}

func TestDriver_Run_ProgressAndETA(t *testing.T) {
	// Given: a clock advancing one second per read
	paths := []string{"/1.jpg", "/2.jpg", "/3.jpg", "/4.jpg"}
	sink := &progressLog{}
	d := newDriver(t, &stubWalker{paths: paths}, &stubAcquirer{}, okBuilder(), &recordingWriter{}, sink)
	var tick int64
	base := time.Unix(1000, 0)
	d.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	// When: the batch runs
	_, err := d.Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	// Then: percentages climb, ETA is never negative and reaches zero
	require.Len(t, sink.events, 4)
	for i, ev := range sink.events {
		assert.Equal(t, i+1, ev.Completed)
		assert.InDelta(t, float64(i+1)/4, ev.Percentage, 1e-9)
		assert.GreaterOrEqual(t, ev.ETASeconds, 0.0)
	}
	// first event: elapsed 1s at 25% leaves 3s
	assert.InDelta(t, 3.0, sink.events[0].ETASeconds, 1e-9)
	assert.Zero(t, sink.events[3].ETASeconds)
	assert.Equal(t, 3*time.Second, sink.events[0].ETA())
}

func TestDriver_Run_ExplicitPaths(t *testing.T) {
	// Given: an explicit list with a duplicate, an excluded and a foreign file
	walker := &stubWalker{paths: []string{"/never.jpg"}}
	writer := &recordingWriter{}
	d := newDriver(t, walker, &stubAcquirer{}, okBuilder(), writer, nil)

	// When: run with Paths
	summary, err := d.Run(context.Background(), RunConfig{
		Paths:  []string{"/a.jpg", "/a.jpg", "/tn_a.jpg", "/notes.txt", "/b.PNG"},
		Append: true,
	})

	// Then: the walker is bypassed and only matching files are indexed
	require.NoError(t, err)
	assert.Nil(t, walker.opts)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, []string{"/a.jpg", "/b.PNG"}, writer.added)
}

func TestDriver_Run_Cancelled_FinalizesWhatWasWritten(t *testing.T) {
	// Given: a sink that cancels after the second item
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	paths := []string{"/1.jpg", "/2.jpg", "/3.jpg", "/4.jpg"}
	sink := ProgressFunc(func(p Progress) {
		if p.Completed == 2 {
			cancel()
		}
	})
	writer := &recordingWriter{}
	d := newDriver(t, &stubWalker{paths: paths}, &stubAcquirer{}, okBuilder(), writer, sink)

	// When: the run is interrupted
	summary, err := d.Run(ctx, RunConfig{})

	// Then: the context error is returned with a partial summary
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, []string{"/1.jpg", "/2.jpg"}, writer.added)
	assert.Equal(t, 1, writer.finalized)
	assert.Equal(t, 1, writer.closed)
}

func TestDriver_Run_WorkerPool(t *testing.T) {
	// Given: many candidates, some failing, and four workers
	var paths []string
	fail := map[string]error{}
	for i := 0; i < 40; i++ {
		p := filepath.Join("/c", string(rune('a'+i%26))+string(rune('0'+i/26))+".jpg")
		paths = append(paths, p)
		if i%7 == 0 {
			fail[p] = amerrors.DecodeError(p, errors.New("truncated"))
		}
	}
	writer := &recordingWriter{}
	sink := &progressLog{}
	acq := &stubAcquirer{fail: fail}
	d := newDriver(t, &stubWalker{paths: paths}, acq, okBuilder(), writer, sink)

	// When: run in parallel
	summary, err := d.Run(context.Background(), RunConfig{Workers: 4})

	// Then: totals match the sequential contract
	require.NoError(t, err)
	assert.Equal(t, 40, summary.Total)
	assert.Equal(t, len(fail), len(summary.Failures))
	assert.Equal(t, 40-len(fail), summary.Success)
	assert.Equal(t, int32(40), acq.calls.Load())

	// And: each good path was added exactly once
	added := append([]string(nil), writer.added...)
	sort.Strings(added)
	var want []string
	for _, p := range paths {
		if fail[p] == nil {
			want = append(want, p)
		}
	}
	sort.Strings(want)
	assert.Equal(t, want, added)

	// And: progress was reported by a single owner with strictly increasing counts
	require.Len(t, sink.events, 40)
	for i, ev := range sink.events {
		assert.Equal(t, i+1, ev.Completed)
	}
}

func TestDriver_Run_WorkerPool_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	paths := make([]string, 50)
	for i := range paths {
		paths[i] = filepath.Join("/c", "img"+string(rune('A'+i%26))+string(rune('a'+i/26))+".jpg")
	}
	sink := ProgressFunc(func(p Progress) {
		if p.Completed == 5 {
			cancel()
		}
	})
	writer := &recordingWriter{}
	d := newDriver(t, &stubWalker{paths: paths}, &stubAcquirer{}, okBuilder(), writer, sink)

	summary, err := d.Run(ctx, RunConfig{Workers: 3})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, summary.Completed())
	assert.Len(t, writer.added, 5)
	assert.Equal(t, 1, writer.finalized)
	assert.Equal(t, 1, writer.closed)
}

func TestEstimateRemaining(t *testing.T) {
	assert.Zero(t, EstimateRemaining(10*time.Second, 0, 10), "no estimate before the first item")
	assert.Zero(t, EstimateRemaining(10*time.Second, 10, 10))
	assert.Zero(t, EstimateRemaining(0, 1, 10))
	assert.Zero(t, EstimateRemaining(time.Second, 1, 0))
	assert.InDelta(t, 10.0, EstimateRemaining(10*time.Second, 5, 10), 1e-9)
	assert.InDelta(t, 90.0, EstimateRemaining(10*time.Second, 1, 10), 1e-9)
}

func TestSummary_String(t *testing.T) {
	s := &Summary{Total: 3, Success: 2, Failures: []Failure{{Identifier: "/x.jpg"}}, Duration: 1500 * time.Millisecond}

	assert.Equal(t, "2/3 indexed, 1 failed in 1.5s", s.String())
}

// End to end over real collaborators.
func TestDriver_Run_EndToEnd_SQLite(t *testing.T) {
	// Given: a corpus with two PNGs, a thumbnail-prefixed file and a corrupt file
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"), color.RGBA{R: 200, A: 255})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	writePNG(t, filepath.Join(root, "sub", "c.png"), color.RGBA{B: 200, A: 255})
	writePNG(t, filepath.Join(root, "tn_a.png"), color.RGBA{G: 200, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.png"), []byte("not a png"), 0o644))

	writer, err := store.NewWriter("sqlite", store.Options{Compression: store.CompressionZSTD})
	require.NoError(t, err)
	d, err := NewDriver(DriverDependencies{
		Walker:   scanner.New(),
		Acquirer: acquire.New(acquire.Options{}),
		Builder:  builder.Default(),
		Writer:   writer,
	})
	require.NoError(t, err)

	dataDir := t.TempDir()
	dest := store.IndexPath(dataDir, "sqlite")

	// When: the corpus is indexed recursively
	summary, err := d.Run(context.Background(), RunConfig{
		Walk:        scanner.WalkOptions{Root: root, Recursive: true},
		Destination: dest,
	})

	// Then: the two valid images are indexed and the corrupt one is reported
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Success)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "bad.png", filepath.Base(summary.Failures[0].Identifier))
	assert.ErrorIs(t, summary.Failures[0].Cause, amerrors.ErrDecode)

	info, err := store.ReadInfo(context.Background(), dataDir, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Records)
	assert.True(t, info.Finalized)
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			if (x/4+y/4)%2 == 0 {
				img.Set(x, y, c)
			} else {
				img.Set(x, y, color.Gray{Y: uint8(x * 8)})
			}
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}
