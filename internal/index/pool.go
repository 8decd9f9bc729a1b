package index

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runPool acquires and builds with a bounded set of workers. Results flow
// through one channel to the calling goroutine, which alone adds records,
// updates the summary and reports progress.
func (d *Driver) runPool(ctx context.Context, paths []string, workers int, st *runState) {
	workers = min(workers, len(paths))

	jobs := make(chan string)
	results := make(chan item, workers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- path:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for path := range jobs {
				if gctx.Err() != nil {
					continue
				}
				results <- d.process(gctx, path)
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	// Drain everything so no worker blocks; after cancellation remaining
	// results are dropped without touching the index.
	for it := range results {
		if ctx.Err() != nil {
			continue
		}
		st.record(ctx, it)
	}
}
