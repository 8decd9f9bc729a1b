package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanvis/internal/builder"
	"github.com/Aman-CERP/amanvis/internal/config"
	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/index"
	"github.com/Aman-CERP/amanvis/internal/output"
	"github.com/Aman-CERP/amanvis/internal/store"
	"github.com/Aman-CERP/amanvis/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		poll    bool
		initial bool
	)

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Keep the index current as images are added or changed",
		Long: `Watch a directory and re-index new or modified images as they appear.

Changes are debounced (performance.watch_debounce) and each batch is
appended to the existing index. When no index exists yet, or with
--initial, a full run is made first.

Deleted images stay in the index until the next full 'amanvis index'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root, err := resolveRoot(args)
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			return runWatch(ctx, cmd, cfg, root, poll, initial)
		},
	}

	cmd.Flags().BoolVar(&poll, "poll", false, "Poll the directory instead of using filesystem events")
	cmd.Flags().BoolVar(&initial, "initial", false, "Rebuild the whole index before watching")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, root string, poll, initial bool) error {
	out := output.New(cmd.OutOrStdout())

	b, err := newBuilder(cfg)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Options{
		Walk:         walkOptions(cfg, root),
		Debounce:     cfg.Debounce(),
		ForcePolling: poll,
	})
	if err != nil {
		return err
	}

	dest := store.IndexPath(cfg.DataDir(root), cfg.Index.Backend)
	if _, statErr := os.Stat(dest); initial || statErr != nil {
		out.Statusf("🔍", "Indexing %s", root)
		if err := indexBatch(ctx, out, cfg, root, b, nil); err != nil {
			_ = w.Close()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	out.Statusf("👀", "Watching %s (%s)", w.Root(), w.Mode())
	slog.Info("watch_started", slog.String("root", w.Root()), slog.String("mode", w.Mode()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		return consumeBatches(gctx, w.Batches(), busyRetryDelay, func(ctx context.Context, paths []string) error {
			return indexBatch(ctx, out, cfg, root, b, paths)
		}, func(n int) {
			out.Warningf("index busy, %d images queued for retry", n)
		})
	})

	err = g.Wait()
	out.Status("👋", "Stopped watching")
	return err
}

// busyRetryDelay is how long queued paths wait after the index was locked.
const busyRetryDelay = 2 * time.Second

// consumeBatches indexes the changed paths of each batch. When the index is
// locked by another process the paths stay queued, merged with later
// changes, and are retried after retryDelay.
func consumeBatches(ctx context.Context, batches <-chan []watcher.Event, retryDelay time.Duration,
	run func(ctx context.Context, paths []string) error, busy func(queued int)) error {
	var (
		queued []string
		retry  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			changed, removed := watcher.Split(batch)
			for _, path := range removed {
				slog.Info("watch_image_removed", slog.String("path", path))
			}
			queued = mergeQueued(queued, changed, removed)
		case <-retry:
			retry = nil
		}

		if len(queued) == 0 || retry != nil {
			continue
		}
		if err := run(ctx, queued); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if amerrors.IsRetryable(err) {
				busy(len(queued))
				retry = time.After(retryDelay)
				continue
			}
			return err
		}
		queued = nil
	}
}

// mergeQueued adds changed to queued, drops removed paths and returns the
// result sorted without duplicates.
func mergeQueued(queued, changed, removed []string) []string {
	set := make(map[string]struct{}, len(queued)+len(changed))
	for _, p := range queued {
		set[p] = struct{}{}
	}
	for _, p := range changed {
		set[p] = struct{}{}
	}
	for _, p := range removed {
		delete(set, p)
	}
	merged := make([]string, 0, len(set))
	for p := range set {
		merged = append(merged, p)
	}
	sort.Strings(merged)
	return merged
}

// indexBatch runs one driver pass. Nil paths means the full corpus, which
// replaces the index; explicit paths are appended.
func indexBatch(ctx context.Context, out *output.Writer, cfg *config.Config, root string, b builder.Builder, paths []string) error {
	p, err := newPipeline(cfg, root, b, index.ProgressFunc(func(pr index.Progress) {
		if pr.Err != nil {
			out.Errorf("%s: %s", pr.Identifier, amerrors.FormatCause(pr.Err))
		}
	}))
	if err != nil {
		return err
	}

	summary, err := p.driver.Run(ctx, p.runConfig(paths != nil, paths))
	if err != nil {
		return err
	}
	if summary.Total > 0 {
		out.Successf("%s", summary.String())
	}
	slog.Info("watch_batch_indexed",
		slog.String("summary", summary.String()),
		slog.Int("requested", len(paths)))
	return nil
}
