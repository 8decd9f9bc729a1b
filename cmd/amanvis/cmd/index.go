package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanvis/internal/config"
	"github.com/Aman-CERP/amanvis/internal/ui"
)

// indexFlags override configuration for one run. Only flags the user set
// are applied.
type indexFlags struct {
	noTUI       bool
	appendMode  bool
	recursive   bool
	backend     string
	builderName string
	compression string
	workers     int
}

func newIndexCmd() *cobra.Command {
	var flags indexFlags

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Extract features from every image under a directory",
		Long: `Walk a directory, extract the configured descriptors from each image and
write one record per image to the index in <path>/.amanvis.

Images whose names start with "tn_" are treated as generated thumbnails
and skipped. Embedded EXIF thumbnails are used instead of a full decode
when available.

Without --append the existing index is replaced.`,
		Example: `  # Index the current directory with the default builder
  amanvis index

  # Rebuild with CEDD into a Bleve index
  amanvis index ~/Pictures --builder cedd --backend bleve

  # Add new images to an existing index
  amanvis index ~/Pictures --append`,
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
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			return runIndex(ctx, cmd, cfg, root, flags.noTUI)
		},
	}

	cmd.Flags().BoolVar(&flags.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&flags.appendMode, "append", false, "Add to the existing index instead of replacing it")
	cmd.Flags().BoolVar(&flags.recursive, "recursive", true, "Descend into sub-directories")
	cmd.Flags().StringVar(&flags.backend, "backend", "", "Index backend: sqlite or bleve")
	cmd.Flags().StringVar(&flags.builderName, "builder", "", "Document builder, see 'amanvis builders'")
	cmd.Flags().StringVar(&flags.compression, "compression", "", "Compact payload compression: none, lz4 or zstd")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Parallel extraction workers (1 is sequential)")

	return cmd
}

// apply copies changed flags onto cfg and re-validates it.
func (f *indexFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("append") {
		cfg.Index.Append = f.appendMode
	}
	if changed("recursive") {
		cfg.Index.Recursive = f.recursive
	}
	if changed("backend") {
		cfg.Index.Backend = f.backend
	}
	if changed("builder") {
		cfg.Index.Builder = f.builderName
	}
	if changed("compression") {
		cfg.Index.Compression = f.compression
	}
	if changed("workers") {
		cfg.Performance.Workers = f.workers
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func runIndex(ctx context.Context, cmd *cobra.Command, cfg *config.Config, root string, noTUI bool) error {
	uiCfg := ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(noTUI), ui.WithNoColor(noColor), ui.WithRoot(root))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	b, err := newBuilder(cfg)
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, root, b, rendererSink{renderer: renderer})
	if err != nil {
		return err
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "Scanning " + root})

	slog.Info("index_started",
		slog.String("root", root),
		slog.String("destination", p.destination),
		slog.Bool("append", cfg.Index.Append))

	summary, err := p.driver.Run(ctx, p.runConfig(cfg.Index.Append, nil))
	if summary != nil {
		renderer.Complete(completionStats(p, summary))
		slog.Info("index_finished",
			slog.String("summary", summary.String()),
			slog.Int("thumbnails", summary.Thumbnails))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Interrupted: partial index finalized")
			return nil
		}
		return err
	}
	return nil
}
