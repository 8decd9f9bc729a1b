package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/amanvis/internal/acquire"
	"github.com/Aman-CERP/amanvis/internal/builder"
	"github.com/Aman-CERP/amanvis/internal/config"
	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/index"
	"github.com/Aman-CERP/amanvis/internal/scanner"
	"github.com/Aman-CERP/amanvis/internal/store"
)

// pipeline is an index driver wired from configuration.
type pipeline struct {
	cfg         *config.Config
	root        string
	dataDir     string
	destination string
	driver      *index.Driver
}

// resolveRoot returns the absolute corpus root for a command argument.
func resolveRoot(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", amerrors.TraversalError(abs, err)
	}
	if !info.IsDir() {
		return "", amerrors.TraversalError(abs, fmt.Errorf("not a directory"))
	}
	return abs, nil
}

// walkOptions maps the paths section of cfg onto a corpus walk.
func walkOptions(cfg *config.Config, root string) scanner.WalkOptions {
	return scanner.WalkOptions{
		Root:            root,
		Recursive:       cfg.Index.Recursive,
		Extensions:      cfg.Paths.Extensions,
		ExcludePrefixes: cfg.Paths.ExcludePrefixes,
		SkipDirs:        cfg.Paths.SkipDirs,
		FollowSymlinks:  cfg.Paths.FollowSymlinks,
	}
}

// newBuilder resolves the configured builder, wrapped in the pixel cache
// when one is configured.
func newBuilder(cfg *config.Config) (builder.Builder, error) {
	b, err := builder.ByName(cfg.Index.Builder)
	if err != nil {
		return nil, err
	}
	if cfg.Performance.CacheSize > 0 {
		return builder.NewCached(b, cfg.Performance.CacheSize), nil
	}
	return b, nil
}

// newPipeline wires walker, acquirer, b and a fresh writer for root.
func newPipeline(cfg *config.Config, root string, b builder.Builder, progress index.ProgressSink) (*pipeline, error) {
	compression, err := store.ParseCompression(cfg.Index.Compression)
	if err != nil {
		return nil, err
	}
	writer, err := store.NewWriter(cfg.Index.Backend, store.Options{Compression: compression})
	if err != nil {
		return nil, err
	}

	driver, err := index.NewDriver(index.DriverDependencies{
		Walker:   scanner.New(),
		Acquirer: acquire.New(acquire.Options{IOLimitBytesPerSec: cfg.Performance.IOLimitBytesPerSec}),
		Builder:  b,
		Writer:   writer,
		Progress: progress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index driver: %w", err)
	}

	dataDir := cfg.DataDir(root)
	p := &pipeline{
		cfg:         cfg,
		root:        root,
		dataDir:     dataDir,
		destination: store.IndexPath(dataDir, cfg.Index.Backend),
		driver:      driver,
	}
	slog.Debug("pipeline_ready",
		slog.String("root", root),
		slog.String("destination", p.destination),
		slog.String("backend", cfg.Index.Backend),
		slog.String("builder", cfg.Index.Builder),
		slog.String("compression", string(compression)),
		slog.Int("workers", cfg.Performance.Workers))
	return p, nil
}

// runConfig returns the driver configuration for a full walk. Paths, when
// non-nil, restricts the run to those files.
func (p *pipeline) runConfig(appendMode bool, paths []string) index.RunConfig {
	return index.RunConfig{
		Walk:        walkOptions(p.cfg, p.root),
		Paths:       paths,
		Destination: p.destination,
		Append:      appendMode,
		Workers:     p.cfg.Performance.Workers,
	}
}
