package cmd

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanvis/internal/config"
	"github.com/Aman-CERP/amanvis/internal/store"
	"github.com/Aman-CERP/amanvis/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show index status",
		Long: `Display information about the index of a directory:
  - Backend, builder and location
  - Number of stored records
  - Whether the last run finalized the index
  - Size on disk and last write time`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(args)
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), cmd, cfg, root, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, cfg *config.Config, root string, jsonOutput bool) error {
	info, err := collectStatus(ctx, cfg, root)
	if err != nil {
		return err
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(ctx context.Context, cfg *config.Config, root string) (ui.StatusInfo, error) {
	idx, err := store.ReadInfo(ctx, cfg.DataDir(root), cfg.Index.Backend)
	if err != nil {
		return ui.StatusInfo{}, err
	}

	status := ui.StatusInfo{
		Path:      idx.Path,
		Backend:   string(idx.Backend),
		Builder:   cfg.Index.Builder,
		Records:   idx.Records,
		Finalized: idx.Finalized,
	}
	status.SizeBytes, status.LastIndexed = diskUsage(idx.Path)
	return status, nil
}

// diskUsage returns the total size and newest modification time of path,
// which is a file for SQLite and a directory for Bleve.
func diskUsage(path string) (size int64, modTime time.Time) {
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		if info.ModTime().After(modTime) {
			modTime = info.ModTime()
		}
		return nil
	})
	for _, suffix := range []string{"-wal", "-shm"} {
		if info, err := os.Stat(path + suffix); err == nil {
			size += info.Size()
		}
	}
	return size, modTime
}
