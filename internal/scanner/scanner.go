package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
)

// Scanner walks corpus directories.
type Scanner struct{}

// New creates a new Scanner.
func New() *Scanner {
	return &Scanner{}
}

// frame is one directory being listed on the walk stack.
type frame struct {
	dir     string
	entries []os.DirEntry
	pos     int
}

// Walk returns the canonical paths of all candidate images under opts.Root.
//
// Directory entries are visited in listing order. With Recursive set, a
// sub-directory is fully walked as soon as it is reached, before the
// remaining entries of its parent, so results follow depth-first pre-order.
// An explicit stack replaces recursion. Each file appears at most once.
//
// A missing or non-directory root is a TraversalError. A root with no
// matching files yields an empty result.
func (s *Scanner) Walk(ctx context.Context, opts *WalkOptions) ([]string, error) {
	if opts == nil {
		opts = &WalkOptions{}
	}
	rootDir := opts.Root
	if rootDir == "" {
		rootDir = "."
	}

	root, err := canonical(rootDir)
	if err != nil {
		return nil, amerrors.TraversalError(rootDir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, amerrors.TraversalError(rootDir, err)
	}
	if !info.IsDir() {
		return nil, amerrors.TraversalError(rootDir, fmt.Errorf("root path is not a directory: %s", root))
	}

	matcher := NewMatcher(opts)
	skipDirs := opts.SkipDirs
	if skipDirs == nil {
		skipDirs = DefaultSkipDirs
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, amerrors.TraversalError(rootDir, err)
	}

	results := []string{}
	seenFiles := make(map[string]struct{})
	seenDirs := map[string]struct{}{root: {}}
	stack := []*frame{{dir: root, entries: entries}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		if top.pos >= len(top.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		entry := top.entries[top.pos]
		top.pos++

		path := filepath.Join(top.dir, entry.Name())
		isDir, isFile := entry.IsDir(), entry.Type().IsRegular()

		if entry.Type()&os.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				slog.Debug("skipping symlink", slog.String("path", path))
				continue
			}
			target, err := canonical(path)
			if err != nil {
				slog.Warn("skipping broken symlink", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			ti, err := os.Stat(target)
			if err != nil {
				continue
			}
			path = target
			isDir, isFile = ti.IsDir(), ti.Mode().IsRegular()
		}

		switch {
		case isDir:
			if !opts.Recursive || slices.Contains(skipDirs, entry.Name()) {
				continue
			}
			if _, seen := seenDirs[path]; seen {
				continue
			}
			seenDirs[path] = struct{}{}

			children, err := os.ReadDir(path)
			if err != nil {
				slog.Warn("skipping unreadable directory",
					slog.String("path", path),
					slog.String("error", err.Error()))
				continue
			}
			stack = append(stack, &frame{dir: path, entries: children})

		case isFile:
			if !matcher.Match(entry.Name()) {
				continue
			}
			if _, seen := seenFiles[path]; seen {
				continue
			}
			seenFiles[path] = struct{}{}
			results = append(results, path)
		}
	}

	slog.Debug("corpus walk complete",
		slog.String("root", root),
		slog.Bool("recursive", opts.Recursive),
		slog.Int("files", len(results)))

	return results, nil
}

// canonical returns the absolute, symlink-resolved form of path.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
