// Package scanner enumerates candidate image files under a corpus root.
package scanner

import (
	"path/filepath"
	"strings"
)

// DefaultExtensions are the image file extensions accepted by default.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// DefaultExcludePrefixes skips generated thumbnails.
var DefaultExcludePrefixes = []string{"tn_"}

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{".git", ".amanvis"}

// WalkOptions configures a corpus walk.
type WalkOptions struct {
	// Root is the corpus directory.
	Root string

	// Recursive descends into sub-directories.
	Recursive bool

	// Extensions are accepted file extensions, matched case-insensitively.
	// Empty means DefaultExtensions.
	Extensions []string

	// ExcludePrefixes rejects file names starting with any prefix.
	// Matching is case-sensitive. Nil means DefaultExcludePrefixes.
	ExcludePrefixes []string

	// SkipDirs are directory names that are never entered.
	// Nil means DefaultSkipDirs.
	SkipDirs []string

	// FollowSymlinks resolves symbolic links to files and directories.
	FollowSymlinks bool
}

// Matcher decides whether a file name is a candidate image.
type Matcher struct {
	exts     map[string]struct{}
	excludes []string
}

// NewMatcher builds a matcher from opts, applying defaults.
func NewMatcher(opts *WalkOptions) *Matcher {
	exts := DefaultExtensions
	excludes := DefaultExcludePrefixes
	if opts != nil {
		if len(opts.Extensions) > 0 {
			exts = opts.Extensions
		}
		if opts.ExcludePrefixes != nil {
			excludes = opts.ExcludePrefixes
		}
	}

	m := &Matcher{exts: make(map[string]struct{}, len(exts)), excludes: excludes}
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m.exts[e] = struct{}{}
	}
	return m
}

// Match reports whether the base name of path is an accepted image.
func (m *Matcher) Match(path string) bool {
	name := filepath.Base(path)
	for _, p := range m.excludes {
		if p != "" && strings.HasPrefix(name, p) {
			return false
		}
	}
	_, ok := m.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}
