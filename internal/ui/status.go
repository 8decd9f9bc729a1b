package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes a persisted index.
type StatusInfo struct {
	Path        string    `json:"path"`
	Backend     string    `json:"backend"`
	Builder     string    `json:"builder"`
	Records     int       `json:"records"`
	Finalized   bool      `json:"finalized"`
	SizeBytes   int64     `json:"size_bytes"`
	LastIndexed time.Time `json:"last_indexed"`
}

// StatusRenderer prints index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints info for a terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	state := r.styles.Success.Render("finalized")
	if !info.Finalized {
		state = r.styles.Warning.Render("incomplete")
	}

	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.Path))
	_, _ = fmt.Fprintf(r.out, "  Backend:      %s\n", info.Backend)
	if info.Builder != "" {
		_, _ = fmt.Fprintf(r.out, "  Builder:      %s\n", info.Builder)
	}
	_, _ = fmt.Fprintf(r.out, "  Records:      %d\n", info.Records)
	_, _ = fmt.Fprintf(r.out, "  State:        %s\n", state)
	_, _ = fmt.Fprintf(r.out, "  Size:         %s\n", FormatBytes(info.SizeBytes))
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(info.LastIndexed, time.Now()))
	}
	return nil
}

// RenderJSON prints info as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatTime renders t relative to now.
func formatTime(t, now time.Time) string {
	diff := now.Sub(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats a byte count for humans.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
