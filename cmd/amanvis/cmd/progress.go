package cmd

import (
	"errors"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/index"
	"github.com/Aman-CERP/amanvis/internal/ui"
)

// rendererSink forwards driver progress to a ui.Renderer.
type rendererSink struct {
	renderer ui.Renderer
}

// Report implements index.ProgressSink. Failures are shown as a one-line
// cause rather than the full error chain.
func (s rendererSink) Report(p index.Progress) {
	if p.Err != nil {
		s.renderer.AddError(ui.ErrorEvent{File: p.Identifier, Err: errors.New(amerrors.FormatCause(p.Err))})
	}
	s.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:       ui.StageExtracting,
		Current:     p.Completed,
		Total:       p.Total,
		Percentage:  p.Percentage,
		ETA:         p.ETA(),
		CurrentFile: p.Identifier,
	})
}

// completionStats summarizes a driver run for the renderer.
func completionStats(p *pipeline, summary *index.Summary) ui.CompletionStats {
	return ui.CompletionStats{
		Files:       summary.Total,
		Indexed:     summary.Success,
		Failed:      len(summary.Failures),
		Duration:    summary.Duration,
		Backend:     p.cfg.Index.Backend,
		Builder:     p.cfg.Index.Builder,
		Destination: p.destination,
	}
}
