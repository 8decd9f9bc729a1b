package ui

import (
	"sync"
	"time"
)

// ProgressTracker holds the latest progress state for the TUI.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	percentage  float64
	eta         time.Duration
	currentFile string
	stageStart  time.Time
	errors      []ErrorEvent
	warnings    []ErrorEvent

	// throughput, sampled at most every speedWindow
	lastCurrent   int
	lastSpeedCalc time.Time
	speed         float64
	peakSpeed     float64
}

// speedWindow is the minimum interval between throughput samples.
const speedWindow = 500 * time.Millisecond

// ProgressStats is a snapshot of the tracker.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
	Speed       float64 // images/sec
	PeakSpeed   float64
}

// NewProgressTracker creates a tracker in the scanning stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{stage: StageScanning, stageStart: now, lastSpeedCalc: now}
}

// SetStage transitions to stage and resets per-stage counters.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.stage = stage
	p.total = total
	p.current = 0
	p.percentage = 0
	p.eta = 0
	p.currentFile = ""
	p.stageStart = now
	p.lastCurrent = 0
	p.lastSpeedCalc = now
	p.speed = 0
	p.peakSpeed = 0
}

// Apply records a progress event, switching stage if it changed.
func (p *ProgressTracker) Apply(event ProgressEvent) {
	p.mu.RLock()
	stageChanged := event.Stage != p.stage
	p.mu.RUnlock()
	if stageChanged {
		p.SetStage(event.Stage, event.Total)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = event.Current
	p.total = event.Total
	p.percentage = event.Percentage
	if p.percentage == 0 && event.Total > 0 {
		p.percentage = float64(event.Current) / float64(event.Total)
	}
	p.eta = event.ETA
	if event.CurrentFile != "" {
		p.currentFile = event.CurrentFile
	}

	now := time.Now()
	if elapsed := now.Sub(p.lastSpeedCalc); elapsed >= speedWindow {
		if delta := p.current - p.lastCurrent; delta > 0 {
			p.speed = float64(delta) / elapsed.Seconds()
			if p.speed > p.peakSpeed {
				p.peakSpeed = p.speed
			}
		}
		p.lastCurrent = p.current
		p.lastSpeedCalc = now
	}
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	progress := p.percentage
	if progress > 1 {
		progress = 1
	}
	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    progress,
		ETA:         p.eta,
		CurrentFile: p.currentFile,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
		Speed:       p.speed,
		PeakSpeed:   p.peakSpeed,
	}
}

// Errors returns recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]ErrorEvent(nil), p.errors...)
}

// Warnings returns recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]ErrorEvent(nil), p.warnings...)
}
