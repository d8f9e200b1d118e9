// Package overlay owns the presentational state drawn over the preview:
// the rule-of-thirds grid and the draggable subtitle.
package overlay

import (
	"context"
	"sync"
	"time"

	"coachcam/internal/domain"
	"coachcam/internal/schedule"
)

// DefaultGridInterval is the redraw period while the grid is visible.
const DefaultGridInterval = 500 * time.Millisecond

// ThirdsLines returns the two vertical and two horizontal guidelines that
// split a w by h box into thirds. An empty box has no lines.
func ThirdsLines(w, h float64) []domain.GridLine {
	if w <= 0 || h <= 0 {
		return []domain.GridLine{}
	}
	return []domain.GridLine{
		{X1: w / 3, Y1: 0, X2: w / 3, Y2: h},
		{X1: w / 3 * 2, Y1: 0, X2: w / 3 * 2, Y2: h},
		{X1: 0, Y1: h / 3, X2: w, Y2: h / 3},
		{X1: 0, Y1: h / 3 * 2, X2: w, Y2: h / 3 * 2},
	}
}

// Grid redraws guidelines for the current video box while it is enabled
// and the camera is streaming.
type Grid struct {
	emit     func([]domain.GridLine)
	interval time.Duration

	// opMu serializes reconfiguration; mu guards the fields a redraw reads.
	opMu      sync.Mutex
	mu        sync.Mutex
	enabled   bool
	streaming bool
	width     float64
	height    float64

	task schedule.Slot
}

func NewGrid(enabled bool, interval time.Duration, emit func([]domain.GridLine)) *Grid {
	if interval <= 0 {
		interval = DefaultGridInterval
	}
	if emit == nil {
		emit = func([]domain.GridLine) {}
	}
	return &Grid{emit: emit, interval: interval, enabled: enabled}
}

// SetEnabled shows or hides the grid. Hiding stops the redraw task and
// clears the overlay immediately.
func (g *Grid) SetEnabled(ctx context.Context, enabled bool) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	g.enabled = enabled
	g.mu.Unlock()
	g.reconcile(ctx)
}

// SetStreaming restarts the redraw task for a new stream, or tears it down
// when streaming stops.
func (g *Grid) SetStreaming(ctx context.Context, streaming bool) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.Lock()
	g.streaming = streaming
	g.mu.Unlock()
	g.reconcile(ctx)
}

// Resize records the rendered video box and redraws at once.
func (g *Grid) Resize(w, h float64) {
	g.mu.Lock()
	g.width, g.height = w, h
	g.mu.Unlock()
	g.redraw()
}

func (g *Grid) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

func (g *Grid) reconcile(ctx context.Context) {
	if !g.active() {
		g.task.Stop()
		g.emit([]domain.GridLine{})
		return
	}
	g.redraw()
	g.task.Replace(schedule.Every(ctx, g.interval, func(context.Context) {
		g.redraw()
	}))
}

func (g *Grid) active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled && g.streaming
}

func (g *Grid) redraw() {
	g.mu.Lock()
	active := g.enabled && g.streaming
	w, h := g.width, g.height
	g.mu.Unlock()

	if !active {
		return
	}
	g.emit(ThirdsLines(w, h))
}
