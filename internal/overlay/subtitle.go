package overlay

import (
	"sync"

	"coachcam/internal/domain"
)

var snapFractions = map[domain.SnapPreset]domain.SubtitlePosition{
	domain.SnapTop:    {X: 0.5, Y: 0.15},
	domain.SnapCenter: {X: 0.5, Y: 0.5},
	domain.SnapBottom: {X: 0.5, Y: 0.85},
}

type dragState int

const (
	dragIdle dragState = iota
	dragActive
)

// Subtitle tracks the subtitle anchor and the drag gesture moving it.
// The anchor always lies inside the container.
type Subtitle struct {
	mu sync.Mutex

	width  float64
	height float64
	pos    domain.SubtitlePosition

	state     dragState
	pointerID int
	offset    domain.SubtitlePosition
}

// NewSubtitle starts at the bottom preset of a w by h container.
func NewSubtitle(w, h float64) *Subtitle {
	s := &Subtitle{width: max(w, 0), height: max(h, 0)}
	s.pos = s.snapLocked(domain.SnapBottom)
	return s
}

func (s *Subtitle) Position() domain.SubtitlePosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *Subtitle) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == dragActive
}

// PointerDown captures pointerID. It is ignored while another pointer
// holds the drag.
func (s *Subtitle) PointerDown(pointerID int, x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == dragActive && s.pointerID != pointerID {
		return false
	}
	s.state = dragActive
	s.pointerID = pointerID
	s.offset = domain.SubtitlePosition{X: s.pos.X - x, Y: s.pos.Y - y}
	return true
}

// PointerMove moves the anchor with the captured pointer. Other pointers
// and moves outside a drag are ignored.
func (s *Subtitle) PointerMove(pointerID int, x, y float64) (domain.SubtitlePosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != dragActive || s.pointerID != pointerID {
		return s.pos, false
	}
	s.pos = s.clampLocked(domain.SubtitlePosition{X: x + s.offset.X, Y: y + s.offset.Y})
	return s.pos, true
}

func (s *Subtitle) PointerUp(pointerID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != dragActive || s.pointerID != pointerID {
		return false
	}
	s.state = dragIdle
	s.offset = domain.SubtitlePosition{}
	return true
}

func (s *Subtitle) Snap(preset domain.SnapPreset) domain.SubtitlePosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = s.snapLocked(preset)
	return s.pos
}

// SetContainer records new container bounds and re-clamps the anchor.
func (s *Subtitle) SetContainer(w, h float64) domain.SubtitlePosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = max(w, 0), max(h, 0)
	s.pos = s.clampLocked(s.pos)
	return s.pos
}

func (s *Subtitle) snapLocked(preset domain.SnapPreset) domain.SubtitlePosition {
	fraction, ok := snapFractions[preset]
	if !ok {
		return s.pos
	}
	return s.clampLocked(domain.SubtitlePosition{X: s.width * fraction.X, Y: s.height * fraction.Y})
}

func (s *Subtitle) clampLocked(pos domain.SubtitlePosition) domain.SubtitlePosition {
	return domain.SubtitlePosition{
		X: clamp(pos.X, 0, s.width),
		Y: clamp(pos.Y, 0, s.height),
	}
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
