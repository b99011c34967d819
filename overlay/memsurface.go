package overlay

import (
	"context"
	"sync"
)

// MemSurface is an in-memory Surface that records what the presenter asked
// it to do. It backs the presenter and session tests; its Emit method plays
// the role of the page delivering pointer and toggle events.
type MemSurface struct {
	mu        sync.Mutex
	created   bool
	removed   int
	visible   bool
	minimized bool
	x, y      int
	anchored  bool
	count     int
	sum       string
	renders   int

	// Injectable failures.
	EnsureErr error
	RenderErr error

	events chan Event
}

// NewMemSurface creates an empty surface with an unpositioned (anchored)
// widget slot.
func NewMemSurface() *MemSurface {
	return &MemSurface{anchored: true, events: make(chan Event, 16)}
}

// Emit delivers a widget event, as the page would.
func (s *MemSurface) Emit(ev Event) { s.events <- ev }

func (s *MemSurface) Ensure(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EnsureErr != nil {
		return s.EnsureErr
	}
	s.created = true
	return nil
}

func (s *MemSurface) SetVisible(_ context.Context, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
	return nil
}

func (s *MemSurface) Render(_ context.Context, count int, sum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RenderErr != nil {
		return s.RenderErr
	}
	s.count, s.sum = count, sum
	s.renders++
	return nil
}

func (s *MemSurface) SetMinimized(_ context.Context, minimized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minimized = minimized
	return nil
}

func (s *MemSurface) MoveTo(_ context.Context, x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.x, s.y = x, y
	s.anchored = false
	return nil
}

func (s *MemSurface) Remove(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = false
	s.visible = false
	s.removed++
	return nil
}

func (s *MemSurface) Events() <-chan Event { return s.events }

// Created reports whether the widget currently exists.
func (s *MemSurface) Created() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Visible reports the widget's visibility.
func (s *MemSurface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Minimized reports the collapse state.
func (s *MemSurface) Minimized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minimized
}

// Position returns the widget position and whether it is still corner-anchored.
func (s *MemSurface) Position() (x, y int, anchored bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y, s.anchored
}

// Rendered returns the last written count and sum, and the render call count.
func (s *MemSurface) Rendered() (count int, sum string, calls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, s.sum, s.renders
}

// Removed returns how many times Remove was called.
func (s *MemSurface) Removed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}
