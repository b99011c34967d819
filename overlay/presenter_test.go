package overlay

import (
	"context"
	"errors"
	"testing"

	"github.com/anowarzz/pricewatch/lifecycle"
	"github.com/anowarzz/pricewatch/scan"
)

func newPresenter() (*Presenter, *MemSurface, *lifecycle.Guard) {
	s := NewMemSurface()
	g := lifecycle.NewGuard(nil)
	return NewPresenter(s, g, nil), s, g
}

func TestRenderCreatesAndShows(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newPresenter()

	p.Render(ctx, scan.Totals{Sum: 15.5, Count: 2, FieldsFound: true})

	if !s.Created() {
		t.Fatal("widget not created")
	}
	if !s.Visible() || !p.Visible() {
		t.Error("widget not visible after a pass with fields")
	}
	count, sum, _ := s.Rendered()
	if count != 2 || sum != "15.50" {
		t.Errorf("rendered (%d, %q), want (2, %q)", count, sum, "15.50")
	}
}

func TestRenderHidesWhenFieldsVanish(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newPresenter()

	p.Render(ctx, scan.Totals{Sum: 1, Count: 1, FieldsFound: true})
	_, _, calls := s.Rendered()

	p.Render(ctx, scan.Totals{FieldsFound: false})

	if s.Visible() || p.Visible() {
		t.Error("widget still visible after a pass with no fields")
	}
	if _, _, after := s.Rendered(); after != calls {
		t.Error("rendered content while hidden")
	}
	if !s.Created() {
		t.Error("hiding must not remove the widget")
	}
}

func TestRenderEnsureFailureDeactivates(t *testing.T) {
	ctx := context.Background()
	p, s, g := newPresenter()
	s.EnsureErr = errors.New("page refuses writes")

	p.Render(ctx, scan.Totals{Sum: 1, Count: 1, FieldsFound: true})

	if g.Active() {
		t.Fatal("guard still active after failed widget creation")
	}
	// Further renders are no-ops.
	s.EnsureErr = nil
	p.Render(ctx, scan.Totals{Sum: 1, Count: 1, FieldsFound: true})
	if s.Created() {
		t.Error("render proceeded after deactivation")
	}
}

func TestRenderPaintFailureIsLocal(t *testing.T) {
	ctx := context.Background()
	p, s, g := newPresenter()

	p.Render(ctx, scan.Totals{Sum: 1, Count: 1, FieldsFound: true})
	s.RenderErr = errors.New("transient")
	p.Render(ctx, scan.Totals{Sum: 2, Count: 1, FieldsFound: true})

	if !g.Active() {
		t.Fatal("paint failure deactivated the session")
	}

	s.RenderErr = nil
	p.Render(ctx, scan.Totals{Sum: 3, Count: 1, FieldsFound: true})
	_, sum, _ := s.Rendered()
	if sum != "3.00" {
		t.Errorf("next pass did not heal the widget: sum %q", sum)
	}
}

func TestDragClampsToViewport(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newPresenter()
	p.Render(ctx, scan.Totals{Sum: 1, Count: 1, FieldsFound: true})

	widget := Rect{X: 100, Y: 50, W: 200, H: 80}
	viewport := Size{W: 1000, H: 600}

	// Grab the widget 10,5 inside its corner.
	p.HandleEvent(ctx, Event{Kind: PointerDown, X: 110, Y: 55, Widget: widget, Viewport: viewport})

	// Ordinary move: widget top-left follows pointer minus grab offset.
	p.HandleEvent(ctx, Event{Kind: PointerMove, X: 310, Y: 255, Widget: widget, Viewport: viewport})
	x, y, anchored := s.Position()
	if anchored {
		t.Fatal("widget still anchored after move")
	}
	if x != 300 || y != 250 {
		t.Errorf("position = (%d,%d), want (300,250)", x, y)
	}

	// Push far beyond the right/bottom edge: clamped so it stays fully on
	// screen.
	p.HandleEvent(ctx, Event{Kind: PointerMove, X: 5000, Y: 5000, Widget: widget, Viewport: viewport})
	x, y, _ = s.Position()
	if x != viewport.W-widget.W || y != viewport.H-widget.H {
		t.Errorf("position = (%d,%d), want (%d,%d)", x, y, viewport.W-widget.W, viewport.H-widget.H)
	}

	// And past the top-left corner.
	p.HandleEvent(ctx, Event{Kind: PointerMove, X: -500, Y: -500, Widget: widget, Viewport: viewport})
	x, y, _ = s.Position()
	if x != 0 || y != 0 {
		t.Errorf("position = (%d,%d), want (0,0)", x, y)
	}

	// Release: moves no longer track.
	p.HandleEvent(ctx, Event{Kind: PointerUp, X: 0, Y: 0, Widget: widget, Viewport: viewport})
	p.HandleEvent(ctx, Event{Kind: PointerMove, X: 400, Y: 400, Widget: widget, Viewport: viewport})
	x, y, _ = s.Position()
	if x != 0 || y != 0 {
		t.Errorf("moved while not dragging: (%d,%d)", x, y)
	}
}

func TestToggleCollapse(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newPresenter()
	p.Render(ctx, scan.Totals{Sum: 1, Count: 1, FieldsFound: true})

	p.HandleEvent(ctx, Event{Kind: Toggle})
	if !p.Minimized() || !s.Minimized() {
		t.Error("widget not minimized after toggle")
	}
	p.HandleEvent(ctx, Event{Kind: Toggle})
	if p.Minimized() || s.Minimized() {
		t.Error("widget still minimized after second toggle")
	}
}

func TestEventsIgnoredAfterDeactivation(t *testing.T) {
	ctx := context.Background()
	p, s, g := newPresenter()
	p.Render(ctx, scan.Totals{Sum: 1, Count: 1, FieldsFound: true})

	g.Deactivate("gone")
	p.HandleEvent(ctx, Event{Kind: Toggle})
	if s.Minimized() {
		t.Error("toggle applied after deactivation")
	}
}

func TestTeardownIdempotent(t *testing.T) {
	ctx := context.Background()
	p, s, _ := newPresenter()
	p.Render(ctx, scan.Totals{Sum: 1, Count: 1, FieldsFound: true})

	p.Teardown(ctx)
	if s.Created() || p.Visible() {
		t.Error("state survived teardown")
	}
	p.Teardown(ctx)
	if s.Removed() != 2 {
		t.Errorf("Remove called %d times, want 2", s.Removed())
	}
}
