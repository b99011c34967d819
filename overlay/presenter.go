package overlay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anowarzz/pricewatch/lifecycle"
	"github.com/anowarzz/pricewatch/scan"
)

// Presenter owns the single widget instance and its interaction state.
// Render and HandleEvent are called from different goroutines (the scan
// loop and the event pump), so state is mutex-guarded.
type Presenter struct {
	surface Surface
	guard   *lifecycle.Guard
	logger  *slog.Logger

	mu        sync.Mutex
	created   bool
	visible   bool
	minimized bool
	dragging  bool
	offX      int // pointer offset inside the widget while dragging
	offY      int
}

// NewPresenter creates a presenter over the given surface.
func NewPresenter(surface Surface, guard *lifecycle.Guard, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{surface: surface, guard: guard, logger: logger}
}

// Render reflects a totals snapshot into the widget. The widget is created
// on first need and stays hidden until a pass finds fields; it hides again
// on any later pass that finds none. Paint failures are local: logged and
// healed by the next successful render. Only a failed creation escalates,
// because it means the page is refusing writes entirely.
func (p *Presenter) Render(ctx context.Context, t scan.Totals) {
	if !p.guard.Active() {
		return
	}

	if err := p.ensure(ctx); err != nil {
		p.logger.Error("overlay: create widget failed", "error", err)
		// Deactivate without holding the lock: the guard's teardown
		// hooks call back into Teardown.
		p.guard.Deactivate("overlay creation failed")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if t.FieldsFound != p.visible {
		if err := p.surface.SetVisible(ctx, t.FieldsFound); err != nil {
			p.logger.Warn("overlay: set visibility failed", "error", err)
		} else {
			p.visible = t.FieldsFound
		}
	}

	if !t.FieldsFound {
		return
	}
	if err := p.surface.Render(ctx, t.Count, t.FormatSum()); err != nil {
		p.logger.Warn("overlay: render failed", "error", err)
	}
}

// ensure creates the widget once. Idempotent.
func (p *Presenter) ensure(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.created {
		return nil
	}
	if err := p.surface.Ensure(ctx); err != nil {
		return err
	}
	p.created = true
	return nil
}

// HandleEvent runs the drag and collapse state machines on a widget event.
func (p *Presenter) HandleEvent(ctx context.Context, ev Event) {
	if !p.guard.Active() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case PointerDown:
		p.dragging = true
		p.offX = ev.X - ev.Widget.X
		p.offY = ev.Y - ev.Widget.Y

	case PointerMove:
		if !p.dragging {
			return
		}
		x := clamp(ev.X-p.offX, 0, ev.Viewport.W-ev.Widget.W)
		y := clamp(ev.Y-p.offY, 0, ev.Viewport.H-ev.Widget.H)
		if err := p.surface.MoveTo(ctx, x, y); err != nil {
			p.logger.Warn("overlay: move failed", "error", err)
		}

	case PointerUp:
		p.dragging = false

	case Toggle:
		p.minimized = !p.minimized
		if err := p.surface.SetMinimized(ctx, p.minimized); err != nil {
			p.logger.Warn("overlay: toggle failed", "error", err)
		}
	}
}

// Pump forwards surface events to HandleEvent until ctx is done or the
// surface channel closes.
func (p *Presenter) Pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.surface.Events():
			if !ok {
				return
			}
			p.HandleEvent(ctx, ev)
		}
	}
}

// Teardown removes the widget and clears the stored state. Safe to call
// when no widget exists, and safe after deactivation — it is what the
// guard's teardown hook calls.
func (p *Presenter) Teardown(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.surface.Remove(ctx); err != nil {
		p.logger.Debug("overlay: remove failed", "error", err)
	}
	p.created = false
	p.visible = false
	p.dragging = false
	p.minimized = false
}

// Visible reports whether the widget is currently shown.
func (p *Presenter) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Minimized reports whether the widget is collapsed to its heading.
func (p *Presenter) Minimized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minimized
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
