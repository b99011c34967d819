// Package overlay owns the floating totals widget: one per page, created
// lazily, visible only while price fields exist, draggable within the
// viewport, collapsible to its heading. The Presenter holds all interaction
// state; the Surface is the dumb capability that actually paints.
package overlay

import "context"

// Surface is the rendering capability the presenter drives. The live
// implementation injects a widget into the page; MemSurface records calls
// for tests. All methods are idempotent from the presenter's point of view.
type Surface interface {
	// Ensure creates the widget if it does not exist yet.
	Ensure(ctx context.Context) error
	// SetVisible shows or hides the widget.
	SetVisible(ctx context.Context, visible bool) error
	// Render writes the item count and the formatted sum into the widget.
	Render(ctx context.Context, count int, sum string) error
	// SetMinimized swaps between the compact heading-only view and the
	// full content view.
	SetMinimized(ctx context.Context, minimized bool) error
	// MoveTo positions the widget's top-left corner, detaching it from
	// its default corner anchor.
	MoveTo(ctx context.Context, x, y int) error
	// Remove deletes the widget from the page. Safe when absent.
	Remove(ctx context.Context) error
	// Events returns pointer and toggle events originating on the widget.
	Events() <-chan Event
}

// EventKind is the kind of widget interaction event.
type EventKind string

const (
	PointerDown EventKind = "pointer_down" // on the widget body, toggle excluded
	PointerMove EventKind = "pointer_move"
	PointerUp   EventKind = "pointer_up"
	Toggle      EventKind = "toggle" // collapse/expand control clicked
)

// Rect is a widget bounding box in viewport coordinates.
type Rect struct {
	X, Y, W, H int
}

// Size is the viewport extent.
type Size struct {
	W, H int
}

// Event is a single widget interaction, with enough geometry to run the
// drag state machine without reading the page back.
type Event struct {
	Kind     EventKind
	X, Y     int  // pointer position
	Widget   Rect // widget bounds at event time
	Viewport Size
}
