// Package dom defines the document capability the price scanner operates on.
//
// The scanner never touches a rendering surface directly: it sees a page as
// something that can enumerate its form inputs, expose their attributes and
// current values, and enumerate child frames. Live pages additionally emit
// event records (input edits, structural insertions) on a channel.
//
// Three implementations exist: MemDoc (synthetic, for tests and embedding),
// HTMLDoc (read-only snapshot parsed from markup), and the go-rod adapter in
// internal/browser.
package dom

import "context"

// Input is a point-in-time snapshot of a form input element. Ref is the
// identity token of the live element; it is only meaningful to the Document
// that produced it and only for as long as the element stays attached.
type Input struct {
	Ref         string `json:"ref"`
	Type        string `json:"type,omitempty"`
	Class       string `json:"class,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	DataType    string `json:"data_type,omitempty"` // data-type annotation
	Value       string `json:"value,omitempty"`
}

// Document enumerates the inputs and frames of one page at scan time.
// Both methods fail as a whole when the underlying channel to the page is
// gone; per-frame access failures are reported by Frame.Contents instead.
type Document interface {
	Inputs(ctx context.Context) ([]Input, error)
	Frames(ctx context.Context) ([]Frame, error)
}

// Frame is a handle on a child frame. Contents fails for frames the document
// is not allowed to reach (cross-origin isolation); callers skip such frames
// and continue.
type Frame interface {
	Contents(ctx context.Context) (Document, error)
}

// FrameFunc adapts a function to the Frame interface.
type FrameFunc func(ctx context.Context) (Document, error)

func (f FrameFunc) Contents(ctx context.Context) (Document, error) { return f(ctx) }

// Page extends Document with the event surface of a live page: edit
// listeners on individual inputs and a channel of observed records.
type Page interface {
	Document

	// Listen attaches edit listeners (input + change) to the element
	// identified by ref. Attaching twice is tolerated.
	Listen(ctx context.Context, ref string) error

	// UnlistenAll removes edit listeners from every input element in the
	// document, not only the previously listened ones. Best-effort.
	UnlistenAll(ctx context.Context) error

	// Events returns the record channel. Closed when the page detaches.
	Events() <-chan Record
}

// Op is the kind of record a page emits.
type Op string

const (
	// OpEdit fires when a listened input's value changes (input/change).
	OpEdit Op = "edit"
	// OpInsert fires when a mutation batch added nodes to the document.
	// Added holds every input element found among the added nodes and
	// their subtrees, qualifying or not; classification is the consumer's
	// job.
	OpInsert Op = "insert"
)

// Record is a single observed page event.
type Record struct {
	Op    Op      `json:"op"`
	Ref   string  `json:"ref,omitempty"`
	Added []Input `json:"added,omitempty"`
}
