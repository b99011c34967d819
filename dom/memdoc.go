package dom

import (
	"context"
	"fmt"
	"sync"
)

// MemDoc is a synthetic in-memory document. It implements Page and is the
// test double for everything above the browser adapter: inputs can be added,
// edited and removed, frames attached, and the emitted records match what a
// live page would produce.
type MemDoc struct {
	mu        sync.Mutex
	inputs    []*Input
	frames    []Frame
	listeners map[string]int // ref → attach count (duplicates tolerated)
	events    chan Record
	nextRef   int
	err       error
}

// NewMemDoc creates an empty synthetic document.
func NewMemDoc() *MemDoc {
	return &MemDoc{
		listeners: make(map[string]int),
		events:    make(chan Record, 64),
	}
}

// Fail makes every subsequent document operation return err, simulating a
// revoked page channel. Pass nil to clear.
func (d *MemDoc) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// AddInput attaches a single input and emits one insert record for it.
// A Ref is assigned when the snapshot carries none. Returns the ref.
func (d *MemDoc) AddInput(in Input) string {
	refs := d.add(in)
	return refs[0]
}

// AddSubtree attaches several inputs as one mutation batch: a single insert
// record carrying all of them is emitted, mirroring a subtree insertion.
func (d *MemDoc) AddSubtree(ins ...Input) []string {
	return d.add(ins...)
}

func (d *MemDoc) add(ins ...Input) []string {
	d.mu.Lock()
	refs := make([]string, 0, len(ins))
	added := make([]Input, 0, len(ins))
	for _, in := range ins {
		if in.Ref == "" {
			d.nextRef++
			in.Ref = fmt.Sprintf("mem-%d", d.nextRef)
		}
		cp := in
		d.inputs = append(d.inputs, &cp)
		refs = append(refs, cp.Ref)
		added = append(added, cp)
	}
	d.mu.Unlock()

	d.events <- Record{Op: OpInsert, Added: added}
	return refs
}

// RemoveInput detaches the input identified by ref. No record is emitted:
// the watcher only reacts to added nodes, removals surface on the next scan.
func (d *MemDoc) RemoveInput(ref string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, in := range d.inputs {
		if in.Ref == ref {
			d.inputs = append(d.inputs[:i], d.inputs[i+1:]...)
			return
		}
	}
}

// SetValue updates an input's value. An edit record is emitted only when the
// input has at least one attached listener, like a real DOM event.
func (d *MemDoc) SetValue(ref, value string) {
	d.mu.Lock()
	var listened bool
	for _, in := range d.inputs {
		if in.Ref == ref {
			in.Value = value
			listened = d.listeners[ref] > 0
			break
		}
	}
	d.mu.Unlock()

	if listened {
		d.events <- Record{Op: OpEdit, Ref: ref}
	}
}

// AddFrame attaches a child frame.
func (d *MemDoc) AddFrame(f Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, f)
}

// ListenCount reports how many times Listen was called for ref.
func (d *MemDoc) ListenCount(ref string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listeners[ref]
}

// Listeners reports the total number of listener attachments across inputs.
func (d *MemDoc) Listeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.listeners {
		n += c
	}
	return n
}

// Inputs implements Document.
func (d *MemDoc) Inputs(context.Context) ([]Input, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	out := make([]Input, len(d.inputs))
	for i, in := range d.inputs {
		out[i] = *in
	}
	return out, nil
}

// Frames implements Document.
func (d *MemDoc) Frames(context.Context) ([]Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return append([]Frame(nil), d.frames...), nil
}

// Listen implements Page.
func (d *MemDoc) Listen(_ context.Context, ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.listeners[ref]++
	return nil
}

// UnlistenAll implements Page.
func (d *MemDoc) UnlistenAll(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.listeners = make(map[string]int)
	return nil
}

// Events implements Page.
func (d *MemDoc) Events() <-chan Record { return d.events }
