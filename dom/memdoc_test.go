package dom

import (
	"context"
	"errors"
	"testing"
	"time"
)

func nextRecord(t *testing.T, d *MemDoc) Record {
	t.Helper()
	select {
	case rec := <-d.Events():
		return rec
	case <-time.After(time.Second):
		t.Fatal("no record emitted")
		return Record{}
	}
}

func TestMemDocInsertRecords(t *testing.T) {
	d := NewMemDoc()

	ref := d.AddInput(Input{Class: "price", Value: "1.00"})
	if ref == "" {
		t.Fatal("AddInput returned empty ref")
	}

	rec := nextRecord(t, d)
	if rec.Op != OpInsert {
		t.Fatalf("Op = %q, want %q", rec.Op, OpInsert)
	}
	if len(rec.Added) != 1 || rec.Added[0].Ref != ref {
		t.Errorf("Added = %+v, want one input with ref %q", rec.Added, ref)
	}
}

func TestMemDocSubtreeIsOneBatch(t *testing.T) {
	d := NewMemDoc()

	refs := d.AddSubtree(Input{Class: "price"}, Input{Name: "qty"}, Input{ID: "price_2"})
	if len(refs) != 3 {
		t.Fatalf("AddSubtree returned %d refs, want 3", len(refs))
	}

	rec := nextRecord(t, d)
	if rec.Op != OpInsert || len(rec.Added) != 3 {
		t.Errorf("got %q with %d added, want one insert carrying 3", rec.Op, len(rec.Added))
	}

	select {
	case rec := <-d.Events():
		t.Errorf("unexpected second record: %+v", rec)
	default:
	}
}

func TestMemDocEditOnlyWhenListened(t *testing.T) {
	ctx := context.Background()
	d := NewMemDoc()

	ref := d.AddInput(Input{Class: "price", Value: "1.00"})
	nextRecord(t, d) // drain the insert

	d.SetValue(ref, "2.00")
	select {
	case rec := <-d.Events():
		t.Fatalf("edit emitted without listener: %+v", rec)
	default:
	}

	if err := d.Listen(ctx, ref); err != nil {
		t.Fatal(err)
	}
	d.SetValue(ref, "3.00")

	rec := nextRecord(t, d)
	if rec.Op != OpEdit || rec.Ref != ref {
		t.Errorf("got %+v, want edit on %q", rec, ref)
	}

	inputs, err := d.Inputs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if inputs[0].Value != "3.00" {
		t.Errorf("Value = %q, want %q", inputs[0].Value, "3.00")
	}
}

func TestMemDocRemoveIsSilent(t *testing.T) {
	d := NewMemDoc()
	ref := d.AddInput(Input{Class: "price"})
	nextRecord(t, d)

	d.RemoveInput(ref)
	select {
	case rec := <-d.Events():
		t.Fatalf("removal emitted a record: %+v", rec)
	default:
	}

	inputs, err := d.Inputs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(inputs) != 0 {
		t.Errorf("inputs = %+v, want empty", inputs)
	}
}

func TestMemDocListenerBookkeeping(t *testing.T) {
	ctx := context.Background()
	d := NewMemDoc()
	ref := d.AddInput(Input{Class: "price"})

	d.Listen(ctx, ref)
	d.Listen(ctx, ref)
	if got := d.ListenCount(ref); got != 2 {
		t.Errorf("ListenCount = %d, want 2", got)
	}

	if err := d.UnlistenAll(ctx); err != nil {
		t.Fatal(err)
	}
	if got := d.Listeners(); got != 0 {
		t.Errorf("Listeners after UnlistenAll = %d, want 0", got)
	}
}

func TestMemDocFail(t *testing.T) {
	d := NewMemDoc()
	d.AddInput(Input{Class: "price"})
	nextRecord(t, d)

	boom := errors.New("channel revoked")
	d.Fail(boom)

	if _, err := d.Inputs(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Inputs error = %v, want %v", err, boom)
	}
	if err := d.Listen(context.Background(), "mem-1"); !errors.Is(err, boom) {
		t.Errorf("Listen error = %v, want %v", err, boom)
	}

	d.Fail(nil)
	if _, err := d.Inputs(context.Background()); err != nil {
		t.Errorf("Inputs after clearing: %v", err)
	}
}
