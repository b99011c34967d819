// Package watch keeps totals fresh while the page mutates. The watcher
// attaches edit listeners to every classified price field, subscribes to the
// page's structural mutation records, and re-runs a full aggregation pass
// whenever a listened field fires or a mutation batch introduces at least
// one new qualifying field. Every pass is a complete recompute from current
// document state, so event interleaving can never corrupt the result.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anowarzz/pricewatch/dom"
	"github.com/anowarzz/pricewatch/lifecycle"
	"github.com/anowarzz/pricewatch/scan"
)

// State is the watcher lifecycle. Watching is entered once per page
// lifetime; Stopped is terminal.
type State int32

const (
	Uninitialized State = iota
	Watching
	Stopped
)

// Config assembles a Watcher.
type Config struct {
	Page  dom.Page
	Guard *lifecycle.Guard
	// Scan tunes the aggregation passes (frame fallback, logger).
	Scan scan.Options
	// Emit receives the totals of every pass. Required.
	Emit func(context.Context, scan.Totals)
	// ReinitDelays schedules bounded deferred re-initializations after
	// Start, for platforms that populate their price fields from script
	// well after load. Each delay fires once; mutation records remain
	// the primary path and these are only a safety net.
	ReinitDelays []time.Duration
	Logger       *slog.Logger
}

// Watcher drives re-aggregation. Create with New, run with Start, one per
// page session.
type Watcher struct {
	page   dom.Page
	guard  *lifecycle.Guard
	opts   scan.Options
	emit   func(context.Context, scan.Totals)
	delays []time.Duration
	logger *slog.Logger

	state  atomic.Int32
	cancel context.CancelFunc

	timerMu sync.Mutex
	timers  []*time.Timer
}

// New creates a Watcher from configuration.
func New(cfg Config) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Scan.Logger == nil {
		cfg.Scan.Logger = cfg.Logger
	}
	return &Watcher{
		page:   cfg.Page,
		guard:  cfg.Guard,
		opts:   cfg.Scan,
		emit:   cfg.Emit,
		delays: cfg.ReinitDelays,
		logger: cfg.Logger,
	}
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Start adopts the currently present price fields, runs the initial pass,
// and launches the event loop. It may be called once; the guard's
// deactivation stops the watcher for good.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(Uninitialized), int32(Watching)) {
		return fmt.Errorf("watch: already started")
	}
	if !w.guard.Active() {
		w.state.Store(int32(Stopped))
		return fmt.Errorf("watch: session deactivated")
	}

	if err := w.adoptCurrent(ctx); err != nil {
		w.state.Store(int32(Stopped))
		w.fail("initial listener attach failed", err)
		return err
	}
	w.pass(ctx)

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.guard.OnDeactivate(w.Stop)
	go w.loop(loopCtx)

	// Fire-once deferred re-initializations. Not cancellable once
	// scheduled; each one is an idempotent re-adopt + recompute and
	// checks the guard when it fires.
	for _, d := range w.delays {
		w.timerMu.Lock()
		w.timers = append(w.timers, time.AfterFunc(d, func() {
			w.reinit(loopCtx)
		}))
		w.timerMu.Unlock()
	}

	w.logger.Info("watch: watching", "reinit_delays", len(w.delays))
	return nil
}

// Stop moves the watcher to Stopped and halts the loop. Idempotent.
func (w *Watcher) Stop() {
	if !w.state.CompareAndSwap(int32(Watching), int32(Stopped)) {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.logger.Info("watch: stopped")
}

// loop is the single event-processing goroutine.
func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case rec, ok := <-w.page.Events():
			if !ok {
				w.fail("page event channel closed", nil)
				return
			}
			if !w.guard.Active() {
				return
			}

			switch rec.Op {
			case dom.OpEdit:
				w.pass(ctx)
			case dom.OpInsert:
				// Batches that add no qualifying fields do not
				// trigger a recompute.
				if w.adoptAdded(ctx, rec.Added) {
					w.pass(ctx)
				}
			}
		}
	}
}

// adoptCurrent attaches edit listeners to every currently classified field.
func (w *Watcher) adoptCurrent(ctx context.Context) error {
	inputs, err := w.page.Inputs(ctx)
	if err != nil {
		return fmt.Errorf("watch: enumerate inputs: %w", err)
	}
	for _, in := range inputs {
		if !scan.IsPriceField(in) {
			continue
		}
		if err := w.page.Listen(ctx, in.Ref); err != nil {
			return fmt.Errorf("watch: listen %s: %w", in.Ref, err)
		}
	}
	return nil
}

// adoptAdded attaches listeners to qualifying inputs from a mutation batch.
// Re-attaching to an element seen before is tolerated. Reports whether any
// qualifying field was adopted.
func (w *Watcher) adoptAdded(ctx context.Context, added []dom.Input) bool {
	adopted := false
	for _, in := range added {
		if !scan.IsPriceField(in) {
			continue
		}
		if err := w.page.Listen(ctx, in.Ref); err != nil {
			w.fail("listener attach failed", err)
			return false
		}
		adopted = true
	}
	return adopted
}

// pass runs one aggregation pass and emits the result. A pass failure is
// indistinguishable from a revoked page channel, so it deactivates the
// session rather than retrying.
func (w *Watcher) pass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.fail("scan pass panicked", fmt.Errorf("%v", r))
		}
	}()

	totals, err := scan.Compute(ctx, w.page, w.opts)
	if err != nil {
		w.fail("scan pass failed", err)
		return
	}
	w.emit(ctx, totals)
}

// reinit is the deferred re-initialization: re-adopt whatever fields exist
// now and recompute. Runs at most once per scheduled delay.
func (w *Watcher) reinit(ctx context.Context) {
	if !w.guard.Active() || w.State() != Watching {
		return
	}
	w.logger.Debug("watch: deferred re-initialization")
	if err := w.adoptCurrent(ctx); err != nil {
		w.fail("re-initialization failed", err)
		return
	}
	w.pass(ctx)
}

func (w *Watcher) fail(reason string, err error) {
	if err != nil {
		w.logger.Error("watch: "+reason, "error", err)
	} else {
		w.logger.Error("watch: " + reason)
	}
	w.guard.Deactivate(reason)
}
