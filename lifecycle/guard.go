// Package lifecycle implements the one-way session guard. The browser can
// revoke the page channel at any moment (navigation, extension reload,
// crashed tab); once that happens every further call into the page throws,
// so the whole session flips to Deactivated exactly once and every entry
// point checks the guard before touching anything.
package lifecycle

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// State is the session lifecycle state.
type State int32

const (
	Active State = iota
	Deactivated
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "deactivated"
}

// Guard holds the one-way lifecycle flag. The only allowed transition is
// Active → Deactivated; there is no way back short of a fresh session.
type Guard struct {
	state  atomic.Int32
	once   sync.Once
	logger *slog.Logger

	mu     sync.Mutex
	hooks  []func()
	reason string
}

// NewGuard creates an active guard.
func NewGuard(logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{logger: logger}
}

// Active reports whether the session is still live.
func (g *Guard) Active() bool {
	return State(g.state.Load()) == Active
}

// State returns the current state.
func (g *Guard) State() State {
	return State(g.state.Load())
}

// Reason returns what triggered the deactivation, empty while active.
func (g *Guard) Reason() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reason
}

// OnDeactivate registers a teardown hook. Hooks run once, in registration
// order, on the goroutine that wins the Deactivate race. Registering after
// deactivation runs the hook immediately.
func (g *Guard) OnDeactivate(fn func()) {
	g.mu.Lock()
	if g.Active() {
		g.hooks = append(g.hooks, fn)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	fn()
}

// Deactivate flips the guard and runs the teardown hooks. Idempotent: every
// call after the first is a no-op.
func (g *Guard) Deactivate(reason string) {
	g.once.Do(func() {
		g.state.Store(int32(Deactivated))
		g.logger.Info("lifecycle: deactivated", "reason", reason)

		g.mu.Lock()
		g.reason = reason
		hooks := g.hooks
		g.hooks = nil
		g.mu.Unlock()

		for _, fn := range hooks {
			fn()
		}
	})
}
