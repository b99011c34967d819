// Package session wires one page's components together: guard, watcher,
// overlay presenter, and bridge sinks, constructed fresh per page load.
// There is no module-global state — everything a component needs is
// threaded through the session, which is what makes the pieces testable
// against synthetic documents.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/anowarzz/pricewatch/audit"
	"github.com/anowarzz/pricewatch/bridge"
	"github.com/anowarzz/pricewatch/dom"
	"github.com/anowarzz/pricewatch/lifecycle"
	"github.com/anowarzz/pricewatch/overlay"
	"github.com/anowarzz/pricewatch/scan"
	"github.com/anowarzz/pricewatch/watch"
)

// Config assembles a Session.
type Config struct {
	// PageURL is recorded in logs and audit events.
	PageURL string
	// Page is the live document capability.
	Page dom.Page
	// Surface paints the overlay widget.
	Surface overlay.Surface
	// ScanFrames enables the iframe fallback search (platform setting).
	ScanFrames bool
	// ReinitDelays schedules deferred re-initializations (platform setting).
	ReinitDelays []time.Duration
	// Sinks receive every totals update (panel server, webhook, stdout).
	Sinks []bridge.Sink
	// Audit, when non-nil, records passes and the deactivation.
	Audit *audit.Logger
	// Guard, when non-nil, is adopted instead of a fresh one. Sinks that
	// check the lifecycle (the panel server) share it with the session.
	Guard  *lifecycle.Guard
	Logger *slog.Logger
}

// Session is one page-load instance of the scanner.
type Session struct {
	pageURL   string
	page      dom.Page
	guard     *lifecycle.Guard
	presenter *overlay.Presenter
	watcher   *watch.Watcher
	router    *bridge.Router
	auditLog  *audit.Logger
	logger    *slog.Logger
}

// New builds a session. Nothing touches the page until Start.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	guard := cfg.Guard
	if guard == nil {
		guard = lifecycle.NewGuard(logger)
	}

	s := &Session{
		pageURL:  cfg.PageURL,
		page:     cfg.Page,
		guard:    guard,
		router:   bridge.NewRouter(logger, cfg.Sinks...),
		auditLog: cfg.Audit,
		logger:   logger,
	}
	s.presenter = overlay.NewPresenter(cfg.Surface, s.guard, logger)

	s.watcher = watch.New(watch.Config{
		Page:         cfg.Page,
		Guard:        s.guard,
		Scan:         scan.Options{ScanFrames: cfg.ScanFrames, Logger: logger},
		Emit:         s.emit,
		ReinitDelays: cfg.ReinitDelays,
		Logger:       logger,
	})

	s.guard.OnDeactivate(s.teardown)
	return s
}

// Guard exposes the session lifecycle guard.
func (s *Session) Guard() *lifecycle.Guard { return s.guard }

// Presenter exposes the overlay presenter (widget event forwarding).
func (s *Session) Presenter() *overlay.Presenter { return s.presenter }

// Start probes the page channel once, runs the initial pass, and begins
// watching. A failed probe deactivates immediately: the channel was already
// revoked before we got going.
func (s *Session) Start(ctx context.Context) error {
	// The pump lives until deactivation. Registering the cancel as a
	// guard hook (rather than calling it from teardown) covers the case
	// where the guard dies while Start is still running.
	pumpCtx, cancel := context.WithCancel(ctx)
	s.guard.OnDeactivate(cancel)
	go s.presenter.Pump(pumpCtx)

	if err := s.watcher.Start(ctx); err != nil {
		cancel()
		return err
	}
	s.logger.Info("session: started", "url", s.pageURL)
	return nil
}

// Deactivate shuts the session down. Idempotent, one-way.
func (s *Session) Deactivate(reason string) {
	s.guard.Deactivate(reason)
}

// emit is the fan-out of every aggregation pass: overlay first, then the
// panel channel. A failed panel delivery means the host side is gone and
// deactivates the session.
func (s *Session) emit(ctx context.Context, t scan.Totals) {
	if !s.guard.Active() {
		return
	}
	s.presenter.Render(ctx, t)

	if err := s.router.Send(ctx, t); err != nil {
		s.guard.Deactivate("panel channel failed")
		return
	}
	if s.auditLog != nil {
		s.auditLog.LogPass(ctx, s.pageURL, t.FormatSum(), t.Count, t.FieldsFound)
	}
}

// teardown is the guard hook: strip edit listeners from every input
// (best-effort), remove the overlay, record the shutdown. The widget event
// pump is cancelled by its own guard hook.
func (s *Session) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.page.UnlistenAll(ctx); err != nil {
		s.logger.Debug("session: unlisten failed", "error", err)
	}
	s.presenter.Teardown(ctx)
	if s.auditLog != nil {
		s.auditLog.LogDeactivation(ctx, s.pageURL, s.guard.Reason())
	}
	s.router.Close()
	s.logger.Info("session: torn down", "url", s.pageURL)
}
