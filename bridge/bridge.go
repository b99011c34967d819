// Package bridge relays totals to the verification panel. Delivery runs two
// ways: push after every aggregation pass (updateTotals, over SSE and
// webhook sinks) and request/response on demand (getTotals, over HTTP and
// MCP). The wire shapes are fixed; the sum crosses the boundary already
// formatted to two decimal places.
package bridge

import (
	"context"
	"log/slog"

	"github.com/anowarzz/pricewatch/scan"
)

// Message actions on the panel channel.
const (
	ActionUpdateTotals = "updateTotals"
	ActionGetTotals    = "getTotals"
)

// Payload is the totals shape the panel consumes.
type Payload struct {
	Sum         string `json:"sum"` // two decimals
	Count       int    `json:"count"`
	FieldsFound bool   `json:"fieldsFound"`
}

// PayloadFor converts a totals snapshot to its transport shape.
func PayloadFor(t scan.Totals) Payload {
	return Payload{Sum: t.FormatSum(), Count: t.Count, FieldsFound: t.FieldsFound}
}

// Message is the envelope exchanged with the panel.
type Message struct {
	Action string  `json:"action"`
	Data   Payload `json:"data"`
}

// Sink delivers totals to one backend.
type Sink interface {
	Send(ctx context.Context, t scan.Totals) error
	Close() error
}

// Router fans out totals to all configured sinks. One sink error does not
// block the others — errors are logged and the first encountered is
// returned, so the caller can treat any delivery failure as a dead channel.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, t scan.Totals) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, t); err != nil {
			r.logger.Warn("bridge: send failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
