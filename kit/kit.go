// Package kit holds the small transport-agnostic endpoint plumbing shared
// by the bridge surfaces: a typed endpoint function, middleware chaining,
// and the MCP tool adapter.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is a transport-agnostic request handler.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left to right: the first middleware is the
// outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging returns a middleware that logs every call with its duration.
func Logging(logger *slog.Logger, name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			dur := time.Since(start)

			if err != nil {
				logger.WarnContext(ctx, "call failed",
					"endpoint", name,
					"duration_ms", dur.Milliseconds(),
					"error", err)
			} else {
				logger.DebugContext(ctx, "call ok",
					"endpoint", name,
					"duration_ms", dur.Milliseconds())
			}
			return resp, err
		}
	}
}
