package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/anowarzz/pricewatch/lifecycle"
	"github.com/anowarzz/pricewatch/scan"
)

// Server is the panel-facing HTTP surface. It doubles as a Sink: every
// aggregation pass lands here, is kept as the latest snapshot for getTotals
// requests, and is pushed to all connected SSE subscribers as an
// updateTotals message.
type Server struct {
	guard  *lifecycle.Guard
	logger *slog.Logger

	mu      sync.Mutex
	latest  Payload
	hasData bool
	subs    map[chan Message]struct{}
	closed  bool
}

// NewServer creates a panel server bound to the session guard.
func NewServer(guard *lifecycle.Guard, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		guard:  guard,
		logger: logger,
		subs:   make(map[chan Message]struct{}),
	}
}

// Send implements Sink.
func (s *Server) Send(_ context.Context, t scan.Totals) error {
	msg := Message{Action: ActionUpdateTotals, Data: PayloadFor(t)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("bridge: server closed")
	}
	s.latest = msg.Data
	s.hasData = true
	for ch := range s.subs {
		select {
		case ch <- msg:
		default:
			// Slow subscriber: drop this update, the next pass
			// supersedes it anyway.
		}
	}
	return nil
}

// Close implements Sink. Disconnects all subscribers.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
	}
	s.subs = make(map[chan Message]struct{})
	return nil
}

// Routes returns the panel HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/totals", s.handleGetTotals)
	r.Get("/api/events", s.handleEvents)

	return r
}

// handleGetTotals answers a getTotals request with the latest snapshot.
// After deactivation it refuses rather than serving stale data.
func (s *Server) handleGetTotals(w http.ResponseWriter, _ *http.Request) {
	if !s.guard.Active() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session deactivated"})
		return
	}

	s.mu.Lock()
	latest, ok := s.latest, s.hasData
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data"})
		return
	}
	writeJSON(w, 200, map[string]Payload{"data": latest})
}

// handleEvents streams updateTotals messages over SSE. The current snapshot
// is replayed first so a freshly opened panel renders immediately.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if !s.guard.Active() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session deactivated"})
		return
	}

	ch := make(chan Message, 8)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session deactivated"})
		return
	}
	s.subs[ch] = struct{}{}
	replay, hasReplay := s.latest, s.hasData
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(200)

	if hasReplay {
		writeEvent(w, Message{Action: ActionUpdateTotals, Data: replay})
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, msg)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
