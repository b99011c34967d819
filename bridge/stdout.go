package bridge

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/anowarzz/pricewatch/scan"
)

// Stdout writes update messages as JSON lines to an io.Writer (default
// os.Stdout). Useful for piping totals into other tooling.
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) Send(_ context.Context, t scan.Totals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(Message{Action: ActionUpdateTotals, Data: PayloadFor(t)})
}

func (s *Stdout) Close() error { return nil }
