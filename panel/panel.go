// Package panel is the verification side of the bridge: a thin HTTP client
// that fetches and follows totals, plus the tolerance comparison a user
// runs against an expected receipt total. It deliberately speaks the wire
// shapes directly and shares no code with the scanner.
package panel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// Tolerance is the comparison slack: totals closer than one cent match.
const Tolerance = 0.01

// Totals is the panel's view of a scan result.
type Totals struct {
	Sum         string `json:"sum"`
	Count       int    `json:"count"`
	FieldsFound bool   `json:"fieldsFound"`
}

// Result of comparing the current total against an expected value.
type Result struct {
	Match      bool    `json:"match"`
	Difference float64 `json:"difference"` // signed: current - expected
}

// Report renders the result the way the panel displays it.
func (r Result) Report() string {
	if r.Match {
		return "Totals match"
	}
	return fmt.Sprintf("Difference: $%.2f", math.Abs(r.Difference))
}

// Verify compares the current total against an expected value with the
// fixed cent tolerance.
func Verify(current, expected float64) Result {
	diff := current - expected
	return Result{Match: math.Abs(diff) < Tolerance, Difference: diff}
}

// Client talks to the bridge HTTP server.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient creates a panel client for the given base URL
// (e.g. http://127.0.0.1:8390).
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// GetTotals issues a getTotals request. A 503 means the page session has
// deactivated; a 404 means no data has been scanned yet.
func (c *Client) GetTotals(ctx context.Context) (Totals, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/totals", nil)
	if err != nil {
		return Totals{}, fmt.Errorf("panel: new request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return Totals{}, fmt.Errorf("panel: connection error: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Totals{}, fmt.Errorf("panel: no price data found")
	case http.StatusServiceUnavailable:
		return Totals{}, fmt.Errorf("panel: session deactivated")
	default:
		return Totals{}, fmt.Errorf("panel: status %d", resp.StatusCode)
	}

	var body struct {
		Data Totals `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Totals{}, fmt.Errorf("panel: decode: %w", err)
	}
	return body.Data, nil
}

// Follow subscribes to the SSE stream and invokes fn for every updateTotals
// push until ctx is cancelled or the stream ends.
func (c *Client) Follow(ctx context.Context, fn func(Totals)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/events", nil)
	if err != nil {
		return fmt.Errorf("panel: new request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout on a long-lived stream; ctx bounds it.
	hc := &http.Client{}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("panel: connection error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("panel: status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg struct {
			Action string `json:"action"`
			Data   Totals `json:"data"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			continue
		}
		if msg.Action == "updateTotals" {
			fn(msg.Data)
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("panel: stream: %w", err)
	}
	return nil
}
