package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anowarzz/pricewatch/lifecycle"
	"github.com/anowarzz/pricewatch/scan"
)

func newTestServer(t *testing.T) (*Server, *lifecycle.Guard, *httptest.Server) {
	t.Helper()
	guard := lifecycle.NewGuard(nil)
	srv := NewServer(guard, nil)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, guard, ts
}

func TestGetTotalsBeforeAnyPass(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/totals")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestGetTotalsWireShape(t *testing.T) {
	srv, _, ts := newTestServer(t)

	if err := srv.Send(context.Background(), scan.Totals{Sum: 15.5, Count: 2, FieldsFound: true}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/api/totals")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Data Payload `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	want := Payload{Sum: "15.50", Count: 2, FieldsFound: true}
	if body.Data != want {
		t.Errorf("data = %+v, want %+v", body.Data, want)
	}
}

func TestGetTotalsAfterDeactivation(t *testing.T) {
	srv, guard, ts := newTestServer(t)

	srv.Send(context.Background(), scan.Totals{Sum: 1, Count: 1, FieldsFound: true})
	guard.Deactivate("page gone")

	resp, err := http.Get(ts.URL + "/api/totals")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d (never serve stale data)", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestEventsReplayAndPush(t *testing.T) {
	srv, _, ts := newTestServer(t)

	srv.Send(context.Background(), scan.Totals{Sum: 1, Count: 1, FieldsFound: true})

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	messages := make(chan Message, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var msg Message
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg) == nil {
				messages <- msg
			}
		}
	}()

	next := func() Message {
		select {
		case m := <-messages:
			return m
		case <-time.After(2 * time.Second):
			t.Fatal("no SSE message")
			return Message{}
		}
	}

	// Replay of the latest snapshot first.
	if got := next(); got.Action != ActionUpdateTotals || got.Data.Sum != "1.00" {
		t.Errorf("replay = %+v", got)
	}

	// Live push.
	srv.Send(context.Background(), scan.Totals{Sum: 2.5, Count: 1, FieldsFound: true})
	if got := next(); got.Data.Sum != "2.50" {
		t.Errorf("push = %+v", got)
	}
}

func TestSendAfterClose(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if err := srv.Close(); err != nil {
		t.Fatal(err)
	}
	if err := srv.Send(context.Background(), scan.Totals{}); err == nil {
		t.Error("Send after Close succeeded")
	}
	// Close is idempotent.
	if err := srv.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestHealth(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
