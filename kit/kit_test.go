package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	ep := Chain(mw("outer"), mw("inner"))(func(context.Context, any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	})

	resp, err := ep(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Errorf("resp = %v", resp)
	}

	want := []string{"outer", "inner", "endpoint"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ep := Logging(logger, "get_totals")(func(context.Context, any) (any, error) {
		return "ok", nil
	})
	resp, err := ep(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Errorf("resp = %v", resp)
	}
	if got := buf.String(); !strings.Contains(got, "call ok") || !strings.Contains(got, "endpoint=get_totals") {
		t.Errorf("success log = %q", got)
	}

	buf.Reset()
	boom := errors.New("no data")
	ep = Logging(logger, "get_totals")(func(context.Context, any) (any, error) {
		return nil, boom
	})
	if _, err := ep(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if got := buf.String(); !strings.Contains(got, "call failed") || !strings.Contains(got, "no data") {
		t.Errorf("failure log = %q", got)
	}
}

func TestChainEmpty(t *testing.T) {
	called := false
	ep := Chain()(func(context.Context, any) (any, error) {
		called = true
		return nil, nil
	})
	ep(context.Background(), nil)
	if !called {
		t.Error("empty chain did not call the endpoint")
	}
}
