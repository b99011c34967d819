package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anowarzz/pricewatch/lifecycle"
	"github.com/anowarzz/pricewatch/scan"
)

var testMCPImpl = &mcp.Implementation{Name: "pricewatch-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*Server, *lifecycle.Guard, *mcp.ClientSession) {
	t.Helper()
	guard := lifecycle.NewGuard(nil)
	s := NewServer(guard, nil)

	srv := mcp.NewServer(testMCPImpl, nil)
	s.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return s, guard, session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		// GetError always returns nil on clients; the error text arrives as
		// the first content block.
		msg := "tool error"
		if len(result.Content) > 0 {
			if tc, ok := result.Content[0].(*mcp.TextContent); ok {
				msg = tc.Text
			}
		}
		return "", errors.New(msg)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, nil
}

func TestMCP_GetTotals(t *testing.T) {
	s, _, session := mcpSession(t)

	s.Send(context.Background(), scan.Totals{Sum: 15.5, Count: 2, FieldsFound: true})

	text, err := mcpCallTool(t, session, "pricewatch_get_totals", map[string]any{})
	if err != nil {
		t.Fatalf("tool error: %v", err)
	}

	var resp struct {
		Data Payload `json:"data"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := Payload{Sum: "15.50", Count: 2, FieldsFound: true}
	if resp.Data != want {
		t.Errorf("data = %+v, want %+v", resp.Data, want)
	}
}

func TestMCP_GetTotalsNoData(t *testing.T) {
	_, _, session := mcpSession(t)

	if _, err := mcpCallTool(t, session, "pricewatch_get_totals", map[string]any{}); err == nil {
		t.Error("expected tool error before any pass")
	}
}

func TestMCP_GetTotalsAfterDeactivation(t *testing.T) {
	s, guard, session := mcpSession(t)

	s.Send(context.Background(), scan.Totals{Sum: 1, Count: 1, FieldsFound: true})
	guard.Deactivate("page gone")

	if _, err := mcpCallTool(t, session, "pricewatch_get_totals", map[string]any{}); err == nil {
		t.Error("expected tool error after deactivation")
	}
}

func TestMCP_VerifyTotal(t *testing.T) {
	s, _, session := mcpSession(t)
	s.Send(context.Background(), scan.Totals{Sum: 19.995, Count: 3, FieldsFound: true})

	text, err := mcpCallTool(t, session, "pricewatch_verify_total", map[string]any{"expected": 20.00})
	if err != nil {
		t.Fatalf("tool error: %v", err)
	}

	var resp struct {
		Match  bool   `json:"match"`
		Report string `json:"report"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// 19.995 formats to "20.00" on the wire, well inside the cent tolerance.
	if !resp.Match {
		t.Errorf("match = false, report %q", resp.Report)
	}
}

func TestMCP_VerifyTotalMismatch(t *testing.T) {
	s, _, session := mcpSession(t)
	s.Send(context.Background(), scan.Totals{Sum: 19.98, Count: 3, FieldsFound: true})

	text, err := mcpCallTool(t, session, "pricewatch_verify_total", map[string]any{"expected": 20.00})
	if err != nil {
		t.Fatalf("tool error: %v", err)
	}

	var resp struct {
		Match  bool   `json:"match"`
		Report string `json:"report"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Match {
		t.Error("match = true for a 2-cent difference")
	}
	if resp.Report != "Difference: $0.02" {
		t.Errorf("report = %q, want %q", resp.Report, "Difference: $0.02")
	}
}
