package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anowarzz/pricewatch/kit"
	"github.com/anowarzz/pricewatch/panel"
)

// RegisterMCP registers the panel operations as MCP tools.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	s.registerGetTotalsTool(srv)
	s.registerVerifyTool(srv)
}

// wrap is the middleware stack applied to every tool endpoint.
func (s *Server) wrap(name string) kit.Middleware {
	return kit.Chain(kit.Logging(s.logger, name))
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// latestTotals returns the current snapshot or an error mirroring the HTTP
// surface: deactivated sessions refuse, missing data is reported as such.
func (s *Server) latestTotals() (Payload, error) {
	if !s.guard.Active() {
		return Payload{}, fmt.Errorf("session deactivated")
	}
	s.mu.Lock()
	latest, ok := s.latest, s.hasData
	s.mu.Unlock()
	if !ok {
		return Payload{}, fmt.Errorf("no data")
	}
	return latest, nil
}

// --- get_totals ---

type getTotalsRequest struct{}

func (s *Server) registerGetTotalsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pricewatch_get_totals",
		Description: "Current price field totals of the watched page: sum (two decimals), item count, whether any price fields exist.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		latest, err := s.latestTotals()
		if err != nil {
			return nil, err
		}
		return map[string]Payload{"data": latest}, nil
	}

	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &getTotalsRequest{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name)(endpoint), decode)
}

// --- verify_total ---

type verifyRequest struct {
	Expected float64 `json:"expected"`
}

func (s *Server) registerVerifyTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pricewatch_verify_total",
		Description: "Compare the current page total against an expected receipt total. Matches when the difference is under one cent.",
		InputSchema: inputSchema(map[string]any{
			"expected": map[string]any{"type": "number", "description": "Expected receipt total"},
		}, []string{"expected"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*verifyRequest)
		latest, err := s.latestTotals()
		if err != nil {
			return nil, err
		}
		current, err := strconv.ParseFloat(latest.Sum, 64)
		if err != nil {
			return nil, fmt.Errorf("parse current total: %w", err)
		}
		res := panel.Verify(current, r.Expected)
		return map[string]any{
			"match":      res.Match,
			"difference": res.Difference,
			"report":     res.Report(),
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r verifyRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.wrap(tool.Name)(endpoint), decode)
}
