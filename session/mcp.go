package session

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pinmark/pinmark/export"
	"github.com/pinmark/pinmark/feedback"
	"github.com/pinmark/pinmark/kit"
)

// RegisterMCP registers the pinmark tools on an MCP server, giving agent
// consumers direct access to the captured items and the hand-off artifacts.
func (c *Core) RegisterMCP(srv *mcp.Server) {
	c.registerListItemsTool(srv)
	c.registerExportTool(srv)
	c.registerAddFeedbackTool(srv)
	c.registerClearTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- list_items ---

func (c *Core) registerListItemsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pinmark_list_items",
		Description: "List the feedback items captured in the current session, in capture order.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		st := c.State()
		return map[string]any{
			"session_id": st.SessionID,
			"page":       st.CurrentPage,
			"items":      st.FeedbackItems,
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- export ---

type exportRequest struct {
	Format string `json:"format,omitempty"`
}

func (c *Core) registerExportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pinmark_export",
		Description: "Export captured feedback as a hand-off artifact (markdown, json or combined).",
		InputSchema: inputSchema(map[string]any{
			"format": map[string]any{"type": "string", "enum": []any{"markdown", "json", "combined"}, "description": "Artifact format (default: configured export format)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*exportRequest)
		text, err := c.ExportFeedback(export.Format(r.Format))
		if err != nil {
			return nil, err
		}
		return map[string]any{"artifact": text, "items": len(c.State().FeedbackItems)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r exportRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- add_feedback ---

type addFeedbackRequest struct {
	Page            string `json:"page,omitempty"`
	Selector        string `json:"selector,omitempty"`
	Type            string `json:"type"`
	Description     string `json:"description"`
	Priority        string `json:"priority,omitempty"`
	SuggestedChange string `json:"suggested_change,omitempty"`
}

func (c *Core) registerAddFeedbackTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pinmark_add_feedback",
		Description: "Append a feedback item to the current session without a live element capture.",
		InputSchema: inputSchema(map[string]any{
			"page":             map[string]any{"type": "string", "description": "Page path (default: current page)"},
			"selector":         map[string]any{"type": "string", "description": "Structural selector of the element, if known"},
			"type":             map[string]any{"type": "string", "enum": []any{"style", "content", "behavior", "layout", "feature"}},
			"description":      map[string]any{"type": "string"},
			"priority":         map[string]any{"type": "string", "enum": []any{"low", "medium", "high"}},
			"suggested_change": map[string]any{"type": "string"},
		}, []string{"type", "description"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*addFeedbackRequest)
		item := feedback.Item{Page: r.Page}
		item.Element.Selector = r.Selector
		item.Feedback = feedback.Data{
			Type:            feedback.Type(r.Type),
			Description:     r.Description,
			Priority:        feedback.Priority(r.Priority),
			SuggestedChange: r.SuggestedChange,
		}
		return c.AddFeedback(item)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r addFeedbackRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- clear ---

func (c *Core) registerClearTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pinmark_clear",
		Description: "Delete all captured feedback items and start a new session.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		c.ClearFeedback()
		return map[string]string{"session_id": c.State().SessionID, "status": "cleared"}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
