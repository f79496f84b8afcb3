package server

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/jobclip/kit"
	"github.com/hazyhaar/jobclip/popup"
)

// RegisterMCP registers the clipper tools on an MCP server. MCP callers are
// not challenged for credentials; every call runs as ownerID, the local
// account the process was started with.
func (s *Server) RegisterMCP(srv *mcp.Server, ownerID string) {
	s.registerOpenTabTool(srv, ownerID)
	s.registerCaptureTool(srv, ownerID)
	s.registerCancelCaptureTool(srv, ownerID)
	s.registerGetDraftTool(srv, ownerID)
	s.registerSetFieldTool(srv, ownerID)
	s.registerSaveTool(srv, ownerID)
	s.registerListRecordsTool(srv, ownerID)
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

// asOwner stamps the local account identity into the tool call context.
func asOwner(ownerID string) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context {
		return kit.WithUserID(ctx, ownerID)
	}
}

// decodeInto builds a decode func unmarshalling arguments into a fresh T.
func decodeInto[T any](ownerID string) func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		r := new(T)
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: r, EnrichCtx: asOwner(ownerID)}, nil
	}
}

// --- open_tab ---

type openTabRequest struct {
	URL string `json:"url"`
}

func (s *Server) registerOpenTabTool(srv *mcp.Server, ownerID string) {
	tool := &mcp.Tool{
		Name:        "jobclip_open_tab",
		Description: "Open a job posting in a new browser tab. The new tab becomes the capture target.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Job posting URL"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*openTabRequest)
		id, err := s.tabs.OpenTab(ctx, r.URL)
		if err != nil {
			return nil, err
		}
		return map[string]string{"id": id, "url": r.URL}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[openTabRequest](ownerID))
}

// --- capture ---

type captureRequest struct {
	Field string `json:"field"`
}

func (s *Server) registerCaptureTool(srv *mcp.Server, ownerID string) {
	tool := &mcp.Tool{
		Name:        "jobclip_capture",
		Description: "Start an interactive element capture for a record field. The user clicks the element in the browser; Escape cancels.",
		InputSchema: inputSchema(map[string]any{
			"field": map[string]any{"type": "string", "enum": []any{"jobTitle", "companyName", "jobDescription"}, "description": "Record field to capture"},
		}, []string{"field"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*captureRequest)
		field, err := popup.ParseField(r.Field)
		if err != nil {
			return nil, err
		}
		if err := s.ctrl.StartCapture(ctx, field); err != nil {
			return nil, err
		}
		return map[string]string{"status": "capturing", "field": r.Field}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[captureRequest](ownerID))
}

// --- cancel_capture ---

type emptyRequest struct{}

func (s *Server) registerCancelCaptureTool(srv *mcp.Server, ownerID string) {
	tool := &mcp.Tool{
		Name:        "jobclip_cancel_capture",
		Description: "Cancel the pending element capture, if any.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		if err := s.ctrl.CancelCapture(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"status": "canceled"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[emptyRequest](ownerID))
}

// --- get_draft ---

func (s *Server) registerGetDraftTool(srv *mcp.Server, ownerID string) {
	tool := &mcp.Tool{
		Name:        "jobclip_get_draft",
		Description: "Return the job record under assembly and the field a capture is pending for.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return draftResponse{
			Record:  s.ctrl.Snapshot(),
			Pending: string(s.ctrl.Pending()),
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[emptyRequest](ownerID))
}

// --- set_field ---

type setFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) registerSetFieldTool(srv *mcp.Server, ownerID string) {
	tool := &mcp.Tool{
		Name:        "jobclip_set_field",
		Description: "Set a field of the record under assembly to a literal value.",
		InputSchema: inputSchema(map[string]any{
			"field": map[string]any{"type": "string", "enum": []any{"jobTitle", "companyName", "jobUrl", "jobDescription"}},
			"value": map[string]any{"type": "string"},
		}, []string{"field", "value"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*setFieldRequest)
		field, err := popup.ParseField(r.Field)
		if err != nil {
			return nil, err
		}
		if err := s.ctrl.SetField(field, r.Value); err != nil {
			return nil, err
		}
		return draftResponse{Record: s.ctrl.Snapshot()}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[setFieldRequest](ownerID))
}

// --- save ---

func (s *Server) registerSaveTool(srv *mcp.Server, ownerID string) {
	tool := &mcp.Tool{
		Name:        "jobclip_save",
		Description: "Persist the assembled job record and reset the draft.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		if err := s.ctrl.Save(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"status": "saved"}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[emptyRequest](ownerID))
}

// --- list_records ---

func (s *Server) registerListRecordsTool(srv *mcp.Server, ownerID string) {
	tool := &mcp.Tool{
		Name:        "jobclip_list_records",
		Description: "List the saved job records, newest first.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.st.ListRecords(ctx, kit.GetUserID(ctx))
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[emptyRequest](ownerID))
}
