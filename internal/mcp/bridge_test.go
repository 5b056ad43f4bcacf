package mcp

import (
	"context"
	"encoding/json"
	"testing"
)

// fakeTransport is a minimal in-memory Transport double so Client/Bridge
// tests never touch a real process or socket.
type fakeTransport struct {
	events     chan *JSONRPCNotification
	requests   chan *JSONRPCRequest
	connected  bool
	callResult json.RawMessage
	callErr    error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events:    make(chan *JSONRPCNotification, 4),
		requests:  make(chan *JSONRPCRequest, 4),
		connected: true,
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeTransport) Close() error                      { f.connected = false; return nil }
func (f *fakeTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return f.callResult, f.callErr
}
func (f *fakeTransport) Notify(ctx context.Context, method string, params any) error { return nil }
func (f *fakeTransport) Events() <-chan *JSONRPCNotification                         { return f.events }
func (f *fakeTransport) Requests() <-chan *JSONRPCRequest                           { return f.requests }
func (f *fakeTransport) Respond(ctx context.Context, id any, result any, rpcErr *JSONRPCError) error {
	return nil
}
func (f *fakeTransport) Connected() bool { return f.connected }

func TestBridge_ExecuteToolNotInitialized(t *testing.T) {
	br := NewBridge(nil)
	result := br.ExecuteTool(context.Background(), "search", nil)
	if result.OK {
		t.Fatal("expected failure when bridge not initialized")
	}
}

func TestBridge_ExecuteToolUnknownTool(t *testing.T) {
	br := NewBridge(nil)
	client := &Client{config: &ServerConfig{ID: "s"}, transport: newFakeTransport()}
	br.active.Store(client)

	result := br.ExecuteTool(context.Background(), "missing", nil)
	if result.OK {
		t.Fatal("expected failure for unknown tool")
	}
}

func TestBridge_ExecuteToolValidatesArguments(t *testing.T) {
	br := NewBridge(nil)
	transport := newFakeTransport()
	client := &Client{config: &ServerConfig{ID: "s"}, transport: transport}
	client.tools = []*MCPTool{
		{
			Name: "search",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {"query": {"type": "string"}},
				"required": ["query"]
			}`),
		},
	}
	br.active.Store(client)

	result := br.ExecuteTool(context.Background(), "search", map[string]any{})
	if result.OK {
		t.Fatalf("expected validation failure for missing required field, got %+v", result)
	}
}

func TestBridge_UnwrapToolResultJSON(t *testing.T) {
	result := unwrapToolResult(&ToolCallResult{
		Content: []ToolResultContent{{Type: "text", Text: `{"count": 3}`}},
	})
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected decoded map, got %T", result)
	}
	if m["count"].(float64) != 3 {
		t.Fatalf("count = %v", m["count"])
	}
}

func TestBridge_UnwrapToolResultPlainText(t *testing.T) {
	result := unwrapToolResult(&ToolCallResult{
		Content: []ToolResultContent{{Type: "text", Text: "just text"}},
	})
	if result != "just text" {
		t.Fatalf("result = %v", result)
	}
}

func TestBridge_CloseWithoutInitIsNoop(t *testing.T) {
	br := NewBridge(nil)
	if err := br.Close(); err != nil {
		t.Fatalf("Close() on empty bridge: %v", err)
	}
}
