package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ToolExecution is the normalized outcome of a single executeTool call,
// handed to the Resource Indexer's indexing trigger after every success.
type ToolExecution struct {
	ID        string
	ToolName  string
	Arguments map[string]any
	Result    any
}

// IndexHook is invoked after every successful executeTool call. The bridge
// never blocks on it failing; indexing is best-effort.
type IndexHook func(ctx context.Context, execution ToolExecution)

// Bridge implements the MCP Bridge (C7): a single active server connection
// with schema-validated tool dispatch. Unlike a multi-server Manager, this
// module serves exactly one MCP server at a time — per
// facade semantics (§4.8), switching servers tears down the prior
// connection entirely rather than holding several open — so the active
// client is an atomically-swapped pointer instead of a keyed map.
type Bridge struct {
	active atomic.Pointer[Client]
	logger *slog.Logger
	schema *schemaCache

	onToolSuccess IndexHook
	execCounter   atomic.Int64
}

// NewBridge builds an empty Bridge; call Init to connect a server.
func NewBridge(logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		logger: logger.With("component", "mcp-bridge"),
		schema: newSchemaCache(),
	}
}

// SetIndexHook attaches the callback invoked after each successful tool
// call, normally internal/indexer.Indexer.IndexToolResult.
func (br *Bridge) SetIndexHook(hook IndexHook) {
	br.onToolSuccess = hook
}

// Init performs the JSON-RPC initialize handshake against serverCfg and
// makes the resulting connection the bridge's active server. Any
// previously active connection must already have been closed by the
// caller (the facade's bootServer teardown step); Init does not do this
// itself so the facade can sequence teardown, store-clear, and history-clear
// in the exact order §4.8 requires.
func (br *Bridge) Init(ctx context.Context, serverCfg *ServerConfig) error {
	client := NewClient(serverCfg, br.logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("mcp bridge init: %w", err)
	}
	br.active.Store(client)
	br.schema.clear()
	return nil
}

// Close tears down the active connection, if any.
func (br *Bridge) Close() error {
	client := br.active.Swap(nil)
	if client == nil {
		return nil
	}
	return client.Close()
}

func (br *Bridge) client() (*Client, error) {
	client := br.active.Load()
	if client == nil {
		return nil, fmt.Errorf("mcp bridge: not initialized")
	}
	return client, nil
}

// ListTools returns the cached tool catalog from the active server.
func (br *Bridge) ListTools() []*MCPTool {
	client, err := br.client()
	if err != nil {
		return nil
	}
	return client.Tools()
}

// ListResources returns the cached resource catalog from the active server.
func (br *Bridge) ListResources() []*MCPResource {
	client, err := br.client()
	if err != nil {
		return nil
	}
	return client.Resources()
}

// ListPrompts returns the cached prompt catalog from the active server.
func (br *Bridge) ListPrompts() []*MCPPrompt {
	client, err := br.client()
	if err != nil {
		return nil
	}
	return client.Prompts()
}

// Call issues a generic JSON-RPC call against the active server, with a
// monotonically increasing numeric id assigned by the transport.
func (br *Bridge) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	client, err := br.client()
	if err != nil {
		return nil, err
	}
	return client.transport.Call(ctx, method, params)
}

// ToolResult is the normalized outcome of executeTool.
type ToolResult struct {
	OK     bool
	Result any
	Error  string
}

// ExecuteTool validates args against the named tool's input schema, invokes
// tools/call, and unwraps the content[].text envelope to a JSON value where
// possible. After a successful call it invokes the attached index hook with
// the normalized execution record (§4.3's tool-result auto-indexing
// trigger).
func (br *Bridge) ExecuteTool(ctx context.Context, tool string, args map[string]any) ToolResult {
	client, err := br.client()
	if err != nil {
		return ToolResult{Error: err.Error()}
	}

	def := findTool(client.Tools(), tool)
	if def == nil {
		return ToolResult{Error: fmt.Sprintf("unknown tool %q", tool)}
	}

	if err := validateArguments(tool, def.InputSchema, args, br.schema); err != nil {
		return ToolResult{Error: err.Error()}
	}

	callResult, err := client.CallTool(ctx, tool, args)
	if err != nil {
		return ToolResult{Error: err.Error()}
	}
	if callResult.IsError {
		return ToolResult{Error: joinTextContent(callResult.Content)}
	}

	normalized := unwrapToolResult(callResult)
	execution := ToolExecution{
		ID:        br.nextExecutionID(),
		ToolName:  tool,
		Arguments: args,
		Result:    normalized,
	}
	if br.onToolSuccess != nil {
		br.onToolSuccess(ctx, execution)
	}

	return ToolResult{OK: true, Result: normalized}
}

// ReadResource fetches resources/read for uri from the active server.
func (br *Bridge) ReadResource(ctx context.Context, uri string) (text, mimeType string, err error) {
	client, cerr := br.client()
	if cerr != nil {
		return "", "", cerr
	}
	contents, err := client.ReadResource(ctx, uri)
	if err != nil {
		return "", "", err
	}
	if len(contents) == 0 {
		return "", "", fmt.Errorf("resource %q returned no content", uri)
	}
	return contents[0].Text, contents[0].MimeType, nil
}

func (br *Bridge) nextExecutionID() string {
	n := br.execCounter.Add(1)
	return fmt.Sprintf("exec-%d", n)
}

func findTool(tools []*MCPTool, name string) *MCPTool {
	for _, t := range tools {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// unwrapToolResult decodes the content[].text envelope to a JSON value when
// the newline-joined text of its non-empty text items parses as JSON
// (non-text items are ignored); otherwise it falls back to the joined text,
// and to the raw result when there is no text at all.
func unwrapToolResult(result *ToolCallResult) any {
	text := joinTextContent(result.Content)
	if text == "" {
		return result
	}
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return decoded
	}
	return text
}

func joinTextContent(content []ToolResultContent) string {
	var combined string
	for _, item := range content {
		if item.Type != "text" || item.Text == "" {
			continue
		}
		if combined != "" {
			combined += "\n"
		}
		combined += item.Text
	}
	return combined
}
