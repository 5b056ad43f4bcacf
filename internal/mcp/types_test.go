package mcp

import (
	"encoding/json"
	"testing"
	"time"
)

func TestServerConfigJSON_RoundTrips(t *testing.T) {
	cases := []struct {
		name string
		cfg  *ServerConfig
	}{
		{"stdio", &ServerConfig{
			ID:        "test-server",
			Name:      "Test Server",
			Transport: TransportStdio,
			Command:   "/usr/bin/mcp-server",
			Args:      []string{"--config", "test.yaml"},
			Env:       map[string]string{"DEBUG": "true"},
			WorkDir:   "/tmp",
			Timeout:   30 * time.Second,
			AutoStart: true,
		}},
		{"http", &ServerConfig{
			ID:        "http-server",
			Name:      "HTTP Server",
			Transport: TransportHTTP,
			URL:       "https://mcp.example.com/api",
			Headers:   map[string]string{"Authorization": "Bearer token"},
			Timeout:   60 * time.Second,
		}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.cfg)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			var decoded ServerConfig
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if decoded.ID != tt.cfg.ID || decoded.Transport != tt.cfg.Transport {
				t.Errorf("decoded = %+v, want %+v", decoded, tt.cfg)
			}
		})
	}
}

// TestMCPToolJSON_PreservesRawInputSchema matters because
// toolsFromBridge decodes InputSchema into a map for every tool the
// Context Manager and preamble builder see; a schema that doesn't survive
// the round trip breaks tool-call argument validation downstream.
func TestMCPToolJSON_PreservesRawInputSchema(t *testing.T) {
	tool := &MCPTool{
		Name:        "search",
		Description: "Search for files",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`),
	}

	data, err := json.Marshal(tool)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded MCPTool
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(decoded.InputSchema, &schema); err != nil {
		t.Fatalf("decoded schema did not survive round trip: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("schema = %v", schema)
	}
}

func TestJSONRPCErrorCodes_AreDistinct(t *testing.T) {
	codes := []int{
		ErrCodeParseError,
		ErrCodeInvalidRequest,
		ErrCodeMethodNotFound,
		ErrCodeInvalidParams,
		ErrCodeInternalError,
		ErrCodeResourceNotFound,
		ErrCodeToolNotFound,
		ErrCodePromptNotFound,
	}
	seen := make(map[int]bool, len(codes))
	for _, code := range codes {
		if seen[code] {
			t.Errorf("duplicate JSON-RPC error code %d", code)
		}
		seen[code] = true
	}
}

// TestInitializeResultJSON_CapabilitiesSurviveRoundTrip covers the
// initialize handshake Bridge.Init relies on to learn what a server
// supports before indexing its resources.
func TestInitializeResultJSON_CapabilitiesSurviveRoundTrip(t *testing.T) {
	result := &InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: Capabilities{
			Tools:     &ToolsCapability{ListChanged: true},
			Resources: &ResourcesCapability{Subscribe: true, ListChanged: true},
			Prompts:   &PromptsCapability{ListChanged: true},
		},
		ServerInfo: ServerInfo{Name: "Test Server", Version: "1.0.0"},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded InitializeResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded.ProtocolVersion != result.ProtocolVersion {
		t.Errorf("ProtocolVersion = %q, want %q", decoded.ProtocolVersion, result.ProtocolVersion)
	}
	if decoded.Capabilities.Resources == nil || !decoded.Capabilities.Resources.Subscribe {
		t.Error("expected Resources.Subscribe to survive round trip")
	}
}

func TestCallToolParamsJSON(t *testing.T) {
	params := &CallToolParams{
		Name:      "search",
		Arguments: json.RawMessage(`{"query":"test"}`),
	}

	data, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded CallToolParams
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Name != params.Name {
		t.Errorf("expected Name %q, got %q", params.Name, decoded.Name)
	}
}
