// Package facade implements the Agent Facade (C8): the single entry point a
// host page or CLI drives. It owns conversation history and sequences the
// Context Manager, ReAct Controller, MCP Bridge, Vector Store, and Resource
// Indexer behind chat() and bootServer(), matching a thin coordinating type
// that holds no business logic of its own — grounded on the gateway
// package's per-channel session orchestration shape.
package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nexus-react/core/internal/contextmgr"
	"github.com/nexus-react/core/internal/embedding"
	"github.com/nexus-react/core/internal/indexer"
	"github.com/nexus-react/core/internal/llm"
	"github.com/nexus-react/core/internal/mcp"
	"github.com/nexus-react/core/internal/react"
	"github.com/nexus-react/core/internal/vectorstore"
	"github.com/nexus-react/core/pkg/core"
)

// Agent is the Agent Facade. Build one with New, call Init once, then
// BootServer before the first tool-using turn, then Chat per user message.
type Agent struct {
	mu sync.Mutex

	embedder embedding.Provider
	store    *vectorstore.Store
	indexer  *indexer.Indexer
	context  *contextmgr.Manager
	reactor  *react.Controller
	bridge   *mcp.Bridge
	logger   *slog.Logger

	contextCfg contextmgr.Config
	maxSteps   int

	history []core.ChatMessage

	// turnExecutions accumulates the bridge's successful ToolExecution
	// records (with their bridge-assigned exec-N ids) for the turn
	// currently in flight, so Chat can stamp the same id onto the
	// ConversationState it returns instead of minting a second one.
	turnExecutions []mcp.ToolExecution
}

// New wires the Agent's components together. llmClient and logger are
// shared with the Controller; all other components are constructed here
// from the embedder, store, and bridge the caller provides so their
// lifetimes stay owned by the caller (important for tests, which swap in
// fakes for embedder and llmClient).
func New(embedder embedding.Provider, store *vectorstore.Store, llmClient llm.Client, bridge *mcp.Bridge, contextCfg contextmgr.Config, maxSteps int, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "agent-facade")

	ix := indexer.New(embedder, store, bridge, logger)

	a := &Agent{
		embedder:   embedder,
		store:      store,
		indexer:    ix,
		context:    contextmgr.New(embedder, store, logger),
		reactor:    react.New(llmClient, bridgeToolExecutor{bridge}, logger),
		bridge:     bridge,
		contextCfg: contextCfg,
		maxSteps:   maxSteps,
		logger:     logger,
	}

	bridge.SetIndexHook(func(ctx context.Context, exec mcp.ToolExecution) {
		a.turnExecutions = append(a.turnExecutions, exec)
		if err := ix.IndexToolResult(ctx, core.ToolExecution{
			ID:        exec.ID,
			Name:      exec.ToolName,
			Arguments: exec.Arguments,
			Result:    exec.Result,
			Timestamp: time.Now(),
		}); err != nil {
			logger.Warn("failed to index tool result", "tool", exec.ToolName, "error", err)
		}
	})

	return a
}

// Init loads the embedding model. Call once before the first Chat or
// BootServer call.
func (a *Agent) Init(ctx context.Context) error {
	if err := a.embedder.Init(ctx); err != nil {
		return fmt.Errorf("agent init: %w", err)
	}
	return nil
}

// Chat implements the single-turn contract (spec §4.8):
//  1. Append {role:user, content:userMessage} to history.
//  2. Ask the Context Manager for a bundle.
//  3. Ask the ReAct Controller to run.
//  4. Append the controller's assistant message to history.
//  5. Return {messages, toolExecutions, reactSteps}.
// Chat returns core.ErrAlreadyRunning if a prior Chat call on this Agent is
// still in flight (spec §5: "concurrent chat() calls are not supported") and
// a KindInit AgentError if Init has not yet completed successfully.
func (a *Agent) Chat(ctx context.Context, userMessage string, onStep func(core.ReActStep)) (core.ConversationState, error) {
	if !a.mu.TryLock() {
		return core.ConversationState{}, core.ErrAlreadyRunning
	}
	defer a.mu.Unlock()

	if !a.embedder.IsReady() {
		return core.ConversationState{}, core.NewAgentError(core.KindInit, "agent-facade", core.ErrNotReady)
	}

	a.history = append(a.history, core.ChatMessage{Role: core.RoleUser, Content: userMessage})

	tools := toolsFromBridge(a.bridge)
	bundle := a.context.Build(ctx, userMessage, a.history, tools, a.contextCfg)
	bundle.RelevantResources = contextmgr.TruncateResources(bundle.RelevantResources, budgetOrZero(a.contextCfg))

	a.turnExecutions = a.turnExecutions[:0]
	answer, steps := a.reactor.Run(ctx, userMessage, a.history, bundle, a.maxSteps, onStep)

	a.history = append(a.history, core.ChatMessage{Role: core.RoleAssistant, Content: answer})

	// successful steps appear in the same order the bridge recorded them in
	// turnExecutions, so draining the queue alongside the step list lines
	// up each ToolExecution with the exec-N id the indexer already used for
	// its tool:// URI (spec §3's ToolExecution.id).
	var executions []core.ToolExecution
	next := 0
	for _, step := range steps {
		if step.Action == nil {
			continue
		}
		exec := core.ToolExecution{
			Name:      step.Action.Tool,
			Arguments: step.Action.Args,
			Result:    step.Observation,
			Timestamp: time.Now(),
		}
		if !strings.HasPrefix(step.Observation, "ERROR") && next < len(a.turnExecutions) {
			exec.ID = a.turnExecutions[next].ID
			next++
		}
		executions = append(executions, exec)
	}

	return core.ConversationState{
		Messages:       append([]core.ChatMessage(nil), a.history...),
		ToolExecutions: executions,
		ReActSteps:     steps,
	}, nil
}

// budgetOrZero disables resource truncation when context budgeting is off,
// matching the Context Manager's own EnableContextBudgeting gate.
func budgetOrZero(cfg contextmgr.Config) int {
	if !cfg.EnableContextBudgeting {
		return 0
	}
	return cfg.BudgetResources
}

// Interrupt cancels the in-flight LLM call through the client's own
// Interrupt; the turn then ends with the Controller's "ERROR: LLM call
// failed: ..." answer. A tool call already running is not affected and its
// observation is kept. The Controller answers "<interrupted>" only when the
// context passed to Chat is already cancelled at the start of a step.
func (a *Agent) Interrupt() error {
	return a.reactor.Interrupt()
}

// History returns a copy of the current conversation history.
func (a *Agent) History() []core.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.ChatMessage(nil), a.history...)
}

// Close tears down the active MCP connection and releases the Vector
// Store's database handle. Call once the Agent is no longer needed.
func (a *Agent) Close() error {
	if err := a.bridge.Close(); err != nil {
		a.logger.Warn("error closing MCP connection", "error", err)
	}
	return a.store.Close()
}

// BootServer is the single entry point for MCP transport lifecycle (spec
// §4.8). It runs the teardown/reset/reinit/reindex sequence in order:
// tearing down the prior connection and clearing retrieval state before the
// new server goes live is what prevents cross-server context pollution.
func (a *Agent) BootServer(ctx context.Context, serverCfg *mcp.ServerConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// (a) tear down any prior transport.
	if err := a.bridge.Close(); err != nil {
		a.logger.Warn("error closing prior MCP connection", "error", err)
	}

	// (b) clear the Vector Store.
	a.store.Clear()

	// (c) clear ChatMessage history.
	a.history = nil

	// (d) emit a single synthetic system notice.
	a.history = append(a.history, core.ChatMessage{Role: core.RoleSystem, Content: "MCP server switched — context reset"})

	// (e) perform the new bridge init.
	if err := a.bridge.Init(ctx, serverCfg); err != nil {
		return core.NewAgentError(core.KindInit, "mcp-bridge", fmt.Errorf("boot server %s: %w", serverCfg.ID, err))
	}
	a.indexer.SetReader(a.bridge)

	// (f) fetch all resources and index them with full framing.
	var resources []indexer.Resource
	for _, res := range a.bridge.ListResources() {
		text, _, err := a.bridge.ReadResource(ctx, res.URI)
		if err != nil {
			a.logger.Warn("failed to read resource during boot indexing", "uri", res.URI, "error", err)
			continue
		}
		resources = append(resources, indexer.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			Content:     text,
		})
	}
	if err := a.indexer.IndexResources(ctx, resources); err != nil {
		a.logger.Warn("failed to index boot resources", "error", err)
	}

	a.logger.Info("mcp server booted", "server", serverCfg.ID, "resources_indexed", len(resources))
	return nil
}

// bridgeToolExecutor adapts mcp.Bridge.ExecuteTool's {OK, Result, Error}
// envelope to the (result any, err error) shape react.ToolExecutor expects.
type bridgeToolExecutor struct {
	bridge *mcp.Bridge
}

func (b bridgeToolExecutor) ExecuteTool(ctx context.Context, tool string, args map[string]any) (any, error) {
	result := b.bridge.ExecuteTool(ctx, tool, args)
	if !result.OK {
		return nil, fmt.Errorf("%s", result.Error)
	}
	return result.Result, nil
}

// toolsFromBridge converts the bridge's MCP tool catalog into the core.Tool
// shape the Context Manager and preamble builder expect, decoding each
// tool's JSON Schema input into a map for uniform inline-enum inspection.
func toolsFromBridge(bridge *mcp.Bridge) []core.Tool {
	mcpTools := bridge.ListTools()
	tools := make([]core.Tool, 0, len(mcpTools))
	for _, t := range mcpTools {
		var params map[string]any
		if len(t.InputSchema) > 0 {
			_ = json.Unmarshal(t.InputSchema, &params)
		}
		tools = append(tools, core.Tool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return tools
}
