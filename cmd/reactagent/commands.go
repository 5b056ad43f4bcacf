// commands.go contains the cobra command definitions and the wiring that
// turns a loaded Config into a running facade.Agent.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexus-react/core/internal/config"
	"github.com/nexus-react/core/internal/contextmgr"
	"github.com/nexus-react/core/internal/embedding"
	"github.com/nexus-react/core/internal/facade"
	"github.com/nexus-react/core/internal/llm"
	"github.com/nexus-react/core/internal/llm/anthropic"
	"github.com/nexus-react/core/internal/llm/openai"
	"github.com/nexus-react/core/internal/mcp"
	"github.com/nexus-react/core/internal/vectorstore"
	"github.com/nexus-react/core/pkg/core"
)

const defaultConfigPath = "reactagent.yaml"

// =============================================================================
// chat command
// =============================================================================

func buildChatCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run an interactive chat session against the configured MCP server",
		Long: `Start a REPL that drives the agent core over stdin/stdout.

Each line typed is treated as a user turn. The ReAct Controller's Thought/
Action/Observation trace is printed to stderr when debug_mode is enabled in
the configuration; the final answer is always printed to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func runChat(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	agent, err := buildAgent(cfg)
	if err != nil {
		return err
	}
	defer agent.Close()
	if err := agent.Init(ctx); err != nil {
		return err
	}

	if cfg.MCP.ID != "" {
		if err := agent.BootServer(ctx, serverConfigFromMCP(cfg.MCP)); err != nil {
			return fmt.Errorf("boot mcp server: %w", err)
		}
	}

	fmt.Fprintln(os.Stderr, "reactagent ready. Type a message and press Enter; Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		state, err := agent.Chat(ctx, line, func(step core.ReActStep) {
			if cfg.ReAct.DebugMode {
				printStep(step)
			}
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Println(lastAssistantMessage(state))
	}
	return scanner.Err()
}

func printStep(step core.ReActStep) {
	if step.Thought != "" {
		fmt.Fprintf(os.Stderr, "Thought: %s\n", step.Thought)
	}
	if step.Action != nil {
		fmt.Fprintf(os.Stderr, "Action: %s %v\n", step.Action.Tool, step.Action.Args)
		fmt.Fprintf(os.Stderr, "Observation: %s\n", step.Observation)
	}
}

func lastAssistantMessage(state core.ConversationState) string {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == core.RoleAssistant {
			return state.Messages[i].Content
		}
	}
	return ""
}

// =============================================================================
// boot command
// =============================================================================

func buildBootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Connect to the configured MCP server and index its resources",
		Long: `Exercises bootServer in isolation: connects the MCP Bridge, clears the
Vector Store and conversation history, and indexes every resource the
server advertises. Useful for verifying a server integration without
starting a chat loop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoot(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func runBoot(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.MCP.ID == "" {
		return fmt.Errorf("no mcp server configured (set mcp.id in %s)", configPath)
	}

	agent, err := buildAgent(cfg)
	if err != nil {
		return err
	}
	defer agent.Close()
	if err := agent.Init(ctx); err != nil {
		return err
	}
	if err := agent.BootServer(ctx, serverConfigFromMCP(cfg.MCP)); err != nil {
		return fmt.Errorf("boot mcp server: %w", err)
	}

	fmt.Printf("booted mcp server %q\n", cfg.MCP.ID)
	return nil
}

// =============================================================================
// config command
// =============================================================================

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(buildConfigShowCmd(), buildConfigSchemaCmd())
	return cmd
}

func buildConfigShowCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration file's JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.JSONSchema()
			if err != nil {
				return err
			}
			fmt.Println(string(schema))
			return nil
		},
	}
}

// =============================================================================
// wiring helpers
// =============================================================================

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if path == defaultConfigPath {
			return config.DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return config.Load(path)
}

// buildAgent wires an embedder, vector store, LLM client, and MCP bridge
// into a facade.Agent per the resolved Config. The embedder is always the
// hashing provider (spec's Non-goals exclude shipping a real model
// download); the LLM client is selected by cfg.LLM.DefaultProvider.
func buildAgent(cfg *config.Config) (*facade.Agent, error) {
	llmClient, err := buildLLMClient(cfg.LLM)
	if err != nil {
		return nil, err
	}

	embedder := embedding.NewHashingProvider(384)
	store, err := vectorstore.New(embedder.Dimension(), slog.Default())
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	bridge := mcp.NewBridge(slog.Default())

	contextCfg := contextmgr.Config{
		UseVectorSearch:        cfg.ReAct.UseVectorSearch,
		EnableContextBudgeting: cfg.ReAct.EnableContextBudgeting,
		CandidateThreshold:     cfg.ReAct.CandidateThreshold,
		FinalThreshold:         cfg.ReAct.FinalThreshold,
		RecencyBoost:           cfg.ReAct.RecencyBoost,
		MaxResults:             cfg.ReAct.MaxResults,
		BudgetResources:        cfg.ReAct.BudgetResources,
		BudgetHistory:          cfg.ReAct.BudgetHistory,
		DebugMode:              cfg.ReAct.DebugMode,
	}

	return facade.New(embedder, store, llmClient, bridge, contextCfg, cfg.ReAct.MaxSteps, slog.Default()), nil
}

func buildLLMClient(cfg config.LLMConfig) (llm.Client, error) {
	provider := cfg.Providers[cfg.DefaultProvider]

	switch cfg.DefaultProvider {
	case "", "openai":
		apiKey := provider.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		model := provider.DefaultModel
		if model == "" {
			model = "gpt-4o-mini"
		}
		return openai.New(apiKey, provider.BaseURL, model), nil
	case "anthropic":
		apiKey := provider.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		model := provider.DefaultModel
		if model == "" {
			model = "claude-3-5-sonnet-20241022"
		}
		return anthropic.New(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.DefaultProvider)
	}
}

func serverConfigFromMCP(cfg config.MCPConfig) *mcp.ServerConfig {
	return &mcp.ServerConfig{
		ID:        cfg.ID,
		Name:      cfg.Name,
		Transport: mcp.TransportType(cfg.Transport),
		Command:   cfg.Command,
		Args:      cfg.Args,
		Env:       cfg.Env,
		URL:       cfg.URL,
		IPCMode:   cfg.IPCMode,
		Headers:   cfg.Headers,
		Timeout:   30 * time.Second,
	}
}
