// Package main provides the CLI entry point for the ReAct agent core.
//
// reactagent drives the browser-resident agent loop from a terminal: it
// boots an MCP server, indexes its resources, and runs chat turns against
// a configured LLM provider, using the exact same Context Manager, ReAct
// Controller, and MCP Bridge components a host page would embed.
//
// # Basic usage
//
//	reactagent chat --config reactagent.yaml
//	reactagent boot --config reactagent.yaml
//	reactagent config show --config reactagent.yaml
//
// # Environment variables
//
// The configuration path comes only from --config (default: reactagent.yaml);
// no environment variable sets it.
//
//   - OPENAI_API_KEY: OpenAI API key, used when llm.providers.openai.api_key is unset
//   - ANTHROPIC_API_KEY: Anthropic API key, used when llm.providers.anthropic.api_key is unset
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "reactagent",
		Short:        "ReAct tool-using chat agent core",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildChatCmd(),
		buildBootCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}
