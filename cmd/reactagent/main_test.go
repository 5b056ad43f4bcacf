package main

import (
	"testing"

	"github.com/nexus-react/core/internal/config"
)

func defaultLLMConfigForTest() config.LLMConfig {
	return config.LLMConfig{DefaultProvider: "openai"}
}

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"chat", "boot", "config"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestBuildLLMClient_DefaultsToOpenAI(t *testing.T) {
	client, err := buildLLMClient(defaultLLMConfigForTest())
	if err != nil {
		t.Fatalf("buildLLMClient: %v", err)
	}
	if client.Name() != "openai" {
		t.Fatalf("expected openai client, got %s", client.Name())
	}
}

func TestBuildLLMClient_UnknownProviderErrors(t *testing.T) {
	cfg := defaultLLMConfigForTest()
	cfg.DefaultProvider = "does-not-exist"
	if _, err := buildLLMClient(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
