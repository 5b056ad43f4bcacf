package facade

import (
	"context"
	"log/slog"
	"testing"

	"github.com/nexus-react/core/internal/contextmgr"
	"github.com/nexus-react/core/internal/embedding"
	"github.com/nexus-react/core/internal/llm"
	"github.com/nexus-react/core/internal/mcp"
	"github.com/nexus-react/core/internal/vectorstore"
	"github.com/nexus-react/core/pkg/core"
)

// scriptedLLM returns canned replies in order, implementing llm.Client.
type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	reply := s.replies[s.calls]
	s.calls++
	return reply, nil
}

func (s *scriptedLLM) Interrupt() error { return nil }
func (s *scriptedLLM) Name() string     { return "scripted" }

func newTestAgent(t *testing.T, replies []string) *Agent {
	t.Helper()
	embedder := embedding.NewHashingProvider(16)
	if err := embedder.Init(context.Background()); err != nil {
		t.Fatalf("init embedder: %v", err)
	}
	store := vectorstore.MustNew(16, slog.Default())
	bridge := mcp.NewBridge(slog.Default())
	cfg := contextmgr.Config{
		UseVectorSearch:        true,
		EnableContextBudgeting: true,
		CandidateThreshold:     0.25,
		FinalThreshold:         0.35,
		RecencyBoost:           0.30,
		MaxResults:             5,
		BudgetResources:        2048,
		BudgetHistory:          512,
	}
	agent := New(embedder, store, &scriptedLLM{replies: replies}, bridge, cfg, 5, slog.Default())
	if err := agent.Init(context.Background()); err != nil {
		t.Fatalf("agent init: %v", err)
	}
	return agent
}

func TestChat_DirectFinalAnswer(t *testing.T) {
	agent := newTestAgent(t, []string{"Thought: easy\nFinal Answer: 42"})

	state, err := agent.Chat(context.Background(), "what is the answer", nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(state.ReActSteps) != 1 || state.ReActSteps[0].FinalAnswer != "42" {
		t.Fatalf("unexpected steps: %+v", state.ReActSteps)
	}
	if len(state.Messages) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(state.Messages))
	}
	if state.Messages[1].Content != "42" {
		t.Fatalf("assistant message = %q", state.Messages[1].Content)
	}
}

func TestChat_HistoryAccumulatesAcrossTurns(t *testing.T) {
	agent := newTestAgent(t, []string{
		"Thought: first\nFinal Answer: one",
		"Thought: second\nFinal Answer: two",
	})

	if _, err := agent.Chat(context.Background(), "first question", nil); err != nil {
		t.Fatalf("first Chat: %v", err)
	}
	state, err := agent.Chat(context.Background(), "second question", nil)
	if err != nil {
		t.Fatalf("second Chat: %v", err)
	}

	if len(state.Messages) != 4 {
		t.Fatalf("expected 4 accumulated messages, got %d: %+v", len(state.Messages), state.Messages)
	}
	if state.Messages[3].Content != "two" {
		t.Fatalf("latest assistant message = %q", state.Messages[3].Content)
	}
}

func TestChat_ToolActionWithoutBridgeBecomesErrorObservation(t *testing.T) {
	agent := newTestAgent(t, []string{
		"Thought: need a tool\nAction: search\nAction Input: {\"query\": \"x\"}",
		"Thought: done\nFinal Answer: handled the error",
	})

	state, err := agent.Chat(context.Background(), "look something up", nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(state.ToolExecutions) != 1 {
		t.Fatalf("expected one tool execution recorded, got %d", len(state.ToolExecutions))
	}
	if state.ReActSteps[0].Observation == "" {
		t.Fatal("expected an observation for the attempted action")
	}
}

func TestChat_RejectsReentrantCall(t *testing.T) {
	agent := newTestAgent(t, []string{"Thought: x\nFinal Answer: y"})
	agent.mu.Lock()
	defer agent.mu.Unlock()

	if _, err := agent.Chat(context.Background(), "hello", nil); err != core.ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestInterrupt_DelegatesToReactor(t *testing.T) {
	agent := newTestAgent(t, []string{"Thought: x\nFinal Answer: y"})
	if err := agent.Interrupt(); err != nil {
		t.Fatalf("Interrupt: %v", err)
	}
}
