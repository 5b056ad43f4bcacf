package react

import (
	"context"
	"errors"
	"testing"

	"github.com/nexus-react/core/internal/llm"
	"github.com/nexus-react/core/pkg/core"
)

type scriptedLLM struct {
	responses []string
	call      int
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	if s.call >= len(s.responses) {
		return "", errors.New("scriptedLLM: out of responses")
	}
	r := s.responses[s.call]
	s.call++
	return r, nil
}
func (s *scriptedLLM) Interrupt() error { return nil }
func (s *scriptedLLM) Name() string     { return "scripted" }

type stubTools struct {
	result any
	err    error
}

func (s *stubTools) ExecuteTool(ctx context.Context, tool string, args map[string]any) (any, error) {
	return s.result, s.err
}

func TestRun_DirectFinalAnswer(t *testing.T) {
	model := &scriptedLLM{responses: []string{"Thought: I know this\nFinal Answer: 42"}}
	c := New(model, nil, nil)

	answer, steps := c.Run(context.Background(), "what is the answer", nil, core.ContextBundle{}, 5, nil)

	if answer != "42" {
		t.Fatalf("answer = %q", answer)
	}
	if len(steps) != 1 || steps[0].FinalAnswer != "42" {
		t.Fatalf("steps = %+v", steps)
	}
}

func TestRun_ActionThenFinalAnswer(t *testing.T) {
	model := &scriptedLLM{responses: []string{
		"Thought: need to search\nAction: search\nAction Input: {\"query\": \"go\"}",
		"Thought: got it\nFinal Answer: here you go",
	}}
	tools := &stubTools{result: map[string]any{"hits": 3}}
	c := New(model, tools, nil)

	answer, steps := c.Run(context.Background(), "find something", nil, core.ContextBundle{}, 5, nil)

	if answer != "here you go" {
		t.Fatalf("answer = %q", answer)
	}
	if len(steps) != 2 {
		t.Fatalf("steps = %+v", steps)
	}
	if steps[0].Action == nil || steps[0].Action.Tool != "search" {
		t.Fatalf("step 0 action = %+v", steps[0].Action)
	}
	if steps[0].Observation == "" {
		t.Fatalf("expected observation recorded")
	}
}

func TestRun_ToolErrorBecomesObservation(t *testing.T) {
	model := &scriptedLLM{responses: []string{
		"Thought: try a tool\nAction: search\nAction Input: {}",
		"Thought: that failed, I will answer anyway\nFinal Answer: done",
	}}
	tools := &stubTools{err: errors.New("boom")}
	c := New(model, tools, nil)

	_, steps := c.Run(context.Background(), "go", nil, core.ContextBundle{}, 5, nil)

	if len(steps) < 1 || steps[0].Observation != "ERROR: boom" {
		t.Fatalf("steps = %+v", steps)
	}
}

func TestRun_StepCapGracefulDegradation(t *testing.T) {
	model := &scriptedLLM{responses: []string{
		"Thought: step1\nAction: search\nAction Input: {}",
		"Thought: step2\nAction: search\nAction Input: {}",
	}}
	tools := &stubTools{result: "some finding"}
	c := New(model, tools, nil)

	answer, steps := c.Run(context.Background(), "go", nil, core.ContextBundle{}, 2, nil)

	if len(steps) != 2 {
		t.Fatalf("steps = %+v", steps)
	}
	if answer == "" {
		t.Fatalf("expected a degraded answer")
	}
}

func TestRun_StepCapWithNoSuccessApologizes(t *testing.T) {
	model := &scriptedLLM{responses: []string{
		"Thought: step1\nAction: search\nAction Input: {}",
		"Thought: step2\nAction: search\nAction Input: {}",
	}}
	tools := &stubTools{err: errors.New("always fails")}
	c := New(model, tools, nil)

	answer, _ := c.Run(context.Background(), "go", nil, core.ContextBundle{}, 2, nil)

	if answer != "I could not complete the task within the step limit. Please rephrase or ask a narrower question." {
		t.Fatalf("answer = %q", answer)
	}
}
