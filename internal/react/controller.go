// Package react implements the ReAct Controller (C6): the system-preamble
// construction and step loop that drives the model through
// Thought/Action/Observation/Final-Answer turns. The loop shape (message
// history threaded across turns, graceful fallback when headers are
// missing, "finish" terminating the loop) is grounded on the reference
// agent engine's session loop; the step cap, error-observation, and
// single-action-per-turn rules come from the distilled contract.
package react

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nexus-react/core/internal/llm"
	"github.com/nexus-react/core/internal/outputparser"
	"github.com/nexus-react/core/pkg/core"
)

// ToolExecutor runs a tool call against the MCP Bridge and normalizes the
// result, matching mcp.Client.CallTool's shape collapsed to what the
// controller needs.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, tool string, args map[string]any) (result any, execErr error)
}

// Controller runs the ReAct step loop.
type Controller struct {
	llmClient llm.Client
	tools     ToolExecutor
	logger    *slog.Logger
}

// New builds a Controller against the given LLM client and tool executor.
func New(llmClient llm.Client, tools ToolExecutor, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{llmClient: llmClient, tools: tools, logger: logger.With("component", "react")}
}

// Run executes the step loop for one user turn and returns the final answer
// plus the full step trace. onStep, if non-nil, is invoked synchronously
// after each step is appended.
func (c *Controller) Run(ctx context.Context, userMessage string, history []core.ChatMessage, bundle core.ContextBundle, maxSteps int, onStep func(core.ReActStep)) (string, []core.ReActStep) {
	if maxSteps <= 0 {
		maxSteps = 5
	}

	preamble := buildSystemPreamble(bundle)
	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, llm.Message{Role: "system", Content: preamble})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})

	var steps []core.ReActStep

	for i := 0; i < maxSteps; i++ {
		select {
		case <-ctx.Done():
			return "<interrupted>", steps
		default:
		}

		response, err := c.llmClient.Chat(ctx, messages, llm.ChatOptions{Temperature: 0.2})
		if err != nil {
			// Transport/LLM-level failure is not a tool error; surface it as
			// the final answer of this turn rather than retrying internally.
			return fmt.Sprintf("ERROR: LLM call failed: %s", err), steps
		}

		parsed := outputparser.Parse(response)
		if parsed.HallucinatedObservation {
			c.logger.Warn("model emitted a hallucinated Observation line; stripped", "step", i)
		}

		step := core.ReActStep{Thought: parsed.Thought}

		if parsed.HasFinalAnswer {
			step.FinalAnswer = parsed.FinalAnswer
			steps = append(steps, step)
			notify(onStep, step)
			return parsed.FinalAnswer, steps
		}

		if parsed.HasAction {
			observation := c.executeAction(ctx, parsed)
			step.Action = &core.ToolAction{Tool: parsed.Action, Args: parsed.ActionInput}
			step.Observation = observation
			steps = append(steps, step)
			notify(onStep, step)

			messages = append(messages,
				llm.Message{Role: "assistant", Content: response},
				llm.Message{Role: "user", Content: "Observation: " + observation},
			)
			continue
		}

		// No action, no final answer: degenerate response, treat it as the
		// answer of last resort.
		steps = append(steps, step)
		notify(onStep, step)
		return response, steps
	}

	return gracefulDegradation(steps), steps
}

// Interrupt cancels the controller's in-flight LLM call, if the underlying
// client supports cancellation.
func (c *Controller) Interrupt() error {
	return c.llmClient.Interrupt()
}

func (c *Controller) executeAction(ctx context.Context, parsed outputparser.Result) string {
	if parsed.ActionInputError {
		return "ERROR: invalid Action Input"
	}
	if c.tools == nil {
		return "ERROR: no tool runtime configured"
	}

	result, err := c.tools.ExecuteTool(ctx, parsed.Action, parsed.ActionInput)
	if err != nil {
		return "ERROR: " + err.Error()
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return "ERROR: failed to encode tool result: " + err.Error()
	}
	return string(encoded)
}

// gracefulDegradation implements the step-cap fallback from §4.6.2: when
// the loop exhausts maxSteps without a final answer, synthesize one from
// whatever successful observations were gathered, or apologize if none.
func gracefulDegradation(steps []core.ReActStep) string {
	var successful []string
	for _, s := range steps {
		if s.Observation != "" && !strings.HasPrefix(s.Observation, "ERROR") {
			successful = append(successful, s.Observation)
		}
	}
	if len(successful) == 0 {
		return "I could not complete the task within the step limit. Please rephrase or ask a narrower question."
	}
	return "Based on what I gathered:\n\n" + strings.Join(successful, "\n\n") + "\n\nI reached the step limit."
}

func notify(onStep func(core.ReActStep), step core.ReActStep) {
	if onStep != nil {
		onStep(step)
	}
}
