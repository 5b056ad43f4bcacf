// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// llm.Client contract, grounded on
// internal/agent/providers.AnthropicProvider (client construction via
// option.WithAPIKey, retry/backoff shape) but collapsed to a single
// non-streaming Messages.New call per Chat, since the core drives the model
// through text-formatted ReAct turns rather than native tool-calling.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nexus-react/core/internal/llm"
)

// Client implements llm.Client against the Anthropic Messages API.
type Client struct {
	llm.BaseClient
	client *anthropic.Client
	model  string
	cancel context.CancelFunc
}

// New creates an Anthropic-backed client for the given default model (e.g.
// "claude-sonnet-4-20250514").
func New(apiKey, model string) *Client {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		BaseClient: llm.NewBaseClient(3, 0),
		client:     &c,
		model:      model,
	}
}

func (c *Client) Name() string { return "anthropic" }

// Chat sends the full message history and returns the assistant's text.
// A leading system-role message (the ReAct system preamble) is extracted
// into Anthropic's top-level System field; remaining messages map 1:1.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	if c.client == nil {
		return "", errors.New("anthropic: client not configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer func() { c.cancel = nil }()

	system, turns := splitSystem(messages)
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	out, err := c.Retry(ctx, isRetryable, func() (string, error) {
		resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: turns,
		})
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		return sb.String(), nil
	})
	return out, err
}

// Interrupt cancels the in-flight Chat call, if any.
func (c *Client) Interrupt() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func splitSystem(messages []llm.Message) (string, []anthropic.MessageParam) {
	var system strings.Builder
	turns := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
			continue
		}
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			turns = append(turns, anthropic.NewAssistantMessage(block))
		} else {
			turns = append(turns, anthropic.NewUserMessage(block))
		}
	}
	return system.String(), turns
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "overloaded")
}
