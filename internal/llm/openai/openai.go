// Package openai adapts github.com/sashabaranov/go-openai to the llm.Client
// contract, grounded on internal/agent/providers.OpenAIProvider
// (retry/backoff shape, client construction) but simplified to a single
// non-streaming completion per call since the core drives the model
// entirely through text-formatted ReAct turns, never native tool-calling.
package openai

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nexus-react/core/internal/llm"
)

// Client implements llm.Client against the OpenAI chat completions API.
type Client struct {
	llm.BaseClient
	client *openai.Client
	model  string
	cancel context.CancelFunc
}

// New creates an OpenAI-backed client. model (e.g. "gpt-4o-mini") is used
// for every Chat call; ChatOptions has no model field to override it.
func New(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		BaseClient: llm.NewBaseClient(3, 0),
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
	}
}

func (c *Client) Name() string { return "openai" }

// Chat sends the full message history and returns the assistant's text.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	if c.client == nil {
		return "", errors.New("openai: API key not configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer func() { c.cancel = nil }()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	out, err := c.Retry(ctx, isRetryable, func() (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("openai: empty response")
		}
		return resp.Choices[0].Message.Content, nil
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

func toOpenAIMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "connection")
}
