// Package llm defines the LLM client contract consumed by the ReAct
// Controller (spec §6.1) and hosts concrete provider adapters. The core
// never relies on native function-calling: every adapter is driven through
// the same text-formatted ReAct protocol, so Chat always returns plain
// assistant text for the Output Parser to interpret.
package llm

import (
	"context"
	"time"
)

// ChatOptions tunes a single Chat call. It carries no tool definitions, so
// no adapter ever triggers native tool-calling.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// Client is the interface the ReAct Controller drives the model through.
type Client interface {
	// Chat sends the full message history (system preamble included as a
	// system-role message) and returns the assistant's raw text reply.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
	// Interrupt cancels any in-flight Chat call, if the provider supports
	// cancellation; otherwise it is a no-op.
	Interrupt() error
	// Name identifies the provider for logging.
	Name() string
}

// Message is the wire shape handed to providers; mirrors core.ChatMessage
// without importing pkg/core, keeping this package dependency-light.
type Message struct {
	Role    string
	Content string
}

// BaseClient holds shared retry configuration, grounded on
// providers.BaseProvider.
type BaseClient struct {
	maxRetries int
	retryDelay time.Duration
}

// NewBaseClient builds a BaseClient with sane defaults.
func NewBaseClient(maxRetries int, retryDelay time.Duration) BaseClient {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return BaseClient{maxRetries: maxRetries, retryDelay: retryDelay}
}

// Retry runs op, retrying with linear backoff while isRetryable(err) holds.
func (b *BaseClient) Retry(ctx context.Context, isRetryable func(error) bool, op func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := op()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if isRetryable == nil || !isRetryable(err) || attempt >= b.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(b.retryDelay * time.Duration(attempt)):
		}
	}
	return "", lastErr
}
