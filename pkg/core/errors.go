package core

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures per the error handling design (spec §7).
type ErrorKind string

const (
	// KindInit covers embedding model load, transport connect, and MCP
	// handshake failures. Fatal at boot.
	KindInit ErrorKind = "init"
	// KindTransport covers disconnects and timeouts talking to the tool
	// runtime. The in-flight call fails; later calls may still succeed.
	KindTransport ErrorKind = "transport"
	// KindSchemaValidation covers Action Input that fails the named tool's
	// JSON Schema.
	KindSchemaValidation ErrorKind = "schema_validation"
	// KindToolRuntime covers a tool raising, or tools/call returning
	// isError:true.
	KindToolRuntime ErrorKind = "tool_runtime"
	// KindParse covers model output with no Thought and no Final Answer.
	KindParse ErrorKind = "parse"
	// KindBudgetExceeded covers a single retrieved item that cannot fit
	// even after truncation.
	KindBudgetExceeded ErrorKind = "budget_exceeded"
	// KindStepCapReached covers the ReAct loop exhausting maxSteps.
	KindStepCapReached ErrorKind = "step_cap_reached"
)

// IsRetryable reports whether a failure of this kind may succeed if retried
// without any change in caller behavior (e.g. a later independent call).
func (k ErrorKind) IsRetryable() bool {
	switch k {
	case KindTransport:
		return true
	default:
		return false
	}
}

// AgentError is a structured error carrying the failing component and kind,
// so callers can branch on ErrorKind without parsing message strings.
type AgentError struct {
	Kind      ErrorKind
	Component string
	Message   string
	Cause     error
}

// NewAgentError builds an AgentError whose Message is cause's error text
// (empty when cause is nil).
func NewAgentError(kind ErrorKind, component string, cause error) *AgentError {
	e := &AgentError{Kind: kind, Component: component, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

func (e *AgentError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Component, e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AgentError) Unwrap() error { return e.Cause }

// AsAgentError extracts an *AgentError from an error chain.
func AsAgentError(err error) (*AgentError, bool) {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Sentinel errors for programmer-error conditions the core refuses to
// tolerate silently (spec §7: "never raises to the facade caller after
// bootServer succeeds except for programmer errors").
var (
	ErrNotReady       = errors.New("component not initialized: call init() first")
	ErrAlreadyRunning = errors.New("chat already in progress: concurrent chat() calls are not supported")
)
