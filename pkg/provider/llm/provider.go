// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., Anthropic Claude,
// OpenAI GPT, or a local Ollama instance) and exposes a uniform
// request/response interface for the Stratus orchestrator, including tool
// calling and a normalised stop condition, without coupling to any specific
// SDK.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import (
	"context"
	"errors"
)

// ErrThrottled is the distinguished error kind for transient backend
// overload (HTTP 429 and equivalents). Providers wrap throttling failures
// with this sentinel so that callers can apply the bounded single-retry
// policy via errors.Is.
var ErrThrottled = errors.New("llm: backend throttled")

// StopReason is the model backend's normalised signal for why it ended a
// turn.
type StopReason string

const (
	// StopEnd means the model produced its final answer.
	StopEnd StopReason = "end"

	// StopToolUse means the model requested one or more tool calls and is
	// waiting for their results.
	StopToolUse StopReason = "tool_use"

	// StopLength means generation hit the MaxTokens cap.
	StopLength StopReason = "length"

	// StopOther covers any provider-specific stop condition not mapped
	// above. Callers treat it as terminal.
	StopOther StopReason = "other"
)

// Usage holds token accounting information returned by the model backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages
	// and system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a
// response. At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history, including any
	// tool-call and tool-result turns from earlier iterations.
	Messages []Message

	// Tools is the catalog of tool definitions offered to the model.
	Tools []ToolDefinition

	// Temperature controls output randomness in [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected
	// before the conversation history.
	SystemPrompt string
}

// CompletionResponse is one full model turn.
type CompletionResponse struct {
	// Content is the concatenated plain-text segments of the reply, in
	// order. Empty when the model responds exclusively with tool calls.
	Content string

	// ToolCalls lists the tool invocations the model requested. The caller
	// executes them and appends the results to the conversation before the
	// next submission.
	ToolCalls []ToolCall

	// StopReason is the normalised stop condition for this turn.
	StopReason StopReason

	// RawStopReason is the provider's unmapped stop string, kept for
	// diagnostics when StopReason is StopOther.
	RawStopReason string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any model backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Transient backend overload is reported as an error satisfying
	// errors.Is(err, ErrThrottled); all other errors are hard failures.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens the given message list
	// would consume in the model's context window. The result need not be
	// exact but should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata describing what this provider's
	// underlying model supports.
	Capabilities() ModelCapabilities
}
