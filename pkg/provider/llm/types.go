package llm

// Message represents a single turn in a model conversation.
//
// A message carries plain text, tool-call requests (assistant turns), or
// tool-call results (the user-role reply turn that answers an assistant's
// tool requests) — never a mix of requests and results.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the plain-text content of the message. Empty when the
	// message carries only tool calls or tool results.
	Content string

	// ToolCalls contains the tool invocations requested by the assistant
	// in this turn. Only set when Role is "assistant".
	ToolCalls []ToolCall

	// ToolResults contains the results answering the immediately preceding
	// assistant turn's ToolCalls, correlated by ID. Only set when Role is
	// "user"; providers translate these into their wire-level tool-result
	// representation.
	ToolResults []ToolResult
}

// Roles recognised in [Message.Role].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned identifier correlating this call with
	// its result.
	ID string

	// Name is the tool name, matching a [ToolDefinition.Name] offered in
	// the request.
	Name string

	// Arguments is the JSON-encoded argument object.
	Arguments string
}

// ToolResult is the outcome of one executed tool call, fed back to the
// model in the reply turn.
type ToolResult struct {
	// ID matches the [ToolCall.ID] this result answers.
	ID string

	// Content is the tool's textual output, or a human-readable error
	// message when IsError is set.
	Content string

	// IsError marks an in-band tool failure. The model sees the message
	// and can adapt its next request; the exchange continues.
	IsError bool
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does (included in model prompts).
	Description string

	// Parameters is the JSON Schema describing the tool's input object.
	Parameters map[string]any
}

// ModelCapabilities describes what a model backend supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool
}
