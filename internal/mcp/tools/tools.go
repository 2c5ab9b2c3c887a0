// Package tools defines the shared [Tool] type used by all built-in MCP tool
// packages in Stratus. Each sub-package exports a constructor function that
// returns a slice of [Tool] values ready for registration with the MCP Host
// or for serving through a standalone MCP server process.
package tools

import (
	"context"

	"github.com/stratus-ai/stratus/pkg/provider/llm"
)

// Tool represents a built-in tool implemented as a Go function.
//
// Each Tool carries its model-facing schema ([llm.ToolDefinition]) together
// with the handler function that is invoked when the model calls the tool.
type Tool struct {
	// Definition is the tool's model-facing schema including its name,
	// description, and JSON Schema parameter specification.
	Definition llm.ToolDefinition

	// Handler executes the tool with JSON-encoded args and returns a
	// textual result on success, or a descriptive error. Implementations
	// must be safe for concurrent use and must respect context
	// cancellation.
	Handler func(ctx context.Context, args string) (string, error)
}

// Resource represents a built-in, URI-addressed read-only data source
// served alongside tools.
type Resource struct {
	// URI is the resource address (e.g. "weather://regions").
	URI string

	// Name is the resource's human-readable name.
	Name string

	// Description explains what the resource contains.
	Description string

	// MIMEType is the content type of the resource text.
	MIMEType string

	// Reader returns the resource's current content.
	Reader func(ctx context.Context) (string, error)
}
