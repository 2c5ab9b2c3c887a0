// Package mcp defines the interface for a Model Context Protocol (MCP) host.
//
// The MCP host manages connections to one or more MCP servers, maintains a
// catalogue of available tools and resources, and executes tool calls and
// resource reads on behalf of the chat orchestrator.
//
// Lifecycle:
//
//  1. Call [Host.RegisterServer] for each MCP server to connect to.
//  2. Use [Host.Tools] / [Host.Resources] to enumerate the catalogue.
//  3. Use [Host.ExecuteTool] and [Host.ReadResource] during orchestration.
//  4. Call [Host.Close] to release all connections.
//
// All methods must be safe for concurrent use.
package mcp

import (
	"context"

	"github.com/stratus-ai/stratus/pkg/provider/llm"
)

// ServerConfig describes how to connect to a single MCP server.
type ServerConfig struct {
	// Name is the human-readable identifier for this server.
	// Must be unique within a single [Host]. Used in log messages and errors.
	Name string

	// Transport specifies the connection mechanism.
	Transport Transport

	// Command is the executable path (and optional arguments) used when
	// Transport is "stdio".
	// Example: "/usr/local/bin/stratus-mcp --timeout 30s"
	// Ignored for the streamable-http transport.
	Command string

	// URL is the endpoint address used when Transport is "streamable-http".
	// Example: "https://tools.example.com/mcp"
	// Ignored for the stdio transport.
	URL string

	// Env holds additional environment variables injected into the server
	// process when Transport is "stdio". May be nil.
	Env map[string]string
}

// ToolResult holds the outcome of a single tool execution or resource read.
type ToolResult struct {
	// Content is the textual output, typically a JSON string or
	// human-readable text ready for insertion into a model context window.
	Content string

	// IsError indicates that the tool returned an application-level error
	// (as opposed to a transport or protocol failure returned via the Go
	// error return value). When IsError is true, Content contains the
	// error message.
	IsError bool

	// DurationMs is the wall-clock time in milliseconds from when the
	// request was dispatched until the full response was received.
	DurationMs int64
}

// ResourceInfo describes a URI-addressed read-only data source exposed by
// an MCP server alongside its tools.
type ResourceInfo struct {
	// URI is the resource address (e.g. "weather://regions").
	URI string

	// Name is the resource's human-readable name.
	Name string

	// Description explains what the resource contains.
	Description string

	// MIMEType is the declared content type, when the server provides one.
	MIMEType string
}

// ToolStats captures per-tool call accounting since the Host was created.
// Latency percentiles are computed over a rolling window of recent calls.
type ToolStats struct {
	// Calls is the total number of invocations, successful or not.
	Calls int64

	// Errors is the number of invocations that produced an error result or
	// a transport failure.
	Errors int64

	// P50Ms is the median call latency in milliseconds over the recent
	// window. Zero when no calls have been recorded.
	P50Ms int64

	// P99Ms is the 99th-percentile call latency in milliseconds over the
	// recent window.
	P99Ms int64

	// ErrorRate is the fraction of calls in the recent window that failed,
	// in the range [0, 1].
	ErrorRate float64
}

// Host manages connections to MCP servers and routes tool calls and
// resource reads.
//
// Implementations must be safe for concurrent use.
type Host interface {
	// RegisterServer connects to the MCP server described by cfg and
	// imports its tool and resource catalogues into the host. If a server
	// with the same Name is already registered it is reconnected /
	// refreshed rather than duplicated.
	//
	// Returns an error if the transport cannot be established or the
	// initial catalogue listing fails.
	RegisterServer(ctx context.Context, cfg ServerConfig) error

	// Tools returns the full tool catalogue, sorted by name.
	Tools() []llm.ToolDefinition

	// Resources returns the full resource catalogue, sorted by URI.
	Resources() []ResourceInfo

	// ExecuteTool calls the named tool with JSON-encoded args and returns
	// the result. args must be a valid JSON object string; "{}" is valid
	// for parameter-less tools.
	//
	// A non-nil *ToolResult is returned on success even when
	// [ToolResult.IsError] is true (application-level error). A Go error
	// is returned only for an unknown tool or a transport / protocol
	// failure.
	ExecuteTool(ctx context.Context, name string, args string) (*ToolResult, error)

	// ReadResource fetches the resource at uri from the server that
	// declared it and returns its textual content. Error semantics match
	// [Host.ExecuteTool].
	ReadResource(ctx context.Context, uri string) (*ToolResult, error)

	// Stats returns per-tool call accounting, keyed by tool name.
	Stats() map[string]ToolStats

	// Close shuts down all server connections and releases associated
	// resources. After Close returns the Host must not be used again.
	Close() error
}
