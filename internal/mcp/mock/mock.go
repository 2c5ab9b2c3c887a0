// Package mock provides an in-memory test double for the MCP [mcp.Host] interface.
//
// [Host] records every method call for assertion in tests and exposes exported
// fields that control what the mock returns. It is safe for concurrent use via
// an internal [sync.Mutex].
//
// Typical usage:
//
//	h := &mock.Host{}
//	h.ToolsResult = []llm.ToolDefinition{{Name: "get_alerts"}}
//	h.ExecuteToolResult = &mcp.ToolResult{Content: `{"alerts":[]}`}
//
//	// inject h into the system under test …
//
//	if got := h.CallCount("ExecuteTool"); got != 1 {
//	    t.Errorf("expected 1 ExecuteTool call, got %d", got)
//	}
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/stratus-ai/stratus/internal/mcp"
	"github.com/stratus-ai/stratus/pkg/provider/llm"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Host is a configurable test double for [mcp.Host].
// All exported *Err fields default to nil (success); all exported *Result
// fields default to nil / zero values.
type Host struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// ──── RegisterServer ───────────────────────────────────────────────────

	// RegisterServerErr is returned by [Host.RegisterServer] when non-nil.
	RegisterServerErr error

	// ──── Tools / Resources ────────────────────────────────────────────────

	// ToolsResult is returned by [Host.Tools].
	// When nil, Tools returns an empty non-nil slice.
	ToolsResult []llm.ToolDefinition

	// ResourcesResult is returned by [Host.Resources].
	// When nil, Resources returns an empty non-nil slice.
	ResourcesResult []mcp.ResourceInfo

	// ──── ExecuteTool ──────────────────────────────────────────────────────

	// ExecuteToolResult is returned by [Host.ExecuteTool] when ExecuteToolErr
	// is nil and no per-tool handler matches.
	ExecuteToolResult *mcp.ToolResult

	// ExecuteToolErr is returned by [Host.ExecuteTool] when non-nil.
	ExecuteToolErr error

	// ToolHandlers optionally maps tool names to handler functions; when a
	// handler exists for the called tool it takes precedence over
	// ExecuteToolResult / ExecuteToolErr. Useful for tests that need
	// per-tool or per-call behavior.
	ToolHandlers map[string]func(ctx context.Context, args string) (*mcp.ToolResult, error)

	// ──── ReadResource ─────────────────────────────────────────────────────

	// ReadResourceResult is returned by [Host.ReadResource] when
	// ReadResourceErr is nil and no per-URI content matches.
	ReadResourceResult *mcp.ToolResult

	// ReadResourceErr is returned by [Host.ReadResource] when non-nil.
	ReadResourceErr error

	// ResourceContents optionally maps resource URIs to their content; when
	// the called URI is present it takes precedence over ReadResourceResult.
	ResourceContents map[string]string

	// ──── Stats ────────────────────────────────────────────────────────────

	// StatsResult is returned by [Host.Stats].
	// When nil, Stats returns an empty non-nil map.
	StatsResult map[string]mcp.ToolStats

	// ──── Close ────────────────────────────────────────────────────────────

	// CloseErr is returned by [Host.Close] when non-nil.
	CloseErr error
}

// Compile-time check: Host must implement mcp.Host.
var _ mcp.Host = (*Host)(nil)

// RegisterServer records the call and returns RegisterServerErr.
func (h *Host) RegisterServer(_ context.Context, cfg mcp.ServerConfig) error {
	h.record("RegisterServer", cfg)
	return h.RegisterServerErr
}

// Tools records the call and returns ToolsResult.
func (h *Host) Tools() []llm.ToolDefinition {
	h.record("Tools")
	if h.ToolsResult == nil {
		return []llm.ToolDefinition{}
	}
	return h.ToolsResult
}

// Resources records the call and returns ResourcesResult.
func (h *Host) Resources() []mcp.ResourceInfo {
	h.record("Resources")
	if h.ResourcesResult == nil {
		return []mcp.ResourceInfo{}
	}
	return h.ResourcesResult
}

// ExecuteTool records the call and returns the configured result.
func (h *Host) ExecuteTool(ctx context.Context, name string, args string) (*mcp.ToolResult, error) {
	h.record("ExecuteTool", name, args)

	if fn, ok := h.ToolHandlers[name]; ok {
		return fn(ctx, args)
	}
	if h.ExecuteToolErr != nil {
		return nil, h.ExecuteToolErr
	}
	if h.ExecuteToolResult != nil {
		return h.ExecuteToolResult, nil
	}
	return &mcp.ToolResult{Content: ""}, nil
}

// ReadResource records the call and returns the configured content.
func (h *Host) ReadResource(_ context.Context, uri string) (*mcp.ToolResult, error) {
	h.record("ReadResource", uri)

	if content, ok := h.ResourceContents[uri]; ok {
		return &mcp.ToolResult{Content: content}, nil
	}
	if h.ReadResourceErr != nil {
		return nil, h.ReadResourceErr
	}
	if h.ReadResourceResult != nil {
		return h.ReadResourceResult, nil
	}
	return nil, fmt.Errorf("mock: resource %q not found", uri)
}

// Stats records the call and returns StatsResult.
func (h *Host) Stats() map[string]mcp.ToolStats {
	h.record("Stats")
	if h.StatsResult == nil {
		return map[string]mcp.ToolStats{}
	}
	return h.StatsResult
}

// Close records the call and returns CloseErr.
func (h *Host) Close() error {
	h.record("Close")
	return h.CloseErr
}

// record appends a call record under lock.
func (h *Host) record(method string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of all recorded calls in invocation order.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// CallCount returns the number of recorded calls to the named method.
func (h *Host) CallCount(method string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// ToolCalls returns the (name, args) pairs of every recorded ExecuteTool
// invocation, in order.
func (h *Host) ToolCalls() [][2]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out [][2]string
	for _, c := range h.calls {
		if c.Method == "ExecuteTool" && len(c.Args) == 2 {
			name, _ := c.Args[0].(string)
			args, _ := c.Args[1].(string)
			out = append(out, [2]string{name, args})
		}
	}
	return out
}

// Reset clears all recorded calls.
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}
