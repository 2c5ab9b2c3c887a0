// Package mcphost provides a concrete implementation of the [mcp.Host] interface.
//
// It connects to MCP servers via stdio or streamable-HTTP transports using the
// official MCP Go SDK (github.com/modelcontextprotocol/go-sdk), maintains a
// concurrent-safe in-memory tool and resource registry, and tracks per-tool
// call accounting.
//
// Typical usage:
//
//	h := mcphost.New()
//
//	// Register an external MCP server.
//	err := h.RegisterServer(ctx, mcp.ServerConfig{
//	    Name:      "weather",
//	    Transport: mcp.TransportStdio,
//	    Command:   "/usr/local/bin/stratus-mcp",
//	})
//
//	// Or register built-in Go tools.
//	for _, t := range weather.Tools(nil) {
//	    h.RegisterBuiltin(t)
//	}
//
//	result, err := h.ExecuteTool(ctx, "get_alerts", `{"state":"CA"}`)
//	content, err := h.ReadResource(ctx, "weather://regions")
//
//	h.Close()
package mcphost

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stratus-ai/stratus/internal/mcp"
	"github.com/stratus-ai/stratus/pkg/provider/llm"
)

// toolEntry holds all metadata for a single registered tool.
type toolEntry struct {
	def        llm.ToolDefinition
	serverName string
	calls      int64
	errors     int64
	window     *rollingWindow

	// builtinFn is non-nil for in-process tools registered via RegisterBuiltin.
	builtinFn func(ctx context.Context, args string) (string, error)
}

// resourceEntry holds one registered resource and its owning server.
type resourceEntry struct {
	info       mcp.ResourceInfo
	serverName string

	// builtinRead is non-nil for in-process resources.
	builtinRead func(ctx context.Context) (string, error)
}

// serverConn holds a live connection to an external MCP server.
type serverConn struct {
	session *mcpsdk.ClientSession
}

// Host is a concrete implementation of [mcp.Host].
//
// It manages connections to one or more MCP servers (external via stdio /
// streamable-HTTP, or internal Go functions) and routes tool calls and
// resource reads to the right place.
//
// The zero value is NOT usable; create instances with [New].
type Host struct {
	mu        sync.RWMutex
	tools     map[string]toolEntry     // key: tool name
	resources map[string]resourceEntry // key: resource URI
	servers   map[string]serverConn    // key: server name

	// client is reused across all server connections. The official SDK
	// allows a single Client to manage multiple sessions concurrently.
	client *mcpsdk.Client
}

// Compile-time check: Host must implement mcp.Host.
var _ mcp.Host = (*Host)(nil)

// New creates and returns a ready-to-use Host.
func New() *Host {
	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "stratus-mcphost", Version: "1.0.0"},
		nil,
	)
	return &Host{
		tools:     make(map[string]toolEntry),
		resources: make(map[string]resourceEntry),
		servers:   make(map[string]serverConn),
		client:    client,
	}
}

// RegisterServer connects to the MCP server described by cfg and imports its
// tool and resource catalogues into the host. If a server with the same Name
// is already registered, the old connection is closed and replaced.
//
// For [mcp.TransportStdio] transport: cfg.Command is split on spaces into
// executable + args; cfg.Env is passed as additional environment variables.
//
// For [mcp.TransportStreamableHTTP] transport: cfg.URL is the endpoint address.
//
// Returns an error if the transport cannot be established or the initial
// catalogue listing fails.
func (h *Host) RegisterServer(ctx context.Context, cfg mcp.ServerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("mcp host: server config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return fmt.Errorf("mcp host: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport

	switch cfg.Transport {
	case mcp.TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return fmt.Errorf("mcp host: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		// Inject additional environment variables.
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case mcp.TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("mcp host: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}

	session, err := h.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp host: failed to connect to server %q: %w", cfg.Name, err)
	}

	// Discover tools using the iterator.
	var discoveredTools []mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("mcp host: failed to list tools for server %q: %w", cfg.Name, err)
		}
		discoveredTools = append(discoveredTools, *tool)
	}

	// Resource support is optional; a server without resources just
	// contributes none.
	var discoveredResources []mcpsdk.Resource
	for res, err := range session.Resources(ctx, nil) {
		if err != nil {
			break
		}
		discoveredResources = append(discoveredResources, *res)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Close the old connection if it exists.
	if old, ok := h.servers[cfg.Name]; ok {
		_ = old.session.Close()
		for name, t := range h.tools {
			if t.serverName == cfg.Name {
				delete(h.tools, name)
			}
		}
		for uri, r := range h.resources {
			if r.serverName == cfg.Name {
				delete(h.resources, uri)
			}
		}
	}

	h.servers[cfg.Name] = serverConn{session: session}

	for _, mcpTool := range discoveredTools {
		h.tools[mcpTool.Name] = toolEntry{
			def: llm.ToolDefinition{
				Name:        mcpTool.Name,
				Description: mcpTool.Description,
				Parameters:  schemaToMap(mcpTool.InputSchema),
			},
			serverName: cfg.Name,
			window:     newRollingWindow(statsWindowSize),
		}
	}
	for _, res := range discoveredResources {
		h.resources[res.URI] = resourceEntry{
			info: mcp.ResourceInfo{
				URI:         res.URI,
				Name:        res.Name,
				Description: res.Description,
				MIMEType:    res.MIMEType,
			},
			serverName: cfg.Name,
		}
	}

	return nil
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// Tools returns the full tool catalogue, sorted by name.
func (h *Host) Tools() []llm.ToolDefinition {
	h.mu.RLock()
	defs := make([]llm.ToolDefinition, 0, len(h.tools))
	for _, e := range h.tools {
		defs = append(defs, e.def)
	}
	h.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Resources returns the full resource catalogue, sorted by URI.
func (h *Host) Resources() []mcp.ResourceInfo {
	h.mu.RLock()
	infos := make([]mcp.ResourceInfo, 0, len(h.resources))
	for _, e := range h.resources {
		infos = append(infos, e.info)
	}
	h.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].URI < infos[j].URI })
	return infos
}

// ExecuteTool calls the named tool with JSON-encoded args and returns the
// result. name must exactly match a [llm.ToolDefinition.Name] returned by
// [Host.Tools].
//
// args must be a valid JSON object string. An empty object ("{}") is valid
// for parameter-less tools.
//
// A non-nil *ToolResult is returned on success even when
// [mcp.ToolResult.IsError] is true (application-level error). A Go error is
// returned only for an unknown tool or a transport / protocol failure.
func (h *Host) ExecuteTool(ctx context.Context, name string, args string) (*mcp.ToolResult, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mcp host: tool %q not found", name)
	}

	start := time.Now()

	var result *mcp.ToolResult
	var execErr error

	if entry.builtinFn != nil {
		result, execErr = h.executeBuiltin(ctx, entry, args)
	} else {
		result, execErr = h.executeMCPTool(ctx, entry, args)
	}

	durationMs := time.Since(start).Milliseconds()
	h.record(name, durationMs, execErr != nil || (result != nil && result.IsError))

	if execErr != nil {
		return nil, execErr
	}
	result.DurationMs = durationMs
	return result, nil
}

// executeBuiltin calls the in-process handler for a builtin tool.
func (h *Host) executeBuiltin(ctx context.Context, entry toolEntry, args string) (*mcp.ToolResult, error) {
	output, err := entry.builtinFn(ctx, args)
	if err != nil {
		return &mcp.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &mcp.ToolResult{Content: output}, nil
}

// executeMCPTool routes the call to the appropriate server session.
func (h *Host) executeMCPTool(ctx context.Context, entry toolEntry, args string) (*mcp.ToolResult, error) {
	h.mu.RLock()
	conn, ok := h.servers[entry.serverName]
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mcp host: server %q not found for tool %q", entry.serverName, entry.def.Name)
	}

	// Decode args into a map for the SDK.
	var argsMap map[string]any
	if args != "" && args != "{}" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return nil, fmt.Errorf("mcp host: invalid args JSON for tool %q: %w", entry.def.Name, err)
		}
	}

	callResult, err := conn.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      entry.def.Name,
		Arguments: argsMap,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp host: call to tool %q failed: %w", entry.def.Name, err)
	}

	// Concatenate all text content from the result.
	var sb strings.Builder
	for _, c := range callResult.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}

	return &mcp.ToolResult{
		Content: sb.String(),
		IsError: callResult.IsError,
	}, nil
}

// ReadResource fetches the resource at uri from the server that declared it.
func (h *Host) ReadResource(ctx context.Context, uri string) (*mcp.ToolResult, error) {
	h.mu.RLock()
	entry, ok := h.resources[uri]
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mcp host: resource %q not found", uri)
	}

	start := time.Now()

	if entry.builtinRead != nil {
		content, err := entry.builtinRead(ctx)
		if err != nil {
			return &mcp.ToolResult{Content: err.Error(), IsError: true}, nil
		}
		return &mcp.ToolResult{Content: content, DurationMs: time.Since(start).Milliseconds()}, nil
	}

	h.mu.RLock()
	conn, ok := h.servers[entry.serverName]
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mcp host: server %q not found for resource %q", entry.serverName, uri)
	}

	readResult, err := conn.session.ReadResource(ctx, &mcpsdk.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, fmt.Errorf("mcp host: read of resource %q failed: %w", uri, err)
	}

	var sb strings.Builder
	for _, c := range readResult.Contents {
		sb.WriteString(c.Text)
	}

	return &mcp.ToolResult{
		Content:    sb.String(),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// record updates per-tool call accounting and the rolling latency window.
func (h *Host) record(name string, durationMs int64, isError bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.tools[name]
	if !ok {
		return
	}
	entry.calls++
	if isError {
		entry.errors++
	}
	if entry.window != nil {
		entry.window.Record(durationMs, isError)
	}
	h.tools[name] = entry
}

// Stats returns per-tool call accounting, keyed by tool name. Latency
// percentiles and error rate cover the recent call window only.
func (h *Host) Stats() map[string]mcp.ToolStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]mcp.ToolStats, len(h.tools))
	for name, e := range h.tools {
		stats := mcp.ToolStats{Calls: e.calls, Errors: e.errors}
		if e.window != nil {
			stats.P50Ms = e.window.P50()
			stats.P99Ms = e.window.P99()
			stats.ErrorRate = e.window.ErrorRate()
		}
		out[name] = stats
	}
	return out
}

// Close shuts down all server connections and clears the registries.
// After Close returns the Host must not be used again.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for name, conn := range h.servers {
		if err := conn.session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mcp host: error closing server %q: %w", name, err)
		}
		delete(h.servers, name)
	}

	h.tools = make(map[string]toolEntry)
	h.resources = make(map[string]resourceEntry)

	return firstErr
}

// splitCommand splits a command string into executable and arguments.
// e.g. "/bin/foo --bar baz" → ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
