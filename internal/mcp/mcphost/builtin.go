package mcphost

import (
	"fmt"

	"github.com/stratus-ai/stratus/internal/mcp"
	"github.com/stratus-ai/stratus/internal/mcp/tools"
)

// builtinServerName is the pseudo server name used for in-process tools and
// resources.
const builtinServerName = "__builtin__"

// RegisterBuiltin registers a built-in tool that is called in-process.
//
// Built-in tools bypass MCP protocol overhead: ExecuteTool calls the Handler
// directly without any network or subprocess round-trip. They are otherwise
// identical to external tools and share the same call accounting.
//
// If a tool with the same name is already registered it is replaced.
// RegisterBuiltin is safe for concurrent use.
func (h *Host) RegisterBuiltin(tool tools.Tool) error {
	if tool.Definition.Name == "" {
		return fmt.Errorf("mcp host: builtin tool must have a non-empty name")
	}
	if tool.Handler == nil {
		return fmt.Errorf("mcp host: builtin tool %q must have a non-nil handler", tool.Definition.Name)
	}

	entry := toolEntry{
		def:        tool.Definition,
		serverName: builtinServerName,
		builtinFn:  tool.Handler,
		window:     newRollingWindow(statsWindowSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.tools[tool.Definition.Name] = entry
	return nil
}

// RegisterBuiltinResource registers a built-in resource that is read
// in-process. If a resource with the same URI is already registered it is
// replaced.
func (h *Host) RegisterBuiltinResource(res tools.Resource) error {
	if res.URI == "" {
		return fmt.Errorf("mcp host: builtin resource must have a non-empty URI")
	}
	if res.Reader == nil {
		return fmt.Errorf("mcp host: builtin resource %q must have a non-nil reader", res.URI)
	}

	entry := resourceEntry{
		info: mcp.ResourceInfo{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MIMEType,
		},
		serverName:  builtinServerName,
		builtinRead: res.Reader,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.resources[res.URI] = entry
	return nil
}
