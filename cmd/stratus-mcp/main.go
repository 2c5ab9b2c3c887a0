// Command stratus-mcp serves the built-in Stratus toolsets as a standalone
// MCP server over stdio. It exposes the same weather and local-time tools the
// main binary registers in-process, so they can also be consumed by any MCP
// client — including a Stratus instance configured with an external server
// entry:
//
//	mcp:
//	  servers:
//	    - name: weather
//	      transport: stdio
//	      command: /usr/local/bin/stratus-mcp -toolsets weather
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stratus-ai/stratus/internal/mcp/tools"
	"github.com/stratus-ai/stratus/internal/mcp/tools/localtime"
	"github.com/stratus-ai/stratus/internal/mcp/tools/weather"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	toolsets := flag.String("toolsets", "weather,time", "comma-separated toolsets to serve (weather, time)")
	flag.Parse()

	// stdout carries the MCP protocol; all logging goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: "stratus-mcp", Version: version},
		nil,
	)

	for _, name := range strings.Split(*toolsets, ",") {
		switch strings.TrimSpace(name) {
		case "weather":
			client := weather.NewClient("", nil)
			addTools(server, weather.Tools(client))
			addResources(server, weather.Resources())
		case "time":
			resolver := localtime.NewResolver("", "", nil)
			addTools(server, localtime.Tools(resolver))
			addResources(server, localtime.Resources())
		case "":
		default:
			fmt.Fprintf(os.Stderr, "stratus-mcp: unknown toolset %q (want weather or time)\n", name)
			return 1
		}
	}

	slog.Info("stratus-mcp serving on stdio", "version", version, "toolsets", *toolsets)

	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && ctx.Err() == nil {
		slog.Error("server error", "err", err)
		return 1
	}
	return 0
}

// addTools registers each built-in tool on the server, bridging its JSON
// string handler to the SDK's call interface.
func addTools(server *mcpsdk.Server, toolList []tools.Tool) {
	for _, tool := range toolList {
		mcpsdk.AddTool(server,
			&mcpsdk.Tool{
				Name:        tool.Definition.Name,
				Description: tool.Definition.Description,
				InputSchema: toSchema(tool.Definition.Parameters),
			},
			func(ctx context.Context, _ *mcpsdk.CallToolRequest, args map[string]any) (*mcpsdk.CallToolResult, any, error) {
				encoded, err := json.Marshal(args)
				if err != nil {
					return nil, nil, fmt.Errorf("encode args for %q: %w", tool.Definition.Name, err)
				}
				output, err := tool.Handler(ctx, string(encoded))
				if err != nil {
					return &mcpsdk.CallToolResult{
						Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
						IsError: true,
					}, nil, nil
				}
				return &mcpsdk.CallToolResult{
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: output}},
				}, nil, nil
			},
		)
	}
}

// addResources registers each built-in resource on the server.
func addResources(server *mcpsdk.Server, resources []tools.Resource) {
	for _, res := range resources {
		server.AddResource(
			&mcpsdk.Resource{
				URI:         res.URI,
				Name:        res.Name,
				Description: res.Description,
				MIMEType:    res.MIMEType,
			},
			func(ctx context.Context, _ *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
				content, err := res.Reader(ctx)
				if err != nil {
					return nil, fmt.Errorf("read resource %q: %w", res.URI, err)
				}
				return &mcpsdk.ReadResourceResult{
					Contents: []*mcpsdk.ResourceContents{
						{URI: res.URI, MIMEType: res.MIMEType, Text: content},
					},
				}, nil
			},
		)
	}
}

// toSchema converts a tool's parameter map into a JSON Schema value.
func toSchema(params map[string]any) *jsonschema.Schema {
	if params == nil {
		return &jsonschema.Schema{Type: "object"}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return &jsonschema.Schema{Type: "object"}
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return &jsonschema.Schema{Type: "object"}
	}
	return &schema
}
