package builtin

import (
	"context"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-filesystem-server/filesystemserver"

	"github.com/fenrig-labs/gptshell/internal/mcp"
)

// AutoApproveFS lists read-only filesystem operations safe to auto-approve.
var AutoApproveFS = []string{"read_file", "list_directory"}

// FSServer is the read-only filesystem builtin **[SUPPLEMENTED]**: the
// teacher is the only repo in the pack that wires an external MCP server
// (`mark3labs/mcp-filesystem-server`) as a builtin, via an
// `*server.MCPServer` embedded in its own process rather than spawned as a
// stdio subprocess; this adapts the same wiring (NewInProcessClient bridges
// the server directly to an in-process mcp-go client, skipping the stdio
// round trip a regular configured server would pay) behind the spec's
// builtinServer contract, restricted to the two read-only tools the spec
// names.
type FSServer struct {
	client *mcpclient.Client
	tools  []mcp.ToolSpec
}

// NewFSServer constructs the filesystem builtin rooted at allowedDirs (the
// current working directory if none given).
func NewFSServer(ctx context.Context, allowedDirs []string) (*FSServer, error) {
	if len(allowedDirs) == 0 {
		allowedDirs = []string{"."}
	}
	srv, err := filesystemserver.NewFilesystemServer(allowedDirs)
	if err != nil {
		return nil, fmt.Errorf("create filesystem server: %w", err)
	}

	client, err := mcpclient.NewInProcessClient(srv)
	if err != nil {
		return nil, fmt.Errorf("wire in-process filesystem client: %w", err)
	}
	if _, err := client.Initialize(ctx, mcpgo.InitializeRequest{}); err != nil {
		return nil, fmt.Errorf("initialize filesystem server: %w", err)
	}

	listed, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list filesystem tools: %w", err)
	}

	allowed := map[string]bool{"read_file": true, "list_directory": true}
	var tools []mcp.ToolSpec
	for _, t := range listed.Tools {
		if !allowed[t.Name] {
			continue
		}
		tools = append(tools, mcp.ToolSpec{
			Name:        "fs__" + t.Name,
			Server:      "fs",
			Tool:        t.Name,
			Description: t.Description,
			InputSchema: schemaToMap(t.InputSchema),
		})
	}

	return &FSServer{client: client, tools: tools}, nil
}

func (s *FSServer) Name() string { return "fs" }

func (s *FSServer) Tools() []mcp.ToolSpec {
	return append([]mcp.ToolSpec(nil), s.tools...)
}

func (s *FSServer) Call(ctx context.Context, tool string, args map[string]any) (string, error) {
	if tool != "read_file" && tool != "list_directory" {
		return "", fmt.Errorf("unknown tool: fs__%s (only read_file/list_directory are exposed)", tool)
	}

	req := mcpgo.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	result, err := s.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("fs__%s failed: %w", tool, err)
	}

	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("fs__%s returned an error: %s", tool, b.String())
	}
	return b.String(), nil
}

// schemaToMap normalizes mcp-go's tool input-schema type into the plain
// map[string]any the rest of the registry works with.
func schemaToMap(schema mcpgo.ToolInputSchema) map[string]any {
	return map[string]any{
		"type":       schema.Type,
		"properties": schema.Properties,
		"required":   schema.Required,
	}
}
