// Package builtin implements the in-process pseudo-servers (shell, time,
// fs, fetch) usable without any external MCP process, grounded on the
// Python original's gptsh/mcp/builtin package.
package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/fenrig-labs/gptshell/internal/mcp"
)

// TimeServer exposes a single "now" tool returning the current UTC time.
type TimeServer struct{}

func NewTimeServer() *TimeServer { return &TimeServer{} }

func (s *TimeServer) Name() string { return "time" }

func (s *TimeServer) Tools() []mcp.ToolSpec {
	return []mcp.ToolSpec{
		{
			Name:        "time__now",
			Server:      "time",
			Tool:        "now",
			Description: "Return the current UTC time in ISO 8601 format (UTC).",
			InputSchema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
		},
	}
}

func (s *TimeServer) Call(_ context.Context, tool string, _ map[string]any) (string, error) {
	if tool != "now" {
		return "", fmt.Errorf("unknown tool: time__%s", tool)
	}
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000Z"), nil
}
