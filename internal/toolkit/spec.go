// Package toolkit is the Tool Adapter (C2): it translates MCP tool schemas
// discovered by internal/mcp into LLM function-call specs, and routes a
// model-emitted "<server>__<tool>" name back to its owning server.
package toolkit

import (
	"strings"

	"github.com/fenrig-labs/gptshell/internal/mcp"
	"github.com/fenrig-labs/gptshell/pkg/llm"
)

// defaultSchema is substituted when a discovered tool carries no input
// schema, per spec §4.2.
func defaultSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": true,
	}
}

// BuildSpecs flattens a server->tools discovery map into the function specs
// the LLM request carries, in stable per-server then per-tool order.
func BuildSpecs(byServer map[string][]mcp.ToolSpec) []llm.Tool {
	servers := make([]string, 0, len(byServer))
	for name := range byServer {
		servers = append(servers, name)
	}
	sortStrings(servers)

	var out []llm.Tool
	for _, server := range servers {
		for _, t := range byServer[server] {
			schema := t.InputSchema
			if schema == nil {
				schema = defaultSchema()
			}
			out = append(out, llm.Tool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schema,
			})
		}
	}
	return out
}

// sortStrings avoids importing "sort" for its one call site; kept tiny and
// local since this is the only sort this package needs.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// RouteName splits a "<server>__<tool>" qualified name back into its parts.
// ok is false if the name carries no "__" separator (a malformed or
// non-MCP tool name the model should not have produced).
func RouteName(qualified string) (server, tool string, ok bool) {
	idx := strings.Index(qualified, "__")
	if idx < 0 {
		return "", "", false
	}
	return qualified[:idx], qualified[idx+2:], true
}
