// Package mcp implements the tool registry and MCP client manager: one
// live session per configured server across stdio/http/sse transports,
// plus a handful of in-process builtin pseudo-servers.
package mcp

// ToolSpec describes one discovered tool in provider-agnostic form. Name
// always carries the "<server>__<tool>" qualification so the adapter layer
// can route a call back to its owning server without a side lookup.
type ToolSpec struct {
	Name        string
	Server      string
	Tool        string
	Description string
	InputSchema map[string]any
}

// Transport names a server's wire transport.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
)

// ServerConfig is one entry of the mcpServers configuration map.
type ServerConfig struct {
	Transport   Transport         `json:"transport,omitempty" yaml:"transport,omitempty"`
	Command     string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args        []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL         string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	AutoApprove []string          `json:"autoApprove,omitempty" yaml:"autoApprove,omitempty"`
	Disabled    bool              `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	TimeoutSec  int               `json:"timeoutSec,omitempty" yaml:"timeoutSec,omitempty"`
}

// Config is the top-level MCP server configuration document.
type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// resolvedTransport applies the spec's transport-selection rule: explicit
// config wins; otherwise a URL implies http, a command implies stdio.
func resolvedTransport(cfg ServerConfig) Transport {
	if cfg.Transport != "" {
		return cfg.Transport
	}
	if cfg.URL != "" {
		return TransportHTTP
	}
	if cfg.Command != "" {
		return TransportStdio
	}
	return ""
}
