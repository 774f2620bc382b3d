package mcp

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// ssePathPattern matches a URL whose path segment is (or ends at) "/sse",
// the convention the two common MCP HTTP server variants use to
// distinguish a direct SSE endpoint from a streamable-HTTP one.
var ssePathPattern = regexp.MustCompile(`/sse(?:$|[/?])`)

// openSession creates and initializes an MCP client session for one server
// config, resolving the transport per the spec's selection rule and
// falling back from http to sse once on a 400/404/405 response — the two
// common MCP HTTP server variants disagree on framing, and the original
// implementation tolerates that by retrying with SSE before giving up.
func openSession(ctx context.Context, name string, cfg ServerConfig) (*mcpclient.Client, []mcpgo.Tool, error) {
	kind := resolvedTransport(cfg)
	if kind == TransportHTTP && ssePathPattern.MatchString(cfg.URL) {
		kind = TransportSSE
	}

	client, tools, err := connectOnce(ctx, name, kind, cfg)
	if err != nil && kind == TransportHTTP && isRetryableHTTPStatus(err) {
		client, tools, err = connectOnce(ctx, name, TransportSSE, cfg)
	}
	if err != nil {
		return nil, nil, err
	}
	return client, tools, nil
}

func connectOnce(ctx context.Context, name string, kind Transport, cfg ServerConfig) (*mcpclient.Client, []mcpgo.Tool, error) {
	client, err := newClient(kind, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("mcp %s: create client: %w", name, err)
	}

	if kind != TransportStdio {
		if err := client.Start(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("mcp %s: start transport: %w", name, err)
		}
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "gptshell", Version: "1.0.0"}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("mcp %s: initialize: %w", name, err)
	}

	result, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("mcp %s: list tools: %w", name, err)
	}
	return client, result.Tools, nil
}

func newClient(kind Transport, cfg ServerConfig) (*mcpclient.Client, error) {
	switch kind {
	case TransportStdio:
		return mcpclient.NewStdioMCPClient(cfg.Command, mapToEnvSlice(cfg.Env), cfg.Args...)
	case TransportSSE:
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, mcpclient.WithHeaders(cfg.Headers))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)
	case TransportHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("unresolvable transport (need transport.type, url, or command)")
	}
}

func isRetryableHTTPStatus(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, code := range []string{"400", "404", "405"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

func mapToEnvSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	s := make([]string, 0, len(env))
	for k, v := range env {
		s = append(s, k+"="+v)
	}
	return s
}
