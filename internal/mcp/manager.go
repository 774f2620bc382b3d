package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

const defaultCallTimeout = 30 * time.Second

// builtinServer is the interface an in-process pseudo-server implements to
// participate in the registry without an external transport.
type builtinServer interface {
	Name() string
	Tools() []ToolSpec
	Call(ctx context.Context, tool string, args map[string]any) (string, error)
}

type liveServer struct {
	name       string
	client     *mcpclient.Client
	tools      []ToolSpec
	autoAllow  []string
	timeout    time.Duration
	callMu     sync.Mutex // serializes every call to this server
}

// Manager is the tool registry and MCP client manager (C1): one live
// session per configured server plus a fixed set of builtin pseudo-servers,
// unified behind ListToolsAll/CallTool.
type Manager struct {
	mu       sync.RWMutex
	servers  map[string]*liveServer
	builtins map[string]builtinServer
	order    []string // opening order, for LIFO shutdown
}

// NewManager constructs an empty Manager. Builtins are always present;
// external servers are added by Start from a Config.
func NewManager(builtins ...builtinServer) *Manager {
	m := &Manager{
		servers:  make(map[string]*liveServer),
		builtins: make(map[string]builtinServer),
	}
	for _, b := range builtins {
		m.builtins[b.Name()] = b
	}
	return m
}

// Start opens one session per non-disabled server in cfg. It is not
// idempotent across repeated external configs but is safe to call once per
// process lifetime; servers that fail to connect are skipped (not fatal),
// mirroring discovery's per-server failure isolation.
func (m *Manager) Start(ctx context.Context, cfg Config) []error {
	var errs []error
	for name, sc := range cfg.MCPServers {
		if sc.Disabled {
			continue
		}
		timeout := defaultCallTimeout
		if sc.TimeoutSec > 0 {
			timeout = time.Duration(sc.TimeoutSec) * time.Second
		}

		sctx, cancel := context.WithTimeout(ctx, timeout)
		client, mcptools, err := openSession(sctx, name, sc)
		cancel()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		specs := make([]ToolSpec, 0, len(mcptools))
		for _, t := range mcptools {
			specs = append(specs, toolSpecFromMCP(name, t))
		}

		m.mu.Lock()
		m.servers[name] = &liveServer{
			name:      name,
			client:    client,
			tools:     specs,
			autoAllow: sc.AutoApprove,
			timeout:   timeout,
		}
		m.order = append(m.order, name)
		m.mu.Unlock()
	}
	return errs
}

func toolSpecFromMCP(server string, t mcpgo.Tool) ToolSpec {
	schema := map[string]any{
		"type":       "object",
		"properties": t.InputSchema.Properties,
	}
	if len(t.InputSchema.Required) > 0 {
		schema["required"] = t.InputSchema.Required
	}
	return ToolSpec{
		Name:        server + "__" + t.Name,
		Server:      server,
		Tool:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// ListTools returns one server's current tool set.
func (m *Manager) ListTools(server string) []ToolSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.builtins[server]; ok {
		return b.Tools()
	}
	if s, ok := m.servers[server]; ok {
		return s.tools
	}
	return nil
}

// ListToolsAll fans out tool discovery concurrently across every known
// server; a server's failure (there is none for an already-open session,
// but ListTools may still be re-queried) isolates to an empty slice rather
// than aborting the whole call.
func (m *Manager) ListToolsAll() map[string][]ToolSpec {
	m.mu.RLock()
	names := make([]string, 0, len(m.servers)+len(m.builtins))
	for name := range m.servers {
		names = append(names, name)
	}
	for name := range m.builtins {
		names = append(names, name)
	}
	m.mu.RUnlock()

	out := make(map[string][]ToolSpec, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			specs := m.ListTools(name)
			mu.Lock()
			out[name] = specs
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// AutoApprove returns the server's static auto-approve list.
func (m *Manager) AutoApprove(server string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.servers[server]; ok {
		return s.autoAllow
	}
	return nil
}

// CallTool invokes one tool and returns its concatenated textual content.
// Execution failures are returned as a non-nil error whose message is
// meant to be surfaced as the tool-result content, not retried by the
// orchestrator — only the model may choose to retry by requesting the
// call again.
func (m *Manager) CallTool(ctx context.Context, server, tool string, args map[string]any) (string, error) {
	m.mu.RLock()
	b, isBuiltin := m.builtins[server]
	s, isLive := m.servers[server]
	m.mu.RUnlock()

	if isBuiltin {
		return b.Call(ctx, tool, args)
	}
	if !isLive {
		return "", fmt.Errorf("unknown mcp server %q", server)
	}

	s.callMu.Lock()
	defer s.callMu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := mcpgo.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	result, err := s.client.CallTool(cctx, req)
	if err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("tool %s__%s timed out after %s", server, tool, s.timeout)
		}
		return "", fmt.Errorf("tool %s__%s failed: %w", server, tool, err)
	}

	text := concatTextContent(result)
	if result.IsError {
		return "", fmt.Errorf("tool %s__%s returned an error: %s", server, tool, text)
	}
	return text, nil
}

func concatTextContent(result *mcpgo.CallToolResult) string {
	if result == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// Stop closes all live sessions in reverse order of opening. Builtins have
// no external resources and are not closed.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if s, ok := m.servers[name]; ok && s.client != nil {
			_ = s.client.Close()
		}
	}
	m.servers = make(map[string]*liveServer)
	m.order = nil
}
