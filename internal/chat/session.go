// Package chat implements the Chat Session / Turn Orchestrator (C4): the
// streaming tool-use state machine (S0 REQUEST -> S1 STREAMING -> S2
// TOOL_ROUND -> S3 DONE) that owns one session's message history and usage
// counters, plus the history normalization invariant (normalize.go) that
// keeps that history well-shaped across partial failures and resumption.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/fenrig-labs/gptshell/internal/ui"
	"github.com/fenrig-labs/gptshell/pkg/llm"
)

// ToolExecutor is the capability the orchestrator drives to run an approved
// call. internal/mcp.Manager satisfies it; tests supply a fake.
type ToolExecutor interface {
	CallTool(ctx context.Context, server, tool string, args map[string]any) (string, error)
}

// ApprovalPolicy is the capability named in spec §6. internal/approval.Policy
// satisfies it structurally.
type ApprovalPolicy interface {
	IsAutoAllowed(server, tool string) bool
	Confirm(ctx context.Context, server, tool string, args map[string]any) bool
}

// Params bundles the per-session LLM configuration that does not change
// turn to turn.
type Params struct {
	Model              string
	SystemPrompt       string
	Temperature        *float64
	MaxTokens          *int
	ToolChoiceRequired bool
}

// Session is the Chat Session (C4): exclusively owns the LLM client handle
// and, for the lifetime of the session, the running message history and
// usage counters. One RunTurn call at a time — the orchestrator is
// sequential within a session (spec §5).
type Session struct {
	llmClient llm.Client
	executor  ToolExecutor
	policy    ApprovalPolicy
	reporter  ui.Reporter

	params Params
	tools  []llm.Tool

	mu      sync.Mutex
	history []llm.Message
	usage   llm.Usage
}

// New constructs a Session. reporter may be nil (treated as NoOpReporter).
func New(client llm.Client, executor ToolExecutor, policy ApprovalPolicy, reporter ui.Reporter, params Params) *Session {
	if reporter == nil {
		reporter = ui.NoOpReporter{}
	}
	return &Session{
		llmClient: client,
		executor:  executor,
		policy:    policy,
		reporter:  reporter,
		params:    params,
	}
}

// SetTools installs the tool specs built from the current MCP discovery
// (internal/toolkit.BuildSpecs). Safe to call between turns to refresh
// after a server's tool set changes.
func (s *Session) SetTools(tools []llm.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = tools
}

// SetHistory replaces the session history, normalizing it first — used
// when resuming a persisted session document (spec §4.6).
func (s *Session) SetHistory(history []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = Normalize(history)
}

// History returns a snapshot of the current message history.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.history...)
}

// Usage returns a snapshot of the accumulated usage counters.
func (s *Session) Usage() llm.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func (s *Session) accumulateUsage(u *llm.Usage) {
	if u == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage.PromptTokens += u.PromptTokens
	s.usage.CompletionTokens += u.CompletionTokens
	s.usage.TotalTokens += u.TotalTokens
	s.usage.ReasoningTokens += u.ReasoningTokens
	s.usage.CachedTokens += u.CachedTokens
	s.usage.Cost += u.Cost
}

// debouncedProgressDelay is the spec §4.4 "~500 ms" threshold before a
// running tool call's progress line appears.
const debouncedProgressDelay = 500 * time.Millisecond

// argPreviewLimit is spec §4.4's "truncated argument preview (max 500
// characters)" for a tool's progress line.
const argPreviewLimit = 500
