// Package session is the Session Store (C6): file-per-session persistence
// under sessions/<YYYY>/<MM>/<id>.json, a lazily-scanned index sorted by
// recency, reference resolution ("3rd most recent" or an id prefix), and
// small-model title generation.
//
// Grounded on the teacher's internal/session/{session,manager}.go
// (Message/ToolCall shapes, crypto/rand id generation, mutex-guarded
// manager), adapted to the spec's sharded-by-month layout and atomic
// temp-then-rename writes.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/fenrig-labs/gptshell/pkg/llm"
)

// AgentMeta records the agent configuration a session was started with, so
// resuming it later reproduces the same model and system prompt (spec §3).
type AgentMeta struct {
	Name           string  `json:"name"`
	Model          string  `json:"model"`
	ModelSmall     string  `json:"model_small,omitempty"`
	PromptSystem   string  `json:"prompt_system,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ToolChoiceAuto bool    `json:"tool_choice_auto,omitempty"`
}

// ProviderMeta records which LLM provider produced the session's messages.
type ProviderMeta struct {
	Name string `json:"name"`
}

// Usage mirrors pkg/llm.Usage in the persisted document's naming
// convention (spec §3's "tokens: {prompt, completion, total, ...}" shape).
type Usage struct {
	Tokens struct {
		Prompt          int `json:"prompt"`
		Completion      int `json:"completion"`
		Total           int `json:"total"`
		ReasoningTokens int `json:"reasoning_tokens"`
		CachedTokens    int `json:"cached_tokens"`
	} `json:"tokens"`
	Cost float64 `json:"cost"`
}

// FromLLMUsage converts the orchestrator's running llm.Usage into the
// document's persisted shape.
func FromLLMUsage(u llm.Usage) Usage {
	var out Usage
	out.Tokens.Prompt = u.PromptTokens
	out.Tokens.Completion = u.CompletionTokens
	out.Tokens.Total = u.TotalTokens
	out.Tokens.ReasoningTokens = u.ReasoningTokens
	out.Tokens.CachedTokens = u.CachedTokens
	out.Cost = u.Cost
	return out
}

// Document is the persisted session shape (spec §3 "Session document").
type Document struct {
	ID                string       `json:"id"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	Title             string       `json:"title,omitempty"`
	Agent             AgentMeta    `json:"agent"`
	Provider          ProviderMeta `json:"provider"`
	Output            string       `json:"output"`
	MCPAllowedServers []string     `json:"mcp_allowed_servers,omitempty"`
	Messages          []llm.Message `json:"messages"`
	Usage             Usage        `json:"usage"`
}

// New constructs a fresh Document with a generated id and both timestamps
// set to now.
func New(agent AgentMeta, provider ProviderMeta, output string) *Document {
	now := time.Now().UTC()
	return &Document{
		ID:        generateID(now),
		CreatedAt: now,
		UpdatedAt: now,
		Agent:     agent,
		Provider:  provider,
		Output:    output,
		Messages:  []llm.Message{},
	}
}

// generateID produces the spec's "timestamped ULID-like identifier": a
// sortable date-time prefix (so lexical and chronological order agree)
// followed by a crypto/rand suffix, grounded on the teacher's
// generateMessageID (crypto/rand + hex) widened to a session-level id.
func generateID(t time.Time) string {
	suffix := make([]byte, 6)
	rand.Read(suffix)
	return t.Format("20060102T150405") + "-" + hex.EncodeToString(suffix)
}

// AppendMessages extends doc.Messages in order and bumps UpdatedAt (spec
// §4.6 "append_messages").
func AppendMessages(doc *Document, msgs []llm.Message) {
	doc.Messages = append(doc.Messages, msgs...)
	doc.UpdatedAt = time.Now().UTC()
}
