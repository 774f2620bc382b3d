package toolkit

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/fenrig-labs/gptshell/pkg/llm"
)

// ParseArguments decodes a tool call's JSON argument string into an object.
// Per spec §7, argument parsing is tolerant: malformed JSON is coerced to an
// empty object rather than aborting the call — the tool itself may then
// fail, and its error becomes the tool result.
func ParseArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// Accumulator reconstructs complete tool calls from a stream of per-index
// deltas (spec §4.2), and is the shared primitive both pkg/llm/anthropic and
// pkg/llm/google push their stream's tool-call deltas through rather than
// each hand-rolling its own index→call bookkeeping.
type Accumulator struct {
	order []int
	byIdx map[int]*llm.ToolDelta
}

// NewAccumulator constructs an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{byIdx: make(map[int]*llm.ToolDelta)}
}

// Push folds one delta into the accumulator. Arguments concatenate across
// deltas sharing the same Index; ID and Name are set by every delta that
// carries a non-empty value, so the last such value wins (providers send
// these once, on the opening delta).
func (a *Accumulator) Push(d llm.ToolDelta) {
	cur, ok := a.byIdx[d.Index]
	if !ok {
		cur = &llm.ToolDelta{Index: d.Index}
		a.byIdx[d.Index] = cur
		a.order = append(a.order, d.Index)
	}
	if d.ID != "" {
		cur.ID = d.ID
	}
	if d.Name != "" {
		cur.Name = d.Name
	}
	cur.Arguments += d.Arguments
}

// Calls returns the accumulated tool calls in first-seen index order.
func (a *Accumulator) Calls() []llm.ToolCall {
	out := make([]llm.ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		d := a.byIdx[idx]
		out = append(out, llm.ToolCall{
			ID:   d.ID,
			Type: "function",
			Function: llm.ToolCallFunc{
				Name:      d.Name,
				Arguments: d.Arguments,
			},
		})
	}
	return out
}

// Empty reports whether any tool-call deltas have been accumulated.
func (a *Accumulator) Empty() bool { return len(a.order) == 0 }

// ToolCallsFromResponse extracts tool calls from a completed (non-streaming)
// response message, in the order the provider returned them. This is a thin
// pass-through since pkg/llm.Response already carries structured ToolCalls,
// kept as a named operation to match spec §4.2's "parsing tool calls from a
// completed response" as an explicit adapter step rather than an implicit
// field read at call sites.
func ToolCallsFromResponse(resp llm.Response) []llm.ToolCall {
	return resp.Message.ToolCalls
}
