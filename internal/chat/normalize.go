package chat

import "github.com/fenrig-labs/gptshell/pkg/llm"

// Normalize enforces spec §3's history-shape invariant: every assistant
// message carrying ToolCalls must be immediately followed, contiguously, by
// exactly one tool message per call id before the next assistant or user
// message. Any assistant+tool_calls group whose id set is not fully covered
// by the tool messages that follow it is dropped, along with those trailing
// tool messages — defensive cleanup for a log truncated mid tool-round
// (e.g. the process died between committing the assistant stub and
// finishing the tool round). A bare tool message with no preceding
// assistant group is likewise dropped as an orphan.
//
// Normalize is idempotent: Normalize(Normalize(h)) == Normalize(h), since a
// surviving assistant+tool_calls group is always fully covered by the tool
// messages kept alongside it, and no orphan tool message survives a first
// pass.
func Normalize(history []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	i := 0
	for i < len(history) {
		msg := history[i]

		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			j := i + 1
			for j < len(history) && history[j].Role == "tool" {
				j++
			}
			group := history[i+1 : j]
			if coversAllCalls(msg.ToolCalls, group) {
				out = append(out, msg)
				out = append(out, group...)
			}
			i = j
			continue
		}

		if msg.Role == "tool" {
			// Orphan: no preceding assistant+tool_calls group claimed it.
			i++
			continue
		}

		out = append(out, msg)
		i++
	}
	return out
}

func coversAllCalls(calls []llm.ToolCall, group []llm.Message) bool {
	have := make(map[string]bool, len(group))
	for _, m := range group {
		have[m.ToolCallID] = true
	}
	for _, c := range calls {
		if !have[c.ID] {
			return false
		}
	}
	return true
}
