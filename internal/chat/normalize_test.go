package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fenrig-labs/gptshell/pkg/llm"
)

func TestNormalizeKeepsFullyCoveredGroup(t *testing.T) {
	history := []llm.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "1"}, {ID: "2"}}},
		{Role: "tool", ToolCallID: "1"},
		{Role: "tool", ToolCallID: "2"},
		{Role: "assistant", Content: "done"},
	}
	require.Equal(t, history, Normalize(history))
}

func TestNormalizeDropsUncoveredGroup(t *testing.T) {
	history := []llm.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "1"}, {ID: "2"}}},
		{Role: "tool", ToolCallID: "1"}, // truncated: id "2" missing
	}
	got := Normalize(history)
	require.Equal(t, []llm.Message{{Role: "user", Content: "hi"}}, got)
}

func TestNormalizeDropsOrphanToolMessage(t *testing.T) {
	history := []llm.Message{
		{Role: "tool", ToolCallID: "1"},
		{Role: "user", Content: "hi"},
	}
	require.Equal(t, []llm.Message{{Role: "user", Content: "hi"}}, Normalize(history))
}

func TestNormalizeIdempotent(t *testing.T) {
	history := []llm.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "1"}}},
		{Role: "tool", ToolCallID: "1"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "2"}, {ID: "3"}}},
		{Role: "tool", ToolCallID: "2"}, // id 3 never arrives — truncated log
	}
	once := Normalize(history)
	twice := Normalize(once)
	require.Equal(t, once, twice)
}

func TestNormalizeAllowsOutOfOrderCoverage(t *testing.T) {
	history := []llm.Message{
		{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "1"}, {ID: "2"}}},
		{Role: "tool", ToolCallID: "2"},
		{Role: "tool", ToolCallID: "1"},
	}
	require.Equal(t, history, Normalize(history))
}
