package toolkit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fenrig-labs/gptshell/pkg/llm"
)

func TestParseArgumentsTolerant(t *testing.T) {
	require.Equal(t, map[string]any{}, ParseArguments(""))
	require.Equal(t, map[string]any{}, ParseArguments("{not json"))
	require.Equal(t, map[string]any{}, ParseArguments(`"just a string"`))
	require.Equal(t, map[string]any{"path": "/x"}, ParseArguments(`{"path":"/x"}`))
}

func TestAccumulatorConcatenatesArgumentsByIndex(t *testing.T) {
	a := NewAccumulator()
	a.Push(llm.ToolDelta{Index: 0, ID: "call_1", Name: "fs__read"})
	a.Push(llm.ToolDelta{Index: 0, Arguments: `{"path":`})
	a.Push(llm.ToolDelta{Index: 0, Arguments: `"/x"}`})
	a.Push(llm.ToolDelta{Index: 1, ID: "call_2", Name: "time__now", Arguments: "{}"})

	calls := a.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, "call_1", calls[0].ID)
	require.Equal(t, "fs__read", calls[0].Function.Name)
	require.Equal(t, `{"path":"/x"}`, calls[0].Function.Arguments)
	require.Equal(t, "call_2", calls[1].ID)
}

func TestAccumulatorEmpty(t *testing.T) {
	a := NewAccumulator()
	require.True(t, a.Empty())
	a.Push(llm.ToolDelta{Index: 0, ID: "x"})
	require.False(t, a.Empty())
}
