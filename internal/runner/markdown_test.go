package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkdownBufferFlushesAtParagraphBoundary(t *testing.T) {
	m := NewMarkdownBuffer()
	out := m.Push("first paragraph\n\nsecond")
	require.Equal(t, []string{"first paragraph\n\n"}, out)
	tail, ok := m.Flush()
	require.True(t, ok)
	require.Equal(t, "second", tail)
}

func TestMarkdownBufferHoldsOpenFence(t *testing.T) {
	m := NewMarkdownBuffer()
	out := m.Push("text\n```go\nfunc main() {}\n")
	// No closing fence yet: the fenced block must not be emitted.
	for _, block := range out {
		require.False(t, strings.Contains(block, "func main"))
	}
	out2 := m.Push("```\nmore text")
	require.NotEmpty(t, out2)
	require.Contains(t, out2[0], "```go")
	require.Contains(t, out2[0], "func main() {}")
	require.True(t, strings.HasSuffix(strings.TrimRight(out2[0], "\n"), "```"))
}

func TestMarkdownBufferLatencyGuardFlushesLongUnbrokenText(t *testing.T) {
	m := NewMarkdownBuffer()
	long := strings.Repeat("a", defaultLatencyChars+10) + "\n"
	out := m.Push(long)
	require.NotEmpty(t, out)
}

func TestMarkdownBufferFlushEmptyReturnsFalse(t *testing.T) {
	m := NewMarkdownBuffer()
	_, ok := m.Flush()
	require.False(t, ok)
}

func TestMarkdownBufferNeverSplitsOpenFence(t *testing.T) {
	m := NewMarkdownBuffer()
	// Push the fence opener and body in several small chunks; nothing
	// should be emitted until the closing fence line is seen.
	chunks := []string{"~~~\n", "line one\n", "line two\n"}
	for _, c := range chunks {
		for _, block := range m.Push(c) {
			require.False(t, strings.Contains(block, "line two"))
		}
	}
	out := m.Push("~~~\n")
	require.Len(t, out, 1)
	require.Contains(t, out[0], "line one")
	require.Contains(t, out[0], "line two")
}
