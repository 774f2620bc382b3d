package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fenrig-labs/gptshell/internal/ui"
	"github.com/fenrig-labs/gptshell/pkg/llm"
)

// fakeStream is one scripted Stream() call's worth of chunks plus the
// terminal state the orchestrator reads afterward via LastStreamInfo/Calls.
type fakeStream struct {
	chunks []llm.Chunk
	info   llm.StreamInfo
	calls  []llm.ToolCall
}

type fakeClient struct {
	mu       sync.Mutex
	streams  []fakeStream
	streamAt int
	complete llm.Response
	lastInfo llm.StreamInfo
	lastCall []llm.ToolCall
	vision   bool
}

var _ llm.Client = (*fakeClient)(nil)

func (f *fakeClient) Stream(ctx context.Context, params llm.Params) (<-chan llm.Chunk, error) {
	f.mu.Lock()
	s := f.streams[f.streamAt]
	f.streamAt++
	f.mu.Unlock()

	out := make(chan llm.Chunk, len(s.chunks))
	for _, c := range s.chunks {
		out <- c
	}
	close(out)

	f.mu.Lock()
	f.lastInfo = s.info
	f.lastCall = s.calls
	f.mu.Unlock()
	return out, nil
}

func (f *fakeClient) Complete(ctx context.Context, params llm.Params) (llm.Response, error) {
	return f.complete, nil
}
func (f *fakeClient) LastStreamCalls() []llm.ToolCall { f.mu.Lock(); defer f.mu.Unlock(); return f.lastCall }
func (f *fakeClient) LastStreamInfo() llm.StreamInfo  { f.mu.Lock(); defer f.mu.Unlock(); return f.lastInfo }
func (f *fakeClient) SupportsVision() bool            { return f.vision }
func (f *fakeClient) Name() string                    { return "fake" }

type fakeExecutor struct {
	mu    sync.Mutex
	calls []string
	reply map[string]string
}

func (f *fakeExecutor) CallTool(_ context.Context, server, tool string, args map[string]any) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, server+"__"+tool)
	f.mu.Unlock()
	return f.reply[server+"__"+tool], nil
}

type fakePolicy struct {
	autoAllow bool
	confirm   bool
}

func (p fakePolicy) IsAutoAllowed(string, string) bool { return p.autoAllow }
func (p fakePolicy) Confirm(context.Context, string, string, map[string]any) bool {
	return p.confirm
}

// Scenario 1: no-tools path.
func TestRunTurnNoToolsPath(t *testing.T) {
	client := &fakeClient{streams: []fakeStream{
		{chunks: []llm.Chunk{
			{Kind: llm.ChunkText, Text: "hi "},
			{Kind: llm.ChunkText, Text: "there"},
		}, info: llm.StreamInfo{FinishReason: "stop"}},
	}}
	sess := New(client, &fakeExecutor{}, fakePolicy{}, ui.NoOpReporter{}, Params{Model: "m"})

	var got string
	res, err := sess.RunTurn(context.Background(), TurnInput{Prompt: "hello", NoTools: true}, func(s string) { got += s })
	require.NoError(t, err)
	require.Equal(t, "hi there", got)
	require.Equal(t, "hi there", res.Text)

	hist := sess.History()
	require.Len(t, hist, 2)
	require.Equal(t, "user", hist[0].Role)
	require.Equal(t, "hello", hist[0].Content)
	require.Equal(t, "assistant", hist[1].Role)
	require.Equal(t, "hi there", hist[1].Content)
}

// Scenario 2: auto-approved tool round.
func TestRunTurnAutoApprovedTool(t *testing.T) {
	client := &fakeClient{streams: []fakeStream{
		{
			chunks: nil,
			info:   llm.StreamInfo{FinishReason: "tool_calls"},
			calls: []llm.ToolCall{{
				ID: "call_1", Type: "function",
				Function: llm.ToolCallFunc{Name: "fs__read", Arguments: `{"path":"/x"}`},
			}},
		},
		{
			chunks: []llm.Chunk{{Kind: llm.ChunkText, Text: "done"}},
			info:   llm.StreamInfo{FinishReason: "stop"},
		},
	}}
	exec := &fakeExecutor{reply: map[string]string{"fs__read": "DATA"}}
	sess := New(client, exec, fakePolicy{autoAllow: true}, ui.NoOpReporter{},
		Params{Model: "m"})
	sess.SetTools([]llm.Tool{{Name: "fs__read"}})

	res, err := sess.RunTurn(context.Background(), TurnInput{Prompt: "read it"}, nil)
	require.NoError(t, err)
	require.Equal(t, "done", res.Text)

	hist := sess.History()
	// user, assistant-stub, tool-result, final-assistant
	require.Len(t, hist, 4)
	require.Equal(t, "assistant", hist[1].Role)
	require.Len(t, hist[1].ToolCalls, 1)
	require.Equal(t, "tool", hist[2].Role)
	require.Equal(t, "call_1", hist[2].ToolCallID)
	require.Equal(t, "DATA", hist[2].Content)
	require.Equal(t, "assistant", hist[3].Role)
	require.Equal(t, "done", hist[3].Content)
	require.Equal(t, []string{"fs__read"}, exec.calls)
}

// Scenario 3: denied in required mode.
func TestRunTurnDeniedRequiredMode(t *testing.T) {
	client := &fakeClient{streams: []fakeStream{
		{
			info: llm.StreamInfo{FinishReason: "tool_calls"},
			calls: []llm.ToolCall{{
				ID: "call_1", Function: llm.ToolCallFunc{Name: "shell__execute", Arguments: "{}"},
			}},
		},
	}}
	sess := New(client, &fakeExecutor{}, fakePolicy{autoAllow: false, confirm: false}, ui.NoOpReporter{},
		Params{Model: "m", ToolChoiceRequired: true})
	sess.SetTools([]llm.Tool{{Name: "shell__execute"}})

	_, err := sess.RunTurn(context.Background(), TurnInput{Prompt: "rm -rf /"}, nil)
	require.Error(t, err)
	require.IsType(t, ErrToolApprovalDenied{}, err)
	require.Empty(t, sess.History())
}

// Scenario 4: streaming tool deltas without visible text; no fallback call.
func TestRunTurnStreamingDeltasNoFallback(t *testing.T) {
	client := &fakeClient{streams: []fakeStream{
		{
			info: llm.StreamInfo{FinishReason: "tool_calls", SawToolDelta: true},
			calls: []llm.ToolCall{{
				ID: "call_1", Function: llm.ToolCallFunc{Name: "time__now", Arguments: "{}"},
			}},
		},
		{
			chunks: []llm.Chunk{{Kind: llm.ChunkText, Text: "ok"}},
			info:   llm.StreamInfo{FinishReason: "stop"},
		},
	}}
	exec := &fakeExecutor{reply: map[string]string{"time__now": "2026-01-01T00:00:00Z"}}
	sess := New(client, exec, fakePolicy{autoAllow: true}, ui.NoOpReporter{}, Params{Model: "m"})
	sess.SetTools([]llm.Tool{{Name: "time__now"}})

	res, err := sess.RunTurn(context.Background(), TurnInput{Prompt: "what time is it"}, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", res.Text)
	require.Equal(t, 2, client.streamAt) // both streams consumed, no Complete fallback
}

// Scenario 5: non-stream fallback when no complete tool-call deltas arrive.
func TestRunTurnNonStreamFallback(t *testing.T) {
	client := &fakeClient{
		streams: []fakeStream{
			{info: llm.StreamInfo{FinishReason: "tool_calls"}}, // no text, no calls
			{chunks: []llm.Chunk{{Kind: llm.ChunkText, Text: "second turn text"}}, info: llm.StreamInfo{FinishReason: "stop"}},
		},
		complete: llm.Response{Message: llm.Message{
			Content: "",
			ToolCalls: []llm.ToolCall{{
				ID: "call_1", Function: llm.ToolCallFunc{Name: "time__now", Arguments: "{}"},
			}},
		}},
	}
	exec := &fakeExecutor{reply: map[string]string{"time__now": "NOW"}}
	sess := New(client, exec, fakePolicy{autoAllow: true}, ui.NoOpReporter{}, Params{Model: "m"})
	sess.SetTools([]llm.Tool{{Name: "time__now"}})

	res, err := sess.RunTurn(context.Background(), TurnInput{Prompt: "time?"}, nil)
	require.NoError(t, err)
	require.Equal(t, "second turn text", res.Text)
	require.Equal(t, []string{"time__now"}, exec.calls)
}

// Scenario 6: parallel tools preserve declaration order regardless of
// completion order.
func TestRunTurnParallelToolsPreserveOrder(t *testing.T) {
	client := &fakeClient{streams: []fakeStream{
		{
			info: llm.StreamInfo{FinishReason: "tool_calls"},
			calls: []llm.ToolCall{
				{ID: "c1", Function: llm.ToolCallFunc{Name: "fs__read", Arguments: "{}"}},
				{ID: "c2", Function: llm.ToolCallFunc{Name: "time__now", Arguments: "{}"}},
			},
		},
		{chunks: []llm.Chunk{{Kind: llm.ChunkText, Text: "final"}}, info: llm.StreamInfo{FinishReason: "stop"}},
	}}
	exec := &fakeExecutor{reply: map[string]string{"fs__read": "FILEDATA", "time__now": "TIMEDATA"}}
	sess := New(client, exec, fakePolicy{autoAllow: true}, ui.NoOpReporter{}, Params{Model: "m"})
	sess.SetTools([]llm.Tool{{Name: "fs__read"}, {Name: "time__now"}})

	_, err := sess.RunTurn(context.Background(), TurnInput{Prompt: "go"}, nil)
	require.NoError(t, err)

	hist := sess.History()
	require.Len(t, hist, 5) // user, assistant-stub, tool(c1), tool(c2), final assistant
	require.Equal(t, "c1", hist[2].ToolCallID)
	require.Equal(t, "FILEDATA", hist[2].Content)
	require.Equal(t, "c2", hist[3].ToolCallID)
	require.Equal(t, "TIMEDATA", hist[3].Content)
}
