package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fenrig-labs/gptshell/pkg/llm"
)

type fakeSmallModel struct {
	title string
}

func (f fakeSmallModel) Stream(context.Context, llm.Params) (<-chan llm.Chunk, error) {
	panic("not used")
}
func (f fakeSmallModel) Complete(context.Context, llm.Params) (llm.Response, error) {
	return llm.Response{Message: llm.Message{Role: "assistant", Content: f.title}}, nil
}
func (f fakeSmallModel) LastStreamCalls() []llm.ToolCall { return nil }
func (f fakeSmallModel) LastStreamInfo() llm.StreamInfo  { return llm.StreamInfo{} }
func (f fakeSmallModel) SupportsVision() bool            { return false }
func (f fakeSmallModel) Name() string                    { return "small" }

var _ llm.Client = fakeSmallModel{}

func TestGenerateTitleSkipsWhenAlreadyTitled(t *testing.T) {
	doc := New(AgentMeta{ModelSmall: "small"}, ProviderMeta{Name: "p"}, "text")
	doc.Title = "Already titled"
	doc.Messages = []llm.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	require.NoError(t, GenerateTitle(context.Background(), doc, fakeSmallModel{title: "Should Not Apply"}))
	require.Equal(t, "Already titled", doc.Title)
}

func TestGenerateTitleSkipsWithoutAssistantReply(t *testing.T) {
	doc := New(AgentMeta{ModelSmall: "small"}, ProviderMeta{Name: "p"}, "text")
	doc.Messages = []llm.Message{{Role: "user", Content: "hi"}}
	require.NoError(t, GenerateTitle(context.Background(), doc, fakeSmallModel{title: "Nope"}))
	require.Empty(t, doc.Title)
}

func TestGenerateTitleSetsFromSmallModel(t *testing.T) {
	doc := New(AgentMeta{ModelSmall: "small"}, ProviderMeta{Name: "p"}, "text")
	doc.Messages = []llm.Message{
		{Role: "user", Content: "how do I reverse a linked list in Go"},
		{Role: "assistant", Content: "here's how..."},
	}
	require.NoError(t, GenerateTitle(context.Background(), doc, fakeSmallModel{title: "Reverse a Go linked list"}))
	require.Equal(t, "Reverse a Go linked list", doc.Title)
}
