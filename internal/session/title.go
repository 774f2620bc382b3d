package session

import (
	"context"
	"strings"

	"github.com/fenrig-labs/gptshell/pkg/llm"
)

const titlePrompt = "Summarize the user's request below in 6 words or fewer, " +
	"as a short title with no trailing punctuation. Respond with only the title.\n\n"

// GenerateTitle asks smallModel to produce a short title for doc, per spec
// §4.6 "generate_title": only when doc has no title yet and at least one
// assistant reply exists. A no-op (returns nil, doc unchanged) otherwise,
// so callers can call it unconditionally after every turn.
func GenerateTitle(ctx context.Context, doc *Document, smallModel llm.Client) error {
	if doc.Title != "" {
		return nil
	}
	firstUser, hasAssistantReply := firstUserPrompt(doc.Messages)
	if firstUser == "" || !hasAssistantReply {
		return nil
	}

	resp, err := smallModel.Complete(ctx, llm.Params{
		Model: doc.Agent.ModelSmall,
		Messages: []llm.Message{
			{Role: "user", Content: titlePrompt + firstUser},
		},
	})
	if err != nil {
		return err
	}

	title, _ := resp.Message.Content.(string)
	doc.Title = strings.TrimSpace(strings.Trim(title, "\""))
	return nil
}

func firstUserPrompt(msgs []llm.Message) (prompt string, hasAssistantReply bool) {
	for _, m := range msgs {
		if prompt == "" && m.Role == "user" {
			if s, ok := m.Content.(string); ok {
				prompt = s
			}
		}
		if m.Role == "assistant" && m.Content != nil {
			hasAssistantReply = true
		}
	}
	return prompt, hasAssistantReply
}
