// Package anthropic implements llm.Client against Anthropic's Messages API
// using the official anthropic-sdk-go client.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/fenrig-labs/gptshell/internal/toolkit"
	"github.com/fenrig-labs/gptshell/pkg/llm"
)

// maxEmptyStreamEvents bounds how many consecutive no-op SSE events a
// stream may emit before it is treated as malformed and aborted.
const maxEmptyStreamEvents = 300

const defaultModel = "claude-sonnet-4-5"

// Config configures a Provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Provider is the Anthropic-backed llm.Client.
type Provider struct {
	client anthropicsdk.Client
	model  string

	mu        sync.Mutex
	lastCalls []llm.ToolCall
	lastInfo  llm.StreamInfo
}

var _ llm.Client = (*Provider)(nil)

// New constructs a Provider from the given config.
func New(cfg Config) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Provider{
		client: anthropicsdk.NewClient(opts...),
		model:  model,
	}
}

func (p *Provider) Name() string         { return "anthropic" }
func (p *Provider) SupportsVision() bool { return true }

func (p *Provider) LastStreamCalls() []llm.ToolCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.ToolCall(nil), p.lastCalls...)
}

func (p *Provider) LastStreamInfo() llm.StreamInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastInfo
}

func (p *Provider) modelOf(params llm.Params) string {
	if params.Model != "" {
		return params.Model
	}
	return p.model
}

// buildRequest translates the provider-agnostic Params into an Anthropic
// MessageNewParams, splitting out any leading system message (Anthropic
// takes system prompt as a top-level field, not a message-list entry).
func (p *Provider) buildRequest(params llm.Params) (anthropicsdk.MessageNewParams, error) {
	req := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(p.modelOf(params)),
		MaxTokens: 4096,
	}
	if params.MaxTokens != nil {
		req.MaxTokens = int64(*params.MaxTokens)
	}
	if params.Temperature != nil {
		req.Temperature = anthropicsdk.Float(*params.Temperature)
	}

	msgs := params.Messages
	if len(msgs) > 0 && msgs[0].Role == "system" {
		if text, ok := msgs[0].Content.(string); ok {
			req.System = []anthropicsdk.TextBlockParam{{Text: text}}
		}
		msgs = msgs[1:]
	}

	converted, err := convertMessages(msgs)
	if err != nil {
		return req, err
	}
	req.Messages = converted

	if len(params.Tools) > 0 {
		tools, err := convertTools(params.Tools)
		if err != nil {
			return req, err
		}
		req.Tools = tools
		if params.ToolChoice == "required" {
			req.ToolChoice = anthropicsdk.ToolChoiceUnionParam{OfAny: &anthropicsdk.ToolChoiceAnyParam{}}
		}
	}
	return req, nil
}

func convertMessages(msgs []llm.Message) ([]anthropicsdk.MessageParam, error) {
	var out []anthropicsdk.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case "user":
			out = append(out, anthropicsdk.NewUserMessage(userBlocks(m.Content)...))
		case "assistant":
			var blocks []anthropicsdk.ContentBlockParamUnion
			if text, ok := m.Content.(string); ok && text != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(text))
			}
			for _, tc := range m.ToolCalls {
				var args any
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(tc.ID, args, tc.Function.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropicsdk.NewTextBlock(""))
			}
			out = append(out, anthropicsdk.NewAssistantMessage(blocks...))
		case "tool":
			out = append(out, anthropicsdk.NewUserMessage(
				anthropicsdk.NewToolResultBlock(m.ToolCallID, contentString(m.Content), false),
			))
		}
	}
	return out, nil
}

// userBlocks translates a user message's Content into Anthropic content
// blocks, handling both the plain-string shape and chat.BuildUserContent's
// multimodal parts list (spec §4.4) — text parts become text blocks, image
// parts become base64 image blocks via NewImageBlockBase64.
func userBlocks(content any) []anthropicsdk.ContentBlockParamUnion {
	if text, ok := content.(string); ok {
		return []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(text)}
	}
	parts, ok := llm.ContentParts(content)
	if !ok {
		return []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(contentString(content))}
	}
	var blocks []anthropicsdk.ContentBlockParamUnion
	for _, part := range parts {
		if text, ok := llm.PartText(part); ok {
			if text != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(text))
			}
			continue
		}
		if llm.IsImagePart(part) {
			if mimeType, data, ok := llm.DataURLImage(part); ok {
				blocks = append(blocks, anthropicsdk.NewImageBlockBase64(mimeType, data))
			}
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropicsdk.NewTextBlock(""))
	}
	return blocks
}

func contentString(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func convertTools(tools []llm.Tool) ([]anthropicsdk.ToolUnionParam, error) {
	var out []anthropicsdk.ToolUnionParam
	for _, t := range tools {
		schema := anthropicsdk.ToolInputSchemaParam{}
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &schema); err != nil {
			return nil, err
		}
		tp := anthropicsdk.ToolUnionParamOfTool(schema, t.Name)
		if tp.OfTool != nil {
			tp.OfTool.Description = anthropicsdk.String(t.Description)
		}
		out = append(out, tp)
	}
	return out, nil
}

// Stream issues a streaming completion and decomposes Anthropic's SSE
// events into the provider-agnostic Chunk shape.
func (p *Provider) Stream(ctx context.Context, params llm.Params) (<-chan llm.Chunk, error) {
	req, err := p.buildRequest(params)
	if err != nil {
		return nil, err
	}
	stream := p.client.Messages.NewStreaming(ctx, req)

	out := make(chan llm.Chunk, 16)
	go func() {
		defer close(out)
		p.processStream(stream, out)
	}()
	return out, nil
}

func (p *Provider) processStream(stream *ssestream.Stream[anthropicsdk.MessageStreamEventUnion], out chan<- llm.Chunk) {
	acc := toolkit.NewAccumulator()
	var current *llm.ToolDelta
	currentIndex := -1
	var toolInput strings.Builder
	empty := 0
	finishReason := ""
	sawToolDelta := false

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			// Prompt-token usage arrives once here; spec §4.4 says accumulate
			// usage whenever present, not only on message_delta's completion
			// tokens.
			if inputTokens := event.AsMessageStart().Message.Usage.InputTokens; inputTokens > 0 {
				out <- llm.Chunk{Kind: llm.ChunkUsage, Usage: &llm.Usage{PromptTokens: int(inputTokens)}}
			}
			processed = true

		case "content_block_start":
			start := event.AsContentBlockStart()
			block := start.ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				idx := int(start.Index)
				current = &llm.ToolDelta{Index: idx, ID: toolUse.ID, Name: toolUse.Name}
				currentIndex = idx
				toolInput.Reset()
				sawToolDelta = true
			}
			processed = true

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- llm.Chunk{Kind: llm.ChunkText, Text: delta.Text}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					toolInput.WriteString(delta.PartialJSON)
					processed = true
				}
			}

		case "content_block_stop":
			if current != nil {
				current.Arguments = toolInput.String()
				acc.Push(*current)
				out <- llm.Chunk{Kind: llm.ChunkToolDelta, ToolDelta: *current}
				current = nil
				currentIndex = -1
			}
			processed = true

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Delta.StopReason != "" {
				finishReason = string(md.Delta.StopReason)
			}
			u := llm.Usage{
				CompletionTokens: int(md.Usage.OutputTokens),
			}
			out <- llm.Chunk{Kind: llm.ChunkUsage, Usage: &u}
			processed = true

		case "message_stop":
			p.finishStream(acc, finishReason, sawToolDelta)
			return

		case "error":
			p.finishStream(acc, "error", sawToolDelta)
			return
		}

		if processed {
			empty = 0
		} else {
			empty++
			if empty >= maxEmptyStreamEvents {
				p.finishStream(acc, "error", sawToolDelta)
				return
			}
		}
		_ = currentIndex
	}
	p.finishStream(acc, finishReason, sawToolDelta)
}

func (p *Provider) finishStream(acc *toolkit.Accumulator, finishReason string, sawToolDelta bool) {
	calls := acc.Calls()
	if finishReason == "" && len(calls) > 0 {
		finishReason = "tool_calls"
	} else if finishReason == "end_turn" {
		finishReason = "stop"
	}
	p.mu.Lock()
	p.lastCalls = calls
	p.lastInfo = llm.StreamInfo{FinishReason: finishReason, SawToolDelta: sawToolDelta}
	p.mu.Unlock()
}

// Complete issues a single non-streaming request.
func (p *Provider) Complete(ctx context.Context, params llm.Params) (llm.Response, error) {
	req, err := p.buildRequest(params)
	if err != nil {
		return llm.Response{}, err
	}
	msg, err := p.client.Messages.New(ctx, req)
	if err != nil {
		return llm.Response{}, fmt.Errorf("anthropic: %w", err)
	}

	resp := llm.Response{
		Message: llm.Message{Role: "assistant"},
		Usage: llm.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
			CachedTokens:     int(msg.Usage.CacheReadInputTokens),
		},
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens

	var text strings.Builder
	var calls []llm.ToolCall
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			text.WriteString(variant.Text)
		case anthropicsdk.ToolUseBlock:
			args, _ := json.Marshal(variant.Input)
			calls = append(calls, llm.ToolCall{
				ID:   variant.ID,
				Type: "function",
				Function: llm.ToolCallFunc{
					Name:      variant.Name,
					Arguments: string(args),
				},
			})
		}
	}
	resp.Message.Content = text.String()
	resp.Message.ToolCalls = calls
	return resp, nil
}
