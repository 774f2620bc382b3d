// Package google implements llm.Client against Google's Gemini API using
// the unified google.golang.org/genai SDK, mirroring the shape of
// pkg/llm/anthropic's provider so the orchestrator can treat either
// interchangeably.
package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/fenrig-labs/gptshell/internal/toolkit"
	"github.com/fenrig-labs/gptshell/pkg/llm"
)

const defaultModel = "gemini-2.5-flash"

// Config configures a Provider.
type Config struct {
	APIKey string
	Model  string
}

// Provider is the Gemini-backed llm.Client.
type Provider struct {
	client *genai.Client
	model  string

	mu        sync.Mutex
	lastCalls []llm.ToolCall
	lastInfo  llm.StreamInfo
}

var _ llm.Client = (*Provider)(nil)

// New constructs a Provider from the given config.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: new client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Provider{client: client, model: model}, nil
}

func (p *Provider) Name() string         { return "google" }
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

func (p *Provider) buildRequest(params llm.Params) (string, []*genai.Content, *genai.GenerateContentConfig, error) {
	cfg := &genai.GenerateContentConfig{}

	msgs := params.Messages
	if len(msgs) > 0 && msgs[0].Role == "system" {
		if text, ok := msgs[0].Content.(string); ok {
			cfg.SystemInstruction = genai.NewContentFromText(text, genai.RoleUser)
		}
		msgs = msgs[1:]
	}

	var contents []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case "user":
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: userParts(m.Content)})
		case "assistant":
			var parts []*genai.Part
			if text, ok := m.Content.(string); ok && text != "" {
				parts = append(parts, genai.NewPartFromText(text))
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Function.Name, args))
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case "tool":
			resp := map[string]any{"result": contentString(m.Content)}
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{genai.NewPartFromFunctionResponse(m.Name, resp)},
			})
		}
	}

	if len(params.Tools) > 0 {
		var decls []*genai.FunctionDeclaration
		for _, t := range params.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  jsonSchemaToGenai(t.InputSchema),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if params.Temperature != nil {
		temp := float32(*params.Temperature)
		cfg.Temperature = &temp
	}

	return p.modelOf(params), contents, cfg, nil
}

// userParts translates a user message's Content into Gemini parts, handling
// both the plain-string shape and chat.BuildUserContent's multimodal parts
// list (spec §4.4) — text parts become text parts, image parts become
// inline-data parts via NewPartFromBytes.
func userParts(content any) []*genai.Part {
	if text, ok := content.(string); ok {
		return []*genai.Part{genai.NewPartFromText(text)}
	}
	parts, ok := llm.ContentParts(content)
	if !ok {
		return []*genai.Part{genai.NewPartFromText(contentString(content))}
	}
	var out []*genai.Part
	for _, part := range parts {
		if text, ok := llm.PartText(part); ok {
			if text != "" {
				out = append(out, genai.NewPartFromText(text))
			}
			continue
		}
		if llm.IsImagePart(part) {
			if mimeType, data, ok := llm.DataURLImage(part); ok {
				if raw, err := base64.StdEncoding.DecodeString(data); err == nil {
					out = append(out, genai.NewPartFromBytes(raw, mimeType))
				}
			}
		}
	}
	if len(out) == 0 {
		out = append(out, genai.NewPartFromText(""))
	}
	return out
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

func jsonSchemaToGenai(schema map[string]any) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	var s genai.Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	return &s
}

// Stream issues a streaming completion, decomposing Gemini's response
// stream into the provider-agnostic Chunk shape. Gemini's SDK yields whole
// candidate snapshots rather than per-field deltas, so each function call
// part is emitted as one complete ToolDelta rather than accumulated
// fragments.
func (p *Provider) Stream(ctx context.Context, params llm.Params) (<-chan llm.Chunk, error) {
	model, contents, cfg, err := p.buildRequest(params)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.Chunk, 16)
	go func() {
		defer close(out)
		acc := toolkit.NewAccumulator()
		finishReason := ""
		sawToolDelta := false
		idx := 0

		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				finishReason = "error"
				break
			}
			if resp.UsageMetadata != nil {
				out <- llm.Chunk{Kind: llm.ChunkUsage, Usage: &llm.Usage{
					PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
				}}
			}
			if len(resp.Candidates) == 0 {
				continue
			}
			cand := resp.Candidates[0]
			if cand.FinishReason != "" {
				finishReason = string(cand.FinishReason)
			}
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					out <- llm.Chunk{Kind: llm.ChunkText, Text: part.Text}
				}
				if part.FunctionCall != nil {
					args, _ := json.Marshal(part.FunctionCall.Args)
					delta := llm.ToolDelta{
						Index:     idx,
						ID:        fmt.Sprintf("call_%d", idx),
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					}
					idx++
					sawToolDelta = true
					acc.Push(delta)
					out <- llm.Chunk{Kind: llm.ChunkToolDelta, ToolDelta: delta}
				}
			}
		}

		calls := acc.Calls()
		if finishReason == "" && len(calls) > 0 {
			finishReason = "tool_calls"
		} else if finishReason == "STOP" {
			finishReason = "stop"
		}
		p.mu.Lock()
		p.lastCalls = calls
		p.lastInfo = llm.StreamInfo{FinishReason: strings.ToLower(finishReason), SawToolDelta: sawToolDelta}
		p.mu.Unlock()
	}()
	return out, nil
}

// Complete issues a single non-streaming request.
func (p *Provider) Complete(ctx context.Context, params llm.Params) (llm.Response, error) {
	model, contents, cfg, err := p.buildRequest(params)
	if err != nil {
		return llm.Response{}, err
	}
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return llm.Response{}, fmt.Errorf("google: %w", err)
	}

	out := llm.Response{Message: llm.Message{Role: "assistant"}}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out, nil
	}
	var text strings.Builder
	var calls []llm.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			calls = append(calls, llm.ToolCall{
				ID:       fmt.Sprintf("call_%d", len(calls)),
				Type:     "function",
				Function: llm.ToolCallFunc{Name: part.FunctionCall.Name, Arguments: string(args)},
			})
		}
	}
	out.Message.Content = text.String()
	out.Message.ToolCalls = calls
	return out, nil
}
