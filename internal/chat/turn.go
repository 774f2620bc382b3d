package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fenrig-labs/gptshell/internal/toolkit"
	"github.com/fenrig-labs/gptshell/pkg/llm"
)

// TurnInput is everything a single RunTurn call needs beyond the session's
// own state (spec §4.4 "Inputs per turn").
type TurnInput struct {
	Prompt      string
	Attachments []Attachment
	NoTools     bool
}

// TurnResult is the final visible text produced by a completed turn.
type TurnResult struct {
	Text string
}

// OnText is invoked with each chunk of visible text as it streams in, in
// the order received (spec §4.4 "Ordering guarantees").
type OnText func(text string)

// RunTurn drives one turn to completion through the S0-S3 state machine
// described in spec §4.4. On success the turn's messages (user prompt,
// assistant stubs, tool results, final assistant message) are committed to
// the session history atomically — on error (including context
// cancellation or ErrToolApprovalDenied) no partial state is committed.
func (s *Session) RunTurn(ctx context.Context, in TurnInput, onText OnText) (TurnResult, error) {
	s.mu.Lock()
	baseHistory := append([]llm.Message(nil), s.history...)
	tools := append([]llm.Tool(nil), s.tools...)
	params := s.params
	s.mu.Unlock()

	supportsVision := !in.NoTools && s.llmClient.SupportsVision()
	userMsg := llm.Message{Role: "user", Content: BuildUserContent(in.Prompt, in.Attachments, supportsVision)}

	conversation := append(baseHistory, userMsg)
	if params.SystemPrompt != "" && (len(conversation) == 0 || conversation[0].Role != "system") {
		conversation = append([]llm.Message{{Role: "system", Content: params.SystemPrompt}}, conversation...)
	}

	useTools := !in.NoTools && len(tools) > 0
	var committed []llm.Message
	var finalText string

	for {
		reqParams := llm.Params{
			Model:       params.Model,
			Messages:    conversation,
			Temperature: params.Temperature,
			MaxTokens:   params.MaxTokens,
		}
		if useTools {
			reqParams.Tools = tools
			reqParams.ToolChoice = "auto"
			reqParams.Extra = map[string]any{"parallel_tool_calls": true}
		}

		// S0 REQUEST / S1 STREAMING
		chunks, err := s.llmClient.Stream(ctx, reqParams)
		if err != nil {
			return TurnResult{}, err
		}
		var text []byte
		for chunk := range chunks {
			switch chunk.Kind {
			case llm.ChunkText:
				text = append(text, chunk.Text...)
				if onText != nil && chunk.Text != "" {
					onText(chunk.Text)
				}
			case llm.ChunkUsage:
				s.accumulateUsage(chunk.Usage)
			}
		}
		if err := ctx.Err(); err != nil {
			return TurnResult{}, err
		}

		info := s.llmClient.LastStreamInfo()
		calls := s.llmClient.LastStreamCalls()

		enterToolRound := useTools && (info.FinishReason == "tool_calls" || info.SawToolDelta || len(text) == 0)
		if !enterToolRound {
			finalText = string(text)
			if finalText != "" {
				assistantMsg := llm.Message{Role: "assistant", Content: finalText}
				conversation = append(conversation, assistantMsg)
				committed = append(committed, assistantMsg)
			}
			break
		}

		// S2 TOOL_ROUND: use the streamed deltas if complete; otherwise fall
		// back to one non-streaming completion (spec §4.4 step 1).
		if len(calls) == 0 {
			resp, err := s.llmClient.Complete(ctx, reqParams)
			if err != nil {
				return TurnResult{}, err
			}
			s.accumulateUsage(&resp.Usage)
			calls = toolkit.ToolCallsFromResponse(resp)
			if len(calls) == 0 {
				finalText = contentText(resp.Message.Content)
				assistantMsg := llm.Message{Role: "assistant", Content: finalText}
				conversation = append(conversation, assistantMsg)
				committed = append(committed, assistantMsg)
				break
			}
			if s := contentText(resp.Message.Content); s != "" {
				text = []byte(s)
			}
		}

		var assistantContent any
		if len(text) > 0 {
			assistantContent = string(text)
		}
		assistantStub := llm.Message{Role: "assistant", Content: assistantContent, ToolCalls: calls}
		conversation = append(conversation, assistantStub)
		committed = append(committed, assistantStub)

		toolResults, err := s.runToolRound(ctx, calls)
		if err != nil {
			return TurnResult{}, err
		}
		conversation = append(conversation, toolResults...)
		committed = append(committed, toolResults...)
		// Loop back to S0 with the extended conversation.
	}

	s.mu.Lock()
	s.history = append(s.history, userMsg)
	s.history = append(s.history, committed...)
	s.mu.Unlock()

	return TurnResult{Text: finalText}, nil
}

func contentText(content any) string {
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

// runToolRound asks for each call's approval one at a time in declaration
// order, then executes the approved calls concurrently, preserving
// declaration order in the returned slice regardless of completion order
// (spec §8 invariant 6), and returns ErrToolApprovalDenied
// only when Params.ToolChoiceRequired and at least one call was denied.
func (s *Session) runToolRound(ctx context.Context, calls []llm.ToolCall) ([]llm.Message, error) {
	results := make([]llm.Message, len(calls))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, call := range calls {
		i, call := i, call
		server, tool, ok := toolkit.RouteName(call.Function.Name)
		if !ok {
			results[i] = deniedMessage(call, fmt.Sprintf("invalid tool name %q: expected \"server__tool\"", call.Function.Name))
			continue
		}
		args := toolkit.ParseArguments(call.Function.Arguments)

		allowed := s.policy.IsAutoAllowed(server, tool)
		if !allowed {
			allowed = s.policy.Confirm(ctx, server, tool, args)
		}
		if !allowed {
			if s.params.ToolChoiceRequired {
				mu.Lock()
				if firstErr == nil {
					firstErr = ErrToolApprovalDenied{Server: server, Tool: tool}
				}
				mu.Unlock()
				continue
			}
			results[i] = deniedMessage(call, fmt.Sprintf("Denied by user: %s", call.Function.Name))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.executeOne(ctx, server, tool, call, args)
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func deniedMessage(call llm.ToolCall, content string) llm.Message {
	return llm.Message{Role: "tool", ToolCallID: call.ID, Name: call.Function.Name, Content: content}
}

func (s *Session) executeOne(ctx context.Context, server, tool string, call llm.ToolCall, args map[string]any) llm.Message {
	label := fmt.Sprintf("%s args=%s", call.Function.Name, truncate(argPreview(args), argPreviewLimit))
	handle := s.reporter.StartDebouncedTask(label, debouncedProgressDelay)
	content, err := s.executor.CallTool(ctx, server, tool, args)
	s.reporter.CompleteTask(handle, "")
	if err != nil {
		content = err.Error()
	}
	return llm.Message{Role: "tool", ToolCallID: call.ID, Name: call.Function.Name, Content: content}
}

func argPreview(args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
