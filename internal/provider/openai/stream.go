package openai

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"loom/internal/provider"
	"loom/pkg/logger"
)

// pendingCall accumulates tool-call fragments for one choice index until the
// stream signals completion. OpenAI-compatible servers deliver the call name
// in the first fragment and the argument JSON spread across later ones.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// processStream consumes an SSE body (OpenAI-compatible format) and emits
// canonical events. Each event line is prefixed with "data: " and the stream
// ends with "data: [DONE]".
//
// Tool-call fragments are buffered here and surfaced twice: advisory
// tool_call_delta events as fragments arrive, and exactly one fully-formed
// tool_call event per call once the arguments are complete. An argument
// payload that never becomes valid JSON is a provider fault and terminates
// the stream with an error event.
func processStream(reader io.ReadCloser) <-chan provider.ChatEvent {
	events := make(chan provider.ChatEvent, 32)

	go func() {
		defer close(events)
		defer reader.Close()

		pending := make(map[int]*pendingCall)
		flushed := false
		usage := (*chatUsage)(nil)

		// flush assembles the buffered calls in index order. Returns false
		// when an argument payload is malformed, after emitting the error.
		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			indexes := make([]int, 0, len(pending))
			for i := range pending {
				indexes = append(indexes, i)
			}
			sort.Ints(indexes)

			for _, i := range indexes {
				pc := pending[i]
				args := pc.args.String()
				if args == "" {
					args = "{}"
				}
				if !json.Valid([]byte(args)) {
					logger.Error().Str("tool", pc.name).Str("arguments", args).
						Msg("Tool call arguments are not valid JSON")
					events <- provider.ErrorEvent(
						fmt.Errorf("%w: %s", provider.ErrMalformedToolCall, pc.name))
					return false
				}
				events <- provider.ToolCallEvent(provider.ToolCall{
					ID:        pc.id,
					Index:     i,
					Name:      pc.name,
					Arguments: args,
				})
			}
			pending = make(map[int]*pendingCall)
			return true
		}

		scanner := bufio.NewScanner(reader)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()

			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			if data == "[DONE]" {
				if flushed {
					return
				}
				if !flush() {
					return
				}
				events <- provider.DoneEvent(provider.FinishReasonStop, convertUsage(usage))
				return
			}

			// A finish marker already ended the event sequence. Servers
			// sometimes keep sending chunks (another finish_reason, trailing
			// usage) before [DONE]; none of it may produce events.
			if flushed {
				continue
			}

			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				logger.Error().Err(err).Str("data", data).Msg("Failed to parse stream chunk")
				continue
			}

			if chunk.Error != nil {
				events <- provider.ErrorEvent(
					fmt.Errorf("provider error: [%s] %s", chunk.Error.Type, chunk.Error.Message))
				return
			}
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				events <- provider.ContentEvent(choice.Delta.Content)
			}

			for _, tc := range choice.Delta.ToolCalls {
				pc, ok := pending[tc.Index]
				if !ok {
					pc = &pendingCall{}
					pending[tc.Index] = pc
				}
				if tc.ID != "" {
					pc.id = tc.ID
				}
				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}
				pc.args.WriteString(tc.Function.Arguments)

				events <- provider.ChatEvent{
					Type: provider.EventTypeToolCallDelta,
					ToolCallDelta: &provider.ToolCallDelta{
						ID:       pc.id,
						Name:     pc.name,
						Fragment: tc.Function.Arguments,
					},
				}
			}

			if choice.FinishReason != "" {
				if !flush() {
					return
				}
				events <- provider.DoneEvent(choice.FinishReason, convertUsage(usage))
				flushed = true
			}
		}

		if err := scanner.Err(); err != nil {
			logger.Error().Err(err).Msg("Stream scanner error")
			events <- provider.ErrorEvent(err)
			return
		}

		// Body ended without [DONE] or a finish reason. Treat a truncated
		// stream that never signalled completion as done.
		if !flushed {
			if !flush() {
				return
			}
			events <- provider.DoneEvent(provider.FinishReasonStop, convertUsage(usage))
		}
	}()

	return events
}

func convertUsage(u *chatUsage) *provider.Usage {
	if u == nil {
		return nil
	}
	return &provider.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
