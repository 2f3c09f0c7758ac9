package ollama

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"loom/internal/provider"
	"loom/internal/provider/textcall"
	"loom/pkg/logger"
)

// processStream consumes an NDJSON body from /api/chat and emits canonical
// events. Content tokens are forwarded live. The full text is also
// accumulated so that invocation blocks can be mined once the turn is
// complete: Ollama has no native tool-call framing, so tool calls only
// exist as text following the injected convention.
//
// known filters extracted candidates to the tool names offered in the
// request. A candidate naming anything else is dropped without comment;
// small models hallucinate tool names and a dropped candidate just reads
// as prose to the conversation.
func processStream(reader io.ReadCloser, known map[string]bool) <-chan provider.ChatEvent {
	events := make(chan provider.ChatEvent, 32)

	go func() {
		defer close(events)
		defer reader.Close()

		var full strings.Builder
		scanner := bufio.NewScanner(reader)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}

			var chunk ollamaChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				logger.Error().Err(err).Str("line", line).Msg("Failed to parse Ollama stream chunk")
				events <- provider.ErrorEvent(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
				return
			}

			if chunk.Error != "" {
				events <- provider.ErrorEvent(errors.New("ollama error: " + chunk.Error))
				return
			}

			if chunk.Message.Content != "" {
				full.WriteString(chunk.Message.Content)
				events <- provider.ContentEvent(chunk.Message.Content)
			}

			if chunk.Done {
				finish := provider.FinishReasonStop
				if chunk.DoneReason == "length" {
					finish = provider.FinishReasonLength
				}

				for _, c := range textcall.Extract(full.String()) {
					if !known[c.Name] {
						logger.Debug().Str("tool", c.Name).Msg("Dropping candidate for unknown tool")
						continue
					}
					events <- provider.ToolCallEvent(provider.ToolCall{
						ID:        "call_" + uuid.NewString(),
						Name:      c.Name,
						Arguments: c.Arguments,
					})
					finish = provider.FinishReasonToolCalls
				}

				var usage *provider.Usage
				if chunk.PromptEvalCount > 0 || chunk.EvalCount > 0 {
					usage = &provider.Usage{
						PromptTokens:     chunk.PromptEvalCount,
						CompletionTokens: chunk.EvalCount,
						TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
					}
				}
				events <- provider.DoneEvent(finish, usage)
				return
			}
		}

		if err := scanner.Err(); err != nil {
			logger.Error().Err(err).Msg("Ollama stream scanner error")
			events <- provider.ErrorEvent(err)
			return
		}

		// Stream ended without a done chunk.
		events <- provider.DoneEvent(provider.FinishReasonStop, nil)
	}()

	return events
}
