package openai

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/provider"
)

func collect(events <-chan provider.ChatEvent) []provider.ChatEvent {
	var out []provider.ChatEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestProcessStreamContent(t *testing.T) {
	streamData := `data: {"id":"1","choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"}}]}

data: {"id":"1","choices":[{"index":0,"delta":{"content":" world"}}]}

data: {"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}

data: [DONE]
`

	collected := collect(processStream(io.NopCloser(strings.NewReader(streamData))))
	require.Len(t, collected, 3)

	assert.Equal(t, provider.EventTypeContent, collected[0].Type)
	assert.Equal(t, "Hello", collected[0].Delta)
	assert.Equal(t, provider.EventTypeContent, collected[1].Type)
	assert.Equal(t, " world", collected[1].Delta)

	assert.Equal(t, provider.EventTypeDone, collected[2].Type)
	assert.Equal(t, provider.FinishReasonStop, collected[2].FinishReason)
	require.NotNil(t, collected[2].Usage)
	assert.Equal(t, 15, collected[2].Usage.TotalTokens)
}

func TestProcessStreamFragmentedToolCall(t *testing.T) {
	// Arguments arrive split across three deltas. Exactly one fully-formed
	// tool_call event must come out, carrying the reassembled payload.
	streamData := `data: {"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_abc","type":"function","function":{"name":"read_file","arguments":""}}]}}]}

data: {"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"file_path\":"}}]}}]}

data: {"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"a.txt\"}"}}]}}]}

data: {"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]
`

	collected := collect(processStream(io.NopCloser(strings.NewReader(streamData))))

	var calls, deltas, dones []provider.ChatEvent
	for _, ev := range collected {
		switch ev.Type {
		case provider.EventTypeToolCall:
			calls = append(calls, ev)
		case provider.EventTypeToolCallDelta:
			deltas = append(deltas, ev)
		case provider.EventTypeDone:
			dones = append(dones, ev)
		}
	}

	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].ToolCall)
	assert.Equal(t, "call_abc", calls[0].ToolCall.ID)
	assert.Equal(t, "read_file", calls[0].ToolCall.Name)
	assert.JSONEq(t, `{"file_path":"a.txt"}`, calls[0].ToolCall.Arguments)

	// Advisory fragments surfaced for display, one per wire delta.
	require.Len(t, deltas, 3)
	assert.Equal(t, "read_file", deltas[0].ToolCallDelta.Name)

	require.Len(t, dones, 1)
	assert.Equal(t, provider.FinishReasonToolCalls, dones[0].FinishReason)
}

func TestProcessStreamParallelToolCalls(t *testing.T) {
	streamData := `data: {"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"read_file","arguments":"{\"path\":\"a\"}"}}]}}]}

data: {"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_2","function":{"name":"list_dir","arguments":"{\"path\":\".\"}"}}]}}]}

data: {"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]
`

	collected := collect(processStream(io.NopCloser(strings.NewReader(streamData))))

	var calls []provider.ToolCall
	for _, ev := range collected {
		if ev.Type == provider.EventTypeToolCall {
			calls = append(calls, *ev.ToolCall)
		}
	}

	// Emission order follows the wire index order.
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.Equal(t, "call_2", calls[1].ID)
	assert.Equal(t, "list_dir", calls[1].Name)
}

func TestProcessStreamMalformedArguments(t *testing.T) {
	streamData := `data: {"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"read_file","arguments":"{\"path\": "}}]}}]}

data: {"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: [DONE]
`

	collected := collect(processStream(io.NopCloser(strings.NewReader(streamData))))

	// The truncated argument payload is a provider fault: the stream ends
	// with an error event, no tool_call and no done.
	require.NotEmpty(t, collected)
	last := collected[len(collected)-1]
	assert.Equal(t, provider.EventTypeError, last.Type)
	assert.ErrorIs(t, last.Error, provider.ErrMalformedToolCall)
	for _, ev := range collected {
		assert.NotEqual(t, provider.EventTypeToolCall, ev.Type)
		assert.NotEqual(t, provider.EventTypeDone, ev.Type)
	}
}

func TestProcessStreamAPIError(t *testing.T) {
	streamData := `data: {"id":"1","error":{"message":"rate limit exceeded","type":"rate_limit_error"}}
`

	collected := collect(processStream(io.NopCloser(strings.NewReader(streamData))))
	require.Len(t, collected, 1)
	assert.Equal(t, provider.EventTypeError, collected[0].Type)
	assert.Contains(t, collected[0].Error.Error(), "rate limit exceeded")
}

func TestProcessStreamSkipsGarbageChunks(t *testing.T) {
	streamData := `data: not json

data: {"id":"1","choices":[{"index":0,"delta":{"content":"ok"}}]}

data: [DONE]
`

	collected := collect(processStream(io.NopCloser(strings.NewReader(streamData))))
	require.Len(t, collected, 2)
	assert.Equal(t, "ok", collected[0].Delta)
	assert.Equal(t, provider.EventTypeDone, collected[1].Type)
}

func TestProcessStreamTruncatedWithoutDone(t *testing.T) {
	streamData := `data: {"id":"1","choices":[{"index":0,"delta":{"content":"partial"}}]}
`

	collected := collect(processStream(io.NopCloser(strings.NewReader(streamData))))
	require.Len(t, collected, 2)
	assert.Equal(t, provider.EventTypeContent, collected[0].Type)
	assert.Equal(t, provider.EventTypeDone, collected[1].Type)
}

func TestProcessStreamSingleDone(t *testing.T) {
	// finish_reason chunk followed by [DONE]: exactly one done event.
	streamData := `data: {"id":"1","choices":[{"index":0,"delta":{"content":"hi"}}]}

data: {"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]
`

	collected := collect(processStream(io.NopCloser(strings.NewReader(streamData))))

	dones := 0
	for _, ev := range collected {
		if ev.Type == provider.EventTypeDone {
			dones++
		}
	}
	assert.Equal(t, 1, dones)
}

func TestProcessStreamRepeatedFinishReason(t *testing.T) {
	// A nonconforming server repeats finish_reason on consecutive chunks.
	// Only the first one ends the event sequence.
	streamData := `data: {"id":"1","choices":[{"index":0,"delta":{"content":"hi"}}]}

data: {"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: {"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]
`

	collected := collect(processStream(io.NopCloser(strings.NewReader(streamData))))

	dones := 0
	for _, ev := range collected {
		if ev.Type == provider.EventTypeDone {
			dones++
		}
	}
	assert.Equal(t, 1, dones)
	assert.Equal(t, provider.EventTypeDone, collected[len(collected)-1].Type)
}

func TestProcessStreamIgnoresChunksAfterFinish(t *testing.T) {
	// Content and tool-call deltas arriving after the finish marker must
	// not surface: done is terminal.
	streamData := `data: {"id":"1","choices":[{"index":0,"delta":{"content":"hi"}}]}

data: {"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: {"id":"1","choices":[{"index":0,"delta":{"content":"stray"}}]}

data: {"id":"1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_x","function":{"name":"shell","arguments":"{}"}}]}}]}

data: [DONE]
`

	collected := collect(processStream(io.NopCloser(strings.NewReader(streamData))))

	require.NotEmpty(t, collected)
	assert.Equal(t, provider.EventTypeDone, collected[len(collected)-1].Type)
	for _, ev := range collected {
		if ev.Type == provider.EventTypeContent {
			assert.NotEqual(t, "stray", ev.Delta)
		}
		assert.NotEqual(t, provider.EventTypeToolCall, ev.Type)
		assert.NotEqual(t, provider.EventTypeToolCallDelta, ev.Type)
	}
}
