package provider

import "encoding/json"

// Message represents a chat message.
//
// History is append-only within a running turn: messages may be cleared
// wholesale between conversations but never spliced mid-sequence.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall represents a model-originated request to invoke a named tool.
// Immutable once emitted by an adapter.
type ToolCall struct {
	ID        string `json:"id"`
	Index     int    `json:"index,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // JSON object payload
}

// ArgumentsMap parses the JSON argument payload into a map.
// An empty payload yields an empty map.
func (tc ToolCall) ArgumentsMap() (map[string]any, error) {
	args := make(map[string]any)
	if tc.Arguments == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// Tool represents a tool definition sent to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a function tool.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Usage represents token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatEvent represents a canonical streaming chat event.
type ChatEvent struct {
	Type          string         `json:"type"` // content, tool_call, tool_call_delta, done, error
	Delta         string         `json:"delta,omitempty"`
	ToolCall      *ToolCall      `json:"tool_call,omitempty"`       // fully formed, for tool_call events
	ToolCallDelta *ToolCallDelta `json:"tool_call_delta,omitempty"` // advisory, display only
	Usage         *Usage         `json:"usage,omitempty"`
	FinishReason  string         `json:"finish_reason,omitempty"` // stop, tool_calls, length
	Error         error          `json:"-"`
}

// ToolCallDelta is an incremental tool call fragment surfaced for live
// display. Dispatch must rely on the buffered tool_call event instead.
type ToolCallDelta struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Fragment string `json:"fragment,omitempty"`
}

// Event types.
const (
	EventTypeContent       = "content"
	EventTypeToolCall      = "tool_call"
	EventTypeToolCallDelta = "tool_call_delta"
	EventTypeDone          = "done"
	EventTypeError         = "error"
)

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FinishReason constants.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonLength    = "length"
)

// ContentEvent builds a content event.
func ContentEvent(delta string) ChatEvent {
	return ChatEvent{Type: EventTypeContent, Delta: delta}
}

// ToolCallEvent builds a fully-formed tool call event.
func ToolCallEvent(tc ToolCall) ChatEvent {
	return ChatEvent{Type: EventTypeToolCall, ToolCall: &tc}
}

// DoneEvent builds a done event.
func DoneEvent(reason string, usage *Usage) ChatEvent {
	return ChatEvent{Type: EventTypeDone, FinishReason: reason, Usage: usage}
}

// ErrorEvent builds an error event.
func ErrorEvent(err error) ChatEvent {
	return ChatEvent{Type: EventTypeError, Error: err}
}
