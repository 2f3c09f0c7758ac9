package runner

import (
	"time"

	"loom/internal/provider"
)

// EventType tags a loop event.
type EventType string

const (
	// EventContent is streamed assistant text.
	EventContent EventType = "content"

	// EventToolCall announces a proposed tool call before dispatch.
	EventToolCall EventType = "tool_call"

	// EventToolCallDelta is an advisory argument fragment for live
	// display. Dispatch never depends on it.
	EventToolCallDelta EventType = "tool_call_delta"

	// EventToolResult carries the outcome of one dispatch.
	EventToolResult EventType = "tool_result"

	// EventDone marks successful completion of the run.
	EventDone EventType = "done"

	// EventError marks terminal failure. Emitted exactly once per run.
	EventError EventType = "error"
)

// Event is one observation surfaced to the caller during a run.
type Event struct {
	Type EventType `json:"type"`

	Content       string                  `json:"content,omitempty"`
	ToolCall      *provider.ToolCall      `json:"tool_call,omitempty"`
	ToolCallDelta *provider.ToolCallDelta `json:"tool_call_delta,omitempty"`
	ToolResult    *ToolResultEvent        `json:"tool_result,omitempty"`
	Usage         *provider.Usage         `json:"usage,omitempty"`

	// Iteration is the loop turn this event belongs to, starting at 1.
	Iteration int `json:"iteration,omitempty"`

	Err error `json:"-"`
}

// ToolResultEvent reports one completed dispatch.
type ToolResultEvent struct {
	CallID   string        `json:"call_id"`
	Name     string        `json:"name"`
	Content  string        `json:"content"`
	IsError  bool          `json:"is_error"`
	Duration time.Duration `json:"duration"`
}

// Callback receives loop events. A nil callback is valid; events are
// then dropped.
type Callback func(Event)
