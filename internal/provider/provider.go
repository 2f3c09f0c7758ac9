// Package provider defines the LLM provider interface and the canonical
// stream event model that all vendor adapters normalize into.
package provider

import "context"

// Provider defines the interface for LLM providers.
//
// Adapters are interchangeable: the orchestrator only ever consumes the
// canonical ChatEvent stream, never vendor wire types.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Models returns the list of supported models.
	Models(ctx context.Context) ([]string, error)

	// Chat streams a chat request as canonical events.
	//
	// Stream guarantees:
	//   - concatenating Delta payloads of content events in emission order
	//     reconstructs the full assistant utterance;
	//   - each distinct tool call is emitted exactly once as a fully-formed
	//     tool_call event, even when the wire protocol delivers arguments
	//     incrementally (fragments are buffered adapter-locally);
	//   - tool_call_delta events are advisory, for live display only, and
	//     must not be used for dispatch;
	//   - the stream ends with exactly one done or error event, never both.
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
}

// NativeToolCaller reports which structural variant a provider uses.
// Structured adapters return true; prompt-based adapters return false and
// recover tool calls from free text instead of native wire framing.
type NativeToolCaller interface {
	NativeToolCalls() bool
}
