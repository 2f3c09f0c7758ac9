package provider

import "errors"

// Sentinel errors for the provider package.
var (
	// ErrUnknownProvider is returned when no factory is registered for an
	// identifier.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNotConfigured is returned when a provider is built without the
	// configuration it requires (endpoint, credentials).
	ErrNotConfigured = errors.New("provider not configured")

	// ErrMalformedToolCall is returned by structured adapters when a native
	// tool-call payload cannot be parsed. This is a provider fault and
	// terminates the stream with an error event.
	ErrMalformedToolCall = errors.New("malformed tool call payload")
)
