// Package tools defines the capability interface, the registry the
// conversation loop dispatches against, and the schema helpers capability
// authors use to describe their arguments.
package tools

import (
	"context"

	"loom/internal/permission"
)

// Tool is one capability the model can invoke.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns the JSON Schema for the tool's input parameters.
	Parameters() map[string]any

	// Execute runs the tool. Argument problems and operational failures
	// come back as an error Result, not a Go error: the loop reports them
	// to the model, which can correct itself. A non-nil error means the
	// tool machinery itself failed.
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Gated is implemented by tools whose execution has side effects. The
// dispatcher collects the requests and refuses execution unless the
// permission gate grants every one of them. Tools that do not implement
// Gated are treated as side-effect-free.
type Gated interface {
	// Permissions derives the gate requests for one invocation.
	Permissions(args map[string]any) []permission.Request
}

// Result is the outcome of one tool execution.
type Result struct {
	// Content is the main output, typically text.
	Content string `json:"content"`

	// IsError marks the result as an error report for the model.
	IsError bool `json:"is_error"`

	// Metadata carries optional structured details about the execution.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Ok creates a success result.
func Ok(content string) Result {
	return Result{Content: content}
}

// OkWithMetadata creates a success result with metadata.
func OkWithMetadata(content string, metadata map[string]any) Result {
	return Result{Content: content, Metadata: metadata}
}

// Fail creates an error result.
func Fail(message string) Result {
	return Result{Content: message, IsError: true}
}

// String returns a display form of the result.
func (r Result) String() string {
	if r.IsError {
		return "[error] " + r.Content
	}
	return r.Content
}

// BaseTool provides the descriptive half of the Tool interface. Embed it
// and implement Execute.
type BaseTool struct {
	ToolName        string
	ToolDescription string
	ToolParameters  map[string]any
}

// Name returns the tool name.
func (t *BaseTool) Name() string { return t.ToolName }

// Description returns the tool description.
func (t *BaseTool) Description() string { return t.ToolDescription }

// Parameters returns the tool parameter schema.
func (t *BaseTool) Parameters() map[string]any {
	if t.ToolParameters == nil {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return t.ToolParameters
}

// StringArg extracts a string argument.
func StringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

// IntArg extracts an integer argument. JSON numbers arrive as float64.
func IntArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// BoolArg extracts a boolean argument.
func BoolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key].(bool)
	return v, ok
}
