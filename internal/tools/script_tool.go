package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loom/internal/jsvm"
)

// ScriptDefinition declares a user-defined JavaScript tool, typically
// loaded from configuration. The script sees its arguments as the global
// "args" object; its completion value becomes the tool output.
type ScriptDefinition struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters" mapstructure:"parameters"`
	Source      string         `json:"source" yaml:"source" mapstructure:"source"`
	Timeout     time.Duration  `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// ScriptTool runs a user-defined script in the embedded interpreter.
// Scripts are pure computation with no host access, so the tool is not
// Gated.
type ScriptTool struct {
	def     ScriptDefinition
	runtime *jsvm.Runtime
}

// NewScriptTool creates a tool from a definition.
func NewScriptTool(def ScriptDefinition) (*ScriptTool, error) {
	if def.Name == "" {
		return nil, NewInvalidArgsError("script", "script tool requires a name", nil)
	}
	if def.Source == "" {
		return nil, NewInvalidArgsError(def.Name, "script tool requires source", nil)
	}
	return &ScriptTool{
		def:     def,
		runtime: jsvm.New(def.Timeout),
	}, nil
}

// Name returns the tool name.
func (t *ScriptTool) Name() string { return t.def.Name }

// Description returns the tool description.
func (t *ScriptTool) Description() string { return t.def.Description }

// Parameters returns the declared parameter schema.
func (t *ScriptTool) Parameters() map[string]any {
	if t.def.Parameters == nil {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return t.def.Parameters
}

// Execute runs the script with the invocation arguments bound.
func (t *ScriptTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	if args == nil {
		args = map[string]any{}
	}

	res, err := t.runtime.Execute(ctx, t.def.Name, t.def.Source, map[string]any{
		"args": args,
	})
	if err != nil {
		return Fail(fmt.Sprintf("script error: %v", err)), nil
	}

	content := renderScriptValue(res.Value)
	if len(res.Logs) == 0 {
		return Ok(content), nil
	}
	return OkWithMetadata(content, map[string]any{"logs": res.Logs}), nil
}

// renderScriptValue turns a script completion value into tool output.
// Composite values render as JSON so the model gets structure back.
func renderScriptValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
