package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptToolExecute(t *testing.T) {
	tool, err := NewScriptTool(ScriptDefinition{
		Name:        "word_count",
		Description: "Count words in text",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
		},
		Source: `args.text.split(/\s+/).filter(function(w) { return w.length > 0; }).length`,
	})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), map[string]any{"text": "one two three"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "3", res.Content)
}

func TestScriptToolCompositeResult(t *testing.T) {
	tool, err := NewScriptTool(ScriptDefinition{
		Name:   "pair",
		Source: `({a: 1, b: "two"})`,
	})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":"two"}`, res.Content)
}

func TestScriptToolCapturesLogs(t *testing.T) {
	tool, err := NewScriptTool(ScriptDefinition{
		Name:   "chatty",
		Source: `console.log("step 1"); "ok"`,
	})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content)
	assert.Equal(t, []string{"step 1"}, res.Metadata["logs"])
}

func TestScriptToolErrorsAreResults(t *testing.T) {
	tool, err := NewScriptTool(ScriptDefinition{
		Name:   "boom",
		Source: `throw new Error("bad input")`,
	})
	require.NoError(t, err)

	res, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err, "script failures report to the model, not the loop")
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "bad input")
}

func TestScriptToolValidation(t *testing.T) {
	_, err := NewScriptTool(ScriptDefinition{Source: "1"})
	assert.ErrorIs(t, err, ErrInvalidArgs)

	_, err = NewScriptTool(ScriptDefinition{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidArgs)
}
