package builtin

import (
	"context"
	"fmt"
	"os"
	"strings"

	"loom/internal/permission"
	"loom/internal/tools"
)

// EditFileArgs defines the parameters for the edit_file tool.
type EditFileArgs struct {
	Path    string `json:"path" jsonschema:"description=The file path to edit,required"`
	OldText string `json:"old_text" jsonschema:"description=The exact text to replace. Must match exactly once including whitespace,required"`
	NewText string `json:"new_text" jsonschema:"description=The replacement text. Empty deletes old_text,required"`
}

// EditFileTool replaces one exact text occurrence in an existing file.
type EditFileTool struct {
	tools.BaseTool
}

// NewEditFileTool creates an edit file tool.
func NewEditFileTool() *EditFileTool {
	return &EditFileTool{
		BaseTool: tools.BaseTool{
			ToolName:        "edit_file",
			ToolDescription: "Edit an existing file by replacing an exact text match. Use this for precise edits instead of rewriting whole files.",
			ToolParameters:  tools.BuildSchema(EditFileArgs{}),
		},
	}
}

// Permissions reports the write this invocation performs.
func (t *EditFileTool) Permissions(args map[string]any) []permission.Request {
	path, _ := tools.StringArg(args, "path")
	return []permission.Request{{
		Kind:   permission.KindWrite,
		Target: path,
		Tool:   t.Name(),
	}}
}

// Execute applies the replacement.
func (t *EditFileTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	path, _ := tools.StringArg(args, "path")
	if path == "" {
		return tools.Fail("path is required"), nil
	}
	oldText, _ := tools.StringArg(args, "old_text")
	if oldText == "" {
		return tools.Fail("old_text is required"), nil
	}
	newText, _ := tools.StringArg(args, "new_text")

	select {
	case <-ctx.Done():
		return tools.Result{}, ctx.Err()
	default:
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.Fail(fmt.Sprintf("file not found: %s", path)), nil
		}
		return tools.Fail(fmt.Sprintf("read %s: %v", path, err)), nil
	}
	content := string(data)

	switch count := strings.Count(content, oldText); {
	case count == 0:
		preview := content
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return tools.Fail(fmt.Sprintf(
			"old_text not found. File starts with:\n%s\n\nMake sure old_text matches exactly, including whitespace.",
			preview,
		)), nil
	case count > 1:
		return tools.Fail(fmt.Sprintf(
			"old_text matches %d locations. Add surrounding context to make the match unique.",
			count,
		)), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return tools.Fail(fmt.Sprintf("stat %s: %v", path, err)), nil
	}

	updated := strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(path, []byte(updated), info.Mode()); err != nil {
		return tools.Fail(fmt.Sprintf("write %s: %v", path, err)), nil
	}

	return tools.OkWithMetadata(
		fmt.Sprintf("Edited %s: replaced %d characters with %d characters", path, len(oldText), len(newText)),
		map[string]any{
			"path":       path,
			"old_length": len(oldText),
			"new_length": len(newText),
		},
	), nil
}
