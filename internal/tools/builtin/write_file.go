package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"loom/internal/permission"
	"loom/internal/tools"
)

// WriteFileArgs defines the parameters for the write_file tool.
type WriteFileArgs struct {
	Path    string `json:"path" jsonschema:"description=The file path to write,required"`
	Content string `json:"content" jsonschema:"description=The content to write,required"`
	Append  bool   `json:"append" jsonschema:"description=Append to the file instead of overwriting"`
}

// WriteFileTool writes files to disk, creating parent directories as
// needed.
type WriteFileTool struct {
	tools.BaseTool
}

// NewWriteFileTool creates a write file tool.
func NewWriteFileTool() *WriteFileTool {
	return &WriteFileTool{
		BaseTool: tools.BaseTool{
			ToolName:        "write_file",
			ToolDescription: "Write content to a file. Creates the file and any parent directories if they do not exist.",
			ToolParameters:  tools.BuildSchema(WriteFileArgs{}),
		},
	}
}

// Permissions reports the write this invocation performs.
func (t *WriteFileTool) Permissions(args map[string]any) []permission.Request {
	path, _ := tools.StringArg(args, "path")
	return []permission.Request{{
		Kind:   permission.KindWrite,
		Target: path,
		Tool:   t.Name(),
	}}
}

// Execute writes the file.
func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	path, _ := tools.StringArg(args, "path")
	if path == "" {
		return tools.Fail("path is required"), nil
	}

	// Empty content is a valid write.
	content, _ := tools.StringArg(args, "content")
	appendMode, _ := tools.BoolArg(args, "append")

	select {
	case <-ctx.Done():
		return tools.Result{}, ctx.Err()
	default:
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return tools.Fail(fmt.Sprintf("create directory %s: %v", dir, err)), nil
		}
	}

	if appendMode {
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return tools.Fail(fmt.Sprintf("open %s for append: %v", path, err)), nil
		}
		defer file.Close()

		n, err := file.WriteString(content)
		if err != nil {
			return tools.Fail(fmt.Sprintf("append to %s: %v", path, err)), nil
		}
		return tools.OkWithMetadata(
			fmt.Sprintf("Appended %d bytes to %s", n, path),
			map[string]any{"path": path, "bytes": n},
		), nil
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return tools.Fail(fmt.Sprintf("write %s: %v", path, err)), nil
	}
	return tools.OkWithMetadata(
		fmt.Sprintf("Wrote %d bytes to %s", len(content), path),
		map[string]any{"path": path, "bytes": len(content)},
	), nil
}
