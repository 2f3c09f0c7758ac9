package builtin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"loom/internal/permission"
	"loom/internal/tools"
)

// ReadFileArgs defines the parameters for the read_file tool.
type ReadFileArgs struct {
	Path      string `json:"path" jsonschema:"description=The file path to read,required"`
	StartLine int    `json:"start_line" jsonschema:"description=Start line number (1-based). Reads from the beginning when omitted"`
	EndLine   int    `json:"end_line" jsonschema:"description=End line number (1-based inclusive). Reads to the end when omitted"`
}

// ReadFileTool reads files from disk.
type ReadFileTool struct {
	tools.BaseTool
	// MaxFileSize caps how many bytes of content one call returns.
	MaxFileSize int64
}

// NewReadFileTool creates a read file tool.
func NewReadFileTool() *ReadFileTool {
	return &ReadFileTool{
		BaseTool: tools.BaseTool{
			ToolName:        "read_file",
			ToolDescription: "Read the contents of a file. Supports line ranges for large files.",
			ToolParameters:  tools.BuildSchema(ReadFileArgs{}),
		},
		MaxFileSize: 10 * 1024 * 1024,
	}
}

// Permissions reports the read this invocation performs.
func (t *ReadFileTool) Permissions(args map[string]any) []permission.Request {
	path, _ := tools.StringArg(args, "path")
	return []permission.Request{{
		Kind:   permission.KindRead,
		Target: path,
		Tool:   t.Name(),
	}}
}

// Execute reads the file.
func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	path, _ := tools.StringArg(args, "path")
	if path == "" {
		return tools.Fail("path is required"), nil
	}

	startLine, _ := tools.IntArg(args, "start_line")
	endLine, _ := tools.IntArg(args, "end_line")

	select {
	case <-ctx.Done():
		return tools.Result{}, ctx.Err()
	default:
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.Fail(fmt.Sprintf("file not found: %s", path)), nil
		}
		return tools.Fail(fmt.Sprintf("stat %s: %v", path, err)), nil
	}
	if info.IsDir() {
		return tools.Fail(fmt.Sprintf("path is a directory: %s", path)), nil
	}

	var warning string
	if info.Size() > t.MaxFileSize {
		warning = fmt.Sprintf("Warning: file is large (%d bytes), consider a line range.\n\n", info.Size())
	}

	if startLine > 0 || endLine > 0 {
		return t.readLines(path, startLine, endLine, warning)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tools.Fail(fmt.Sprintf("read %s: %v", path, err)), nil
	}

	content := string(data)
	if int64(len(content)) > t.MaxFileSize {
		content = content[:t.MaxFileSize] + "\n... (content truncated)"
	}

	return tools.Ok(warning + content), nil
}

// readLines returns the requested line range.
func (t *ReadFileTool) readLines(path string, startLine, endLine int, warning string) (tools.Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return tools.Fail(fmt.Sprintf("open %s: %v", path, err)), nil
	}
	defer file.Close()

	var b strings.Builder
	b.WriteString(warning)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	lineNum := 0
	linesRead := 0
	for scanner.Scan() {
		lineNum++
		if startLine > 0 && lineNum < startLine {
			continue
		}
		if endLine > 0 && lineNum > endLine {
			break
		}
		if linesRead > 0 {
			b.WriteString("\n")
		}
		b.WriteString(scanner.Text())
		linesRead++

		if int64(b.Len()) > t.MaxFileSize {
			b.WriteString("\n... (content truncated)")
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return tools.Fail(fmt.Sprintf("read %s: %v", path, err)), nil
	}

	if linesRead == 0 {
		if startLine > lineNum {
			return tools.Fail(fmt.Sprintf("start_line %d exceeds file length (%d lines)", startLine, lineNum)), nil
		}
		return tools.Ok("(empty result)"), nil
	}

	return tools.OkWithMetadata(b.String(), map[string]any{
		"lines_read": linesRead,
		"start_line": startLine,
		"end_line":   endLine,
	}), nil
}
