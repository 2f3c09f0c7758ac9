package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"loom/internal/permission"
	"loom/internal/tools"
)

// ListDirArgs defines the parameters for the list_dir tool.
type ListDirArgs struct {
	Path      string `json:"path" jsonschema:"description=The directory to list,required"`
	Recursive bool   `json:"recursive" jsonschema:"description=List entries recursively"`
	Pattern   string `json:"pattern" jsonschema:"description=Glob pattern applied to file names (e.g. *.go)"`
	MaxDepth  int    `json:"max_depth" jsonschema:"description=Maximum depth for recursive listing (default: 10)"`
}

// ListDirTool lists directory contents.
type ListDirTool struct {
	tools.BaseTool
	// MaxEntries caps the number of entries returned.
	MaxEntries int
}

// NewListDirTool creates a list directory tool.
func NewListDirTool() *ListDirTool {
	return &ListDirTool{
		BaseTool: tools.BaseTool{
			ToolName:        "list_dir",
			ToolDescription: "List the contents of a directory. Returns names, types and sizes.",
			ToolParameters:  tools.BuildSchema(ListDirArgs{}),
		},
		MaxEntries: 1000,
	}
}

// Permissions reports the read this invocation performs.
func (t *ListDirTool) Permissions(args map[string]any) []permission.Request {
	path, _ := tools.StringArg(args, "path")
	return []permission.Request{{
		Kind:   permission.KindRead,
		Target: path,
		Tool:   t.Name(),
	}}
}

// Execute lists the directory.
func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	path, _ := tools.StringArg(args, "path")
	if path == "" {
		return tools.Fail("path is required"), nil
	}
	recursive, _ := tools.BoolArg(args, "recursive")
	pattern, _ := tools.StringArg(args, "pattern")
	maxDepth, ok := tools.IntArg(args, "max_depth")
	if !ok || maxDepth <= 0 {
		maxDepth = 10
	}

	select {
	case <-ctx.Done():
		return tools.Result{}, ctx.Err()
	default:
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.Fail(fmt.Sprintf("directory not found: %s", path)), nil
		}
		return tools.Fail(fmt.Sprintf("stat %s: %v", path, err)), nil
	}
	if !info.IsDir() {
		return tools.Fail(fmt.Sprintf("path is not a directory: %s", path)), nil
	}

	if recursive {
		return t.listRecursive(ctx, path, pattern, maxDepth)
	}
	return t.listFlat(path, pattern)
}

func (t *ListDirTool) listFlat(path, pattern string) (tools.Result, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return tools.Fail(fmt.Sprintf("read directory %s: %v", path, err)), nil
	}

	var b strings.Builder
	count := 0
	for _, entry := range entries {
		if count >= t.MaxEntries {
			fmt.Fprintf(&b, "\n... (%d more entries)", len(entries)-count)
			break
		}

		name := entry.Name()
		if pattern != "" {
			matched, err := filepath.Match(pattern, name)
			if err != nil {
				return tools.Fail(fmt.Sprintf("invalid pattern: %v", err)), nil
			}
			if !matched {
				continue
			}
		}

		if count > 0 {
			b.WriteString("\n")
		}
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(&b, "%s [stat error]", name)
			count++
			continue
		}

		typeStr := "file"
		switch {
		case entry.IsDir():
			typeStr = "dir"
			name += "/"
		case info.Mode()&os.ModeSymlink != 0:
			typeStr = "link"
		}
		fmt.Fprintf(&b, "%s  %s  %d bytes", name, typeStr, info.Size())
		count++
	}

	if count == 0 {
		if pattern != "" {
			return tools.Ok(fmt.Sprintf("No entries matching %q in %s", pattern, path)), nil
		}
		return tools.Ok(fmt.Sprintf("Directory is empty: %s", path)), nil
	}
	return tools.OkWithMetadata(b.String(), map[string]any{"count": count}), nil
}

func (t *ListDirTool) listRecursive(ctx context.Context, root, pattern string, maxDepth int) (tools.Result, error) {
	var b strings.Builder
	count := 0
	baseDepth := strings.Count(root, string(os.PathSeparator))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		if count >= t.MaxEntries {
			return filepath.SkipAll
		}

		depth := strings.Count(path, string(os.PathSeparator)) - baseDepth
		if depth > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		if pattern != "" && !d.IsDir() {
			matched, err := filepath.Match(pattern, d.Name())
			if err != nil || !matched {
				return nil
			}
		}

		if count > 0 {
			b.WriteString("\n")
		}
		relPath, _ := filepath.Rel(root, path)
		if d.IsDir() {
			relPath += "/"
		}
		info, err := d.Info()
		if err != nil {
			fmt.Fprintf(&b, "%s [stat error]", relPath)
			count++
			return nil
		}

		typeStr := "file"
		switch {
		case d.IsDir():
			typeStr = "dir"
		case info.Mode()&os.ModeSymlink != 0:
			typeStr = "link"
		}
		fmt.Fprintf(&b, "%s  %s  %d bytes", relPath, typeStr, info.Size())
		count++
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return tools.Fail(fmt.Sprintf("walk %s: %v", root, err)), nil
	}

	if count == 0 {
		return tools.Ok(fmt.Sprintf("No entries found in %s", root)), nil
	}
	if count >= t.MaxEntries {
		b.WriteString("\n... (more entries truncated)")
	}
	return tools.OkWithMetadata(b.String(), map[string]any{"count": count}), nil
}
