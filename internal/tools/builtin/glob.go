package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"loom/internal/permission"
	"loom/internal/tools"
)

// GlobArgs defines the parameters for the glob tool.
type GlobArgs struct {
	Pattern string `json:"pattern" jsonschema:"description=Glob pattern to match (e.g. **/*.go or src/*.js),required"`
	Path    string `json:"path" jsonschema:"description=Base directory to search from (default: working directory)"`
}

// GlobTool finds files matching a glob pattern.
type GlobTool struct {
	tools.BaseTool
	workDir string
	// MaxResults caps how many paths are returned.
	MaxResults int
}

// NewGlobTool creates a glob tool rooted at workDir.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{
		BaseTool: tools.BaseTool{
			ToolName:        "glob",
			ToolDescription: "Find files matching a glob pattern. Supports ** for recursive matching. Returns matching paths relative to the search base.",
			ToolParameters:  tools.BuildSchema(GlobArgs{}),
		},
		workDir:    workDir,
		MaxResults: 100,
	}
}

// Permissions reports the read this invocation performs.
func (t *GlobTool) Permissions(args map[string]any) []permission.Request {
	return []permission.Request{{
		Kind:   permission.KindRead,
		Target: t.basePath(args),
		Tool:   t.Name(),
	}}
}

func (t *GlobTool) basePath(args map[string]any) string {
	base, _ := tools.StringArg(args, "path")
	if base == "" {
		return t.workDir
	}
	if !filepath.IsAbs(base) {
		return filepath.Join(t.workDir, base)
	}
	return base
}

// Execute finds matching files.
func (t *GlobTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	pattern, _ := tools.StringArg(args, "pattern")
	if pattern == "" {
		return tools.Fail("pattern is required"), nil
	}
	base := t.basePath(args)

	select {
	case <-ctx.Done():
		return tools.Result{}, ctx.Err()
	default:
	}

	var matches []string
	var err error
	if strings.Contains(pattern, "**") {
		matches, err = t.recursiveGlob(ctx, base, pattern)
	} else {
		matches, err = filepath.Glob(filepath.Join(base, pattern))
	}
	if err != nil {
		return tools.Fail(fmt.Sprintf("glob %s: %v", pattern, err)), nil
	}

	rel := make([]string, 0, len(matches))
	for _, m := range matches {
		r, err := filepath.Rel(base, m)
		if err != nil {
			r = m
		}
		rel = append(rel, r)
	}
	sort.Strings(rel)

	if len(rel) == 0 {
		return tools.Ok(fmt.Sprintf("No files matching pattern: %s", pattern)), nil
	}

	truncated := false
	if len(rel) > t.MaxResults {
		rel = rel[:t.MaxResults]
		truncated = true
	}
	out := strings.Join(rel, "\n")
	if truncated {
		out += fmt.Sprintf("\n... (truncated, showing first %d results)", t.MaxResults)
	}
	return tools.OkWithMetadata(out, map[string]any{"count": len(rel)}), nil
}

// recursiveGlob handles ** patterns by walking the tree and matching the
// suffix against file names.
func (t *GlobTool) recursiveGlob(ctx context.Context, base, pattern string) ([]string, error) {
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := ""
	if len(parts) > 1 {
		suffix = strings.TrimPrefix(parts[1], "/")
	}

	var matches []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != base {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		if prefix != "" && !strings.HasPrefix(relPath, prefix) {
			return nil
		}
		if suffix != "" {
			matched, _ := filepath.Match(suffix, filepath.Base(path))
			if !matched {
				return nil
			}
		}

		matches = append(matches, path)
		if len(matches) > t.MaxResults*2 {
			return filepath.SkipAll
		}
		return nil
	})
	if err == filepath.SkipAll {
		err = nil
	}
	return matches, err
}
