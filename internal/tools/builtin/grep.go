package builtin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"loom/internal/permission"
	"loom/internal/tools"
)

// GrepArgs defines the parameters for the grep tool.
type GrepArgs struct {
	Pattern    string `json:"pattern" jsonschema:"description=Regex pattern to search for. Falls back to a literal match when the regex does not compile,required"`
	Path       string `json:"path" jsonschema:"description=File or directory to search (default: working directory)"`
	Include    string `json:"include" jsonschema:"description=File name glob to restrict the search (e.g. *.go)"`
	IgnoreCase bool   `json:"ignore_case" jsonschema:"description=Case-insensitive search"`
}

// GrepTool searches file contents for a pattern.
type GrepTool struct {
	tools.BaseTool
	workDir string
	// MaxMatches caps the total number of matches returned.
	MaxMatches int
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64
}

// NewGrepTool creates a grep tool rooted at workDir.
func NewGrepTool(workDir string) *GrepTool {
	return &GrepTool{
		BaseTool: tools.BaseTool{
			ToolName:        "grep",
			ToolDescription: "Search for a text or regex pattern in files. Returns matching lines with file paths and line numbers.",
			ToolParameters:  tools.BuildSchema(GrepArgs{}),
		},
		workDir:     workDir,
		MaxMatches:  50,
		MaxFileSize: 1024 * 1024,
	}
}

// Permissions reports the read this invocation performs.
func (t *GrepTool) Permissions(args map[string]any) []permission.Request {
	return []permission.Request{{
		Kind:   permission.KindRead,
		Target: t.searchPath(args),
		Tool:   t.Name(),
	}}
}

func (t *GrepTool) searchPath(args map[string]any) string {
	path, _ := tools.StringArg(args, "path")
	if path == "" {
		return t.workDir
	}
	if !filepath.IsAbs(path) {
		return filepath.Join(t.workDir, path)
	}
	return path
}

type grepMatch struct {
	file    string
	line    int
	content string
}

// Execute runs the search.
func (t *GrepTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	pattern, _ := tools.StringArg(args, "pattern")
	if pattern == "" {
		return tools.Fail("pattern is required"), nil
	}
	include, _ := tools.StringArg(args, "include")
	ignoreCase, _ := tools.BoolArg(args, "ignore_case")
	root := t.searchPath(args)

	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(pattern))
	}

	info, err := os.Stat(root)
	if err != nil {
		return tools.Fail(fmt.Sprintf("path not found: %s", root)), nil
	}

	var files []string
	if info.IsDir() {
		files, err = t.collectFiles(ctx, root, include)
		if err != nil {
			return tools.Fail(fmt.Sprintf("walk %s: %v", root, err)), nil
		}
	} else {
		files = []string{root}
	}

	var matches []grepMatch
	for _, file := range files {
		if len(matches) >= t.MaxMatches {
			break
		}
		fileMatches, err := t.searchFile(file, re)
		if err != nil {
			continue
		}
		matches = append(matches, fileMatches...)
	}

	if len(matches) == 0 {
		return tools.Ok(fmt.Sprintf("No matches for pattern: %s", pattern)), nil
	}

	var b strings.Builder
	shown := 0
	for _, m := range matches {
		if shown >= t.MaxMatches {
			fmt.Fprintf(&b, "... (showing first %d matches)\n", t.MaxMatches)
			break
		}
		rel, err := filepath.Rel(root, m.file)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = m.file
		}
		fmt.Fprintf(&b, "%s:%d: %s\n", rel, m.line, strings.TrimSpace(m.content))
		shown++
	}
	return tools.OkWithMetadata(strings.TrimRight(b.String(), "\n"), map[string]any{"matches": shown}), nil
}

// collectFiles gathers candidate files, skipping hidden and dependency
// directories, oversized files, and obvious binaries.
func (t *GrepTool) collectFiles(ctx context.Context, dir, include string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		if info.IsDir() {
			name := info.Name()
			if strings.HasPrefix(name, ".") && path != dir {
				return filepath.SkipDir
			}
			if name == "node_modules" || name == "vendor" || name == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Size() > t.MaxFileSize {
			return nil
		}
		if include != "" {
			matched, _ := filepath.Match(include, info.Name())
			if !matched {
				return nil
			}
		}
		if isBinaryName(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func (t *GrepTool) searchFile(path string, re *regexp.Regexp) ([]grepMatch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var matches []grepMatch
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if re.MatchString(line) {
			matches = append(matches, grepMatch{file: path, line: lineNum, content: line})
			// Per-file cap keeps one noisy file from crowding out the rest.
			if len(matches) >= 10 {
				break
			}
		}
	}
	return matches, scanner.Err()
}

var binaryExtensions = map[string]bool{
	".exe": true, ".bin": true, ".so": true, ".dylib": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true,
	".woff": true, ".woff2": true, ".ttf": true,
}

func isBinaryName(path string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}
