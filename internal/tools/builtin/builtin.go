// Package builtin provides the built-in capabilities: filesystem access,
// content search, subprocess execution and outbound HTTP. Every tool with
// side effects declares its gate requests via tools.Gated.
package builtin

import (
	"loom/internal/tools"
)

// RegisterAll registers the built-in tools. workDir is the base directory
// the search tools resolve relative paths against.
func RegisterAll(r *tools.Registry, workDir string) error {
	builtins := []tools.Tool{
		NewReadFileTool(),
		NewWriteFileTool(),
		NewEditFileTool(),
		NewListDirTool(),
		NewGlobTool(workDir),
		NewGrepTool(workDir),
		NewShellTool(),
		NewFetchTool(),
	}
	for _, tool := range builtins {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// MustRegisterAll registers the built-in tools and panics on error.
func MustRegisterAll(r *tools.Registry, workDir string) {
	if err := RegisterAll(r, workDir); err != nil {
		panic(err)
	}
}

// NewRegistry creates a registry preloaded with the built-in tools.
func NewRegistry(workDir string) *tools.Registry {
	r := tools.NewRegistry()
	MustRegisterAll(r, workDir)
	return r
}
