package tools

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"loom/internal/provider"
)

// Registry holds the capabilities available to a session. Safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names are unique; re-registering is an error.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return NewInvalidArgsError("registry", "tool cannot be nil", nil)
	}
	name := tool.Name()
	if name == "" {
		return NewInvalidArgsError("registry", "tool name cannot be empty", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return NewAlreadyExistsError(name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister adds a tool and panics on error. For built-in registration
// at startup.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs a tool by name.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	tool, ok := r.Get(name)
	if !ok {
		return Result{}, NewNotFoundError(name)
	}
	return tool.Execute(ctx, args)
}

// Unregister removes a tool.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return NewNotFoundError(name)
	}
	delete(r.tools, name)
	return nil
}

// ToProviderTools renders the registry as tool definitions for a chat
// request.
func (r *Registry) ToProviderTools() ([]provider.Tool, error) {
	defs := r.List()

	out := make([]provider.Tool, 0, len(defs))
	for _, tool := range defs {
		params, err := json.Marshal(tool.Parameters())
		if err != nil {
			return nil, NewInvalidArgsError(tool.Name(), "failed to marshal parameters", err)
		}
		out = append(out, provider.Tool{
			Type: "function",
			Function: provider.ToolFunction{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  params,
			},
		})
	}
	return out, nil
}

// Clone creates a shallow copy of the registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := NewRegistry()
	for name, tool := range r.tools {
		clone.tools[name] = tool
	}
	return clone
}
