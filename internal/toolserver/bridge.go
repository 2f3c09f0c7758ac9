package toolserver

import (
	"context"
	"fmt"
	"sync"

	"loom/internal/permission"
	"loom/internal/tools"
)

// Bridge registers remote tools into the registry under namespaced
// names. Registration is all-or-nothing per server: a name collision
// rolls back the tools already added for that server.
type Bridge struct {
	registry *tools.Registry

	mu       sync.RWMutex
	adapters map[string][]*RemoteTool
}

// NewBridge creates a bridge over the given registry.
func NewBridge(registry *tools.Registry) *Bridge {
	return &Bridge{
		registry: registry,
		adapters: make(map[string][]*RemoteTool),
	}
}

// Connect fetches the server manifest and registers its tools.
func (b *Bridge) Connect(ctx context.Context, client *Client) error {
	manifest, err := client.FetchManifest(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.adapters[client.Name()]; exists {
		return fmt.Errorf("tool server %q already connected", client.Name())
	}

	adapters := make([]*RemoteTool, 0, len(manifest.Tools))
	for _, desc := range manifest.Tools {
		adapter := newRemoteTool(client, desc)
		if err := b.registry.Register(adapter); err != nil {
			for _, a := range adapters {
				_ = b.registry.Unregister(a.Name())
			}
			return fmt.Errorf("register %s: %w", adapter.Name(), err)
		}
		adapters = append(adapters, adapter)
	}

	b.adapters[client.Name()] = adapters
	return nil
}

// Disconnect removes a server's tools from the registry.
func (b *Bridge) Disconnect(serverName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	adapters, exists := b.adapters[serverName]
	if !exists {
		return fmt.Errorf("tool server %q not connected", serverName)
	}
	for _, a := range adapters {
		_ = b.registry.Unregister(a.Name())
	}
	delete(b.adapters, serverName)
	return nil
}

// Servers returns the names of connected servers.
func (b *Bridge) Servers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.adapters))
	for name := range b.adapters {
		names = append(names, name)
	}
	return names
}

// RemoteTool adapts one remote descriptor to the Tool interface. The
// registered name is serverName_toolName so remote tools can never
// shadow built-ins.
type RemoteTool struct {
	client     *Client
	original   string
	name       string
	desc       string
	parameters map[string]any
}

func newRemoteTool(client *Client, d Descriptor) *RemoteTool {
	return &RemoteTool{
		client:     client,
		original:   d.Name,
		name:       fmt.Sprintf("%s_%s", client.Name(), d.Name),
		desc:       d.Description,
		parameters: ConvertSchema(d.InputSchema),
	}
}

// Name returns the namespaced tool name.
func (t *RemoteTool) Name() string { return t.name }

// OriginalName returns the server-side tool name.
func (t *RemoteTool) OriginalName() string { return t.original }

// Description returns the tool description.
func (t *RemoteTool) Description() string { return t.desc }

// Parameters returns the converted schema.
func (t *RemoteTool) Parameters() map[string]any { return t.parameters }

// Permissions reports the network access a remote invocation performs.
// The gate keys on the server endpoint, so approving one tool of a
// server covers its siblings.
func (t *RemoteTool) Permissions(args map[string]any) []permission.Request {
	return []permission.Request{{
		Kind:   permission.KindFetch,
		Target: t.client.Endpoint(),
		Tool:   t.name,
		Detail: fmt.Sprintf("remote tool %s on server %s", t.original, t.client.Name()),
	}}
}

// Execute calls the remote tool. Server-reported failures come back as
// error results so the model can react.
func (t *RemoteTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	resp, err := t.client.CallTool(ctx, t.original, args)
	if err != nil {
		return tools.Fail(err.Error()), nil
	}
	if resp.IsError {
		msg := resp.Content
		if msg == "" {
			msg = resp.Error
		}
		if msg == "" {
			msg = "remote tool failed"
		}
		return tools.Fail(msg), nil
	}
	return tools.Ok(resp.Content), nil
}
