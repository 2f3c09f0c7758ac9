package toolserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/permission"
	"loom/internal/tools"
)

type stubTool struct {
	name string
}

func (s *stubTool) Name() string                { return s.name }
func (s *stubTool) Description() string         { return "stub" }
func (s *stubTool) Parameters() map[string]any  { return map[string]any{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	return tools.Ok(""), nil
}

func newTestServer(t *testing.T, manifest Manifest, results map[string]callResponse) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(manifest)
	})
	mux.HandleFunc("/tools/call", func(w http.ResponseWriter, r *http.Request) {
		var req callRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		res, ok := results[req.Name]
		if !ok {
			http.Error(w, "unknown tool", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchManifest(t *testing.T) {
	srv := newTestServer(t, Manifest{
		Server:   "search",
		Protocol: "1.2.0",
		Tools: []Descriptor{
			{Name: "lookup", Description: "Look things up"},
		},
	}, nil)

	client, err := NewClient(Config{Name: "search", Endpoint: srv.URL})
	require.NoError(t, err)

	manifest, err := client.FetchManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", manifest.Protocol)
	require.Len(t, manifest.Tools, 1)
	assert.Equal(t, "lookup", manifest.Tools[0].Name)
}

func TestFetchManifestProtocolRejected(t *testing.T) {
	for _, protocol := range []string{"2.0.0", "0.9.0", "not-a-version", ""} {
		srv := newTestServer(t, Manifest{Server: "s", Protocol: protocol}, nil)

		client, err := NewClient(Config{Name: "s", Endpoint: srv.URL})
		require.NoError(t, err)

		_, err = client.FetchManifest(context.Background())
		assert.ErrorIs(t, err, ErrProtocolIncompatible, "protocol %q", protocol)
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "http://x"})
	assert.Error(t, err)

	_, err = NewClient(Config{Name: "x"})
	assert.Error(t, err)
}

func TestNormalizeTypeTag(t *testing.T) {
	cases := map[string]string{
		"str":     "string",
		"String":  "string",
		"int":     "integer",
		"float":   "number",
		"double":  "number",
		"bool":    "boolean",
		"list":    "array",
		"dict":    "object",
		"map":     "object",
		"unicorn": "string",
		"":        "string",
	}
	for tag, want := range cases {
		assert.Equal(t, want, normalizeTypeTag(tag), tag)
	}
}

func TestConvertSchema(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "str",
				"description": "Search query",
			},
			"limit": map[string]any{
				"type":    "int",
				"default": float64(10),
			},
			"tags": map[string]any{
				"type":  "list",
				"items": map[string]any{"type": "str"},
			},
			"options": map[string]any{
				"type": "dict",
				"properties": map[string]any{
					"deep": map[string]any{"type": "bool"},
				},
			},
			"mode": map[string]any{
				"type": "str",
				"enum": []any{"fast", "slow"},
			},
		},
		"required": []any{"query"},
	}

	out := ConvertSchema(schema)
	assert.Equal(t, "object", out["type"])
	assert.Equal(t, []string{"query"}, out["required"])

	props := out["properties"].(map[string]any)

	query := props["query"].(map[string]any)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "Search query", query["description"])

	limit := props["limit"].(map[string]any)
	assert.Equal(t, "integer", limit["type"])
	assert.Equal(t, float64(10), limit["default"])

	tags := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, map[string]any{"type": "string"}, tags["items"])

	options := props["options"].(map[string]any)
	assert.Equal(t, "object", options["type"])
	deep := options["properties"].(map[string]any)["deep"].(map[string]any)
	assert.Equal(t, "boolean", deep["type"])

	mode := props["mode"].(map[string]any)
	assert.Equal(t, []any{"fast", "slow"}, mode["enum"])
}

func TestConvertSchemaEmpty(t *testing.T) {
	out := ConvertSchema(nil)
	assert.Equal(t, "object", out["type"])
	assert.Empty(t, out["properties"])
	assert.NotContains(t, out, "required")
}

func TestBridgeConnectNamespacesTools(t *testing.T) {
	srv := newTestServer(t, Manifest{
		Server:   "search",
		Protocol: "1.0.0",
		Tools: []Descriptor{
			{Name: "lookup", Description: "Look things up", InputSchema: map[string]any{
				"properties": map[string]any{
					"q": map[string]any{"type": "str"},
				},
				"required": []any{"q"},
			}},
		},
	}, map[string]callResponse{
		"lookup": {Content: "found it"},
	})

	client, err := NewClient(Config{Name: "search", Endpoint: srv.URL})
	require.NoError(t, err)

	registry := tools.NewRegistry()
	bridge := NewBridge(registry)
	require.NoError(t, bridge.Connect(context.Background(), client))

	assert.True(t, registry.Has("search_lookup"))
	assert.False(t, registry.Has("lookup"))

	tool, ok := registry.Get("search_lookup")
	require.True(t, ok)

	res, err := tool.Execute(context.Background(), map[string]any{"q": "x"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "found it", res.Content)
}

func TestBridgeRollbackOnCollision(t *testing.T) {
	srv := newTestServer(t, Manifest{
		Server:   "dup",
		Protocol: "1.0.0",
		Tools: []Descriptor{
			{Name: "a"},
			{Name: "b"},
		},
	}, nil)

	client, err := NewClient(Config{Name: "dup", Endpoint: srv.URL})
	require.NoError(t, err)

	registry := tools.NewRegistry()
	// Occupy the name the second descriptor will want.
	require.NoError(t, registry.Register(&stubTool{name: "dup_b"}))

	bridge := NewBridge(registry)
	err = bridge.Connect(context.Background(), client)
	require.Error(t, err)

	// First tool was rolled back.
	assert.False(t, registry.Has("dup_a"))
}

func TestRemoteToolErrorResult(t *testing.T) {
	srv := newTestServer(t, Manifest{
		Server:   "s",
		Protocol: "1.0.0",
		Tools:    []Descriptor{{Name: "flaky"}},
	}, map[string]callResponse{
		"flaky": {Content: "backend exploded", IsError: true},
	})

	client, err := NewClient(Config{Name: "s", Endpoint: srv.URL})
	require.NoError(t, err)

	registry := tools.NewRegistry()
	bridge := NewBridge(registry)
	require.NoError(t, bridge.Connect(context.Background(), client))

	tool, ok := registry.Get("s_flaky")
	require.True(t, ok)

	res, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "backend exploded", res.Content)
}

func TestRemoteToolPermissions(t *testing.T) {
	srv := newTestServer(t, Manifest{
		Server:   "s",
		Protocol: "1.0.0",
		Tools:    []Descriptor{{Name: "op"}},
	}, nil)

	client, err := NewClient(Config{Name: "s", Endpoint: srv.URL})
	require.NoError(t, err)

	registry := tools.NewRegistry()
	bridge := NewBridge(registry)
	require.NoError(t, bridge.Connect(context.Background(), client))

	tool, ok := registry.Get("s_op")
	require.True(t, ok)

	gated, ok := tool.(tools.Gated)
	require.True(t, ok)

	reqs := gated.Permissions(nil)
	require.Len(t, reqs, 1)
	assert.Equal(t, permission.KindFetch, reqs[0].Kind)
	assert.Equal(t, srv.URL, reqs[0].Target)
}

func TestBridgeDisconnect(t *testing.T) {
	srv := newTestServer(t, Manifest{
		Server:   "s",
		Protocol: "1.0.0",
		Tools:    []Descriptor{{Name: "op"}},
	}, nil)

	client, err := NewClient(Config{Name: "s", Endpoint: srv.URL})
	require.NoError(t, err)

	registry := tools.NewRegistry()
	bridge := NewBridge(registry)
	require.NoError(t, bridge.Connect(context.Background(), client))
	require.True(t, registry.Has("s_op"))

	require.NoError(t, bridge.Disconnect("s"))
	assert.False(t, registry.Has("s_op"))
	assert.Error(t, bridge.Disconnect("s"))
}
