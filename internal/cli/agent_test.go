package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/config"
	"loom/internal/permission"
	"loom/internal/tools/builtin"
)

func TestBuildRegistryIncludesBuiltins(t *testing.T) {
	cfg := &config.Config{}

	registry, bridge, err := buildRegistry(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, bridge)

	for _, name := range []string{"read_file", "write_file", "edit_file", "list_dir", "glob", "grep", "shell", "fetch"} {
		assert.True(t, registry.Has(name), "missing builtin %s", name)
	}
}

func TestBuildRegistryScriptTools(t *testing.T) {
	cfg := &config.Config{
		Tools: config.ToolsConfig{
			ScriptEnabled: true,
			ScriptTimeout: time.Second,
			Scripts: []config.ScriptConfig{
				{Name: "double", Description: "double a number", Source: "args.n * 2"},
			},
		},
	}

	registry, _, err := buildRegistry(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	assert.True(t, registry.Has("double"))
}

func TestBuildRegistryScriptToolsDisabled(t *testing.T) {
	cfg := &config.Config{
		Tools: config.ToolsConfig{
			ScriptEnabled: false,
			Scripts: []config.ScriptConfig{
				{Name: "double", Source: "args.n * 2"},
			},
		},
	}

	registry, _, err := buildRegistry(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)
	assert.False(t, registry.Has("double"))
}

func TestBuildRegistryInvalidScriptFails(t *testing.T) {
	cfg := &config.Config{
		Tools: config.ToolsConfig{
			ScriptEnabled: true,
			Scripts:       []config.ScriptConfig{{Name: "broken"}},
		},
	}

	_, _, err := buildRegistry(context.Background(), cfg, t.TempDir())
	assert.Error(t, err)
}

func TestBuildRegistryFetchAllowedHosts(t *testing.T) {
	cfg := &config.Config{
		Tools: config.ToolsConfig{
			FetchAllowedHosts: []string{"internal.example.com"},
		},
	}

	registry, _, err := buildRegistry(context.Background(), cfg, t.TempDir())
	require.NoError(t, err)

	tool, ok := registry.Get("fetch")
	require.True(t, ok)
	ft, ok := tool.(*builtin.FetchTool)
	require.True(t, ok)
	assert.Equal(t, []string{"internal.example.com"}, ft.AllowedHosts)
}

func TestBuildGateAppliesPolicyFile(t *testing.T) {
	policyPath := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(policyPath, []byte("mode: full-auto\n"), 0644))

	cfg := &config.Config{
		Permission: config.PermissionConfig{
			Mode:       "suggest",
			PolicyFile: policyPath,
		},
	}

	gate, watcher, err := buildGate(cfg, t.TempDir(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, watcher)
	t.Cleanup(watcher.Stop)

	assert.Equal(t, permission.ModeFullAuto, gate.Mode())
}

func TestBuildGateRejectsUnknownMode(t *testing.T) {
	cfg := &config.Config{
		Permission: config.PermissionConfig{Mode: "yolo"},
	}

	_, _, err := buildGate(cfg, t.TempDir(), nil, nil)
	assert.Error(t, err)
}

func TestOpenStoreDefaultsAndFailures(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{Path: filepath.Join(dir, "loom.db")},
	}

	store := openStore(cfg, dir)
	require.NotNil(t, store)
	defer store.Close()

	assert.Equal(t, filepath.Clean(dir), store.Workspace())
}
