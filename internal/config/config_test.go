package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "suggest", cfg.Permission.Mode)
	assert.Equal(t, 20, cfg.Agent.MaxIterations)
	assert.Equal(t, 65536, cfg.Agent.MaxToolResultBytes)
	assert.Equal(t, 5*time.Minute, cfg.Permission.ApprovalTimeout)
	assert.Equal(t, []string{"ollama"}, cfg.Provider.EnabledProviders())
}

func TestLoadFromFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
gateway:
  port: 9090
permission:
  mode: auto-edit
  allow_commands:
    - make
    - go
agent:
  max_iterations: 5
tool_servers:
  - name: calc
    endpoint: http://localhost:7001
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Gateway.Port)
	assert.Equal(t, "auto-edit", cfg.Permission.Mode)
	assert.Equal(t, []string{"make", "go"}, cfg.Permission.AllowCommands)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	require.Len(t, cfg.ToolServers, 1)
	assert.Equal(t, "calc", cfg.ToolServers[0].Name)
	assert.Equal(t, "http://localhost:7001", cfg.ToolServers[0].Endpoint)

	// File values override defaults, untouched keys keep theirs.
	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Gateway.Port)
}

func TestEnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("LOOM_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestSaveToWritesRestrictedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := &Config{Version: "1.0"}
	cfg.OpenAI.APIKey = "sk-secret"
	require.NoError(t, SaveTo(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.Validate())

	cfg.Gateway.Port = 99999
	assert.Error(t, cfg.Validate())
	cfg.Gateway.Port = 8080

	cfg.ToolServers = []ToolServerConfig{{Name: "x"}}
	assert.Error(t, cfg.Validate())
}

func TestParseTimeout(t *testing.T) {
	assert.Equal(t, time.Minute, ParseTimeout("", time.Minute))
	assert.Equal(t, time.Minute, ParseTimeout("garbage", time.Minute))
	assert.Equal(t, 30*time.Second, ParseTimeout("30s", time.Minute))
}
