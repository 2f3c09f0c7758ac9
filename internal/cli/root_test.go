package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/config"
)

// runCommand executes the CLI with args and captures its output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(config.Reset)

	root := NewRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "loom dev")
	assert.Contains(t, out, "platform:")
}

func TestVersionCommandJSON(t *testing.T) {
	out, err := runCommand(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "dev"`)
	assert.Contains(t, out, `"go_version"`)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	out, err := runCommand(t, "-c", cfgPath, "init")
	require.NoError(t, err)
	assert.Contains(t, out, cfgPath)

	_, err = os.Stat(cfgPath)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "policy.yaml"))
	require.NoError(t, err)

	// A second init without --force must refuse.
	_, err = runCommand(t, "-c", cfgPath, "init")
	assert.Error(t, err)

	_, err = runCommand(t, "-c", cfgPath, "init", "--force")
	assert.NoError(t, err)
}

func TestConfigGetDefault(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	out, err := runCommand(t, "-c", cfgPath, "config", "get", "log.level")
	require.NoError(t, err)
	assert.Contains(t, out, "info")
}

func TestConfigSetPersists(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	_, err := runCommand(t, "-c", cfgPath, "config", "set", "ollama.model", "qwen3")
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "qwen3")
}

func TestConfigListFlat(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	out, err := runCommand(t, "-c", cfgPath, "config", "list", "--flat")
	require.NoError(t, err)
	assert.Contains(t, out, "gateway.port")
	assert.Contains(t, out, "permission.mode")
}

func TestModeGetAndSet(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	out, err := runCommand(t, "-c", cfgPath, "mode", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "suggest")

	_, err = runCommand(t, "-c", cfgPath, "mode", "set", "auto-edit")
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "auto-edit")

	_, err = runCommand(t, "-c", cfgPath, "mode", "set", "anything-goes")
	assert.Error(t, err)
}
