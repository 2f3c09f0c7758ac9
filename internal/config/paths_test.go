package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaths(t *testing.T) {
	dir, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dir, ".loom"))

	cfgPath, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfgPath)

	dataPath, err := DefaultDataPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "loom.db"), dataPath)

	policyPath, err := DefaultPolicyPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "policy.yaml"), policyPath)
}

func TestExpandPath(t *testing.T) {
	out, err := ExpandPath("")
	require.NoError(t, err)
	assert.Equal(t, "", out)

	out, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", out)

	out, err = ExpandPath("~/project")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(out, "~"))
	assert.True(t, strings.HasSuffix(out, string(filepath.Separator)+"project"))

	out, err = ExpandPath("~")
	require.NoError(t, err)
	assert.NotEqual(t, "~", out)
}
