package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "level %q", tt.input)
	}
}

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.log")

	err := Init(LogConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	defer Close()

	Info().Str("key", "value").Msg("test entry")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test entry")
}

func TestGetBeforeInit(t *testing.T) {
	// Must not panic and must return a usable logger.
	l := Get()
	require.NotNil(t, l)
	l.Debug().Msg("no-op")
}

func TestComponent(t *testing.T) {
	require.NoError(t, Init(LogConfig{Level: "info", Format: "json"}))
	defer Close()

	l := Component("runner")
	l.Info().Msg("component logger works")
}
