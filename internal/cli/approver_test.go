package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/permission"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		line     string
		allow    bool
		remember bool
	}{
		{"y\n", true, false},
		{"yes\n", true, false},
		{"  Y \n", true, false},
		{"a\n", true, true},
		{"always\n", true, true},
		{"n\n", false, false},
		{"no\n", false, false},
		{"\n", false, false},
		{"whatever\n", false, false},
	}

	for _, tt := range tests {
		v := parseAnswer(tt.line)
		assert.Equal(t, tt.allow, v.Allow, "line %q", tt.line)
		assert.Equal(t, tt.remember, v.Remember, "line %q", tt.line)
	}
}

func TestApproveWithoutTerminalDenies(t *testing.T) {
	a := &TerminalApprover{in: strings.NewReader(""), out: io.Discard, isTTY: false}

	v, err := a.Approve(context.Background(), permission.Request{
		Kind:   permission.KindExecute,
		Target: "rm -rf /",
		Tool:   "shell",
	})
	require.NoError(t, err)
	assert.False(t, v.Allow)
}

func TestApproveReadsAnswer(t *testing.T) {
	out := &bytes.Buffer{}
	a := &TerminalApprover{in: strings.NewReader("a\n"), out: out, isTTY: true}

	v, err := a.Approve(context.Background(), permission.Request{
		Kind:   permission.KindWrite,
		Target: "/tmp/out.txt",
		Tool:   "write_file",
		Detail: "12 bytes",
	})
	require.NoError(t, err)
	assert.True(t, v.Allow)
	assert.True(t, v.Remember)
	assert.Contains(t, out.String(), "write_file")
	assert.Contains(t, out.String(), "/tmp/out.txt")
	assert.Contains(t, out.String(), "12 bytes")
}

func TestApproveEOFDenies(t *testing.T) {
	a := &TerminalApprover{in: strings.NewReader(""), out: io.Discard, isTTY: true}

	v, err := a.Approve(context.Background(), permission.Request{
		Kind:   permission.KindFetch,
		Target: "https://example.com",
		Tool:   "fetch",
	})
	require.NoError(t, err)
	assert.False(t, v.Allow)
}

func TestApproveCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close(); pr.Close() })

	a := &TerminalApprover{in: pr, out: io.Discard, isTTY: true}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Approve(ctx, permission.Request{
		Kind:   permission.KindExecute,
		Target: "sleep 10",
		Tool:   "shell",
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
