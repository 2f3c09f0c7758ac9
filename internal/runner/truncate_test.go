package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateSmallResultUntouched(t *testing.T) {
	assert.Equal(t, "short output", TruncateToolResult("short output", 1024))
}

func TestTruncateStripsBase64DataURI(t *testing.T) {
	blob := "data:image/png;base64," + strings.Repeat("iVBORw0KGgoA", 50)
	content := "before\n" + blob + "\nafter"

	out := TruncateToolResult(content, len(content)-1)
	assert.Contains(t, out, "[base64 data removed")
	assert.Contains(t, out, "before")
	assert.Contains(t, out, "after")
	assert.NotContains(t, out, "iVBORw0KGgoA")
}

func TestTruncateStripsHexBlobs(t *testing.T) {
	blob := strings.Repeat("deadbeef", 64) // 512 hex chars
	content := "header\n" + blob + "\nfooter"

	out := TruncateToolResult(content, 256)
	assert.Contains(t, out, "[hex data removed, 512 bytes]")
	assert.NotContains(t, out, "deadbeef")
}

func TestTruncateShortHexRunsSurvive(t *testing.T) {
	content := "commit abc123def456 fixed the bug\n" + strings.Repeat("x", 200)
	out := TruncateToolResult(content, 1024)
	assert.Contains(t, out, "abc123def456")
}

func TestTruncateKeepsHeadAndTail(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		b.WriteString("some plain log line that cannot be stripped\n")
	}
	content := b.String()

	out := TruncateToolResult(content, 1000)
	assert.Less(t, len(out), len(content))
	assert.Contains(t, out, "bytes truncated")
	assert.True(t, strings.HasPrefix(out, "some plain log line"))
	assert.True(t, strings.HasSuffix(out, "cannot be stripped\n"))
}
