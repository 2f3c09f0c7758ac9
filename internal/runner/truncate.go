package runner

import (
	"fmt"
	"regexp"
)

// DefaultMaxToolResultBytes bounds how much of one tool result enters
// history. 64 KB covers useful output while keeping huge HTTP responses
// from bloating the context.
const DefaultMaxToolResultBytes = 65536

var (
	// base64Pattern matches inline data URIs.
	base64Pattern = regexp.MustCompile(`data:[a-zA-Z0-9+/=\-]+;base64,[A-Za-z0-9+/=]{64,}`)

	// hexBlobPattern matches contiguous hex runs of 256+ characters.
	hexBlobPattern = regexp.MustCompile(`[0-9a-fA-F]{256,}`)
)

// TruncateToolResult shrinks an oversized tool result to fit maxBytes.
// Binary-ish payloads (base64 data URIs, hex blobs) go first; if the
// text is still too large, the middle is cut, keeping head and tail.
func TruncateToolResult(content string, maxBytes int) string {
	if len(content) <= maxBytes {
		return content
	}

	content = base64Pattern.ReplaceAllStringFunc(content, func(match string) string {
		return fmt.Sprintf("[base64 data removed, %d bytes]", len(match))
	})
	if len(content) <= maxBytes {
		return content
	}

	content = hexBlobPattern.ReplaceAllStringFunc(content, func(match string) string {
		return fmt.Sprintf("[hex data removed, %d bytes]", len(match))
	})
	if len(content) <= maxBytes {
		return content
	}

	headLen := maxBytes * 2 / 5
	tailLen := maxBytes * 2 / 5
	if headLen+tailLen >= len(content) {
		return content
	}

	removed := len(content) - headLen - tailLen
	return content[:headLen] +
		fmt.Sprintf("\n\n[... %d bytes truncated ...]\n\n", removed) +
		content[len(content)-tailLen:]
}
