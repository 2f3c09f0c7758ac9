package permission

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// matchPath reports whether path falls under any of the allowed prefixes.
// A prefix only matches at a path component boundary: /work matches
// /work/file.txt and /work itself, but never /workshop.
func matchPath(path string, prefixes []string) bool {
	cleanPath := filepath.Clean(expandPath(path))

	for _, prefix := range prefixes {
		cleanPrefix := filepath.Clean(expandPath(prefix))

		if !strings.HasPrefix(cleanPath, cleanPrefix) {
			continue
		}
		if len(cleanPath) == len(cleanPrefix) {
			return true
		}
		if cleanPath[len(cleanPrefix)] == filepath.Separator {
			return true
		}
	}
	return false
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// commandKey returns the allow-list key for a command line: its first
// whitespace-separated token. Flags and arguments never participate, so
// remembering "git" covers every git invocation.
func commandKey(commandLine string) string {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// hostKey returns the allow-list key for a fetch target: the lowercased
// hostname. An empty result means the URL could not be classified and the
// request must be refused.
func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// readOnlyCommands are commands with no side effects worth gating. They
// bypass prompting in every mode.
var readOnlyCommands = map[string]bool{
	"ls":    true,
	"cat":   true,
	"head":  true,
	"tail":  true,
	"wc":    true,
	"pwd":   true,
	"echo":  true,
	"grep":  true,
	"rg":    true,
	"find":  true,
	"which": true,
	"stat":  true,
	"file":  true,
	"du":    true,
	"df":    true,
	"tree":  true,
	"env":   true,
	"date":  true,
}

// isReadOnlyCommand reports whether a command key is on the fixed
// read-only list.
func isReadOnlyCommand(key string) bool {
	return readOnlyCommands[key]
}
