// Package textcall recovers tool-call candidates from free-form model
// output. It backs prompt-based provider adapters whose vendors have no
// native tool-call framing: the adapter injects a sentinel convention into
// the system instructions and, once a turn's text has fully accumulated,
// mines it for invocation blocks.
//
// Extraction is fuzzy and best-effort: an empty result is a legitimate
// outcome, and no input ever causes an error. A block that fails to parse
// is skipped individually; the remaining blocks are still considered.
package textcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Candidate is a parsed invocation block before registry filtering and
// identifier assignment.
type Candidate struct {
	Name      string
	Arguments string // JSON object payload, "{}" when the block omits arguments
}

var (
	// Current convention: a fenced block the sentinel instructions ask for.
	//
	//	```tool_call
	//	{"name": "read_file", "arguments": {"path": "a.txt"}}
	//	```
	fencedPattern = regexp.MustCompile("(?s)```tool_call\\s*\\n(.*?)```")

	// Legacy convention: inline XML-style tags emitted by Hermes/Qwen
	// family fine-tunes regardless of instructions.
	taggedPattern = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*</tool_call>`)

	// Legacy convention: a Mistral-style marker followed by a JSON array.
	markerPattern = regexp.MustCompile(`(?s)\[TOOL_CALLS\]\s*(\[.*?\])`)
)

// Extract scans text with the current convention and both legacy
// conventions and returns every parseable candidate in document order per
// convention. It never returns an error: non-candidate text is prose.
func Extract(text string) []Candidate {
	if !strings.Contains(text, "tool_call") && !strings.Contains(text, "[TOOL_CALLS]") {
		return nil
	}

	var out []Candidate
	for _, m := range fencedPattern.FindAllStringSubmatch(text, -1) {
		if c, ok := parseObject(m[1]); ok {
			out = append(out, c)
		}
	}
	for _, m := range taggedPattern.FindAllStringSubmatch(text, -1) {
		if c, ok := parseObject(m[1]); ok {
			out = append(out, c)
		}
	}
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, parseArray(m[1])...)
	}
	return out
}

// invocation is the JSON shape shared by all three conventions.
type invocation struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	// Some models nest the payload under "parameters" instead.
	Parameters json.RawMessage `json:"parameters"`
}

func (inv invocation) candidate() (Candidate, bool) {
	if inv.Name == "" {
		return Candidate{}, false
	}
	args := inv.Arguments
	if len(args) == 0 {
		args = inv.Parameters
	}
	payload := "{}"
	if len(args) > 0 {
		// Arguments must be a JSON object; models occasionally emit a
		// double-encoded string containing one.
		var probe any
		if err := json.Unmarshal(args, &probe); err != nil {
			return Candidate{}, false
		}
		switch v := probe.(type) {
		case map[string]any:
			payload = string(args)
		case string:
			var inner map[string]any
			if err := json.Unmarshal([]byte(v), &inner); err != nil {
				return Candidate{}, false
			}
			payload = v
		default:
			return Candidate{}, false
		}
	}
	return Candidate{Name: inv.Name, Arguments: payload}, true
}

// parseObject parses a single {"name": ..., "arguments": {...}} block.
func parseObject(raw string) (Candidate, bool) {
	var inv invocation
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &inv); err != nil {
		return Candidate{}, false
	}
	return inv.candidate()
}

// parseArray parses a [{"name": ...}, ...] block, skipping unparseable
// elements individually.
func parseArray(raw string) []Candidate {
	var invs []invocation
	if err := json.Unmarshal([]byte(raw), &invs); err != nil {
		return nil
	}
	var out []Candidate
	for _, inv := range invs {
		if c, ok := inv.candidate(); ok {
			out = append(out, c)
		}
	}
	return out
}
