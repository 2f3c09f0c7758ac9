package textcall

import (
	"bytes"
	"encoding/json"
	"strings"

	"loom/internal/provider"
)

// Instructions renders the sentinel convention for a tool set. Prompt-based
// adapters append this to the system instructions so the model emits
// invocations in the fenced form Extract looks for first.
func Instructions(tools []provider.Tool) string {
	if len(tools) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n# Tools\n\n")
	b.WriteString("You can invoke the following tools. To invoke one, emit a fenced block:\n\n")
	b.WriteString("```tool_call\n{\"name\": \"<tool name>\", \"arguments\": {<arguments>}}\n```\n\n")
	b.WriteString("Emit one block per invocation. Arguments must be a JSON object. ")
	b.WriteString("After the results come back you may invoke more tools or answer.\n\n")
	b.WriteString("Available tools:\n\n")

	for _, t := range tools {
		b.WriteString("- ")
		b.WriteString(t.Function.Name)
		if t.Function.Description != "" {
			b.WriteString(": ")
			b.WriteString(t.Function.Description)
		}
		b.WriteString("\n")
		if len(t.Function.Parameters) > 0 {
			if schema := compactJSON(t.Function.Parameters); schema != "" {
				b.WriteString("  parameters: ")
				b.WriteString(schema)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	return buf.String()
}
