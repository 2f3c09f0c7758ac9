package toolserver

import (
	"strings"
)

// Descriptor is a tool as published by a server. InputSchema may use
// whatever type tags the server's implementation language favors; the
// converter maps them onto the canonical vocabulary.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// typeTagMap normalizes foreign schema type tags onto the canonical
// vocabulary: string, number, integer, boolean, array, object.
var typeTagMap = map[string]string{
	"string": "string",
	"str":    "string",
	"text":   "string",
	"char":   "string",
	"bytes":  "string",

	"integer": "integer",
	"int":     "integer",
	"long":    "integer",

	"number": "number",
	"float":  "number",
	"double": "number",

	"boolean": "boolean",
	"bool":    "boolean",

	"array": "array",
	"list":  "array",
	"tuple": "array",
	"set":   "array",

	"object": "object",
	"dict":   "object",
	"map":    "object",
	"struct": "object",
}

// normalizeTypeTag maps one foreign type tag. Unknown tags degrade to
// string so a misdeclared parameter still round-trips as text.
func normalizeTypeTag(tag string) string {
	if t, ok := typeTagMap[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return t
	}
	return "string"
}

// ConvertSchema rewrites a foreign input schema into the canonical
// descriptor shape: object with properties, each property carrying a
// normalized type plus the recognized keywords (description, enum,
// items, default, required).
func ConvertSchema(schema map[string]any) map[string]any {
	out := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if schema == nil {
		return out
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		converted := make(map[string]any, len(props))
		for name, raw := range props {
			if prop, ok := raw.(map[string]any); ok {
				converted[name] = convertProperty(prop)
			}
		}
		out["properties"] = converted
	}

	if required, ok := schema["required"].([]any); ok {
		names := make([]string, 0, len(required))
		for _, r := range required {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		if len(names) > 0 {
			out["required"] = names
		}
	}

	return out
}

// convertProperty normalizes one property schema.
func convertProperty(prop map[string]any) map[string]any {
	out := map[string]any{}

	tag, _ := prop["type"].(string)
	out["type"] = normalizeTypeTag(tag)

	if desc, ok := prop["description"].(string); ok && desc != "" {
		out["description"] = desc
	}
	if enum, ok := prop["enum"].([]any); ok && len(enum) > 0 {
		out["enum"] = enum
	}
	if def, ok := prop["default"]; ok {
		out["default"] = def
	}

	if out["type"] == "array" {
		if items, ok := prop["items"].(map[string]any); ok {
			out["items"] = convertProperty(items)
		} else {
			out["items"] = map[string]any{"type": "string"}
		}
	}

	if out["type"] == "object" {
		if nested, ok := prop["properties"].(map[string]any); ok {
			converted := make(map[string]any, len(nested))
			for name, raw := range nested {
				if p, ok := raw.(map[string]any); ok {
					converted[name] = convertProperty(p)
				}
			}
			out["properties"] = converted
		}
	}

	return out
}
