package tools

import (
	"reflect"
	"strings"
)

// BuildSchema generates a JSON Schema from a Go struct using reflection.
// Field names come from json tags; the jsonschema tag adds attributes:
//
//	type Args struct {
//	    Path  string `json:"path" jsonschema:"description=File path,required"`
//	    Limit int    `json:"limit,omitempty" jsonschema:"description=Max entries"`
//	}
//
// Supported jsonschema attributes: description=<text>, required,
// enum=<a|b|c>, default=<value>.
func BuildSchema(v any) map[string]any {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return structSchema(t)
}

func structSchema(t reflect.Type) map[string]any {
	properties := make(map[string]any)
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			head := strings.Split(jsonTag, ",")[0]
			if head == "-" {
				continue
			}
			if head != "" {
				name = head
			}
		}

		prop := typeSchema(field.Type)
		applySchemaTag(field.Tag.Get("jsonschema"), prop, name, &required)
		properties[name] = prop
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// typeSchema maps a Go type onto the schema type vocabulary.
func typeSchema(t reflect.Type) map[string]any {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Slice, reflect.Array:
		return map[string]any{
			"type":  "array",
			"items": typeSchema(t.Elem()),
		}
	case reflect.Map:
		schema := map[string]any{"type": "object"}
		if t.Elem().Kind() != reflect.Interface {
			schema["additionalProperties"] = typeSchema(t.Elem())
		}
		return schema
	case reflect.Struct:
		return structSchema(t)
	default:
		return map[string]any{"type": "object"}
	}
}

// applySchemaTag folds jsonschema tag attributes into a property schema.
func applySchemaTag(tag string, schema map[string]any, name string, required *[]string) {
	if tag == "" {
		return
	}
	for _, attr := range strings.Split(tag, ",") {
		attr = strings.TrimSpace(attr)
		switch {
		case attr == "required":
			*required = append(*required, name)
		case strings.HasPrefix(attr, "description="):
			schema["description"] = strings.TrimPrefix(attr, "description=")
		case strings.HasPrefix(attr, "enum="):
			vals := strings.Split(strings.TrimPrefix(attr, "enum="), "|")
			enum := make([]any, len(vals))
			for i, v := range vals {
				enum[i] = v
			}
			schema["enum"] = enum
		case strings.HasPrefix(attr, "default="):
			schema["default"] = strings.TrimPrefix(attr, "default=")
		}
	}
}
