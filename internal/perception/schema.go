package perception

import (
	"fmt"
	"sort"

	"google.golang.org/genai"
)

var schemaTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
}

// toSchema converts a JSON-schema object into a genai.Schema. Keywords
// genai cannot express are dropped.
func toSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = schemaTypes[t]
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		names := make([]string, 0, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
				names = append(names, name)
			}
		}
		sort.Strings(names)
		s.PropertyOrdering = names
	}
	s.Required = stringList(m["required"])
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	if enum := stringList(m["enum"]); len(enum) > 0 {
		s.Enum = enum
		if s.Type == "" {
			s.Type = genai.TypeString
		}
	}
	if def, ok := m["default"]; ok {
		s.Default = def
	}
	return s
}

func stringList(v any) []string {
	switch vals := v.(type) {
	case []string:
		if len(vals) == 0 {
			return nil
		}
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, x := range vals {
			out = append(out, fmt.Sprint(x))
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}
