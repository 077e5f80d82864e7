package schema

// DraftURI is the dialect produced by JSON. Draft 4 keeps OpenAPI 3.0's
// boolean exclusiveMinimum/exclusiveMaximum semantics.
const DraftURI = "http://json-schema.org/draft-04/schema#"

// JSON renders s as a draft-4 JSON Schema document built from plain maps and
// slices, ready for encoding/json.
func JSON(s Schema) map[string]any {
	out := render(s)
	out["$schema"] = DraftURI
	return out
}

func render(s Schema) map[string]any {
	switch v := s.(type) {
	case *Object:
		m := map[string]any{"type": typeName("object", v.Nullable)}
		if len(v.Properties) > 0 {
			props := make(map[string]any, len(v.Properties))
			for _, p := range v.Properties {
				props[p.Name] = render(p.Schema)
			}
			m["properties"] = props
		}
		if len(v.Required) > 0 {
			req := make([]any, 0, len(v.Required))
			for _, r := range v.Required {
				req = append(req, r)
			}
			m["required"] = req
		}
		if v.Additional != nil {
			m["additionalProperties"] = render(v.Additional)
		}
		if v.MinProperties > 0 {
			m["minProperties"] = v.MinProperties
		}
		if v.MaxProperties != nil {
			m["maxProperties"] = *v.MaxProperties
		}
		return m
	case *Array:
		m := map[string]any{"type": typeName("array", v.Nullable)}
		if v.Items == nil {
			m["maxItems"] = 0
			return m
		}
		m["items"] = render(v.Items)
		if v.MinItems > 0 {
			m["minItems"] = v.MinItems
		}
		if v.MaxItems != nil {
			m["maxItems"] = *v.MaxItems
		}
		if v.Unique {
			m["uniqueItems"] = true
		}
		return m
	case *String:
		m := map[string]any{"type": typeName("string", v.Nullable)}
		if v.Format != "" {
			m["format"] = v.Format
		}
		if v.Pattern != "" {
			m["pattern"] = v.Pattern
		}
		if v.MinLength > 0 {
			m["minLength"] = v.MinLength
		}
		if v.MaxLength != nil {
			m["maxLength"] = *v.MaxLength
		}
		return m
	case *Number:
		name := "number"
		if v.Integer {
			name = "integer"
		}
		m := map[string]any{"type": typeName(name, v.Nullable)}
		if v.Min != nil {
			m["minimum"] = *v.Min
			if v.ExclusiveMin {
				m["exclusiveMinimum"] = true
			}
		}
		if v.Max != nil {
			m["maximum"] = *v.Max
			if v.ExclusiveMax {
				m["exclusiveMaximum"] = true
			}
		}
		if v.MultipleOf != nil {
			m["multipleOf"] = *v.MultipleOf
		}
		return m
	case *Boolean:
		return map[string]any{"type": typeName("boolean", v.Nullable)}
	case *Null:
		return map[string]any{"type": "null"}
	case *Enum:
		return map[string]any{"enum": append([]any(nil), v.Values...)}
	case *Choice:
		opts := make([]any, 0, len(v.Options))
		for _, o := range v.Options {
			opts = append(opts, render(o))
		}
		return map[string]any{"anyOf": opts}
	case *Any:
		return map[string]any{}
	default:
		// Invalid (and nil) match nothing.
		return map[string]any{"not": map[string]any{}}
	}
}

func typeName(name string, nullable bool) any {
	if nullable {
		return []any{name, "null"}
	}
	return name
}
