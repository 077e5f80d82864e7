package spec

import (
    "strings"

    "gopkg.in/yaml.v3"
)

var v2Verbs = map[string]bool{
    "get": true, "put": true, "post": true, "delete": true,
    "options": true, "head": true, "patch": true,
}

// normalizeV2Bodies rewrites Swagger v2 operations so openapi2conv produces a
// usable requestBody:
//   - several body parameters are merged into one object-typed body;
//   - body parameters mixed with formData become formData fields and the
//     operation consumes multipart/form-data;
//   - a body parameter with no consumes list at operation or document level
//     gets consumes: [application/json], otherwise the converted body has no content.
//
// It returns possibly-modified YAML bytes and whether anything changed. On a
// parse or encode error the original bytes come back with changed=false.
func normalizeV2Bodies(data []byte) ([]byte, bool, error) {
    var doc map[string]any
    if err := yaml.Unmarshal(data, &doc); err != nil {
        return data, false, err
    }
    paths, ok := doc["paths"].(map[string]any)
    if !ok || len(paths) == 0 {
        return data, false, nil
    }
    docConsumes, _ := doc["consumes"].([]any)
    changed := false

    for _, item := range paths {
        methods, ok := item.(map[string]any)
        if !ok {
            continue
        }
        for verb, raw := range methods {
            if !v2Verbs[strings.ToLower(verb)] {
                continue
            }
            op, ok := raw.(map[string]any)
            if !ok {
                continue
            }
            if rewriteV2Operation(op, docConsumes) {
                changed = true
            }
        }
    }

    if !changed {
        return data, false, nil
    }
    out, err := yaml.Marshal(doc)
    if err != nil {
        return data, false, err
    }
    return out, true, nil
}

func rewriteV2Operation(op map[string]any, docConsumes []any) bool {
    params, _ := op["parameters"].([]any)
    var bodies, others []map[string]any
    formData := false
    for _, p := range params {
        pm, ok := p.(map[string]any)
        if !ok {
            continue
        }
        switch strings.ToLower(asString(pm["in"])) {
        case "body":
            bodies = append(bodies, pm)
            continue
        case "formdata":
            formData = true
        }
        others = append(others, pm)
    }
    if len(bodies) == 0 {
        return false
    }

    opConsumes, _ := op["consumes"].([]any)
    switch {
    case formData:
        next := make([]any, 0, len(params))
        for _, pm := range others {
            next = append(next, pm)
        }
        for _, b := range bodies {
            next = append(next, formFieldFromBody(b))
        }
        op["parameters"] = next
        if !containsString(opConsumes, "multipart/form-data") {
            op["consumes"] = append(opConsumes, "multipart/form-data")
        }
        return true
    case len(bodies) > 1:
        props := map[string]any{}
        var required []any
        for _, b := range bodies {
            name := asString(b["name"])
            if name == "" {
                name = "field"
            }
            sch, _ := b["schema"].(map[string]any)
            if sch == nil {
                sch = map[string]any{"type": "string"}
            }
            props[name] = sch
            if req, _ := b["required"].(bool); req {
                required = append(required, name)
            }
        }
        merged := map[string]any{"type": "object", "properties": props}
        if len(required) > 0 {
            merged["required"] = required
        }
        next := []any{map[string]any{"in": "body", "name": "body", "required": len(required) > 0, "schema": merged}}
        for _, pm := range others {
            next = append(next, pm)
        }
        op["parameters"] = next
    }

    if len(opConsumes) == 0 && len(docConsumes) == 0 {
        op["consumes"] = []any{JSONMediaType}
        return true
    }
    return len(bodies) > 1
}

func asString(v any) string {
    if s, ok := v.(string); ok {
        return s
    }
    return ""
}

func containsString(list []any, want string) bool {
    for _, v := range list {
        if s, ok := v.(string); ok && s == want {
            return true
        }
    }
    return false
}

// formFieldFromBody turns a body parameter into a formData field. Object or
// referenced schemas cannot be form fields and degrade to string.
func formFieldFromBody(pm map[string]any) map[string]any {
    name := asString(pm["name"])
    if name == "" {
        name = "field"
    }
    out := map[string]any{"in": "formData", "name": name, "type": "string"}
    if desc := asString(pm["description"]); desc != "" {
        out["description"] = desc
    }
    if req, ok := pm["required"].(bool); ok {
        out["required"] = req
    }
    sch, _ := pm["schema"].(map[string]any)
    if sch == nil || sch["$ref"] != nil {
        return out
    }
    switch t := asString(sch["type"]); t {
    case "string", "integer", "number", "boolean", "array":
        out["type"] = t
    }
    if f := asString(sch["format"]); f != "" {
        out["format"] = f
    }
    if items, ok := sch["items"].(map[string]any); ok && out["type"] == "array" {
        out["items"] = items
    }
    return out
}
