package spec

import (
    "strings"

    "gopkg.in/yaml.v3"
)

// resolveBaseURL applies the target URL policy, in priority order:
//  1. the first servers[].url, when the list is present and that url is non-empty;
//  2. "http://" + host + basePath, when host is present (Swagger v2);
//  3. DefaultBaseURL.
//
// It reads the raw source because the v2→v3 conversion rewrites host and
// basePath into servers with its own scheme rules.
func resolveBaseURL(raw []byte) string {
    var root map[string]any
    if err := yaml.Unmarshal(raw, &root); err != nil {
        return DefaultBaseURL
    }
    if servers, ok := root["servers"].([]any); ok && len(servers) > 0 {
        if first, ok := servers[0].(map[string]any); ok {
            if u := asString(first["url"]); u != "" {
                return expandServerVariables(u, first["variables"])
            }
        }
    }
    if host := asString(root["host"]); host != "" {
        return "http://" + host + asString(root["basePath"])
    }
    return DefaultBaseURL
}

// expandServerVariables substitutes {name} with the variable's declared default.
// Variables without a default stay literal.
func expandServerVariables(u string, vars any) string {
    m, ok := vars.(map[string]any)
    if !ok || !strings.Contains(u, "{") {
        return u
    }
    for name, v := range m {
        def, ok := v.(map[string]any)
        if !ok {
            continue
        }
        if d, ok := def["default"]; ok && d != nil {
            u = strings.ReplaceAll(u, "{"+name+"}", scalarString(d))
        }
    }
    return u
}

func scalarString(v any) string {
    switch t := v.(type) {
    case string:
        return t
    default:
        b, err := yaml.Marshal(t)
        if err != nil {
            return ""
        }
        return strings.TrimSpace(string(b))
    }
}
