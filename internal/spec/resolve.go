package spec

import (
    "context"
    "fmt"
    "sort"
    "strings"

    "github.com/getkin/kin-openapi/openapi3"

    "github.com/mark3labs/swagger2k6/internal/schema"
)

// Resolve loads input (file path or http/https URL), dereferences every
// internal and external $ref and returns the flattened Document. Any failure
// is a *LoadError.
func Resolve(ctx context.Context, input string, opts ...Option) (*Document, error) {
    settings := DefaultSettings()
    for _, opt := range opts {
        opt(&settings)
    }
    l, err := load(ctx, input, settings)
    if err != nil {
        return nil, err
    }
    doc, err := buildDocument(l)
    if err != nil {
        if le, ok := err.(*LoadError); ok && le.Location == "" {
            le.Location = l.location
        }
        return nil, err
    }
    settings.Logger.Debug("spec resolved",
        "location", l.location,
        "base_url", doc.BaseURL,
        "paths", len(doc.Paths),
        "operations", doc.OperationCount())
    return doc, nil
}

func buildDocument(l *loaded) (*Document, error) {
    doc := &Document{BaseURL: resolveBaseURL(l.raw)}
    if l.doc.Info != nil {
        doc.Title = strings.TrimSpace(l.doc.Info.Title)
        doc.Version = strings.TrimSpace(l.doc.Info.Version)
    }

    order := sourceOrder(l.raw)
    listed := make(map[string][]string, len(order))
    keys := make([]string, 0, len(l.doc.Paths))
    for _, po := range order {
        if _, ok := l.doc.Paths[po.path]; !ok {
            continue
        }
        if _, dup := listed[po.path]; dup {
            continue
        }
        listed[po.path] = po.methods
        keys = append(keys, po.path)
    }
    // Anything the node walk could not see goes last, sorted.
    var rest []string
    for p := range l.doc.Paths {
        if _, ok := listed[p]; !ok {
            rest = append(rest, p)
        }
    }
    sort.Strings(rest)
    keys = append(keys, rest...)

    for _, p := range keys {
        item := l.doc.Paths[p]
        if item == nil {
            continue
        }
        ops := item.Operations()
        pi := PathItem{Path: p}
        for _, m := range orderedMethods(listed[p], ops) {
            md, err := buildMethod(p, m, ops[m])
            if err != nil {
                return nil, err
            }
            pi.Methods = append(pi.Methods, md)
        }
        doc.Paths = append(doc.Paths, pi)
    }
    return doc, nil
}

// orderedMethods returns the verbs of ops: source order first, then the
// fixed fallback order for the rest.
func orderedMethods(source []string, ops map[string]*openapi3.Operation) []string {
    seen := make(map[string]bool, len(ops))
    out := make([]string, 0, len(ops))
    for _, m := range source {
        if ops[m] != nil && !seen[m] {
            seen[m] = true
            out = append(out, m)
        }
    }
    for _, m := range methodOrder {
        if ops[m] != nil && !seen[m] {
            seen[m] = true
            out = append(out, m)
        }
    }
    return out
}

func buildMethod(path, method string, op *openapi3.Operation) (MethodDef, error) {
    md := MethodDef{
        Method:      strings.ToUpper(method),
        OperationID: strings.TrimSpace(op.OperationID),
        Summary:     strings.TrimSpace(op.Summary),
    }
    for _, t := range op.Tags {
        if t = strings.TrimSpace(t); t != "" {
            md.Tags = append(md.Tags, t)
        }
    }
    if op.RequestBody == nil {
        return md, nil
    }
    pointer := "#/paths/" + escapePointer(path) + "/" + strings.ToLower(method) + "/requestBody"
    if op.RequestBody.Value == nil {
        return md, &LoadError{Code: RefError, Message: fmt.Sprintf("unresolved request body reference %q", op.RequestBody.Ref), JSONPointer: pointer}
    }
    mt := op.RequestBody.Value.Content[JSONMediaType]
    if mt == nil {
        return md, nil
    }
    if mt.Schema == nil {
        md.RequestSchema = &schema.Invalid{Reason: "application/json body declares no schema"}
        return md, nil
    }
    s, err := convertRequestSchema(mt.Schema, pointer+"/content/application~1json/schema")
    if err != nil {
        return md, err
    }
    md.RequestSchema = s
    return md, nil
}
