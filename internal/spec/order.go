package spec

import (
    "strings"

    "gopkg.in/yaml.v3"
)

// methodOrder is the fallback order for methods the source order cannot
// supply (for example path items pulled in through a $ref).
var methodOrder = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS", "TRACE"}

type pathOrder struct {
    path    string
    methods []string // uppercase, source order
}

// sourceOrder reads the paths object of raw (YAML or JSON) and returns the
// path keys and their HTTP verbs in the order they are written. kin-openapi
// stores both as Go maps, so the order has to come from the node tree.
func sourceOrder(raw []byte) []pathOrder {
    var root yaml.Node
    if err := yaml.Unmarshal(raw, &root); err != nil || len(root.Content) == 0 {
        return nil
    }
    paths := mappingValue(root.Content[0], "paths")
    if paths == nil || paths.Kind != yaml.MappingNode {
        return nil
    }
    out := make([]pathOrder, 0, len(paths.Content)/2)
    for i := 0; i+1 < len(paths.Content); i += 2 {
        po := pathOrder{path: paths.Content[i].Value}
        item := paths.Content[i+1]
        if item.Kind == yaml.MappingNode {
            for j := 0; j+1 < len(item.Content); j += 2 {
                verb := strings.ToUpper(item.Content[j].Value)
                if isMethod(verb) {
                    po.methods = append(po.methods, verb)
                }
            }
        }
        out = append(out, po)
    }
    return out
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
    if n == nil || n.Kind != yaml.MappingNode {
        return nil
    }
    for i := 0; i+1 < len(n.Content); i += 2 {
        if n.Content[i].Value == key {
            return n.Content[i+1]
        }
    }
    return nil
}

func isMethod(verb string) bool {
    for _, m := range methodOrder {
        if m == verb {
            return true
        }
    }
    return false
}
