package spec

import (
    "errors"
    "fmt"
    "sort"
    "strings"

    "github.com/getkin/kin-openapi/openapi3"

    "github.com/mark3labs/swagger2k6/internal/schema"
)

// errRecursive signals that a schema refers back to one of its ancestors.
// The caller decides whether that edge can be flattened.
var errRecursive = errors.New("recursive schema")

// converter turns dereferenced kin-openapi schemas into the tagged model.
// kin-openapi represents a cyclic $ref as a pointer cycle, so active tracks
// the schemas on the current descent.
type converter struct {
    active map[*openapi3.Schema]bool
}

func newConverter() *converter {
    return &converter{active: make(map[*openapi3.Schema]bool)}
}

// convertRequestSchema is the entry point for one request body schema.
func convertRequestSchema(ref *openapi3.SchemaRef, pointer string) (schema.Schema, error) {
    s, err := newConverter().convert(ref, pointer)
    if errors.Is(err, errRecursive) {
        return nil, &LoadError{Code: RefError, Message: fmt.Sprintf("cyclic schema at %s cannot be flattened", pointer), JSONPointer: pointer, Cause: err}
    }
    return s, err
}

func (c *converter) convert(ref *openapi3.SchemaRef, ptr string) (schema.Schema, error) {
    if ref == nil {
        return &schema.Any{}, nil
    }
    if ref.Value == nil {
        return nil, &LoadError{Code: RefError, Message: fmt.Sprintf("unresolved reference %q at %s", ref.Ref, ptr), JSONPointer: ptr}
    }
    s := ref.Value
    if c.active[s] {
        return nil, errRecursive
    }
    c.active[s] = true
    defer delete(c.active, s)
    return c.convertValue(s, ptr)
}

func (c *converter) convertValue(s *openapi3.Schema, ptr string) (schema.Schema, error) {
    if len(s.Enum) > 0 {
        return &schema.Enum{Values: append([]any(nil), s.Enum...)}, nil
    }
    if len(s.AllOf) > 0 {
        return c.convertAllOf(s, ptr)
    }
    if len(s.OneOf) > 0 || len(s.AnyOf) > 0 {
        return c.convertChoice(s, ptr)
    }

    typ := s.Type
    if typ == "" {
        switch {
        case len(s.Properties) > 0 || s.AdditionalProperties.Schema != nil:
            typ = "object"
        case s.Items != nil:
            typ = "array"
        default:
            return &schema.Any{}, nil
        }
    }

    switch typ {
    case "object":
        return c.convertObject(s, ptr)
    case "array":
        return c.convertArray(s, ptr)
    case "string":
        return &schema.String{
            Format:    s.Format,
            Pattern:   s.Pattern,
            MinLength: s.MinLength,
            MaxLength: s.MaxLength,
            Nullable:  s.Nullable,
        }, nil
    case "number", "integer":
        return &schema.Number{
            Integer:      typ == "integer",
            Format:       s.Format,
            Min:          s.Min,
            Max:          s.Max,
            ExclusiveMin: s.ExclusiveMin,
            ExclusiveMax: s.ExclusiveMax,
            MultipleOf:   s.MultipleOf,
            Nullable:     s.Nullable,
        }, nil
    case "boolean":
        return &schema.Boolean{Nullable: s.Nullable}, nil
    case "null":
        return &schema.Null{}, nil
    default:
        return &schema.Invalid{Reason: fmt.Sprintf("unsupported type %q at %s", typ, ptr)}, nil
    }
}

func (c *converter) convertObject(s *openapi3.Schema, ptr string) (schema.Schema, error) {
    obj := &schema.Object{
        Required:      append([]string(nil), s.Required...),
        MinProperties: s.MinProps,
        MaxProperties: s.MaxProps,
        Nullable:      s.Nullable,
    }
    names := make([]string, 0, len(s.Properties))
    for name := range s.Properties {
        names = append(names, name)
    }
    sort.Strings(names)
    for _, name := range names {
        sub, err := c.convert(s.Properties[name], ptr+"/properties/"+escapePointer(name))
        if errors.Is(err, errRecursive) {
            if obj.IsRequired(name) {
                return nil, err
            }
            // An optional back-edge is dropped, including a recursive array
            // that must not be empty.
            continue
        }
        if err != nil {
            return nil, err
        }
        obj.Properties = append(obj.Properties, schema.Property{Name: name, Schema: sub})
    }

    switch {
    case s.AdditionalProperties.Schema != nil:
        sub, err := c.convert(s.AdditionalProperties.Schema, ptr+"/additionalProperties")
        if err != nil && !errors.Is(err, errRecursive) {
            return nil, err
        }
        obj.Additional = sub
    case s.AdditionalProperties.Has != nil && *s.AdditionalProperties.Has:
        obj.Additional = &schema.Any{}
    }
    return obj, nil
}

func (c *converter) convertArray(s *openapi3.Schema, ptr string) (schema.Schema, error) {
    arr := &schema.Array{
        MinItems: s.MinItems,
        MaxItems: s.MaxItems,
        Unique:   s.UniqueItems,
        Nullable: s.Nullable,
    }
    items, err := c.convert(s.Items, ptr+"/items")
    switch {
    case errors.Is(err, errRecursive):
        if s.MinItems > 0 {
            return nil, err
        }
        // Recursive items flatten to an always-empty array.
        return arr, nil
    case err != nil:
        return nil, err
    }
    arr.Items = items
    return arr, nil
}

func (c *converter) convertChoice(s *openapi3.Schema, ptr string) (schema.Schema, error) {
    refs, key := s.OneOf, "oneOf"
    if len(refs) == 0 {
        refs, key = s.AnyOf, "anyOf"
    }
    choice := &schema.Choice{}
    for i, r := range refs {
        sub, err := c.convert(r, fmt.Sprintf("%s/%s/%d", ptr, key, i))
        if errors.Is(err, errRecursive) {
            continue
        }
        if err != nil {
            return nil, err
        }
        choice.Options = append(choice.Options, sub)
    }
    if len(choice.Options) == 0 {
        return nil, errRecursive
    }
    return choice, nil
}

// convertAllOf merges the members of an allOf (plus the schema's own
// keywords). Objects merge property-wise; otherwise exactly one concrete
// member may remain.
func (c *converter) convertAllOf(s *openapi3.Schema, ptr string) (schema.Schema, error) {
    var parts []schema.Schema
    own := *s
    own.AllOf = nil
    if own.Type != "" || len(own.Properties) > 0 || len(own.OneOf) > 0 || len(own.AnyOf) > 0 || own.Items != nil {
        sub, err := c.convertValue(&own, ptr)
        if err != nil {
            return nil, err
        }
        parts = append(parts, sub)
    }
    for i, r := range s.AllOf {
        sub, err := c.convert(r, fmt.Sprintf("%s/allOf/%d", ptr, i))
        if err != nil {
            return nil, err
        }
        parts = append(parts, sub)
    }

    merged := &schema.Object{}
    objects := 0
    var concrete []schema.Schema
    for _, p := range parts {
        switch v := p.(type) {
        case *schema.Any:
        case *schema.Object:
            objects++
            mergeObject(merged, v)
        default:
            concrete = append(concrete, v)
        }
    }
    switch {
    case objects > 0 && len(concrete) == 0:
        return merged, nil
    case objects == 0 && len(concrete) == 1:
        return concrete[0], nil
    case objects == 0 && len(concrete) == 0:
        return &schema.Any{}, nil
    default:
        return &schema.Invalid{Reason: fmt.Sprintf("allOf at %s combines incompatible schemas", ptr)}, nil
    }
}

func mergeObject(dst, src *schema.Object) {
    for _, p := range src.Properties {
        replaced := false
        for i := range dst.Properties {
            if dst.Properties[i].Name == p.Name {
                dst.Properties[i] = p
                replaced = true
                break
            }
        }
        if !replaced {
            dst.Properties = append(dst.Properties, p)
        }
    }
    for _, r := range src.Required {
        if !dst.IsRequired(r) {
            dst.Required = append(dst.Required, r)
        }
    }
    if src.Additional != nil {
        dst.Additional = src.Additional
    }
    if src.MinProperties > dst.MinProperties {
        dst.MinProperties = src.MinProperties
    }
    if src.MaxProperties != nil && (dst.MaxProperties == nil || *src.MaxProperties < *dst.MaxProperties) {
        dst.MaxProperties = src.MaxProperties
    }
}

func escapePointer(s string) string {
    return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}
