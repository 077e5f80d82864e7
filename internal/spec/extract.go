package spec

import (
    "regexp"
    "strings"
)

// ExtractOption narrows the operations returned by Extract.
type ExtractOption func(*extractConfig)

type extractConfig struct {
    includeTags map[string]struct{}
    excludeTags map[string]struct{}
    methods     map[string]struct{}
    pathRes     []*regexp.Regexp
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) ExtractOption {
    return func(c *extractConfig) {
        c.includeTags = addTags(c.includeTags, tags)
    }
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) ExtractOption {
    return func(c *extractConfig) {
        c.excludeTags = addTags(c.excludeTags, tags)
    }
}

// WithMethods keeps only operations using one of the given HTTP methods (any case).
func WithMethods(methods []string) ExtractOption {
    return func(c *extractConfig) {
        for _, m := range methods {
            m = strings.ToUpper(strings.TrimSpace(m))
            if m == "" {
                continue
            }
            if c.methods == nil {
                c.methods = make(map[string]struct{}, len(methods))
            }
            c.methods[m] = struct{}{}
        }
    }
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the regular expressions. An invalid pattern matches nothing; callers that
// want to report it should compile it themselves first.
func WithPathPatterns(patterns []string) ExtractOption {
    return func(c *extractConfig) {
        for _, p := range patterns {
            p = strings.TrimSpace(p)
            if p == "" {
                continue
            }
            re, err := regexp.Compile(p)
            if err != nil {
                re = regexp.MustCompile("a^$")
            }
            c.pathRes = append(c.pathRes, re)
        }
    }
}

func addTags(set map[string]struct{}, tags []string) map[string]struct{} {
    for _, t := range tags {
        t = strings.TrimSpace(t)
        if t == "" {
            continue
        }
        if set == nil {
            set = make(map[string]struct{}, len(tags))
        }
        set[t] = struct{}{}
    }
    return set
}

// Extract flattens doc into one Operation per (path, method) pair, in
// document path order and then document method order. It has no side
// effects and never fails; a document without paths yields nil.
func Extract(doc *Document, opts ...ExtractOption) []Operation {
    if doc == nil {
        return nil
    }
    cfg := &extractConfig{}
    for _, opt := range opts {
        opt(cfg)
    }

    var ops []Operation
    for _, item := range doc.Paths {
        if !cfg.matchPath(item.Path) {
            continue
        }
        for _, m := range item.Methods {
            if !cfg.matchMethod(m.Method) || !cfg.matchTags(m.Tags) {
                continue
            }
            ops = append(ops, Operation{
                Path:          item.Path,
                Method:        strings.ToUpper(m.Method),
                OperationID:   m.OperationID,
                Summary:       m.Summary,
                Tags:          append([]string(nil), m.Tags...),
                RequestSchema: m.RequestSchema,
            })
        }
    }
    return ops
}

func (c *extractConfig) matchPath(p string) bool {
    if len(c.pathRes) == 0 {
        return true
    }
    for _, re := range c.pathRes {
        if re.MatchString(p) {
            return true
        }
    }
    return false
}

func (c *extractConfig) matchMethod(m string) bool {
    if len(c.methods) == 0 {
        return true
    }
    _, ok := c.methods[strings.ToUpper(m)]
    return ok
}

func (c *extractConfig) matchTags(tags []string) bool {
    if len(c.includeTags) > 0 {
        ok := false
        for _, t := range tags {
            if _, yes := c.includeTags[t]; yes {
                ok = true
                break
            }
        }
        if !ok {
            return false
        }
    }
    for _, t := range tags {
        if _, blocked := c.excludeTags[t]; blocked {
            return false
        }
    }
    return true
}
