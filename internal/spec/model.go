package spec

import "github.com/mark3labs/swagger2k6/internal/schema"

// Resolved document model consumed by the extractor and the emitters.

// DefaultBaseURL is used when a document declares neither servers nor host.
const DefaultBaseURL = "http://localhost:5000"

// JSONMediaType is the only request-body content type that carries a payload.
const JSONMediaType = "application/json"

// Document is a fully dereferenced API contract. Paths and the methods within
// each path keep the order in which they appear in the source document.
type Document struct {
    Title   string
    Version string
    BaseURL string
    Paths   []PathItem
}

type PathItem struct {
    Path    string
    Methods []MethodDef
}

type MethodDef struct {
    Method      string // uppercase HTTP verb
    OperationID string
    Summary     string
    Tags        []string
    // RequestSchema is nil unless the operation declares an application/json body.
    RequestSchema schema.Schema
}

// Operation is one (path, method) pair flattened out of a Document.
type Operation struct {
    Path          string
    Method        string
    OperationID   string
    Summary       string
    Tags          []string
    RequestSchema schema.Schema
}

// ID identifies the operation within a suite, e.g. "POST /users".
func (o Operation) ID() string { return o.Method + " " + o.Path }

// HasBody reports whether the operation declares a JSON request body.
func (o Operation) HasBody() bool { return o.RequestSchema != nil }

// OperationCount returns the number of (path, method) pairs in d.
func (d *Document) OperationCount() int {
    n := 0
    for _, p := range d.Paths {
        n += len(p.Methods)
    }
    return n
}
