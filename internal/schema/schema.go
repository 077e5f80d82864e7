// Package schema holds a closed, tagged model of the JSON Schema fragments that
// describe request bodies. Every variant is fully inline: references are
// resolved before a value of this package is built, so consumers switch on the
// concrete type instead of probing maps.
package schema

// Kind names the variant of a Schema.
type Kind string

const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindEnum    Kind = "enum"
	KindChoice  Kind = "choice"
	KindAny     Kind = "any"
	KindInvalid Kind = "invalid"
)

// Schema is implemented by exactly the variant types in this package.
type Schema interface {
	Kind() Kind
	isSchema()
}

// Object is a keyed mapping. Properties are sorted by name.
type Object struct {
	Properties []Property
	Required   []string
	// Additional is the schema for undeclared keys; nil means none are generated.
	Additional    Schema
	MinProperties uint64
	MaxProperties *uint64
	Nullable      bool
}

// Property is one named member of an Object.
type Property struct {
	Name   string
	Schema Schema
}

// Array is an ordered list. A nil Items means the array must stay empty
// (used when a recursive item schema is flattened).
type Array struct {
	Items    Schema
	MinItems uint64
	MaxItems *uint64
	Unique   bool
	Nullable bool
}

type String struct {
	Format    string
	Pattern   string
	MinLength uint64
	MaxLength *uint64
	Nullable  bool
}

// Number covers both "number" and "integer"; Integer selects the latter.
type Number struct {
	Integer      bool
	Format       string
	Min          *float64
	Max          *float64
	ExclusiveMin bool
	ExclusiveMax bool
	MultipleOf   *float64
	Nullable     bool
}

type Boolean struct {
	Nullable bool
}

type Null struct{}

// Enum is a closed set of literal values of any JSON type.
type Enum struct {
	Values []any
}

// Choice is oneOf/anyOf: any one of Options satisfies it.
type Choice struct {
	Options []Schema
}

// Any accepts every value (the empty schema).
type Any struct{}

// Invalid marks a fragment that could be dereferenced but not understood,
// such as an unknown type name or an allOf with conflicting members.
type Invalid struct {
	Reason string
}

func (*Object) Kind() Kind  { return KindObject }
func (*Array) Kind() Kind   { return KindArray }
func (*String) Kind() Kind  { return KindString }
func (*Boolean) Kind() Kind { return KindBoolean }
func (*Null) Kind() Kind    { return KindNull }
func (*Enum) Kind() Kind    { return KindEnum }
func (*Choice) Kind() Kind  { return KindChoice }
func (*Any) Kind() Kind     { return KindAny }
func (*Invalid) Kind() Kind { return KindInvalid }

func (n *Number) Kind() Kind {
	if n.Integer {
		return KindInteger
	}
	return KindNumber
}

func (*Object) isSchema()  {}
func (*Array) isSchema()   {}
func (*String) isSchema()  {}
func (*Number) isSchema()  {}
func (*Boolean) isSchema() {}
func (*Null) isSchema()    {}
func (*Enum) isSchema()    {}
func (*Choice) isSchema()  {}
func (*Any) isSchema()     {}
func (*Invalid) isSchema() {}

// IsRequired reports whether name is listed in o.Required.
func (o *Object) IsRequired(name string) bool {
	for _, r := range o.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Property returns the schema declared for name, or nil.
func (o *Object) Property(name string) Schema {
	for _, p := range o.Properties {
		if p.Name == name {
			return p.Schema
		}
	}
	return nil
}
