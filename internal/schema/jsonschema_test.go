package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrF(f float64) *float64 { return &f }
func ptrU(u uint64) *uint64   { return &u }

func TestJSON_Object(t *testing.T) {
	s := &Object{
		Properties: []Property{
			{Name: "name", Schema: &String{MinLength: 2, MaxLength: ptrU(10)}},
			{Name: "age", Schema: &Number{Integer: true, Min: ptrF(0), ExclusiveMin: true}},
			{Name: "tags", Schema: &Array{Items: &String{}, Unique: true, MinItems: 1}},
		},
		Required: []string{"name"},
	}

	out := JSON(s)
	assert.Equal(t, DraftURI, out["$schema"])
	assert.Equal(t, "object", out["type"])
	assert.Equal(t, []any{"name"}, out["required"])

	props, ok := out["properties"].(map[string]any)
	require.True(t, ok)
	require.Len(t, props, 3)

	age := props["age"].(map[string]any)
	assert.Equal(t, "integer", age["type"])
	assert.Equal(t, 0.0, age["minimum"])
	assert.Equal(t, true, age["exclusiveMinimum"])

	tags := props["tags"].(map[string]any)
	assert.Equal(t, true, tags["uniqueItems"])
	assert.Equal(t, uint64(1), tags["minItems"])

	_, err := json.Marshal(out)
	require.NoError(t, err)
}

func TestJSON_NullableAndRecursiveArray(t *testing.T) {
	out := JSON(&Array{Nullable: true})
	assert.Equal(t, []any{"array", "null"}, out["type"])
	assert.Equal(t, 0, out["maxItems"])
	assert.NotContains(t, out, "items")
}

func TestJSON_ChoiceEnumInvalid(t *testing.T) {
	out := JSON(&Choice{Options: []Schema{&Boolean{}, &Null{}}})
	opts, ok := out["anyOf"].([]any)
	require.True(t, ok)
	assert.Len(t, opts, 2)

	enum := JSON(&Enum{Values: []any{"a", 1.0}})
	assert.Equal(t, []any{"a", 1.0}, enum["enum"])

	inv := JSON(&Invalid{Reason: "bad"})
	assert.Contains(t, inv, "not")
}

func TestKinds(t *testing.T) {
	assert.Equal(t, KindInteger, (&Number{Integer: true}).Kind())
	assert.Equal(t, KindNumber, (&Number{}).Kind())
	assert.Equal(t, KindChoice, (&Choice{}).Kind())

	o := &Object{Properties: []Property{{Name: "id", Schema: &String{}}}, Required: []string{"id"}}
	assert.True(t, o.IsRequired("id"))
	assert.False(t, o.IsRequired("other"))
	assert.NotNil(t, o.Property("id"))
	assert.Nil(t, o.Property("other"))
}
