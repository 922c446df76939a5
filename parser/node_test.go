package parser

import (
	"testing"

	"github.com/gofhir/profileengine/choice"
	"github.com/gofhir/profileengine/primitive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = PropertySchema{
	"name":  {IsPrimitive: true, FHIRType: "string"},
	"given": {IsPrimitive: true, IsArray: true, FHIRType: "string"},
}

func TestParseObjectScalarPrimitiveMetadataMerge(t *testing.T) {
	obj := map[string]any{
		"name":  "Jones",
		"_name": map[string]any{"id": "n1"},
	}
	parsed, issues := ParseObject(obj, testSchema, nil, "Patient")
	require.Empty(t, issues)
	wm, ok := parsed.Get("name").(primitive.WithMetadata)
	require.True(t, ok)
	assert.Equal(t, "Jones", wm.Value)
	require.NotNil(t, wm.ID)
	assert.Equal(t, "n1", *wm.ID)
}

func TestParseObjectArrayPrimitiveMetadataAlignment(t *testing.T) {
	obj := map[string]any{
		"given":  []any{"Jane", "Q"},
		"_given": []any{nil, map[string]any{"id": "g2"}},
	}
	parsed, issues := ParseObject(obj, testSchema, nil, "Patient")
	require.Empty(t, issues)
	arr := parsed.Get("given").([]any)
	require.Len(t, arr, 2)
	assert.Equal(t, "Jane", arr[0])
	wm, ok := arr[1].(primitive.WithMetadata)
	require.True(t, ok)
	assert.Equal(t, "Q", wm.Value)
	assert.Equal(t, "g2", *wm.ID)
}

func TestParseObjectUnknownPropertyWarns(t *testing.T) {
	obj := map[string]any{"name": "Jones", "bogus": 1}
	_, issues := ParseObject(obj, testSchema, nil, "Patient")
	require.Len(t, issues, 1)
	assert.Equal(t, "UNEXPECTED_PROPERTY", string(issues[0].Code))
}

func TestParseObjectChoiceFieldResolved(t *testing.T) {
	obj := map[string]any{"valueString": "hi"}
	fields := []choice.FieldSpec{{BaseName: "value", AllowedTypes: []string{"String", "Boolean"}}}
	parsed, issues := ParseObject(obj, PropertySchema{}, fields, "Extension")
	require.Empty(t, issues)
	require.Contains(t, parsed.Choices, "value")
	assert.Equal(t, "hi", parsed.Choices["value"].Value)
}

func TestParseObjectArrayWrapsLoneScalar(t *testing.T) {
	obj := map[string]any{"given": "Solo"}
	parsed, issues := ParseObject(obj, testSchema, nil, "Patient")
	require.Len(t, issues, 1)
	assert.Equal(t, "ARRAY_MISMATCH", string(issues[0].Code))
	arr := parsed.Get("given").([]any)
	assert.Equal(t, []any{"Solo"}, arr)
}

func TestParsePrimitiveWithMetaAbsent(t *testing.T) {
	_, present, issues := ParsePrimitiveWithMeta(map[string]any{}, "status", "code", "StructureDefinition.status")
	assert.False(t, present)
	assert.Empty(t, issues)
}
