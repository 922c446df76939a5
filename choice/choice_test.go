package choice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractChoiceValueSingleMatch(t *testing.T) {
	obj := map[string]any{"valueString": "hello"}
	field := FieldSpec{BaseName: "value", AllowedTypes: allTypes}
	cv, consumed, issues := ExtractChoiceValue(obj, field, "Extension.value[x]")
	require.Empty(t, issues)
	require.NotNil(t, cv)
	assert.Equal(t, "valueString", cv.PropertyName)
	assert.Equal(t, "String", cv.TypeName)
	assert.Equal(t, "hello", cv.Value)
	assert.Equal(t, []string{"valueString"}, consumed)
}

func TestExtractChoiceValueAbsentReturnsNil(t *testing.T) {
	obj := map[string]any{"other": "x"}
	field := FieldSpec{BaseName: "value", AllowedTypes: allTypes}
	cv, consumed, issues := ExtractChoiceValue(obj, field, "Extension.value[x]")
	assert.Nil(t, cv)
	assert.Nil(t, consumed)
	assert.Empty(t, issues)
}

func TestExtractChoiceValueMultipleValuesErrors(t *testing.T) {
	obj := map[string]any{"valueString": "a", "valueInteger": 1}
	field := FieldSpec{BaseName: "value", AllowedTypes: allTypes}
	cv, _, issues := ExtractChoiceValue(obj, field, "Extension.value[x]")
	assert.Nil(t, cv)
	require.Len(t, issues, 1)
	assert.Equal(t, "MULTIPLE_CHOICE_VALUES", string(issues[0].Code))
}

func TestExtractChoiceValueDisallowedTypeErrors(t *testing.T) {
	obj := map[string]any{"minValueReference": map[string]any{"reference": "Patient/1"}}
	field := FieldSpec{BaseName: "minValue", AllowedTypes: orderedTypes}
	cv, _, issues := ExtractChoiceValue(obj, field, "ElementDefinition.minValue[x]")
	assert.Nil(t, cv)
	require.Len(t, issues, 1)
	assert.Equal(t, "INVALID_CHOICE_TYPE", string(issues[0].Code))
}

func TestExtractChoiceValueCapturesElementExtensionCompanion(t *testing.T) {
	obj := map[string]any{
		"valueBoolean":  true,
		"_valueBoolean": map[string]any{"id": "a1"},
	}
	field := FieldSpec{BaseName: "value", AllowedTypes: allTypes}
	cv, consumed, issues := ExtractChoiceValue(obj, field, "Extension.value[x]")
	require.Empty(t, issues)
	require.NotNil(t, cv)
	assert.Equal(t, "a1", cv.ElementExtension["id"])
	assert.ElementsMatch(t, []string{"valueBoolean", "_valueBoolean"}, consumed)
}

func TestExtractAllChoiceValuesUnion(t *testing.T) {
	obj := map[string]any{
		"fixedString":  "a",
		"patternCode":  "b",
		"unrelated":    "c",
	}
	fields := Registry["ElementDefinition"]
	values, consumed, issues := ExtractAllChoiceValues(obj, fields, "ElementDefinition")
	require.Empty(t, issues)
	assert.Len(t, values, 2)
	assert.True(t, consumed["fixedString"])
	assert.True(t, consumed["patternCode"])
	assert.False(t, consumed["unrelated"])
}

func TestIsChoiceKey(t *testing.T) {
	assert.True(t, IsChoiceKey("valueString", "value"))
	assert.False(t, IsChoiceKey("value", "value"))
	assert.False(t, IsChoiceKey("values", "value"))
	assert.False(t, IsChoiceKey("otherString", "value"))
}
