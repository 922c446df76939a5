package primitive

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeElementNoMetadataReturnsRawValue(t *testing.T) {
	v, issues := MergeElement("Smith", nil, "string", "Patient.name.family")
	assert.Empty(t, issues)
	assert.Equal(t, "Smith", v)
}

func TestMergeElementWithMetadataWraps(t *testing.T) {
	id := "a1"
	v, issues := MergeElement("male", &ElementMeta{ID: &id}, "code", "Patient.gender")
	require.Empty(t, issues)
	wm, ok := v.(WithMetadata)
	require.True(t, ok)
	assert.Equal(t, "male", wm.Value)
	assert.Equal(t, &id, wm.ID)
	assert.False(t, wm.Plain())
}

func TestMergeElementMetadataOnlyNoValue(t *testing.T) {
	id := "a2"
	v, issues := MergeElement(nil, &ElementMeta{ID: &id}, "code", "Patient.gender")
	require.Empty(t, issues)
	wm := v.(WithMetadata)
	assert.False(t, wm.HasValue)
	assert.Nil(t, wm.Value)
}

func TestMergeElementInvalidPrimitiveType(t *testing.T) {
	_, issues := MergeElement(42, nil, "boolean", "Patient.active")
	require.Len(t, issues, 1)
	assert.Equal(t, "INVALID_PRIMITIVE", string(issues[0].Code))
}

func TestMergeElementIntegralRejectsFraction(t *testing.T) {
	_, issues := MergeElement(json.Number("1.5"), nil, "integer", "Observation.valueInteger")
	require.Len(t, issues, 1)
}

func TestMergeElementPositiveIntRejectsZero(t *testing.T) {
	_, issues := MergeElement(json.Number("0"), nil, "positiveInt", "Patient.multipleBirthInteger")
	require.Len(t, issues, 1)
}

func TestMergeElementUnsignedIntAllowsZero(t *testing.T) {
	_, issues := MergeElement(json.Number("0"), nil, "unsignedInt", "Patient.x")
	assert.Empty(t, issues)
}

func TestMergeElementUnknownTypeDefaultsToString(t *testing.T) {
	_, issues := MergeElement("foo", nil, "someMadeUpType", "X.y")
	assert.Empty(t, issues)
	_, issues = MergeElement(1, nil, "someMadeUpType", "X.y")
	require.Len(t, issues, 1)
}

func TestMergeArrayLengthMismatch(t *testing.T) {
	_, issues := MergeArray([]any{"a", "b"}, []*ElementMeta{{}}, "string", "Patient.given")
	require.Len(t, issues, 1)
	assert.Equal(t, "ARRAY_MISMATCH", string(issues[0].Code))
}

func TestMergeArrayNullAlignmentPlaceholder(t *testing.T) {
	id := "id1"
	values := []any{nil, "Jane"}
	metas := []*ElementMeta{{ID: &id}, nil}
	merged, issues := MergeArray(values, metas, "string", "Patient.given")
	require.Empty(t, issues)
	require.Len(t, merged, 2)
	wm := merged[0].(WithMetadata)
	assert.False(t, wm.HasValue)
	assert.Equal(t, "Jane", merged[1])
}

func TestMergeArrayNilMetadataIsFine(t *testing.T) {
	merged, issues := MergeArray([]any{"a", "b"}, nil, "string", "Patient.given")
	assert.Empty(t, issues)
	assert.Equal(t, []any{"a", "b"}, merged)
}

func TestDecimalRoundTripsExactScale(t *testing.T) {
	v, issues := MergeElement(json.Number("1.50"), nil, "decimal", "Observation.valueQuantity.value")
	require.Empty(t, issues)
	raw, err := FormatDecimal(v)
	require.NoError(t, err)
	assert.Equal(t, "1.50", string(raw))
}
