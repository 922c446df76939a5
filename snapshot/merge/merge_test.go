package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/profileengine/parser"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }
func boolp(b bool) *bool    { return &b }

func TestBranchANoDiffMatchClonesBaseWithTraceability(t *testing.T) {
	base := []parser.ElementDefinition{
		{Path: "Patient", Min: intp(0), Max: strp("*")},
		{Path: "Patient.name", Min: intp(0), Max: strp("*")},
	}
	out, issues := Merge(base, nil, Options{})
	require.Empty(t, issues)
	require.Len(t, out, 2)
	assert.Equal(t, "Patient.name", out[1].Path)
	require.NotNil(t, out[1].Base)
	assert.Equal(t, "Patient.name", out[1].Base.Path)
	assert.Equal(t, 0, out[1].Base.Min)
}

func TestBranchBSingleDiffAppliesConstraints(t *testing.T) {
	base := []parser.ElementDefinition{
		{Path: "Patient.name", Min: intp(0), Max: strp("*")},
	}
	diff := []parser.ElementDefinition{
		{Path: "Patient.name", Min: intp(1), MustSupport: boolp(true)},
	}
	out, issues := Merge(base, diff, Options{})
	require.Empty(t, issues)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Min)
	assert.Equal(t, 1, *out[0].Min)
	require.NotNil(t, out[0].MustSupport)
	assert.True(t, *out[0].MustSupport)
	assert.Equal(t, 0, out[0].Base.Min, "base traceability reports the original base cardinality")
}

func TestBranchCTypeSlicingOnChoiceElement(t *testing.T) {
	base := []parser.ElementDefinition{
		{
			Path: "Observation.value[x]",
			Min:  intp(0), Max: strp("1"),
			Type: []parser.TypeRef{{Code: "quantity"}, {Code: "string"}, {Code: "boolean"}},
		},
	}
	diff := []parser.ElementDefinition{
		{Path: "Observation.valueQuantity", Max: strp("1")},
		{Path: "Observation.valueString", Max: strp("1")},
	}
	out, issues := Merge(base, diff, Options{})
	require.Empty(t, issues)
	require.Len(t, out, 3)
	assert.Equal(t, "Observation.value[x]", out[0].Path)
	require.NotNil(t, out[0].Slicing)
	assert.Equal(t, "Observation.valueQuantity", out[1].Path)
	require.Len(t, out[1].Type, 1)
	assert.Equal(t, "quantity", out[1].Type[0].Code)
	assert.Equal(t, "Observation.valueString", out[2].Path)
	require.Len(t, out[2].Type, 1)
	assert.Equal(t, "string", out[2].Type[0].Code)
}

func TestChoiceNarrowingSingleDiffOnConcreteVariant(t *testing.T) {
	base := []parser.ElementDefinition{
		{
			Path: "Observation.value[x]",
			Type: []parser.TypeRef{{Code: "quantity"}, {Code: "string"}},
		},
	}
	diff := []parser.ElementDefinition{
		{Path: "Observation.valueQuantity", MustSupport: boolp(true)},
	}
	out, issues := Merge(base, diff, Options{})
	require.Empty(t, issues)
	require.Len(t, out, 1)
	assert.Equal(t, "Observation.valueQuantity", out[0].Path)
	require.Len(t, out[0].Type, 1)
	assert.Equal(t, "quantity", out[0].Type[0].Code)
}

func TestUnconsumedDifferentialEmitsWarning(t *testing.T) {
	base := []parser.ElementDefinition{{Path: "Patient"}}
	diff := []parser.ElementDefinition{{Path: "Patient.nonexistent", MustSupport: boolp(true)}}
	_, issues := Merge(base, diff, Options{})
	require.Len(t, issues, 1)
	assert.Equal(t, "DIFFERENTIAL_NOT_CONSUMED", string(issues[0].Code))
}

func TestDatatypeExpansionInsertsDatatypeChildren(t *testing.T) {
	base := []parser.ElementDefinition{
		{Path: "Patient.identifier", Min: intp(0), Max: strp("*"), Type: []parser.TypeRef{{Code: "Identifier"}}},
	}
	diff := []parser.ElementDefinition{
		{Path: "Patient.identifier.system", Min: intp(1)},
	}
	resolver := func(typeCode string) ([]parser.ElementDefinition, bool) {
		if typeCode != "Identifier" {
			return nil, false
		}
		return []parser.ElementDefinition{
			{Path: "Identifier"},
			{Path: "Identifier.system", Min: intp(0), Max: strp("1")},
			{Path: "Identifier.value", Min: intp(0), Max: strp("1")},
		}, true
	}
	out, issues := Merge(base, diff, Options{ResolveDatatype: resolver})
	require.Empty(t, issues)
	require.Len(t, out, 3)
	assert.Equal(t, "Patient.identifier", out[0].Path)
	assert.Equal(t, "Patient.identifier.system", out[1].Path)
	require.NotNil(t, out[1].Min)
	assert.Equal(t, 1, *out[1].Min)
	assert.Equal(t, "Patient.identifier.value", out[2].Path)
}

func TestDatatypeExpansionWithoutTypeIsInternalError(t *testing.T) {
	base := []parser.ElementDefinition{{Path: "Patient.identifier"}}
	diff := []parser.ElementDefinition{{Path: "Patient.identifier.system"}}
	_, issues := Merge(base, diff, Options{ResolveDatatype: func(string) ([]parser.ElementDefinition, bool) { return nil, false }})
	require.NotEmpty(t, issues)
	assert.Equal(t, "INTERNAL_ERROR", string(issues[0].Code))
}

func TestExplicitSlicingDelegatesToSlicingPackage(t *testing.T) {
	base := []parser.ElementDefinition{
		{Path: "Patient.identifier", Min: intp(0), Max: strp("*")},
	}
	ordered := false
	diff := []parser.ElementDefinition{
		{
			Path: "Patient.identifier",
			Slicing: &parser.Slicing{
				Discriminator: []parser.Discriminator{{Type: "value", Path: "system"}},
				Rules:         "open",
				Ordered:       &ordered,
			},
		},
		{Path: "Patient.identifier", SliceName: strp("mrn"), Min: intp(1), Max: strp("1")},
		{Path: "Patient.identifier", SliceName: strp("ssn"), Min: intp(0), Max: strp("1")},
	}
	out, issues := Merge(base, diff, Options{})
	require.Empty(t, issues)
	require.Len(t, out, 3)
	require.NotNil(t, out[0].Slicing)
	assert.Equal(t, "mrn", *out[1].SliceName)
	assert.Equal(t, "ssn", *out[2].SliceName)
}
