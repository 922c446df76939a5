package slicing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/profileengine/parser"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }
func boolp(b bool) *bool    { return &b }

func TestMergeNewSlicingWithExplicitDescriptor(t *testing.T) {
	base := parser.ElementDefinition{Path: "Patient.identifier", Min: intp(0), Max: strp("*")}
	ordered := false
	candidates := []parser.ElementDefinition{
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
	out, issues := Merge(base, candidates)
	require.Empty(t, issues)
	require.Len(t, out, 3)
	require.NotNil(t, out[0].Slicing)
	assert.Equal(t, "value", out[0].Slicing.Discriminator[0].Type)
	assert.Equal(t, "mrn", *out[1].SliceName)
	require.NotNil(t, out[1].Min)
	assert.Equal(t, 1, *out[1].Min)
	assert.Equal(t, "ssn", *out[2].SliceName)
}

func TestMergeNewSlicingOnExtensionDefaultsDiscriminator(t *testing.T) {
	base := parser.ElementDefinition{Path: "Patient.extension", Min: intp(0), Max: strp("*")}
	candidates := []parser.ElementDefinition{
		{Path: "Patient.extension", SliceName: strp("race"), Max: strp("1")},
	}
	out, issues := Merge(base, candidates)
	require.Empty(t, issues)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].Slicing)
	assert.Equal(t, "value", out[0].Slicing.Discriminator[0].Type)
	assert.Equal(t, "url", out[0].Slicing.Discriminator[0].Path)
	assert.Equal(t, "open", out[0].Slicing.Rules)
	require.NotNil(t, out[0].Slicing.Ordered)
	assert.False(t, *out[0].Slicing.Ordered)
}

func TestMergeNewSlicingWithoutDescriptorDefaultsOpen(t *testing.T) {
	base := parser.ElementDefinition{Path: "Patient.contact", Min: intp(0), Max: strp("*")}
	candidates := []parser.ElementDefinition{
		{Path: "Patient.contact", SliceName: strp("emergency"), Max: strp("1")},
	}
	out, issues := Merge(base, candidates)
	require.Empty(t, issues)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].Slicing)
	assert.Equal(t, "open", out[0].Slicing.Rules)
}

func TestMergeExistingSlicingTighteningRulesAccepted(t *testing.T) {
	base := parser.ElementDefinition{
		Path: "Patient.identifier",
		Slicing: &parser.Slicing{
			Discriminator: []parser.Discriminator{{Type: "value", Path: "system"}},
			Rules:         "open",
		},
	}
	candidates := []parser.ElementDefinition{
		{
			Path: "Patient.identifier",
			Slicing: &parser.Slicing{
				Discriminator: []parser.Discriminator{{Type: "value", Path: "system"}},
				Rules:         "closed",
			},
		},
		{Path: "Patient.identifier", SliceName: strp("mrn"), MustSupport: boolp(true)},
	}
	out, issues := Merge(base, candidates)
	require.Empty(t, issues)
	require.Len(t, out, 2)
	assert.Equal(t, "closed", out[0].Slicing.Rules)
}

func TestMergeExistingSlicingRelaxingRulesRejected(t *testing.T) {
	base := parser.ElementDefinition{
		Path: "Patient.identifier",
		Slicing: &parser.Slicing{
			Discriminator: []parser.Discriminator{{Type: "value", Path: "system"}},
			Rules:         "closed",
		},
	}
	candidates := []parser.ElementDefinition{
		{
			Path: "Patient.identifier",
			Slicing: &parser.Slicing{
				Discriminator: []parser.Discriminator{{Type: "value", Path: "system"}},
				Rules:         "open",
			},
		},
	}
	out, issues := Merge(base, candidates)
	require.Len(t, issues, 1)
	assert.Equal(t, "SLICING_ERROR", string(issues[0].Code))
	assert.Equal(t, "closed", out[0].Slicing.Rules, "base descriptor retained on rejected relaxing attempt")
}

func TestMergeExistingSlicingDiscriminatorMismatchRejected(t *testing.T) {
	base := parser.ElementDefinition{
		Path: "Patient.identifier",
		Slicing: &parser.Slicing{
			Discriminator: []parser.Discriminator{{Type: "value", Path: "system"}},
			Rules:         "open",
		},
	}
	candidates := []parser.ElementDefinition{
		{
			Path: "Patient.identifier",
			Slicing: &parser.Slicing{
				Discriminator: []parser.Discriminator{{Type: "pattern", Path: "system"}},
				Rules:         "open",
			},
		},
	}
	_, issues := Merge(base, candidates)
	require.Len(t, issues, 1)
	assert.Equal(t, "SLICING_ERROR", string(issues[0].Code))
}

func TestMergeExistingSlicingNewNamedSliceAppended(t *testing.T) {
	base := parser.ElementDefinition{
		Path: "Patient.identifier",
		Slicing: &parser.Slicing{
			Discriminator: []parser.Discriminator{{Type: "value", Path: "system"}},
			Rules:         "open",
		},
	}
	candidates := []parser.ElementDefinition{
		{Path: "Patient.identifier", SliceName: strp("passport"), Max: strp("1")},
	}
	out, issues := Merge(base, candidates)
	require.Empty(t, issues)
	require.Len(t, out, 2)
	assert.Equal(t, "passport", *out[1].SliceName)
}
