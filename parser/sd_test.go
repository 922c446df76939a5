package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalSD() map[string]any {
	return map[string]any{
		"resourceType": "StructureDefinition",
		"url":          "http://example.org/fhir/StructureDefinition/custom-patient",
		"name":         "CustomPatient",
		"status":       "draft",
		"kind":         "resource",
		"abstract":     false,
		"type":         "Patient",
	}
}

func TestParseStructureDefinitionMinimal(t *testing.T) {
	result := ParseStructureDefinition(minimalSD())
	require.Empty(t, result.Errors())
	sd := result.Data()
	assert.Equal(t, "http://example.org/fhir/StructureDefinition/custom-patient", sd.URL)
	assert.Equal(t, "CustomPatient", sd.Name)
	assert.Equal(t, "draft", sd.Status)
	assert.False(t, sd.Abstract)
}

func TestParseStructureDefinitionMissingRequiredFields(t *testing.T) {
	obj := map[string]any{"resourceType": "StructureDefinition"}
	result := ParseStructureDefinition(obj)
	assert.False(t, result.OK())
	codes := map[string]bool{}
	for _, iss := range result.Errors() {
		codes[string(iss.Code)] = true
	}
	assert.True(t, codes["INVALID_PRIMITIVE"])
}

func TestParseStructureDefinitionWrongResourceType(t *testing.T) {
	obj := minimalSD()
	obj["resourceType"] = "Patient"
	result := ParseStructureDefinition(obj)
	require.False(t, result.OK())
	assert.Equal(t, "UNKNOWN_RESOURCE_TYPE", string(result.Errors()[0].Code))
}

func TestParseStructureDefinitionWithDifferential(t *testing.T) {
	obj := minimalSD()
	obj["differential"] = map[string]any{}
	obj["snapshot"] = map[string]any{
		"element": []any{
			map[string]any{"path": "Patient", "min": float64(0), "max": "*"},
			map[string]any{"path": "Patient.identifier", "min": float64(0), "max": "*"},
		},
	}
	result := ParseStructureDefinition(obj)
	require.Empty(t, result.Errors())
	sd := result.Data()
	require.Len(t, sd.Snapshot, 2)
	assert.Equal(t, "Patient.identifier", sd.Snapshot[1].Path)
	require.NotNil(t, sd.Snapshot[1].Min)
	assert.Equal(t, 0, *sd.Snapshot[1].Min)
	require.NotNil(t, sd.Snapshot[1].Max)
	assert.Equal(t, "*", *sd.Snapshot[1].Max)
}

func TestParseElementDefinitionWithChoiceAndMetadata(t *testing.T) {
	obj := map[string]any{
		"path":         "Observation.value[x]",
		"min":          float64(0),
		"max":          "1",
		"fixedString":  "abc",
		"id":           "el-1",
		"_id":          map[string]any{"id": "meta-1"},
		"mustSupport":  true,
	}
	ed, issues := ParseElementDefinition(obj, "Observation.value[x]")
	require.Empty(t, issues)
	assert.Equal(t, "Observation.value[x]", ed.Path)
	require.NotNil(t, ed.Fixed)
	assert.Equal(t, "String", ed.Fixed.TypeName)
	assert.Equal(t, "abc", ed.Fixed.Value)
	require.NotNil(t, ed.MustSupport)
	assert.True(t, *ed.MustSupport)
	require.NotNil(t, ed.ID)
	assert.Equal(t, "el-1", *ed.ID)
}

func TestParseElementDefinitionMissingPath(t *testing.T) {
	_, issues := ParseElementDefinition(map[string]any{}, "Observation")
	require.Len(t, issues, 1)
	assert.Equal(t, "INVALID_PRIMITIVE", string(issues[0].Code))
}

func TestParseElementDefinitionSlicingAndType(t *testing.T) {
	obj := map[string]any{
		"path": "Observation.component",
		"slicing": map[string]any{
			"discriminator": []any{
				map[string]any{"type": "value", "path": "code"},
			},
			"rules": "open",
		},
		"type": []any{
			map[string]any{"code": "BackboneElement"},
		},
	}
	ed, issues := ParseElementDefinition(obj, "Observation.component")
	require.Empty(t, issues)
	require.NotNil(t, ed.Slicing)
	require.Len(t, ed.Slicing.Discriminator, 1)
	assert.Equal(t, "value", ed.Slicing.Discriminator[0].Type)
	assert.Equal(t, "open", ed.Slicing.Rules)
	require.Len(t, ed.Type, 1)
	assert.Equal(t, "BackboneElement", ed.Type[0].Code)
}

func TestParseStructureDefinitionExtensionMetadataFields(t *testing.T) {
	obj := minimalSD()
	obj["mapping"] = []any{
		map[string]any{"identity": "rim", "map": "Entity.Role", "comment": "maps to role"},
	}
	obj["context"] = []any{
		map[string]any{"type": "element", "expression": "Patient"},
	}
	obj["contextInvariant"] = []any{"name.exists()"}
	obj["identifier"] = []any{
		map[string]any{"system": "http://example.org/ids", "value": "sd-1"},
	}
	obj["contact"] = []any{
		map[string]any{"name": "HL7 FHIR", "telecom": []any{
			map[string]any{"system": "url", "value": "http://hl7.org"},
		}},
	}
	obj["useContext"] = []any{
		map[string]any{"code": map[string]any{"system": "http://terminology.hl7.org/CodeSystem/usage-context-type", "code": "focus"},
			"valueCodeableConcept": map[string]any{"text": "Observation"}},
	}
	obj["jurisdiction"] = []any{
		map[string]any{"coding": []any{map[string]any{"system": "urn:iso:std:iso:3166", "code": "US"}}},
	}
	obj["keyword"] = []any{
		map[string]any{"system": "http://example.org/keywords", "code": "vital-signs"},
	}

	result := ParseStructureDefinition(obj)
	for _, iss := range result.Errors() {
		t.Errorf("unexpected error: %s %s", iss.Code, iss.Message)
	}
	for _, iss := range result.Warnings() {
		assert.NotEqual(t, "UNEXPECTED_PROPERTY", string(iss.Code), iss.Message)
	}

	sd := result.Data()
	require.Len(t, sd.Mapping, 1)
	assert.Equal(t, "rim", sd.Mapping[0].Identity)
	require.Len(t, sd.Context, 1)
	assert.Equal(t, "element", sd.Context[0].Type)
	assert.Equal(t, "Patient", sd.Context[0].Expression)
	assert.Equal(t, []string{"name.exists()"}, sd.ContextInvariant)
	require.Len(t, sd.Identifier, 1)
	require.NotNil(t, sd.Identifier[0].Value)
	assert.Equal(t, "sd-1", *sd.Identifier[0].Value)
	require.Len(t, sd.Contact, 1)
	require.NotNil(t, sd.Contact[0].Name)
	assert.Equal(t, "HL7 FHIR", *sd.Contact[0].Name)
	require.Len(t, sd.Contact[0].Telecom, 1)
	require.NotNil(t, sd.Contact[0].Telecom[0].Value)
	assert.Equal(t, "http://hl7.org", *sd.Contact[0].Telecom[0].Value)
	require.Len(t, sd.UseContext, 1)
	require.NotNil(t, sd.UseContext[0].Value)
	assert.Equal(t, "CodeableConcept", sd.UseContext[0].Value.TypeName)
	require.Len(t, sd.Jurisdiction, 1)
	require.Len(t, sd.Jurisdiction[0].Coding, 1)
	require.NotNil(t, sd.Jurisdiction[0].Coding[0].Code)
	assert.Equal(t, "US", *sd.Jurisdiction[0].Coding[0].Code)
	require.Len(t, sd.Keyword, 1)
	require.NotNil(t, sd.Keyword[0].Code)
	assert.Equal(t, "vital-signs", *sd.Keyword[0].Code)
}

func TestParseElementDefinitionUnexpectedProperty(t *testing.T) {
	obj := map[string]any{"path": "Patient", "bogus": "x"}
	_, issues := ParseElementDefinition(obj, "Patient")
	var found bool
	for _, iss := range issues {
		if iss.Code == "UNEXPECTED_PROPERTY" {
			found = true
		}
	}
	assert.True(t, found)
}
