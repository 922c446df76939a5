// Package choice implements the choice-type engine (spec §4.C): recognizing,
// extracting and restoring FHIR's "field[x]" polymorphic slots, where a
// single logical property is encoded as one of several concretely-typed
// JSON keys ("valueString", "valueQuantity", ...).
package choice

import (
	"unicode"

	"github.com/gofhir/profileengine/issue"
)

// FieldSpec declares one choice-typed slot owned by a complex type: its
// JSON base name ("value", "fixed", "minValue", ...) and the FHIR type
// suffixes it may be narrowed to.
type FieldSpec struct {
	BaseName     string
	AllowedTypes []string
}

// Registry is keyed by owner type name (e.g. "ElementDefinition",
// "Extension") and lists the choice fields that type owns. spec §4.C: 5 for
// ElementDefinition, 1 for Extension, 1 for Example, 1 for UsageContext.
var Registry = map[string][]FieldSpec{
	"ElementDefinition": {
		{BaseName: "defaultValue", AllowedTypes: allTypes},
		{BaseName: "fixed", AllowedTypes: allTypes},
		{BaseName: "pattern", AllowedTypes: allTypes},
		{BaseName: "minValue", AllowedTypes: orderedTypes},
		{BaseName: "maxValue", AllowedTypes: orderedTypes},
	},
	"Extension": {
		{BaseName: "value", AllowedTypes: allTypes},
	},
	"ElementDefinitionExample": {
		{BaseName: "value", AllowedTypes: allTypes},
	},
	"UsageContext": {
		{BaseName: "value", AllowedTypes: []string{"CodeableConcept", "Quantity", "Range", "Reference"}},
	},
}

// orderedTypes are the nine ordered/comparable FHIR types minValue[x] and
// maxValue[x] accept (spec §6).
var orderedTypes = []string{
	"Date", "DateTime", "Instant", "Time", "Decimal", "Integer", "PositiveInt", "UnsignedInt", "Quantity",
}

// allTypes are the complete set of FHIR R4 data types a generic "[x]" slot
// (value[x], fixed[x], pattern[x], defaultValue[x]) may carry.
var allTypes = []string{
	"Base64Binary", "Boolean", "Canonical", "Code", "Date", "DateTime", "Decimal",
	"Id", "Instant", "Integer", "Integer64", "Markdown", "Oid", "PositiveInt",
	"String", "Time", "UnsignedInt", "Uri", "Url", "Uuid",
	"Address", "Age", "Annotation", "Attachment", "CodeableConcept", "CodeableReference",
	"Coding", "ContactPoint", "Count", "Distance", "Duration", "HumanName",
	"Identifier", "Money", "Period", "Quantity", "Range", "Ratio", "RatioRange",
	"Reference", "SampledData", "Signature", "Timing", "ContactDetail",
	"Contributor", "DataRequirement", "Expression", "ParameterDefinition",
	"RelatedArtifact", "TriggerDefinition", "UsageContext", "Dosage", "Meta",
}

// ChoiceValue uniquely identifies which concrete variant of a "field[x]"
// slot was chosen (spec §3). Invariant: PropertyName == BaseName+TypeName,
// and TypeName is one of the owning field's AllowedTypes.
type ChoiceValue struct {
	PropertyName     string
	TypeName         string
	Value            any
	ElementExtension map[string]any
}

// candidate is a JSON key that structurally matches "baseName" + an
// initial-uppercase suffix, before the suffix is checked against the
// field's allowed type list.
type candidate struct {
	key    string
	suffix string
}

// findCandidates scans obj's keys for ones shaped like field.BaseName plus
// an initial-uppercase suffix, ignoring "_"-prefixed metadata companions.
func findCandidates(obj map[string]any, baseName string) []candidate {
	var out []candidate
	for key := range obj {
		if len(key) <= len(baseName) || key[0] == '_' {
			continue
		}
		if key[:len(baseName)] != baseName {
			continue
		}
		suffix := key[len(baseName):]
		r := []rune(suffix)
		if len(r) == 0 || !unicode.IsUpper(r[0]) {
			continue
		}
		out = append(out, candidate{key: key, suffix: suffix})
	}
	return out
}

func contains(types []string, t string) bool {
	for _, a := range types {
		if a == t {
			return true
		}
	}
	return false
}

// ExtractChoiceValue looks for field's slot in obj, enforcing spec §4.C's
// four rules: at most one matching suffix (else MULTIPLE_CHOICE_VALUES), the
// suffix must be in the allowed set (else INVALID_CHOICE_TYPE), an absent
// slot returns (nil, nil, nil) without issue, and a companion "_<key>"
// object is captured as ElementExtension with its key reported as consumed.
func ExtractChoiceValue(obj map[string]any, field FieldSpec, path string) (*ChoiceValue, []string, []issue.Issue) {
	candidates := findCandidates(obj, field.BaseName)
	if len(candidates) == 0 {
		return nil, nil, nil
	}
	if len(candidates) > 1 {
		return nil, nil, []issue.Issue{issue.Errorf(issue.CodeMultipleChoiceValues, path,
			"multiple values present for choice field %q[x]: %v", field.BaseName, candidateKeys(candidates))}
	}

	c := candidates[0]
	if !contains(field.AllowedTypes, c.suffix) {
		return nil, nil, []issue.Issue{issue.Errorf(issue.CodeInvalidChoiceType, path,
			"%q is not an allowed type for choice field %q[x]", c.suffix, field.BaseName)}
	}

	consumed := []string{c.key}
	cv := &ChoiceValue{
		PropertyName: c.key,
		TypeName:     c.suffix,
		Value:        obj[c.key],
	}

	companionKey := "_" + c.key
	if companion, ok := obj[companionKey]; ok {
		if m, ok := companion.(map[string]any); ok {
			cv.ElementExtension = m
		}
		consumed = append(consumed, companionKey)
	}

	return cv, consumed, nil
}

func candidateKeys(cs []candidate) []string {
	keys := make([]string, len(cs))
	for i, c := range cs {
		keys[i] = c.key
	}
	return keys
}

// ExtractAllChoiceValues iterates fields once, returning a map from base
// name to the resolved ChoiceValue, the union of all consumed JSON keys,
// and any issues raised along the way.
func ExtractAllChoiceValues(obj map[string]any, fields []FieldSpec, path string) (map[string]*ChoiceValue, map[string]bool, []issue.Issue) {
	values := make(map[string]*ChoiceValue)
	consumed := make(map[string]bool)
	var issues []issue.Issue

	for _, field := range fields {
		cv, keys, iss := ExtractChoiceValue(obj, field, issue.JoinPath(path, field.BaseName+"[x]"))
		issues = append(issues, iss...)
		if cv != nil {
			values[field.BaseName] = cv
		}
		for _, k := range keys {
			consumed[k] = true
		}
	}

	return values, consumed, issues
}

// IsChoiceKey reports whether key structurally looks like a choice-type
// variant of baseName, without checking it against any allowed-type list.
// Used by the generic complex parser's unknown-choice detection pass
// (spec §4.D step 3), which only needs to know a key is choice-shaped, not
// which concrete ChoiceValue it resolves to.
func IsChoiceKey(key, baseName string) bool {
	if len(key) <= len(baseName) || key[:len(baseName)] != baseName {
		return false
	}
	r := []rune(key[len(baseName):])
	return len(r) > 0 && unicode.IsUpper(r[0])
}
