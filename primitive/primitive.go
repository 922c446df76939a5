// Package primitive implements the FHIR primitive-element merge step (spec
// §4.B): validating a primitive value's host-language shape against its
// declared FHIR type, and folding an optional companion "_field" metadata
// object (id/extension) into a single PrimitiveWithMetadata value.
package primitive

import (
	"encoding/json"

	"github.com/gofhir/profileengine/issue"
	"github.com/shopspring/decimal"
)

// HostType is the host-language shape a FHIR primitive type decodes to.
type HostType int

const (
	HostUnknown HostType = iota
	HostBool
	HostNumber
	HostString
)

// numericTypes are the five FHIR primitive types with numeric JSON
// representation. integer, positiveInt, unsignedInt and integer64
// additionally reject non-integral values; decimal accepts any numeric
// literal (decimal is kept as an exact shopspring/decimal.Decimal to avoid float
// round-tripping drift across parse/serialize cycles).
var numericTypes = map[string]bool{
	"integer":     true,
	"decimal":     true,
	"positiveInt": true,
	"unsignedInt": true,
	"integer64":   true,
}

var integralOnlyTypes = map[string]bool{
	"integer":     true,
	"positiveInt": true,
	"unsignedInt": true,
	"integer64":   true,
}

// HostTypeFor maps a FHIR primitive type name to the host type family it
// must decode as. Unknown type names default to string, matching the
// string-based family's fallback behavior in the FHIR R4 primitive set.
func HostTypeFor(fhirType string) HostType {
	if fhirType == "boolean" {
		return HostBool
	}
	if numericTypes[fhirType] {
		return HostNumber
	}
	return HostString
}

// ElementMeta is the decoded shape of a "_field" companion object: at most
// an id and a list of raw (not-yet-parsed) Extension objects. Parsing the
// extensions themselves is the generic complex parser's job (it recurses
// into the Extension PropertySchema); this package only threads them
// through untouched.
type ElementMeta struct {
	ID        *string
	Extension []json.RawMessage
}

// WithMetadata is the three-shape PrimitiveWithMetadata product type from
// spec §3: Value is present unless only extension/id were given, ID and
// Extension are both optional. Plain() reports the degenerate "no metadata"
// case, which callers serialize back to a bare value rather than an object.
type WithMetadata struct {
	Value     any
	HasValue  bool
	ID        *string
	Extension []json.RawMessage
}

// Plain reports whether no metadata is attached, meaning the merged result
// should be treated as exactly the raw primitive value.
func (w WithMetadata) Plain() bool {
	return w.ID == nil && len(w.Extension) == 0
}

// MergeElement validates value against fhirType and folds in elementMeta,
// the companion "_field" object, returning either the raw value (no
// metadata) or a WithMetadata wrapper. path is used only to annotate
// diagnostics.
func MergeElement(value any, elementMeta *ElementMeta, fhirType, path string) (any, []issue.Issue) {
	var issues []issue.Issue

	if value != nil {
		if iss, ok := validateHostShape(value, fhirType, path); !ok {
			issues = append(issues, iss)
		} else if fhirType == "decimal" {
			value = normalizeDecimal(value)
		}
	}

	if elementMeta == nil || (elementMeta.ID == nil && len(elementMeta.Extension) == 0) {
		return value, issues
	}

	return WithMetadata{
		Value:     value,
		HasValue:  value != nil,
		ID:        elementMeta.ID,
		Extension: elementMeta.Extension,
	}, issues
}

// MergeArray merges parallel value/elementMeta arrays per spec §4.B:
// elementMetas must be nil or exactly len(values); a length mismatch raises
// ARRAY_MISMATCH. A nil entry in either array is a legal alignment
// placeholder, not a missing value.
func MergeArray(values []any, elementMetas []*ElementMeta, fhirType, path string) ([]any, []issue.Issue) {
	if elementMetas != nil && len(elementMetas) != len(values) {
		return values, []issue.Issue{issue.Errorf(issue.CodeArrayMismatch, path,
			"primitive array length %d does not match metadata array length %d", len(values), len(elementMetas))}
	}

	merged := make([]any, len(values))
	var issues []issue.Issue
	for i, v := range values {
		var meta *ElementMeta
		if elementMetas != nil {
			meta = elementMetas[i]
		}
		itemPath := issue.IndexPath(path, i)
		m, iss := MergeElement(v, meta, fhirType, itemPath)
		merged[i] = m
		issues = append(issues, iss...)
	}
	return merged, issues
}

// validateHostShape checks that value decodes to the host type family
// fhirType requires, returning an INVALID_PRIMITIVE issue on mismatch.
func validateHostShape(value any, fhirType, path string) (issue.Issue, bool) {
	switch HostTypeFor(fhirType) {
	case HostBool:
		if _, ok := value.(bool); !ok {
			return issue.Errorf(issue.CodeInvalidPrimitive, path,
				"expected boolean for FHIR type %q, got %T", fhirType, value), false
		}
	case HostNumber:
		n, ok := asNumber(value)
		if !ok {
			return issue.Errorf(issue.CodeInvalidPrimitive, path,
				"expected number for FHIR type %q, got %T", fhirType, value), false
		}
		if integralOnlyTypes[fhirType] && !n.IsInteger() {
			return issue.Errorf(issue.CodeInvalidPrimitive, path,
				"FHIR type %q requires an integral value, got %s", fhirType, n.String()), false
		}
		if fhirType == "positiveInt" && !n.IsPositive() {
			return issue.Errorf(issue.CodeInvalidPrimitive, path,
				"FHIR type positiveInt requires a value > 0, got %s", n.String()), false
		}
		if fhirType == "unsignedInt" && n.IsNegative() {
			return issue.Errorf(issue.CodeInvalidPrimitive, path,
				"FHIR type unsignedInt requires a value >= 0, got %s", n.String()), false
		}
	case HostString:
		if _, ok := value.(string); !ok {
			return issue.Errorf(issue.CodeInvalidPrimitive, path,
				"expected string for FHIR type %q, got %T", fhirType, value), false
		}
	}
	return issue.Issue{}, true
}

// asNumber coerces a decoded JSON numeric value (float64 from encoding/json,
// or json.Number when the decoder runs with UseNumber, as the parser
// package does to avoid float precision loss on FHIR decimal) into a
// shopspring/decimal.Decimal for uniform integrality/sign checks.
func asNumber(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	default:
		return decimal.Decimal{}, false
	}
}

// normalizeDecimal converts a decoded numeric value into an exact
// decimal.Decimal for the "decimal" FHIR type, so Serialize() can round-trip
// the original textual precision instead of reformatting through float64.
func normalizeDecimal(value any) any {
	d, ok := asNumber(value)
	if !ok {
		return value
	}
	return d
}

// FormatDecimal renders a decimal.Decimal (or passthrough value) the way
// the serializer expects to write it back into JSON: without a trailing
// exponent and preserving the original scale.
func FormatDecimal(value any) (json.RawMessage, error) {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return json.Marshal(value)
	}
	if exp := d.Exponent(); exp < 0 {
		return json.RawMessage(d.StringFixed(-exp)), nil
	}
	return json.RawMessage(d.String()), nil
}
