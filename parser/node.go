package parser

import (
	"encoding/json"

	"github.com/gofhir/profileengine/choice"
	"github.com/gofhir/profileengine/issue"
	"github.com/gofhir/profileengine/pool"
	"github.com/gofhir/profileengine/primitive"
)

// consumedPool pools the "which JSON keys has this object's schema already
// claimed" scratch map ParseObject builds for every complex-type object it
// parses.
var consumedPool = pool.NewMapPool[string, bool](16)

// PropEntry describes one known property in a per-type PropertySchema
// (spec §4.D): whether it is primitive or a nested complex type, whether it
// repeats, and — for nested complex types — how to parse one element of it.
type PropEntry struct {
	IsPrimitive bool
	IsArray     bool
	// FHIRType is the FHIR primitive type name, used when IsPrimitive.
	FHIRType string
	// ParseElement parses one nested complex-type object. Required when
	// !IsPrimitive.
	ParseElement func(obj map[string]any, path string) (any, []issue.Issue)
}

// PropertySchema maps a known JSON field name to how the generic parser
// should handle it.
type PropertySchema map[string]PropEntry

// ParsedObject is the generic complex parser's output for one JSON object:
// known properties already recursively parsed (primitive metadata merged,
// nested complex types built), and the choice-typed slots resolved
// separately since they don't have a single fixed JSON key. Component E's
// typed builders consume a ParsedObject to populate concrete Go structs.
type ParsedObject struct {
	Properties map[string]any
	Choices    map[string]*choice.ChoiceValue
}

// Get returns a known property value, or nil if it was absent.
func (p ParsedObject) Get(name string) any { return p.Properties[name] }

// ParseObject runs the four-pass algorithm from spec §4.D over obj:
//  1. known properties (array/nested/primitive dispatch)
//  2. primitive element metadata pairing ("_field" companions)
//  3. choice-type detection for any remaining unconsumed key
//  4. unknown properties become UNEXPECTED_PROPERTY warnings
func ParseObject(obj map[string]any, schema PropertySchema, choiceFields []choice.FieldSpec, path string) (ParsedObject, []issue.Issue) {
	result := ParsedObject{Properties: make(map[string]any), Choices: make(map[string]*choice.ChoiceValue)}
	var issues []issue.Issue
	consumed := consumedPool.Acquire()
	defer consumedPool.Release(consumed)

	// Pass 1 + 2: known properties, with primitive element metadata ("_field"
	// companions) paired in at the same time a property's value is read —
	// the companion has to be in hand before MergeElement can fold it in,
	// so pass 2 of spec §4.D is performed per-property rather than as a
	// fully separate sweep.
	for name, entry := range schema {
		raw, present := obj[name]
		metaKey := "_" + name
		metaRaw, metaPresent := obj[metaKey]
		if entry.IsPrimitive && metaPresent {
			consumed[metaKey] = true
		}
		if !present && !(entry.IsPrimitive && metaPresent) {
			continue
		}
		consumed[name] = true
		if raw == nil && !metaPresent {
			if entry.IsArray {
				// A null array is tolerated as an empty array; FHIR forbids
				// null outside array alignment slots, but an empty array is
				// legal and the safer recovery than raising UNEXPECTED_NULL
				// for a property that's merely absent of content.
				result.Properties[name] = []any{}
				continue
			}
			issues = append(issues, issue.Errorf(issue.CodeUnexpectedNull, issue.JoinPath(path, name),
				"property %q must not be null", name))
			continue
		}

		elemPath := issue.JoinPath(path, name)
		if entry.IsArray {
			values, arrIssues := parseArrayProperty(raw, metaRaw, entry, elemPath)
			issues = append(issues, arrIssues...)
			result.Properties[name] = values
			continue
		}

		if entry.IsPrimitive {
			var meta *primitive.ElementMeta
			if metaPresent {
				meta = decodeElementMeta(metaRaw)
			}
			value, elIssues := primitive.MergeElement(raw, meta, entry.FHIRType, elemPath)
			issues = append(issues, elIssues...)
			result.Properties[name] = value
			continue
		}

		value, elIssues := parseScalarProperty(raw, entry, elemPath)
		issues = append(issues, elIssues...)
		result.Properties[name] = value
	}

	// Pass 3: choice-type detection. ExtractAllChoiceValues performs the
	// actual key-matching, ambiguity and allowed-type checks per field.
	if len(choiceFields) > 0 {
		choices, choiceConsumed, choiceIssues := choice.ExtractAllChoiceValues(obj, choiceFields, path)
		for k := range choiceConsumed {
			consumed[k] = true
		}
		result.Choices = choices
		issues = append(issues, choiceIssues...)
	}

	// Pass 4: unknown properties.
	for key := range obj {
		if consumed[key] {
			continue
		}
		if key == "resourceType" {
			continue
		}
		if len(key) > 0 && key[0] == '_' {
			// An unconsumed "_field" companion with no matching known
			// primitive or choice value is itself unexpected.
			issues = append(issues, issue.Warnf(issue.CodeUnexpectedProperty, issue.JoinPath(path, key),
				"unexpected property %q", key))
			continue
		}
		issues = append(issues, issue.Warnf(issue.CodeUnexpectedProperty, issue.JoinPath(path, key),
			"unexpected property %q", key))
	}

	return result, issues
}

func parseArrayProperty(raw, metaRaw any, entry PropEntry, path string) ([]any, []issue.Issue) {
	arr, ok := raw.([]any)
	if !ok && raw != nil {
		// Recovery: wrap a lone scalar as a single-element array, matching
		// spec §4.D step 1's "rejecting non-arrays with recovery by
		// wrapping as single-element" behavior.
		v, issues := parseScalarProperty(raw, entry, issue.IndexPath(path, 0))
		issues = append(issues, issue.Warnf(issue.CodeArrayMismatch, path,
			"expected an array, wrapping single value"))
		return []any{v}, issues
	}
	if len(arr) == 0 && metaRaw == nil {
		return arr, []issue.Issue{issue.Warnf(issue.CodeArrayMismatch, path, "array is empty")}
	}

	if entry.IsPrimitive {
		metas := decodeElementMetaArray(metaRaw)
		values := make([]any, len(arr))
		for i, v := range arr {
			values[i] = v
		}
		merged, issues := primitive.MergeArray(values, metas, entry.FHIRType, path)
		return merged, issues
	}

	var issues []issue.Issue
	out := make([]any, len(arr))
	for i, item := range arr {
		itemPath := issue.IndexPath(path, i)
		if item == nil {
			// null entries are legal alignment placeholders for primitive
			// arrays (spec §4.B); preserved as nil.
			out[i] = nil
			continue
		}
		v, elIssues := parseScalarProperty(item, entry, itemPath)
		issues = append(issues, elIssues...)
		out[i] = v
	}
	return out, issues
}

// decodeElementMetaArray decodes a "_field" companion array into parallel
// *primitive.ElementMeta entries, or nil if no companion was supplied. A nil
// entry in the companion array is a legal alignment placeholder.
func decodeElementMetaArray(metaRaw any) []*primitive.ElementMeta {
	if metaRaw == nil {
		return nil
	}
	arr, ok := metaRaw.([]any)
	if !ok {
		return nil
	}
	metas := make([]*primitive.ElementMeta, len(arr))
	for i, m := range arr {
		if m == nil {
			continue
		}
		metas[i] = decodeElementMeta(m)
	}
	return metas
}

func parseScalarProperty(raw any, entry PropEntry, path string) (any, []issue.Issue) {
	if entry.IsPrimitive {
		// Metadata pairing for array primitives happens where the array is
		// assembled (see parseArrayProperty); a bare scalar here has no
		// metadata merged — ParseObject's pass 1 merges the "_field"
		// companion itself, and ParsePrimitiveWithMeta does the same for
		// callers outside the generic dispatch.
		return primitive.MergeElement(raw, nil, entry.FHIRType, path)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, []issue.Issue{issue.Errorf(issue.CodeInvalidStructure, path,
			"expected an object, got %T", raw)}
	}
	return entry.ParseElement(obj, path)
}

// ParsePrimitiveWithMeta parses a known scalar primitive property together
// with its optional "_field" companion object, applying the same
// metadata-merge behavior of spec §4.B that ParseObject's pass 1 applies to
// scalar primitives. Callers pass the parent object and property name
// directly.
func ParsePrimitiveWithMeta(obj map[string]any, name, fhirType, path string) (any, bool, []issue.Issue) {
	raw, present := obj[name]
	metaRaw, metaPresent := obj["_"+name]
	if !present && !metaPresent {
		return nil, false, nil
	}
	var meta *primitive.ElementMeta
	if metaPresent {
		meta = decodeElementMeta(metaRaw)
	}
	v, issues := primitive.MergeElement(raw, meta, fhirType, path)
	return v, true, issues
}

func decodeElementMeta(raw any) *primitive.ElementMeta {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	meta := &primitive.ElementMeta{}
	if id, ok := m["id"].(string); ok {
		meta.ID = &id
	}
	// Extension entries are left unparsed here; a schema that needs typed
	// Extensions re-parses them via its own ParseElement for "extension".
	if exts, ok := m["extension"].([]any); ok {
		for _, e := range exts {
			if raw, err := json.Marshal(e); err == nil {
				meta.Extension = append(meta.Extension, raw)
			}
		}
	}
	return meta
}
