// Package search builds a SearchParameterImpl registry from a bundle of
// FHIR SearchParameter resources (spec §4.J), exposing lookup/iterate for
// the schema builder (search/schema) and WHERE compiler (search/compiler).
package search

import (
	"strings"
)

// ParamType is a FHIR search parameter type (a closed vocabulary per the
// R4 SearchParameter.type value set — only the subset the compiler
// supports is named here).
type ParamType string

const (
	TypeString    ParamType = "string"
	TypeToken     ParamType = "token"
	TypeDate      ParamType = "date"
	TypeNumber    ParamType = "number"
	TypeReference ParamType = "reference"
	TypeURI       ParamType = "uri"
)

// Strategy is how a parameter's values are persisted and queried.
type Strategy string

const (
	StrategyColumn      Strategy = "column"
	StrategyTokenColumn Strategy = "token-column"
	StrategyLookupTable Strategy = "lookup-table"
)

// ColumnType is a DDL column type the schema builder emits.
type ColumnType string

const (
	ColumnUUID      ColumnType = "UUID"
	ColumnUUIDArray ColumnType = "UUID[]"
	ColumnText      ColumnType = "TEXT"
	ColumnTextArray ColumnType = "TEXT[]"
	ColumnTimestamp ColumnType = "TIMESTAMPTZ"
	ColumnDouble    ColumnType = "DOUBLE PRECISION"
)

// repeatingLookupTypes are the complex FHIR datatypes spec §4.J singles out
// for lookup-table treatment when the search parameter's target field is a
// repeating element of one of these types.
var repeatingLookupTypes = map[string]string{
	"HumanName":   "HumanName",
	"Address":     "Address",
	"ContactPoint": "ContactPoint",
	"Identifier":  "Identifier",
}

// SearchParameter is the subset of a FHIR SearchParameter resource the
// registry needs to build an implementation.
type SearchParameter struct {
	Code       string
	Base       []string
	Type       ParamType
	Expression string
}

// SearchParameterImpl is the resolved, per-resource-type implementation of
// one search parameter: its storage strategy and derived column shape.
type SearchParameterImpl struct {
	ResourceType string
	Code         string
	Type         ParamType
	Strategy     Strategy

	ColumnName string
	ColumnType ColumnType
	Array      bool

	// TextColumn and SortColumn are the companion columns a token-column
	// strategy also needs (spec §4.K): "__<code>Text" TEXT[] for
	// exact/contains matching and "__<code>Sort" TEXT for :text sorting.
	// Empty for every other strategy.
	TextColumn string
	SortColumn string

	// LookupTable names the shared lookup table (HumanName, Address,
	// ContactPoint, Identifier) this parameter indexes into, set only
	// when Strategy == StrategyLookupTable.
	LookupTable string

	// LookupColumn is the value column within LookupTable this
	// parameter's predicate applies to.
	LookupColumn string

	// TargetField is the best-effort FHIRPath-lite target this
	// parameter was derived from; the repository reads values from a
	// resource along this path when populating search columns.
	TargetField string
}

// Registry is the read-only, built-once-at-startup index of every
// resource type's search parameter implementations (spec §5: "built once
// at startup and read-only thereafter").
type Registry struct {
	byType map[string]map[string]*SearchParameterImpl
}

// metadataParams are the fixed parameters every resource type supports
// without a bundle entry (spec §4.J).
func metadataParams(resourceType string) map[string]*SearchParameterImpl {
	return map[string]*SearchParameterImpl{
		"_id": {
			ResourceType: resourceType, Code: "_id", Type: TypeToken,
			Strategy: StrategyColumn, ColumnName: "id", ColumnType: ColumnUUID,
		},
		"_lastUpdated": {
			ResourceType: resourceType, Code: "_lastUpdated", Type: TypeDate,
			Strategy: StrategyColumn, ColumnName: "lastUpdated", ColumnType: ColumnTimestamp,
		},
		"_tag": {
			ResourceType: resourceType, Code: "_tag", Type: TypeToken,
			Strategy: StrategyTokenColumn, ColumnName: "__tag", ColumnType: ColumnUUIDArray, Array: true,
			TextColumn: "___tagText",
		},
		"_security": {
			ResourceType: resourceType, Code: "_security", Type: TypeToken,
			Strategy: StrategyTokenColumn, ColumnName: "__security", ColumnType: ColumnUUIDArray, Array: true,
			TextColumn: "___securityText",
		},
		"_profile": {
			ResourceType: resourceType, Code: "_profile", Type: TypeURI,
			Strategy: StrategyColumn, ColumnName: "_profile", ColumnType: ColumnTextArray, Array: true,
		},
		"_source": {
			ResourceType: resourceType, Code: "_source", Type: TypeURI,
			Strategy: StrategyColumn, ColumnName: "_source", ColumnType: ColumnText,
		},
	}
}

// BuildRegistry indexes params, producing one SearchParameterImpl per
// (resourceType, code) pair named in each parameter's base[].
func BuildRegistry(params []SearchParameter) *Registry {
	r := &Registry{byType: make(map[string]map[string]*SearchParameterImpl)}
	for _, p := range params {
		for _, rt := range p.Base {
			impls := r.byType[rt]
			if impls == nil {
				impls = make(map[string]*SearchParameterImpl)
				r.byType[rt] = impls
			}
			impls[p.Code] = buildImpl(rt, p)
		}
	}
	return r
}

// buildImpl derives one resource type's implementation of p: parses the
// FHIRPath-lite expression enough to find the target field and whether it
// is a repeating complex type, then selects a strategy and column shape
// (spec §4.J).
func buildImpl(resourceType string, p SearchParameter) *SearchParameterImpl {
	target, repeating := parseTargetField(resourceType, p.Expression)
	impl := &SearchParameterImpl{
		ResourceType: resourceType,
		Code:         p.Code,
		Type:         p.Type,
		TargetField:  target,
	}

	if lookupType, ok := repeatingLookupTypes[lastSegmentType(target)]; ok && repeating {
		impl.Strategy = StrategyLookupTable
		impl.LookupTable = lookupType
		impl.LookupColumn = lookupColumnFor(p.Type, p.Code)
		return impl
	}

	if p.Type == TypeToken {
		impl.Strategy = StrategyTokenColumn
		impl.ColumnName = "__" + sanitizeCode(p.Code)
		impl.ColumnType = ColumnUUIDArray
		impl.TextColumn = impl.ColumnName + "Text"
		impl.SortColumn = impl.ColumnName + "Sort"
		impl.Array = true
		return impl
	}

	impl.Strategy = StrategyColumn
	impl.Array = repeating
	impl.ColumnName = columnNameFor(p.Code)
	impl.ColumnType = columnTypeFor(p.Type, repeating)
	return impl
}

// parseTargetField extracts a best-effort target field path and whether it
// is repeating, from a FHIRPath expression. This is intentionally not a
// full FHIRPath grammar (spec §1 Non-goals "no full FHIRPath") — it strips
// a leading "<ResourceType>." prefix (or the first of several
// pipe-separated alternatives) and any ".where(...)" filter clause, then
// treats a path of more than one remaining segment, or one naming a known
// repeating element, as repeating.
func parseTargetField(resourceType, expression string) (target string, repeating bool) {
	expr := strings.TrimSpace(expression)
	if i := strings.Index(expr, "|"); i >= 0 {
		expr = strings.TrimSpace(expr[:i])
	}
	prefix := resourceType + "."
	expr = strings.TrimPrefix(expr, prefix)

	if i := strings.Index(expr, ".where("); i >= 0 {
		expr = expr[:i] + afterWhereClause(expr[i:])
	}

	segments := strings.Split(expr, ".")
	target = expr
	repeating = len(segments) > 1 || isKnownRepeatingField(resourceType, segments[0])
	return target, repeating
}

// afterWhereClause returns whatever trailing path follows a balanced
// ".where(...)" clause, e.g. ".where(system='phone').value" -> ".value".
func afterWhereClause(s string) string {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[i+1:]
			}
		}
	}
	return ""
}

// isKnownRepeatingField covers the common repeating top-level elements the
// corpus's search parameters target, used when the expression's remaining
// path is a single bare segment (e.g. "Patient.name").
var knownRepeatingFields = map[string]bool{
	"name": true, "address": true, "telecom": true, "identifier": true,
	"contact": true, "communication": true, "extension": true,
}

func isKnownRepeatingField(_ string, field string) bool {
	return knownRepeatingFields[field]
}

// lastSegmentType maps a target field's last path segment to the complex
// FHIR datatype it holds, for the fixed set this registry recognizes.
var fieldToType = map[string]string{
	"name": "HumanName", "address": "Address", "telecom": "ContactPoint",
	"identifier": "Identifier",
}

func lastSegmentType(target string) string {
	segments := strings.Split(target, ".")
	last := segments[len(segments)-1]
	return fieldToType[last]
}

// columnNameFor is the plain "column" strategy's column name: the search
// code itself, sanitized (spec §8 scenario 6: `birthdate` compiles to
// `"birthdate" >= $n`, with no prefix).
func columnNameFor(code string) string {
	return sanitizeCode(code)
}

func sanitizeCode(code string) string {
	return strings.ReplaceAll(code, "-", "_")
}

func lookupColumnFor(t ParamType, code string) string {
	if t == TypeToken {
		return "value"
	}
	return sanitizeCode(code)
}

func columnTypeFor(t ParamType, array bool) ColumnType {
	var base ColumnType
	switch t {
	case TypeDate:
		base = ColumnTimestamp
	case TypeNumber:
		base = ColumnDouble
	case TypeReference:
		base = ColumnUUID
	case TypeURI, TypeString:
		base = ColumnText
	default:
		base = ColumnText
	}
	if !array {
		return base
	}
	switch base {
	case ColumnUUID:
		return ColumnUUIDArray
	default:
		return ColumnTextArray
	}
}

// Lookup returns resourceType's implementation of code, checking the
// metadata parameters before the bundle-derived registry.
func (r *Registry) Lookup(resourceType, code string) (*SearchParameterImpl, bool) {
	if impl, ok := metadataParams(resourceType)[code]; ok {
		return impl, true
	}
	impls, ok := r.byType[resourceType]
	if !ok {
		return nil, false
	}
	impl, ok := impls[code]
	return impl, ok
}

// Iterate returns every registered (non-metadata) implementation for
// resourceType, in no particular order.
func (r *Registry) Iterate(resourceType string) []*SearchParameterImpl {
	impls := r.byType[resourceType]
	out := make([]*SearchParameterImpl, 0, len(impls))
	for _, impl := range impls {
		out = append(out, impl)
	}
	return out
}
