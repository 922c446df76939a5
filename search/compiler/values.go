package compiler

import (
	"fmt"
	"strings"

	"github.com/gofhir/profileengine/search"
)

// prefixOperators maps a search date/number prefix to its SQL operator
// (spec §4.L "Prefix maps to SQL operator table").
var prefixOperators = map[string]string{
	"eq": "=", "ne": "<>", "lt": "<", "gt": ">", "le": "<=", "ge": ">=",
	"sa": ">", "eb": "<",
}

// valueClause dispatches to the type-specific rule for one value of one
// parameter, writing against column (already quoted/aliased by the
// caller).
func valueClause(impl *search.SearchParameterImpl, prefix, modifier, value string, alloc *paramAllocator, column string) (string, error) {
	switch impl.Type {
	case search.TypeString:
		return stringClause(modifier, value, alloc, column), nil
	case search.TypeDate:
		return dateClause(prefix, value, alloc, column), nil
	case search.TypeNumber:
		return numberClause(prefix, value, alloc, column), nil
	case search.TypeReference:
		return referenceClause(value, alloc, column), nil
	case search.TypeURI:
		return uriClause(value, alloc, column), nil
	case search.TypeToken:
		if impl.Strategy != search.StrategyTokenColumn {
			// Metadata columns like "_id" are typed token but stored as a
			// plain scalar column (spec §4.L "_id -> \"id\" =").
			return fmt.Sprintf("%s = %s", column, alloc.next(value)), nil
		}
		return tokenClause(impl, modifier, value, alloc)
	default:
		return "", fmt.Errorf("search: unsupported parameter type %q", impl.Type)
	}
}

// stringClause implements spec §4.L "string": default prefix-match with
// LIKE-special-char escaping, :exact for equality, :contains for
// substring.
func stringClause(modifier, value string, alloc *paramAllocator, column string) string {
	lowerCol := fmt.Sprintf("LOWER(%s)", column)
	switch modifier {
	case "exact":
		return fmt.Sprintf("%s = %s", column, alloc.next(value))
	case "contains":
		pattern := "%" + escapeLike(strings.ToLower(value)) + "%"
		return fmt.Sprintf("%s LIKE %s", lowerCol, alloc.next(pattern))
	default:
		pattern := escapeLike(strings.ToLower(value)) + "%"
		return fmt.Sprintf("%s LIKE %s", lowerCol, alloc.next(pattern))
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// dateClause implements spec §4.L "date": prefix operator table, with
// "ap" emitting a ±1 day BETWEEN window.
func dateClause(prefix, value string, alloc *paramAllocator, column string) string {
	if prefix == "ap" {
		return approximateDateClause(value, alloc, column)
	}
	op, ok := prefixOperators[prefix]
	if !ok {
		op = "="
	}
	return fmt.Sprintf("%s %s %s", column, op, alloc.next(value))
}

func approximateDateClause(value string, alloc *paramAllocator, column string) string {
	lowPlaceholder := alloc.next(value)
	highPlaceholder := alloc.next(value)
	return fmt.Sprintf("%s BETWEEN %s::timestamptz - interval '1 day' AND %s::timestamptz + interval '1 day'", column, lowPlaceholder, highPlaceholder)
}

// numberClause implements spec §4.L "number": same prefix table, "ap"
// emits a ±10%% BETWEEN window.
func numberClause(prefix, value string, alloc *paramAllocator, column string) string {
	if prefix == "ap" {
		lowPlaceholder := alloc.next(value)
		highPlaceholder := alloc.next(value)
		return fmt.Sprintf("%s BETWEEN %s::double precision * 0.9 AND %s::double precision * 1.1", column, lowPlaceholder, highPlaceholder)
	}
	op, ok := prefixOperators[prefix]
	if !ok {
		op = "="
	}
	return fmt.Sprintf("%s %s %s", column, op, alloc.next(value))
}

// referenceClause implements spec §4.L "reference": equality match on a
// value already in "<Type>/<id>" form.
func referenceClause(value string, alloc *paramAllocator, column string) string {
	return fmt.Sprintf("%s = %s", column, alloc.next(value))
}

// uriClause implements spec §4.L "uri": equality match.
func uriClause(value string, alloc *paramAllocator, column string) string {
	return fmt.Sprintf("%s = %s", column, alloc.next(value))
}

// tokenClause implements spec §4.L "token": overlap against the text
// array column by default, :not negation, :text sort-column LIKE, and the
// system|/|code pipe-delimited value shapes.
func tokenClause(impl *search.SearchParameterImpl, modifier, value string, alloc *paramAllocator) (string, error) {
	textColumn := impl.TextColumn
	if textColumn == "" {
		textColumn = impl.ColumnName + "Text"
	}
	quotedText := `"` + textColumn + `"`

	if modifier == "text" {
		sortColumn := impl.SortColumn
		if sortColumn == "" {
			sortColumn = impl.ColumnName + "Sort"
		}
		pattern := escapeLike(strings.ToLower(value)) + "%"
		return fmt.Sprintf(`LOWER(%q) LIKE %s`, sortColumn, alloc.next(pattern)), nil
	}

	var clause string
	switch {
	case strings.HasSuffix(value, "|") && !strings.HasPrefix(value, "|"):
		system := strings.TrimSuffix(value, "|")
		pattern := escapeLike(system) + "|%"
		clause = fmt.Sprintf(`EXISTS (SELECT 1 FROM unnest(%s) __v WHERE __v LIKE %s)`, quotedText, alloc.next(pattern))
	case strings.HasPrefix(value, "|"):
		code := strings.TrimPrefix(value, "|")
		clause = fmt.Sprintf("%s && ARRAY[%s]::text[]", quotedText, alloc.next(code))
	default:
		clause = fmt.Sprintf("%s && ARRAY[%s]::text[]", quotedText, alloc.next(value))
	}

	if modifier == "not" {
		return fmt.Sprintf("NOT(%s)", clause), nil
	}
	return clause, nil
}
