// Package compiler turns parsed search parameters into a PostgreSQL WHERE
// clause fragment plus its positional parameter values, using a
// search.Registry to resolve each parameter's storage strategy (spec
// §4.L).
package compiler

import (
	"fmt"
	"strings"

	"github.com/gofhir/profileengine/search"
)

// Param is one parsed query-string search parameter.
type Param struct {
	Code     string
	Prefix   string // "eq","ne","lt","gt","le","ge","sa","eb","ap", or "" (no prefix)
	Modifier string // "exact","contains","not","text", or ""
	Values   []string
	// Chain, when non-empty, is the target resource type for a chained
	// search like "subject:Patient" (spec §4.L "Chained search").
	Chain string
	// ChainParam is the parameter evaluated against Chain's table
	// (e.g. "name" in "subject:Patient.name=Smith").
	ChainParam *Param
}

// Compiled is a WHERE fragment plus its positional parameter values, in
// $1, $2, ... allocation order.
type Compiled struct {
	SQL    string
	Values []any
}

// Compiler resolves search parameters against a Registry and builds SQL.
type Compiler struct {
	registry *search.Registry
}

// NewCompiler constructs a Compiler over registry.
func NewCompiler(registry *search.Registry) *Compiler {
	return &Compiler{registry: registry}
}

// paramAllocator hands out sequential $n placeholders across an entire
// compiled query (spec §4.L "Parameter indices ... allocated left-to-right
// across the whole query").
type paramAllocator struct {
	values []any
}

func (a *paramAllocator) next(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

// Compile builds the AND-combined WHERE fragment for every param against
// resourceType. Multiple values on one param combine with OR; multiple
// params combine with AND (spec §4.L).
func (c *Compiler) Compile(resourceType string, params []Param) (Compiled, error) {
	alloc := &paramAllocator{}
	var clauses []string
	for _, p := range params {
		clause, err := c.compileParam(resourceType, p, alloc)
		if err != nil {
			return Compiled{}, err
		}
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}
	if len(clauses) == 0 {
		return Compiled{SQL: "TRUE", Values: alloc.values}, nil
	}
	return Compiled{SQL: strings.Join(clauses, " AND "), Values: alloc.values}, nil
}

func (c *Compiler) compileParam(resourceType string, p Param, alloc *paramAllocator) (string, error) {
	if p.Chain != "" {
		return c.compileChain(resourceType, p, alloc)
	}

	impl, ok := c.registry.Lookup(resourceType, p.Code)
	if !ok {
		return "", fmt.Errorf("search: unknown parameter %q for %q", p.Code, resourceType)
	}

	switch impl.Strategy {
	case search.StrategyLookupTable:
		return c.compileLookupTable(impl, p, alloc)
	default:
		return c.compileDirect(impl, p, alloc)
	}
}

func (c *Compiler) compileDirect(impl *search.SearchParameterImpl, p Param, alloc *paramAllocator) (string, error) {
	var ors []string
	for _, v := range p.Values {
		frag, err := valueClause(impl, p.Prefix, p.Modifier, v, alloc, quotedColumn(impl.ColumnName))
		if err != nil {
			return "", err
		}
		ors = append(ors, frag)
	}
	return combineOr(ors), nil
}

func (c *Compiler) compileLookupTable(impl *search.SearchParameterImpl, p Param, alloc *paramAllocator) (string, error) {
	var ors []string
	for _, v := range p.Values {
		frag, err := valueClause(&search.SearchParameterImpl{
			Type:       impl.Type,
			ColumnName: impl.LookupColumn,
		}, p.Prefix, p.Modifier, v, alloc, `__lookup."`+impl.LookupColumn+`"`)
		if err != nil {
			return "", err
		}
		ors = append(ors, frag)
	}
	inner := combineOr(ors)
	return fmt.Sprintf(`EXISTS (SELECT 1 FROM %q __lookup WHERE __lookup."resourceId" = "id" AND %s)`,
		impl.LookupTable, inner), nil
}

// compileChain emits the EXISTS/JOIN fragment for a chained search (spec
// §4.L "Chained search"), recursing one hop into the target type's own
// compiled predicate for ChainParam.
func (c *Compiler) compileChain(resourceType string, p Param, alloc *paramAllocator) (string, error) {
	if p.ChainParam == nil {
		return "", fmt.Errorf("search: chained parameter %q missing target parameter", p.Code)
	}
	targetClause, err := c.compileParam(p.Chain, *p.ChainParam, alloc)
	if err != nil {
		return "", err
	}
	refsTable := resourceType + "_References"
	return fmt.Sprintf(
		`EXISTS (SELECT 1 FROM %q __ref JOIN %q __target ON __ref."targetId" = __target."id" WHERE __ref."resourceId" = %q."id" AND __ref."code" = '%s' AND __target."deleted" = false AND %s)`,
		refsTable, p.Chain, resourceType, p.Code, retarget(targetClause)), nil
}

// retarget rewrites a compiled target-type predicate's bare "id" alias to
// __target's id column, since the recursive call above compiled it as if
// it were the primary query's own table.
func retarget(clause string) string {
	return strings.ReplaceAll(clause, `"id"`, `__target."id"`)
}

func combineOr(clauses []string) string {
	if len(clauses) == 0 {
		return "TRUE"
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

func quotedColumn(name string) string {
	return `"` + name + `"`
}
