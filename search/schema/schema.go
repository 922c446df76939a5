// Package schema emits idempotent PostgreSQL DDL for a resource type's
// main, history and references tables plus shared lookup tables, driven by
// a search.Registry (spec §4.K).
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gofhir/profileengine/search"
)

// lookupTables is the fixed set of shared lookup tables a repeating
// complex-type search parameter may index into (spec §4.J/§6).
var lookupTables = []string{"HumanName", "Address", "ContactPoint", "Identifier"}

// Builder emits DDL for one or more resource types against a shared
// Registry.
type Builder struct {
	registry *search.Registry
}

// NewBuilder constructs a Builder over registry.
func NewBuilder(registry *search.Registry) *Builder {
	return &Builder{registry: registry}
}

// Statement is one emitted DDL statement, tagged with its kind so callers
// can order tables before indexes even across multiple resource types.
type Statement struct {
	Kind string // "table" or "index"
	SQL  string
}

// BuildResourceType emits the main/history/references tables and their
// indexes for resourceType, with every searchable parameter's column
// strategy folded into the main table (spec §4.K). Tables are always
// emitted before indexes.
func (b *Builder) BuildResourceType(resourceType string) []Statement {
	impls := b.registry.Iterate(resourceType)
	sort.Slice(impls, func(i, j int) bool { return impls[i].Code < impls[j].Code })

	var stmts []Statement
	stmts = append(stmts, Statement{Kind: "table", SQL: mainTableDDL(resourceType, impls)})
	stmts = append(stmts, Statement{Kind: "table", SQL: historyTableDDL(resourceType)})
	stmts = append(stmts, Statement{Kind: "table", SQL: referencesTableDDL(resourceType)})

	stmts = append(stmts, mainTableIndexes(resourceType, impls)...)
	stmts = append(stmts, historyIndexes(resourceType)...)
	stmts = append(stmts, referencesIndexes(resourceType)...)

	return stmts
}

// BuildLookupTables emits the fixed shared lookup tables, each keyed by
// (resourceId, resourceType) plus its type-specific value columns. Emitted
// once per schema, not per resource type.
func BuildLookupTables() []Statement {
	stmts := make([]Statement, 0, len(lookupTables)*2)
	for _, name := range lookupTables {
		stmts = append(stmts, Statement{Kind: "table", SQL: lookupTableDDL(name)})
		stmts = append(stmts, Statement{
			Kind: "index",
			SQL:  fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "idx_%s_resourceId" ON "%s" ("resourceId");`, name, name),
		})
	}
	return stmts
}

func mainTableDDL(resourceType string, impls []*search.SearchParameterImpl) string {
	cols := []string{
		`"id" UUID PRIMARY KEY`,
		`"content" TEXT NOT NULL`,
		`"lastUpdated" TIMESTAMPTZ NOT NULL`,
		`"deleted" BOOLEAN`,
		`"projectId" UUID`,
		`"__version" INTEGER`,
	}
	if resourceType != "Binary" {
		cols = append(cols, `"compartments" UUID[]`)
	}
	cols = append(cols,
		`"___tagText" TEXT[]`,
		`"___securityText" TEXT[]`,
		`"_profile" TEXT[]`,
		`"_source" TEXT`,
	)

	for _, impl := range impls {
		cols = append(cols, paramColumns(impl)...)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (\n\t%s\n);", resourceType, strings.Join(cols, ",\n\t"))
}

func paramColumns(impl *search.SearchParameterImpl) []string {
	switch impl.Strategy {
	case search.StrategyTokenColumn:
		return []string{
			fmt.Sprintf("%q %s", impl.ColumnName, impl.ColumnType),
			fmt.Sprintf("%q TEXT[]", impl.TextColumn),
			fmt.Sprintf("%q TEXT", impl.SortColumn),
		}
	case search.StrategyColumn:
		return []string{fmt.Sprintf("%q %s", impl.ColumnName, impl.ColumnType)}
	default:
		// lookup-table strategy has no column on the main table.
		return nil
	}
}

func historyTableDDL(resourceType string) string {
	table := resourceType + "_History"
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	"id" UUID,
	"versionId" UUID,
	"lastUpdated" TIMESTAMPTZ,
	"content" TEXT
);`, table)
}

func referencesTableDDL(resourceType string) string {
	table := resourceType + "_References"
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	"resourceId" UUID,
	"targetId" UUID,
	"code" TEXT,
	"targetType" TEXT,
	PRIMARY KEY ("resourceId", "targetId", "code")
);`, table)
}

func lookupTableDDL(name string) string {
	cols := []string{
		`"resourceId" UUID`,
		`"resourceType" TEXT`,
	}
	cols = append(cols, lookupValueColumns(name)...)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (\n\t%s\n);", name, strings.Join(cols, ",\n\t"))
}

func lookupValueColumns(name string) []string {
	switch name {
	case "HumanName":
		return []string{`"family" TEXT`, `"given" TEXT`, `"text" TEXT`}
	case "Address":
		return []string{`"line" TEXT`, `"city" TEXT`, `"state" TEXT`, `"postalCode" TEXT`, `"country" TEXT`}
	case "ContactPoint":
		return []string{`"system" TEXT`, `"value" TEXT`}
	case "Identifier":
		return []string{`"system" TEXT`, `"value" TEXT`}
	default:
		return nil
	}
}

// mainTableIndexes emits the five fixed main-table indexes plus one per
// searchable column strategy (spec §4.K); historyIndexes and
// referencesIndexes add three more on the sibling tables.
func mainTableIndexes(resourceType string, impls []*search.SearchParameterImpl) []Statement {
	idx := func(name, expr string) Statement {
		return Statement{Kind: "index", SQL: fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %q ON %q (%s);`, name, resourceType, expr)}
	}
	out := []Statement{
		idx(fmt.Sprintf("idx_%s_id", resourceType), `"id"`),
		idx(fmt.Sprintf("idx_%s_deleted", resourceType), `"deleted"`),
		idx(fmt.Sprintf("idx_%s_lastUpdated", resourceType), `"lastUpdated"`),
		idx(fmt.Sprintf("idx_%s_projectId", resourceType), `"projectId"`),
		idx(fmt.Sprintf("idx_%s_compartments", resourceType), `"compartments"`),
	}
	for _, impl := range impls {
		switch impl.Strategy {
		case search.StrategyColumn:
			out = append(out, idx(fmt.Sprintf("idx_%s_%s", resourceType, impl.ColumnName), fmt.Sprintf("%q", impl.ColumnName)))
		case search.StrategyTokenColumn:
			out = append(out, idx(fmt.Sprintf("idx_%s_%s", resourceType, impl.ColumnName), fmt.Sprintf("%q", impl.ColumnName)))
		}
	}
	return out
}

func historyIndexes(resourceType string) []Statement {
	table := resourceType + "_History"
	return []Statement{
		{Kind: "index", SQL: fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q ("id");`, "idx_"+table+"_id", table)},
	}
}

func referencesIndexes(resourceType string) []Statement {
	table := resourceType + "_References"
	return []Statement{
		{Kind: "index", SQL: fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q ("resourceId");`, "idx_"+table+"_resourceId", table)},
		{Kind: "index", SQL: fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q ("targetId");`, "idx_"+table+"_targetId", table)},
	}
}
