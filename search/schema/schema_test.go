package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/profileengine/search"
)

func TestBuildResourceTypeEmitsTablesBeforeIndexes(t *testing.T) {
	reg := search.BuildRegistry([]search.SearchParameter{
		{Code: "gender", Base: []string{"Patient"}, Type: search.TypeToken, Expression: "Patient.gender"},
	})
	b := NewBuilder(reg)
	stmts := b.BuildResourceType("Patient")

	require.NotEmpty(t, stmts)
	firstIndex := -1
	lastTable := -1
	for i, s := range stmts {
		if s.Kind == "index" && firstIndex == -1 {
			firstIndex = i
		}
		if s.Kind == "table" {
			lastTable = i
		}
	}
	require.NotEqual(t, -1, firstIndex)
	assert.Less(t, lastTable, firstIndex, "every table statement precedes every index statement")
}

func TestBuildResourceTypeDDLIsIdempotent(t *testing.T) {
	reg := search.BuildRegistry(nil)
	b := NewBuilder(reg)
	stmts := b.BuildResourceType("Patient")
	for _, s := range stmts {
		assert.Contains(t, s.SQL, "IF NOT EXISTS", "every DDL statement must be idempotent: %s", s.SQL)
	}
}

func TestBuildResourceTypeHasAtLeastSevenFixedIndexes(t *testing.T) {
	reg := search.BuildRegistry(nil)
	b := NewBuilder(reg)
	stmts := b.BuildResourceType("Patient")
	count := 0
	for _, s := range stmts {
		if s.Kind == "index" {
			count++
		}
	}
	assert.GreaterOrEqual(t, count, 7)
}

func TestHistoryTableHasExactlyFourColumns(t *testing.T) {
	ddl := historyTableDDL("Patient")
	for _, col := range []string{`"id"`, `"versionId"`, `"lastUpdated"`, `"content"`} {
		assert.Contains(t, ddl, col)
	}
	assert.Equal(t, 4, strings.Count(ddl, "\n\t"), "history table declares exactly four columns")
}

func TestReferencesTableHasCompositePrimaryKey(t *testing.T) {
	ddl := referencesTableDDL("Patient")
	assert.Contains(t, ddl, `PRIMARY KEY ("resourceId", "targetId", "code")`)
}

func TestTokenColumnStrategyEmitsThreeColumns(t *testing.T) {
	reg := search.BuildRegistry([]search.SearchParameter{
		{Code: "gender", Base: []string{"Patient"}, Type: search.TypeToken, Expression: "Patient.gender"},
	})
	b := NewBuilder(reg)
	ddl := b.BuildResourceType("Patient")[0].SQL
	assert.Contains(t, ddl, `"__gender" UUID[]`)
	assert.Contains(t, ddl, `"__genderText" TEXT[]`)
	assert.Contains(t, ddl, `"__genderSort" TEXT`)
}

func TestLookupTableStrategyHasNoMainTableColumn(t *testing.T) {
	reg := search.BuildRegistry([]search.SearchParameter{
		{Code: "name", Base: []string{"Patient"}, Type: search.TypeString, Expression: "Patient.name"},
	})
	b := NewBuilder(reg)
	ddl := b.BuildResourceType("Patient")[0].SQL
	assert.NotContains(t, ddl, `"name"`)
}

func TestBuildLookupTablesEmitsFourFixedTables(t *testing.T) {
	stmts := BuildLookupTables()
	names := map[string]bool{}
	for _, s := range stmts {
		if s.Kind != "table" {
			continue
		}
		for _, n := range []string{"HumanName", "Address", "ContactPoint", "Identifier"} {
			if strings.Contains(s.SQL, `"`+n+`"`) {
				names[n] = true
			}
		}
	}
	assert.Len(t, names, 4)
}

func TestBinaryResourceTypeOmitsCompartmentsColumn(t *testing.T) {
	reg := search.BuildRegistry(nil)
	b := NewBuilder(reg)
	ddl := b.BuildResourceType("Binary")[0].SQL
	assert.NotContains(t, ddl, `"compartments"`)
}
