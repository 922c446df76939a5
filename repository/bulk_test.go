package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkWriterCreateWritesEveryItemAndPreservesOrder(t *testing.T) {
	repo := NewMemoryRepository()
	bw := NewBulkWriter(repo, 4)

	items := make([]BulkCreateItem, 10)
	for i := range items {
		items[i] = BulkCreateItem{ResourceType: "Patient", Content: patientContent("1990-01-01")}
	}

	results := bw.Create(context.Background(), items)
	require.Len(t, results, 10)

	seen := map[string]bool{}
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		require.NoError(t, r.Error)
		require.NotNil(t, r.Record)
		assert.False(t, seen[r.Record.ID], "ids must be pairwise distinct")
		seen[r.Record.ID] = true
	}
}
