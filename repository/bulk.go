package repository

import (
	"context"
	"strconv"

	"github.com/gofhir/profileengine/worker"
)

// BulkCreateItem is one resource submitted to BulkWriter.Create.
type BulkCreateItem struct {
	ResourceType string
	Content      map[string]any
	Options      CreateOptions
}

// BulkCreateResult pairs a BulkCreateItem's position with its outcome.
type BulkCreateResult struct {
	Index  int
	Record *Record
	Error  error
}

// BulkWriter fans bulk writes out across worker.Pool's goroutines: its
// Executor writes each item through an Interface instead of validating it
// (spec §4 supplemented features: a bulk-write path for the repository).
type BulkWriter struct {
	repo    Interface
	workers int
}

// NewBulkWriter constructs a BulkWriter that writes through repo using
// workers goroutines (<=0 selects runtime.NumCPU() via worker.NewPool).
func NewBulkWriter(repo Interface, workers int) *BulkWriter {
	return &BulkWriter{repo: repo, workers: workers}
}

// Create writes every item, returning one BulkCreateResult per item in
// submission order regardless of completion order.
func (b *BulkWriter) Create(ctx context.Context, items []BulkCreateItem) []BulkCreateResult {
	executor := worker.ExecutorFunc(func(ctx context.Context, payload any) (any, error) {
		item := payload.(BulkCreateItem)
		return b.repo.Create(ctx, item.ResourceType, item.Content, item.Options)
	})

	pool := worker.NewPool(executor, b.workers)
	for i, item := range items {
		pool.Submit(worker.Job{ID: strconv.Itoa(i), Payload: item})
	}
	batch := pool.CloseAndWait()

	out := make([]BulkCreateResult, len(items))
	for _, r := range batch.Results {
		idx, err := strconv.Atoi(r.ID)
		if err != nil {
			continue
		}
		result := BulkCreateResult{Index: idx, Error: r.Error}
		if r.Error == nil {
			result.Record, _ = r.Value.(*Record)
		}
		out[idx] = result
	}
	return out
}
