// Package worker runs bulk operations over a fixed goroutine pool.
//
// The pool enables parallel bulk resource writes, taking advantage of
// multi-core processors.
//
// Example usage:
//
//	executor := worker.ExecutorFunc(func(ctx context.Context, payload any) (any, error) {
//	    item := payload.(repository.BulkCreateItem)
//	    return repo.Create(ctx, item.ResourceType, item.Content, item.Options)
//	})
//	pool := worker.NewPool(executor, 4)
//	defer pool.Close()
//
//	for i, item := range items {
//	    pool.Submit(worker.Job{ID: strconv.Itoa(i), Payload: item})
//	}
//
//	for result := range pool.Results() {
//	    if result.Error != nil {
//	        // handle error
//	    }
//	}
package worker
