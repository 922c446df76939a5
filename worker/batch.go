package worker

import (
	"context"
	"runtime"
	"sync"
)

// RunAll runs executor over every payload, in order, choosing a sequential
// or parallel strategy by batch size the same way the pool's original
// validation-only batch runner did.
func RunAll(ctx context.Context, executor Executor, payloads []any, workers int) *BatchResult {
	if len(payloads) == 0 {
		return &BatchResult{Results: make([]*JobResult, 0)}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if len(payloads) <= 2 {
		return runSequential(ctx, executor, payloads)
	}
	return runParallel(ctx, executor, payloads, workers)
}

func runSequential(ctx context.Context, executor Executor, payloads []any) *BatchResult {
	results := make([]*JobResult, 0, len(payloads))
	failed := 0
	for _, payload := range payloads {
		select {
		case <-ctx.Done():
			return &BatchResult{Results: results, TotalJobs: len(payloads), CompletedJobs: len(results), FailedJobs: failed}
		default:
		}
		value, err := executor.Execute(ctx, payload)
		results = append(results, &JobResult{Value: value, Error: err})
		if err != nil {
			failed++
		}
	}
	return &BatchResult{Results: results, TotalJobs: len(payloads), CompletedJobs: len(results), FailedJobs: failed}
}

func runParallel(ctx context.Context, executor Executor, payloads []any, workers int) *BatchResult {
	if workers > len(payloads) {
		workers = len(payloads)
	}

	type indexedPayload struct {
		index   int
		payload any
	}
	type indexedResult struct {
		index int
		value any
		err   error
	}

	jobs := make(chan indexedPayload, len(payloads))
	resultsChan := make(chan indexedResult, len(payloads))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				value, err := executor.Execute(ctx, job.payload)
				resultsChan <- indexedResult{index: job.index, value: value, err: err}
			}
		}()
	}

	go func() {
		for i, payload := range payloads {
			select {
			case <-ctx.Done():
				break
			case jobs <- indexedPayload{index: i, payload: payload}:
			}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]*JobResult, len(payloads))
	completed, failed := 0, 0
	for r := range resultsChan {
		results[r.index] = &JobResult{Value: r.value, Error: r.err}
		completed++
		if r.err != nil {
			failed++
		}
	}

	return &BatchResult{
		Results:       results,
		TotalJobs:     len(payloads),
		CompletedJobs: completed,
		FailedJobs:    failed,
	}
}
