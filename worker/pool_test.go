package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// countingExecutor counts invocations and optionally delays or errors, for
// exercising Pool behavior without a real repository.
type countingExecutor struct {
	callCount atomic.Int32
	delay     time.Duration
	err       error
}

func (c *countingExecutor) Execute(ctx context.Context, payload any) (any, error) {
	c.callCount.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return payload, nil
}

func TestPool_NewPool(t *testing.T) {
	pool := NewPool(&countingExecutor{}, 2)
	defer pool.Close()

	if pool == nil {
		t.Fatal("expected non-nil pool")
	}
	if pool.workers != 2 {
		t.Errorf("workers = %d; want 2", pool.workers)
	}
}

func TestPool_DefaultWorkers(t *testing.T) {
	pool := NewPool(&countingExecutor{}, 0)
	defer pool.Close()

	if pool.workers <= 0 {
		t.Errorf("workers = %d; want > 0", pool.workers)
	}
}

func TestPool_SubmitAndReceive(t *testing.T) {
	pool := NewPool(&countingExecutor{}, 2)
	defer pool.Close()

	job := Job{ID: "test-1", Payload: "Patient"}

	if !pool.Submit(job) {
		t.Error("expected job to be submitted")
	}

	select {
	case result := <-pool.Results():
		if result.ID != "test-1" {
			t.Errorf("ID = %q; want %q", result.ID, "test-1")
		}
		if result.Value != "Patient" {
			t.Errorf("Value = %v; want Patient", result.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}
}

func TestPool_SubmitToClosedPool(t *testing.T) {
	pool := NewPool(&countingExecutor{}, 2)
	pool.Close()

	if pool.Submit(Job{ID: "after-close"}) {
		t.Error("expected submit to fail after close")
	}
}

func TestPool_DoubleClose(t *testing.T) {
	pool := NewPool(&countingExecutor{}, 2)
	pool.Close()
	pool.Close() // must not panic
}

func TestPool_NilExecutor(t *testing.T) {
	pool := NewPool(nil, 2)
	defer pool.Close()

	pool.Submit(Job{ID: "nil-executor"})

	select {
	case result := <-pool.Results():
		if result.Error != ErrNoExecutor {
			t.Errorf("Error = %v; want ErrNoExecutor", result.Error)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}
}

func TestPool_Stats(t *testing.T) {
	pool := NewPool(&countingExecutor{}, 2)
	defer pool.Close()

	pool.Submit(Job{ID: "stats-test"})

	select {
	case <-pool.Results():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}

	stats := pool.Stats()
	if stats.Workers != 2 {
		t.Errorf("Workers = %d; want 2", stats.Workers)
	}
	if stats.JobsSubmitted == 0 {
		t.Error("expected JobsSubmitted > 0")
	}
}

func TestRunAll_EmptyBatch(t *testing.T) {
	result := RunAll(context.Background(), &countingExecutor{}, nil, 2)
	if result.TotalJobs != 0 {
		t.Errorf("TotalJobs = %d; want 0", result.TotalJobs)
	}
}

func TestRunAll_SmallBatchRunsSequentially(t *testing.T) {
	executor := &countingExecutor{}
	payloads := []any{"a", "b"}

	result := RunAll(context.Background(), executor, payloads, 2)
	if result.TotalJobs != 2 {
		t.Errorf("TotalJobs = %d; want 2", result.TotalJobs)
	}
	if result.CompletedJobs != 2 {
		t.Errorf("CompletedJobs = %d; want 2", result.CompletedJobs)
	}
	if executor.callCount.Load() != 2 {
		t.Errorf("callCount = %d; want 2", executor.callCount.Load())
	}
}

func TestRunAll_ParallelExecutionIsFasterThanSequential(t *testing.T) {
	executor := &countingExecutor{delay: 10 * time.Millisecond}
	payloads := make([]any, 10)
	for i := range payloads {
		payloads[i] = i
	}

	start := time.Now()
	result := RunAll(context.Background(), executor, payloads, 4)
	duration := time.Since(start)

	if result.TotalJobs != 10 {
		t.Errorf("TotalJobs = %d; want 10", result.TotalJobs)
	}
	if result.CompletedJobs != 10 {
		t.Errorf("CompletedJobs = %d; want 10", result.CompletedJobs)
	}
	if executor.callCount.Load() != 10 {
		t.Errorf("callCount = %d; want 10", executor.callCount.Load())
	}
	if duration > 200*time.Millisecond {
		t.Errorf("duration = %v; expected < 200ms for parallel execution", duration)
	}
}

func TestBatchResult_HasErrors(t *testing.T) {
	t.Run("no error", func(t *testing.T) {
		br := &BatchResult{Results: []*JobResult{{ID: "1", Error: nil}}}
		if br.HasErrors() {
			t.Error("expected HasErrors() = false")
		}
	})

	t.Run("with error", func(t *testing.T) {
		br := &BatchResult{Results: []*JobResult{{ID: "1", Error: ErrNoExecutor}}}
		if !br.HasErrors() {
			t.Error("expected HasErrors() = true when error present")
		}
	})
}

func TestBatchResult_ErrorCount(t *testing.T) {
	br := &BatchResult{
		Results: []*JobResult{
			{ID: "1", Error: nil},
			{ID: "2", Error: ErrNoExecutor},
		},
	}
	if br.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d; want 1", br.ErrorCount())
	}
}
