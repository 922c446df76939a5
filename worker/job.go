package worker

// Job is one unit of work submitted to a Pool. Payload is passed to the
// Pool's Executor unchanged; Pool and Job are domain-agnostic so the same
// pool shape serves any bulk operation an Executor is written for (bulk
// create, bulk update, ...), not only the validation jobs the type was
// originally built for.
type Job struct {
	// ID identifies this job in its JobResult.
	ID string

	// Payload is the input handed to the Executor.
	Payload any
}

// JobResult is the result of processing one Job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// Value is the Executor's return value, or nil on error.
	Value any

	// Error contains any error the Executor returned.
	Error error

	// Duration is the time taken to process the job, in nanoseconds.
	Duration int64
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	// Results contains all job results, in completion order (not
	// necessarily submission order) for the pool path, or in submission
	// order for the sequential/parallel RunAll path.
	Results []*JobResult

	// TotalJobs is the number of jobs submitted.
	TotalJobs int

	// CompletedJobs is the number of jobs completed (including errors).
	CompletedJobs int

	// FailedJobs is the number of jobs that failed with an error.
	FailedJobs int

	// TotalDuration is the total time for all jobs (in nanoseconds).
	TotalDuration int64
}

// HasErrors returns true if any job result carries an error.
func (br *BatchResult) HasErrors() bool {
	for _, r := range br.Results {
		if r.Error != nil {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of job results carrying an error.
func (br *BatchResult) ErrorCount() int {
	count := 0
	for _, r := range br.Results {
		if r.Error != nil {
			count++
		}
	}
	return count
}
