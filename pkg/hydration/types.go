package hydration

import "time"

// Job is one account's worth of hydration work, schedulable
// independently of other jobs. Each job owns its Posts slice; the
// orchestrator never lets two jobs share one.
type Job struct {
	// Handle identifies the account or dataset, and keys the outcome maps
	Handle string
	// Posts are the items to hydrate, mutated in place
	Posts []*Post
	// Client performs the remote lookups for this job
	Client PostFetcher
	// Metadata is carried onto the orchestrator task
	Metadata map[string]string
}

// JobOutcome summarizes one finished job.
type JobOutcome struct {
	Handle         string        `json:"handle"`
	ItemsProcessed int           `json:"items_processed"`
	SuccessCount   int           `json:"success_count"`
	ErrorCount     int           `json:"error_count"`
	SuccessRate    float64       `json:"success_rate"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// ParallelResult aggregates a whole fan-out. A job appears either in
// Results or in Errors, never both.
type ParallelResult struct {
	TotalJobs      int                   `json:"total_jobs"`
	CompletedJobs  int                   `json:"completed_jobs"`
	Results        map[string]JobOutcome `json:"results"`
	Errors         map[string]string     `json:"errors,omitempty"`
	ProcessingTime time.Duration         `json:"processing_time"`
}

// SuccessRate returns the percentage of jobs that completed without a
// job-level error, 0 when no jobs were submitted.
func (r *ParallelResult) SuccessRate() float64 {
	if r.TotalJobs == 0 {
		return 0
	}
	return float64(r.CompletedJobs) / float64(r.TotalJobs) * 100
}
