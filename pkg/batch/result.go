package batch

import "time"

// BatchError records one batch that exhausted its retries or failed
// permanently.
type BatchError struct {
	BatchIndex int
	ItemCount  int
	Err        error
}

func (e BatchError) Error() string {
	return e.Err.Error()
}

func (e BatchError) Unwrap() error {
	return e.Err
}

// Result summarizes one Process call. Counts are items, not batches:
// TotalProcessed always equals SuccessCount + ErrorCount, which equals
// the number of items whose batch has been attempted.
type Result struct {
	SuccessCount   int
	ErrorCount     int
	TotalProcessed int
	ProcessingTime time.Duration
	// Results holds the per-batch outputs of successful batches, ordered
	// by batch index.
	Results []interface{}
	// Errors holds the captured failures of unsuccessful batches.
	Errors []BatchError
}

// SuccessRate returns the percentage of items processed successfully,
// 0 when nothing was processed.
func (r *Result) SuccessRate() float64 {
	if r.TotalProcessed == 0 {
		return 0
	}
	return float64(r.SuccessCount) / float64(r.TotalProcessed) * 100
}
