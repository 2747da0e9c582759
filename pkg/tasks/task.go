package tasks

import "time"

// Status represents the lifecycle state of a background task.
type Status string

// Task status constants. A task moves Pending -> Running -> one terminal
// state, except Cancelled which may occur before Running.
const (
	// StatusPending indicates the task is queued but not yet started
	StatusPending Status = "pending"
	// StatusRunning indicates the task is currently executing
	StatusRunning Status = "running"
	// StatusCompleted indicates the task finished successfully
	StatusCompleted Status = "completed"
	// StatusFailed indicates the task's work function returned an error
	StatusFailed Status = "failed"
	// StatusCancelled indicates the task was cancelled before it started
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Progress is a snapshot of how far a running task has come.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// Percentage returns completion as a value in [0,100], 0 when the total
// is unknown.
func (p Progress) Percentage() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// Task is the unit the Manager schedules and tracks. Callers receive
// value snapshots; the authoritative copy lives inside the Manager and
// is only mutated through its synchronized methods.
type Task struct {
	// ID uniquely identifies the task
	ID string `json:"id"`
	// Type names the kind of work, e.g. "hydration" or "parallel_hydration"
	Type string `json:"type"`
	// Status indicates the current lifecycle state
	Status Status `json:"status"`
	// Progress is the most recent progress report from the work function
	Progress Progress `json:"progress"`
	// Result holds the work function's return value, set only on completion
	Result interface{} `json:"result,omitempty"`
	// Error holds the failure message, set only on failure
	Error string `json:"error,omitempty"`
	// Metadata carries caller-supplied key/value context
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// snapshot returns a copy safe to hand outside the manager's lock.
func (t *Task) snapshot() Task {
	copy := *t
	if t.Metadata != nil {
		copy.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			copy.Metadata[k] = v
		}
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		copy.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		copy.CompletedAt = &completed
	}
	return copy
}
