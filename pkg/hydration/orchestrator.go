package hydration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sietch-labs/hydrator-go/pkg/batch"
	"github.com/sietch-labs/hydrator-go/pkg/tasks"
)

const (
	// DefaultMaxConcurrentJobs bounds job-level fan-out, independently
	// of batch-level concurrency.
	DefaultMaxConcurrentJobs = 3

	// TaskTypeHydration is the task type for a single hydration job.
	TaskTypeHydration = "hydration"
	// TaskTypeParallelHydration is the task type for a multi-account fan-out.
	TaskTypeParallelHydration = "parallel_hydration"
)

// Orchestrator schedules hydration work onto a task manager, singly or
// fanned out across accounts.
type Orchestrator struct {
	manager           *tasks.Manager
	hydrator          *Hydrator
	logger            *logrus.Logger
	maxConcurrentJobs int
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxConcurrentJobs bounds how many jobs run at once inside a
// parallel hydration task.
func WithMaxConcurrentJobs(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrentJobs = n
		}
	}
}

// NewOrchestrator creates an Orchestrator. The manager is owned by the
// caller; batchConfig drives the per-job batching.
func NewOrchestrator(manager *tasks.Manager, batchConfig batch.Config, logger *logrus.Logger, opts ...OrchestratorOption) (*Orchestrator, error) {
	if manager == nil {
		return nil, fmt.Errorf("task manager is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	hydrator, err := NewHydrator(batchConfig, logger)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		manager:           manager,
		hydrator:          hydrator,
		logger:            logger,
		maxConcurrentJobs: DefaultMaxConcurrentJobs,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// StartHydration schedules one job and returns its task id. Unlike the
// parallel fan-out, a failure here marks the task itself Failed.
func (o *Orchestrator) StartHydration(job Job) (string, error) {
	if err := validateJob(job); err != nil {
		return "", err
	}

	return o.manager.Submit(TaskTypeHydration, func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
		outcome, err := o.runJob(ctx, job, func(batchNumber, totalBatches int) {
			progress(batchNumber, totalBatches, fmt.Sprintf("batch %d/%d", batchNumber, totalBatches))
		})
		if err != nil {
			return nil, err
		}
		return outcome, nil
	}, job.Metadata)
}

// StartParallelHydration schedules all jobs under one task and returns
// its id. Jobs run concurrently, bounded by the job concurrency limit;
// a single job's failure is recorded under its handle and never fails
// sibling jobs or the overall task. The task's progress tracks
// completed jobs in completion order.
func (o *Orchestrator) StartParallelHydration(jobs []Job) (string, error) {
	if len(jobs) == 0 {
		return "", fmt.Errorf("at least one job is required")
	}
	seen := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		if job.Handle == "" {
			return "", fmt.Errorf("every job needs a handle")
		}
		if seen[job.Handle] {
			return "", fmt.Errorf("duplicate job handle: %q", job.Handle)
		}
		seen[job.Handle] = true
	}

	metadata := map[string]string{"job_count": fmt.Sprintf("%d", len(jobs))}

	return o.manager.Submit(TaskTypeParallelHydration, func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
		return o.runParallel(ctx, jobs, progress), nil
	}, metadata)
}

type jobResult struct {
	handle  string
	outcome JobOutcome
	err     error
}

func (o *Orchestrator) runParallel(ctx context.Context, jobs []Job, progress tasks.ProgressFunc) *ParallelResult {
	start := time.Now()

	o.logger.WithFields(logrus.Fields{
		"total_jobs":     len(jobs),
		"max_concurrent": o.maxConcurrentJobs,
	}).Info("Starting parallel hydration")

	results := make(chan jobResult, len(jobs))
	sem := make(chan struct{}, o.maxConcurrentJobs)

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			outcome, err := o.runJobRecovered(ctx, job)
			results <- jobResult{handle: job.Handle, outcome: outcome, err: err}
		}(job)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	aggregate := &ParallelResult{
		TotalJobs: len(jobs),
		Results:   make(map[string]JobOutcome, len(jobs)),
		Errors:    make(map[string]string),
	}

	resolved := 0
	for res := range results {
		resolved++
		if res.err != nil {
			aggregate.Errors[res.handle] = res.err.Error()
			o.logger.WithError(res.err).WithField("job_handle", res.handle).Error("Hydration job failed")
		} else {
			aggregate.CompletedJobs++
			aggregate.Results[res.handle] = res.outcome
		}
		progress(resolved, len(jobs), fmt.Sprintf("finished %s", res.handle))
	}

	aggregate.ProcessingTime = time.Since(start)

	o.logger.WithFields(logrus.Fields{
		"completed_jobs":  aggregate.CompletedJobs,
		"failed_jobs":     len(aggregate.Errors),
		"total_jobs":      aggregate.TotalJobs,
		"success_rate":    aggregate.SuccessRate(),
		"processing_time": aggregate.ProcessingTime.String(),
	}).Info("Parallel hydration finished")

	return aggregate
}

// runJobRecovered isolates a job: its panic or error stays under its
// own handle in the aggregate.
func (o *Orchestrator) runJobRecovered(ctx context.Context, job Job) (outcome JobOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	if err = validateJob(job); err != nil {
		return JobOutcome{}, err
	}
	return o.runJob(ctx, job, nil)
}

func (o *Orchestrator) runJob(ctx context.Context, job Job, progress batch.ProgressFunc) (JobOutcome, error) {
	result, err := o.hydrator.HydratePosts(ctx, job.Client, job.Posts, progress)
	if err != nil {
		return JobOutcome{}, fmt.Errorf("hydration for %s: %w", job.Handle, err)
	}

	return JobOutcome{
		Handle:         job.Handle,
		ItemsProcessed: result.TotalProcessed,
		SuccessCount:   result.SuccessCount,
		ErrorCount:     result.ErrorCount,
		SuccessRate:    result.SuccessRate(),
		ProcessingTime: result.ProcessingTime,
	}, nil
}

func validateJob(job Job) error {
	if job.Handle == "" {
		return fmt.Errorf("job handle is required")
	}
	if job.Client == nil {
		return fmt.Errorf("no client configured for %s", job.Handle)
	}
	return nil
}
