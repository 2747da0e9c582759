// Package tasks runs asynchronous work on a bounded worker pool and
// tracks each unit's lifecycle, progress, and outcome.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultWorkerCount bounds concurrent task execution.
	DefaultWorkerCount = 4
	// DefaultQueueSize bounds how many submitted tasks may wait for a
	// worker slot before Submit blocks.
	DefaultQueueSize = 256
)

// ErrManagerClosed is returned by Submit after Shutdown.
var ErrManagerClosed = errors.New("task manager is shut down")

// ProgressFunc reports progress from inside a work function. It is the
// only way a worker may touch a task's progress fields.
type ProgressFunc func(current, total int, message string)

// WorkFunc is the unit of work the Manager schedules. The context is
// cancelled on Shutdown; progress is never nil.
type WorkFunc func(ctx context.Context, progress ProgressFunc) (interface{}, error)

type scheduled struct {
	id string
	fn WorkFunc
}

// Manager owns a fixed-size worker pool and an index of every task it
// has accepted. The index is the only concurrently-mutated structure;
// all access goes through the mutex.
type Manager struct {
	logger *logrus.Logger

	mu    sync.RWMutex
	tasks map[string]*Task

	queue  chan scheduled
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// ManagerOption customizes a Manager at construction time.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	workerCount int
	queueSize   int
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(n int) ManagerOption {
	return func(o *managerOptions) {
		o.workerCount = n
	}
}

// WithQueueSize sets the submission queue capacity.
func WithQueueSize(n int) ManagerOption {
	return func(o *managerOptions) {
		o.queueSize = n
	}
}

// NewManager creates a Manager and starts its workers. Callers own the
// lifecycle: construct at process start, Shutdown on exit.
func NewManager(logger *logrus.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logrus.New()
	}

	options := managerOptions{
		workerCount: DefaultWorkerCount,
		queueSize:   DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.workerCount <= 0 {
		options.workerCount = DefaultWorkerCount
	}
	if options.queueSize <= 0 {
		options.queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger: logger,
		tasks:  make(map[string]*Task),
		queue:  make(chan scheduled, options.queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < options.workerCount; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	logger.WithFields(logrus.Fields{
		"worker_count": options.workerCount,
		"queue_size":   options.queueSize,
	}).Debug("Task manager started")

	return m
}

// Submit registers fn as a new Pending task and schedules it onto the
// worker pool. It returns the task id immediately; execution happens on
// a worker goroutine.
func (m *Manager) Submit(taskType string, fn WorkFunc, metadata map[string]string) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("work function must not be nil")
	}
	if m.ctx.Err() != nil {
		return "", ErrManagerClosed
	}

	task := &Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		Status:    StatusPending,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()

	select {
	case m.queue <- scheduled{id: task.ID, fn: fn}:
	case <-m.ctx.Done():
		m.mu.Lock()
		delete(m.tasks, task.ID)
		m.mu.Unlock()
		return "", ErrManagerClosed
	}

	m.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": taskType,
	}).Debug("Task submitted")

	return task.ID, nil
}

// Get returns a snapshot of the task, or false if the id is unknown
// (never submitted, or removed by Cleanup).
func (m *Manager) Get(id string) (Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return Task{}, false
	}
	return task.snapshot(), true
}

// List returns snapshots of every tracked task.
func (m *Manager) List() []Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		out = append(out, task.snapshot())
	}
	return out
}

// Cancel marks a Pending task Cancelled and reports true. Once a task
// is Running, cancellation is not retroactive and Cancel reports false.
// The cancelled task stays queryable until Cleanup removes it.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.Status != StatusPending {
		return false
	}

	now := time.Now()
	task.Status = StatusCancelled
	task.CompletedAt = &now

	m.logger.WithField("task_id", id).Info("Task cancelled before execution")
	return true
}

// Cleanup removes terminal tasks whose completion is older than maxAge
// and returns how many were removed. Safe to call concurrently with
// Submit and Get.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, task := range m.tasks {
		if task.Status.Terminal() && task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.WithFields(logrus.Fields{
			"removed": removed,
			"max_age": maxAge.String(),
		}).Debug("Cleaned up finished tasks")
	}
	return removed
}

// Shutdown stops accepting work, cancels the workers' context, and
// waits for in-flight tasks to finish. Queued tasks that never started
// are marked Cancelled. The queue channel is never closed, so a Submit
// racing Shutdown fails cleanly instead of panicking.
func (m *Manager) Shutdown() {
	m.closeOnce.Do(func() {
		m.cancel()
	})
	m.wg.Wait()

	for {
		select {
		case sched := <-m.queue:
			m.markCancelled(sched.id)
		default:
			m.logger.Debug("Task manager shut down")
			return
		}
	}
}

func (m *Manager) worker(workerID int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case sched := <-m.queue:
			if m.ctx.Err() != nil {
				m.markCancelled(sched.id)
				continue
			}
			m.run(workerID, sched)
		}
	}
}

func (m *Manager) run(workerID int, sched scheduled) {
	m.mu.Lock()
	task, ok := m.tasks[sched.id]
	if !ok || task.Status != StatusPending {
		// Cancelled while queued, or already removed.
		m.mu.Unlock()
		return
	}
	now := time.Now()
	task.Status = StatusRunning
	task.StartedAt = &now
	taskID := task.ID
	taskType := task.Type
	m.mu.Unlock()

	log := m.logger.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": taskType,
		"worker_id": workerID,
	})
	log.Debug("Task started")

	progress := func(current, total int, message string) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if t, ok := m.tasks[taskID]; ok && t.Status == StatusRunning {
			t.Progress = Progress{Current: current, Total: total, Message: message}
		}
	}

	result, err := m.invoke(sched.fn, progress)

	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok = m.tasks[taskID]
	if !ok {
		return
	}
	completed := time.Now()
	task.CompletedAt = &completed
	if err != nil {
		task.Status = StatusFailed
		task.Error = err.Error()
		log.WithError(err).Error("Task failed")
		return
	}
	task.Status = StatusCompleted
	task.Result = result
	log.Debug("Task completed")
}

// invoke runs the work function, converting a panic into an error so a
// misbehaving task can never take down the worker pool.
func (m *Manager) invoke(fn WorkFunc, progress ProgressFunc) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(m.ctx, progress)
}

func (m *Manager) markCancelled(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task, ok := m.tasks[id]; ok && task.Status == StatusPending {
		now := time.Now()
		task.Status = StatusCancelled
		task.CompletedAt = &now
	}
}
