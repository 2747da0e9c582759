package tasks_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sietch-labs/hydrator-go/pkg/tasks"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

var _ = Describe("Manager", func() {
	var manager *tasks.Manager

	BeforeEach(func() {
		manager = tasks.NewManager(quietLogger(), tasks.WithWorkerCount(2))
	})

	AfterEach(func() {
		manager.Shutdown()
	})

	Describe("Submit", func() {
		It("rejects a nil work function", func() {
			_, err := manager.Submit("noop", nil, nil)
			Expect(err).To(HaveOccurred())
		})

		It("runs the work function and stores its result", func() {
			id, err := manager.Submit("sum", func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
				return 42, nil
			}, map[string]string{"origin": "unit-test"})
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() tasks.Status {
				task, _ := manager.Get(id)
				return task.Status
			}, time.Second).Should(Equal(tasks.StatusCompleted))

			task, ok := manager.Get(id)
			Expect(ok).To(BeTrue())
			Expect(task.Result).To(Equal(42))
			Expect(task.Error).To(BeEmpty())
			Expect(task.Metadata).To(HaveKeyWithValue("origin", "unit-test"))
			Expect(task.StartedAt).NotTo(BeNil())
			Expect(task.CompletedAt).NotTo(BeNil())
		})

		It("marks a task Failed when the work function errors", func() {
			id, err := manager.Submit("broken", func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
				return nil, errors.New("no client")
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() tasks.Status {
				task, _ := manager.Get(id)
				return task.Status
			}, time.Second).Should(Equal(tasks.StatusFailed))

			task, _ := manager.Get(id)
			Expect(task.Error).To(Equal("no client"))
			Expect(task.Result).To(BeNil())
		})

		It("survives a panicking work function", func() {
			id, err := manager.Submit("panicky", func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
				panic("unexpected")
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() tasks.Status {
				task, _ := manager.Get(id)
				return task.Status
			}, time.Second).Should(Equal(tasks.StatusFailed))

			task, _ := manager.Get(id)
			Expect(task.Error).To(ContainSubstring("task panicked"))

			// The pool still accepts and runs new work.
			id2, err := manager.Submit("after", func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
				return "ok", nil
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() tasks.Status {
				task, _ := manager.Get(id2)
				return task.Status
			}, time.Second).Should(Equal(tasks.StatusCompleted))
		})

		It("exposes progress reported by the work function", func() {
			release := make(chan struct{})
			id, err := manager.Submit("progressive", func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
				progress(2, 4, "halfway")
				<-release
				return nil, nil
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int {
				task, _ := manager.Get(id)
				return task.Progress.Current
			}, time.Second).Should(Equal(2))

			task, _ := manager.Get(id)
			Expect(task.Progress.Total).To(Equal(4))
			Expect(task.Progress.Message).To(Equal("halfway"))
			Expect(task.Progress.Percentage()).To(Equal(50.0))
			close(release)
		})
	})

	Describe("Get", func() {
		It("returns false for an unknown id", func() {
			_, ok := manager.Get("nope")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Cancel", func() {
		It("cancels a queued task before a worker picks it up", func() {
			single := tasks.NewManager(quietLogger(), tasks.WithWorkerCount(1))
			defer single.Shutdown()

			release := make(chan struct{})
			blocker, err := single.Submit("blocker", func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
				<-release
				return nil, nil
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() tasks.Status {
				task, _ := single.Get(blocker)
				return task.Status
			}, time.Second).Should(Equal(tasks.StatusRunning))

			queued, err := single.Submit("queued", func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
				return nil, nil
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(single.Cancel(queued)).To(BeTrue())

			task, ok := single.Get(queued)
			Expect(ok).To(BeTrue())
			Expect(task.Status).To(Equal(tasks.StatusCancelled))
			Expect(task.CompletedAt).NotTo(BeNil())
			Expect(task.StartedAt).To(BeNil())

			close(release)

			// The cancelled task never runs.
			Consistently(func() tasks.Status {
				task, _ := single.Get(queued)
				return task.Status
			}, 100*time.Millisecond).Should(Equal(tasks.StatusCancelled))
		})

		It("refuses to cancel a running task", func() {
			release := make(chan struct{})
			id, err := manager.Submit("running", func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
				<-release
				return nil, nil
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() tasks.Status {
				task, _ := manager.Get(id)
				return task.Status
			}, time.Second).Should(Equal(tasks.StatusRunning))

			Expect(manager.Cancel(id)).To(BeFalse())
			task, _ := manager.Get(id)
			Expect(task.Status).To(Equal(tasks.StatusRunning))
			close(release)
		})

		It("returns false for an unknown id", func() {
			Expect(manager.Cancel("nope")).To(BeFalse())
		})
	})

	Describe("Cleanup", func() {
		It("removes only old terminal tasks", func() {
			id, err := manager.Submit("done", func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
				return nil, nil
			}, nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() tasks.Status {
				task, _ := manager.Get(id)
				return task.Status
			}, time.Second).Should(Equal(tasks.StatusCompleted))

			// Young terminal task survives a long retention window.
			Expect(manager.Cleanup(time.Hour)).To(BeZero())
			_, ok := manager.Get(id)
			Expect(ok).To(BeTrue())

			// A zero retention window sweeps it.
			Eventually(func() int {
				return manager.Cleanup(0)
			}, time.Second).Should(Equal(1))
			_, ok = manager.Get(id)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Shutdown", func() {
		It("rejects submissions after shutdown", func() {
			m := tasks.NewManager(quietLogger(), tasks.WithWorkerCount(1))
			m.Shutdown()

			_, err := m.Submit("late", func(ctx context.Context, progress tasks.ProgressFunc) (interface{}, error) {
				return nil, nil
			}, nil)
			Expect(errors.Is(err, tasks.ErrManagerClosed)).To(BeTrue())
		})
	})
})
