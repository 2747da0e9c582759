package hydration_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sietch-labs/hydrator-go/pkg/batch"
	"github.com/sietch-labs/hydrator-go/pkg/hydration"
	"github.com/sietch-labs/hydrator-go/pkg/interfaces/bluesky"
	"github.com/sietch-labs/hydrator-go/pkg/tasks"
)

var _ = Describe("Orchestrator", func() {
	var (
		manager      *tasks.Manager
		orchestrator *hydration.Orchestrator
	)

	BeforeEach(func() {
		manager = tasks.NewManager(quietLogger(), tasks.WithWorkerCount(2))
		var err error
		orchestrator, err = hydration.NewOrchestrator(manager, fastConfig(batch.StrategyStandard), quietLogger())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		manager.Shutdown()
	})

	waitTerminal := func(taskID string) tasks.Task {
		Eventually(func() bool {
			task, _ := manager.Get(taskID)
			return task.Status.Terminal()
		}, 5*time.Second).Should(BeTrue())
		task, ok := manager.Get(taskID)
		Expect(ok).To(BeTrue())
		return task
	}

	Describe("StartParallelHydration", func() {
		It("rejects an empty job list", func() {
			_, err := orchestrator.StartParallelHydration(nil)
			Expect(err).To(HaveOccurred())
		})

		It("rejects duplicate job handles", func() {
			fetcher := &fakeFetcher{}
			jobs := []hydration.Job{
				{Handle: "alice.bsky.social", Client: fetcher},
				{Handle: "alice.bsky.social", Client: fetcher},
			}
			_, err := orchestrator.StartParallelHydration(jobs)
			Expect(err).To(MatchError(ContainSubstring("duplicate job handle")))
		})

		It("hydrates independent jobs and aggregates their outcomes", func() {
			postsA := makePosts(30)
			postsB := makePosts(5)
			jobs := []hydration.Job{
				{Handle: "alice.bsky.social", Posts: postsA, Client: &fakeFetcher{views: viewsFor(postsA, 7)}},
				{Handle: "bob.bsky.social", Posts: postsB, Client: &fakeFetcher{views: viewsFor(postsB, 9)}},
			}

			taskID, err := orchestrator.StartParallelHydration(jobs)
			Expect(err).NotTo(HaveOccurred())

			task := waitTerminal(taskID)
			Expect(task.Status).To(Equal(tasks.StatusCompleted))
			Expect(task.Type).To(Equal(hydration.TaskTypeParallelHydration))

			result, ok := task.Result.(*hydration.ParallelResult)
			Expect(ok).To(BeTrue())
			Expect(result.TotalJobs).To(Equal(2))
			Expect(result.CompletedJobs).To(Equal(2))
			Expect(result.SuccessRate()).To(Equal(100.0))
			Expect(result.Errors).To(BeEmpty())

			Expect(result.Results).To(HaveKey("alice.bsky.social"))
			Expect(result.Results["alice.bsky.social"].ItemsProcessed).To(Equal(30))
			Expect(result.Results["bob.bsky.social"].ItemsProcessed).To(Equal(5))

			Expect(postsA[0].LikeCount).To(Equal(7))
			Expect(postsB[0].LikeCount).To(Equal(9))

			// Progress tracked completed jobs over total jobs.
			Expect(task.Progress.Current).To(Equal(2))
			Expect(task.Progress.Total).To(Equal(2))
		})

		It("isolates a failing job from its siblings", func() {
			postsA := makePosts(3)
			postsC := makePosts(3)
			jobs := []hydration.Job{
				{Handle: "job1", Posts: postsA, Client: &fakeFetcher{views: viewsFor(postsA, 1)}},
				{Handle: "job2", Posts: makePosts(3), Client: nil},
				{Handle: "job3", Posts: postsC, Client: &fakeFetcher{views: viewsFor(postsC, 1)}},
			}

			taskID, err := orchestrator.StartParallelHydration(jobs)
			Expect(err).NotTo(HaveOccurred())

			task := waitTerminal(taskID)
			// The fan-out itself completed even though one job failed.
			Expect(task.Status).To(Equal(tasks.StatusCompleted))

			result := task.Result.(*hydration.ParallelResult)
			Expect(result.CompletedJobs).To(Equal(2))
			Expect(result.TotalJobs).To(Equal(3))
			Expect(result.Errors).To(HaveLen(1))
			Expect(result.Errors["job2"]).To(ContainSubstring("no client configured"))
			Expect(result.Results).To(HaveKey("job1"))
			Expect(result.Results).To(HaveKey("job3"))
			Expect(result.Results).NotTo(HaveKey("job2"))
		})

		It("records a panicking job under its handle", func() {
			posts := makePosts(2)
			jobs := []hydration.Job{
				{Handle: "stable", Posts: posts, Client: &fakeFetcher{views: viewsFor(posts, 1)}},
				{Handle: "volatile", Posts: makePosts(2), Client: panicFetcher{}},
			}

			taskID, err := orchestrator.StartParallelHydration(jobs)
			Expect(err).NotTo(HaveOccurred())

			task := waitTerminal(taskID)
			Expect(task.Status).To(Equal(tasks.StatusCompleted))

			result := task.Result.(*hydration.ParallelResult)
			Expect(result.Errors["volatile"]).To(ContainSubstring("job panicked"))
			Expect(result.Results).To(HaveKey("stable"))
		})
	})

	Describe("StartHydration", func() {
		It("marks the task Failed when the single job cannot run", func() {
			_, err := orchestrator.StartHydration(hydration.Job{Handle: "solo", Client: nil})
			Expect(err).To(MatchError(ContainSubstring("no client configured")))
		})

		It("completes a single job and stores its outcome", func() {
			posts := makePosts(7)
			taskID, err := orchestrator.StartHydration(hydration.Job{
				Handle: "solo",
				Posts:  posts,
				Client: &fakeFetcher{views: viewsFor(posts, 3)},
			})
			Expect(err).NotTo(HaveOccurred())

			task := waitTerminal(taskID)
			Expect(task.Status).To(Equal(tasks.StatusCompleted))
			Expect(task.Type).To(Equal(hydration.TaskTypeHydration))

			outcome, ok := task.Result.(hydration.JobOutcome)
			Expect(ok).To(BeTrue())
			Expect(outcome.ItemsProcessed).To(Equal(7))
			Expect(outcome.SuccessRate).To(Equal(100.0))
		})
	})
})

// panicFetcher simulates a client whose implementation blows up.
type panicFetcher struct{}

func (panicFetcher) GetPosts(ctx context.Context, uris []string) ([]bluesky.PostView, error) {
	panic("client exploded")
}
