package hydration_test

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sietch-labs/hydrator-go/pkg/batch"
	"github.com/sietch-labs/hydrator-go/pkg/hydration"
	"github.com/sietch-labs/hydrator-go/pkg/interfaces/bluesky"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func fastConfig(strategy batch.Strategy) batch.Config {
	config := batch.MustConfig(strategy)
	config.DelayBetweenBatches = 0
	config.MaxRetries = 1
	return config
}

// fakeFetcher serves canned post views keyed by URI and can be told to
// fail specific calls.
type fakeFetcher struct {
	mu       sync.Mutex
	views    map[string]bluesky.PostView
	failWith error
	calls    int
}

func (f *fakeFetcher) GetPosts(ctx context.Context, uris []string) ([]bluesky.PostView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []bluesky.PostView
	for _, uri := range uris {
		if view, ok := f.views[uri]; ok {
			out = append(out, view)
		}
	}
	return out, nil
}

func makePosts(n int) []*hydration.Post {
	posts := make([]*hydration.Post, n)
	for i := range posts {
		posts[i] = &hydration.Post{URI: fmt.Sprintf("at://did:plc:alice/app.bsky.feed.post/%d", i)}
	}
	return posts
}

func viewsFor(posts []*hydration.Post, likes int) map[string]bluesky.PostView {
	views := make(map[string]bluesky.PostView, len(posts))
	for _, post := range posts {
		views[post.URI] = bluesky.PostView{
			URI:         post.URI,
			LikeCount:   likes,
			RepostCount: 2,
			ReplyCount:  3,
			QuoteCount:  1,
		}
	}
	return views
}

var _ = Describe("Hydrator", func() {
	It("rejects a batch size above the post lookup cap", func() {
		_, err := hydration.NewHydrator(fastConfig(batch.StrategyLargePagination), quietLogger())
		Expect(err).To(MatchError(ContainSubstring("exceeds post lookup cap")))
	})

	Describe("HydratePosts", func() {
		var hydrator *hydration.Hydrator

		BeforeEach(func() {
			var err error
			hydrator, err = hydration.NewHydrator(fastConfig(batch.StrategyStandard), quietLogger())
			Expect(err).NotTo(HaveOccurred())
		})

		It("requires a client", func() {
			_, err := hydrator.HydratePosts(context.Background(), nil, makePosts(1), nil)
			Expect(err).To(MatchError(ContainSubstring("post fetcher is required")))
		})

		It("writes fetched counters back onto the originating posts", func() {
			posts := makePosts(3)
			fetcher := &fakeFetcher{views: viewsFor(posts, 10)}

			result, err := hydrator.HydratePosts(context.Background(), fetcher, posts, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.SuccessCount).To(Equal(3))

			for _, post := range posts {
				Expect(post.LikeCount).To(Equal(10))
				Expect(post.RepostCount).To(Equal(2))
				Expect(post.ReplyCount).To(Equal(3))
				Expect(post.QuoteCount).To(Equal(1))
				Expect(post.HydratedAt).NotTo(BeZero())
				// 10*1 + 3*1.5 + 2*2 + 1*2.5
				Expect(post.EngagementScore).To(BeNumerically("~", 21.0, 0.001))
			}
		})

		It("leaves posts missing from the response unchanged", func() {
			posts := makePosts(2)
			views := viewsFor(posts[:1], 5)
			fetcher := &fakeFetcher{views: views}

			result, err := hydrator.HydratePosts(context.Background(), fetcher, posts, nil)
			Expect(err).NotTo(HaveOccurred())
			// The batch itself succeeded even though one URI was absent.
			Expect(result.SuccessCount).To(Equal(2))

			Expect(posts[0].LikeCount).To(Equal(5))
			Expect(posts[1].LikeCount).To(BeZero())
			Expect(posts[1].HydratedAt).To(BeZero())
		})

		It("records a transient failure without touching the posts", func() {
			posts := makePosts(4)
			fetcher := &fakeFetcher{failWith: &bluesky.APIError{StatusCode: 503}}

			result, err := hydrator.HydratePosts(context.Background(), fetcher, posts, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ErrorCount).To(Equal(4))
			Expect(result.SuccessCount).To(BeZero())
			for _, post := range posts {
				Expect(post.HydratedAt).To(BeZero())
			}
		})

		It("does not retry a malformed response", func() {
			hydratorRetry, err := hydration.NewHydrator(func() batch.Config {
				config := fastConfig(batch.StrategyStandard)
				config.MaxRetries = 5
				return config
			}(), quietLogger())
			Expect(err).NotTo(HaveOccurred())

			fetcher := &fakeFetcher{failWith: fmt.Errorf("%w: unexpected shape", bluesky.ErrMalformedResponse)}
			result, err := hydratorRetry.HydratePosts(context.Background(), fetcher, makePosts(2), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ErrorCount).To(Equal(2))
			Expect(fetcher.calls).To(Equal(1))
		})

		It("skips nil posts and empty URIs", func() {
			posts := []*hydration.Post{nil, {URI: ""}, {URI: "at://did:plc:alice/app.bsky.feed.post/7"}}
			fetcher := &fakeFetcher{views: map[string]bluesky.PostView{
				"at://did:plc:alice/app.bsky.feed.post/7": {URI: "at://did:plc:alice/app.bsky.feed.post/7", LikeCount: 1},
			}}

			result, err := hydrator.HydratePosts(context.Background(), fetcher, posts, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.TotalProcessed).To(Equal(1))
		})
	})
})

var _ = Describe("Post", func() {
	It("derives the engagement score from the counters", func() {
		post := &hydration.Post{LikeCount: 4, ReplyCount: 2, RepostCount: 1, QuoteCount: 2}
		post.UpdateEngagementScore()
		// 4*1 + 2*1.5 + 1*2 + 2*2.5
		Expect(post.EngagementScore).To(BeNumerically("~", 14.0, 0.001))
	})

	It("scores zero for untouched counters", func() {
		post := &hydration.Post{}
		post.UpdateEngagementScore()
		Expect(post.EngagementScore).To(BeZero())
	})
})
