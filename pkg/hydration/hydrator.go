// Package hydration fills engagement counters on posts from a remote
// rate-limited API, batching lookups and fanning out across accounts.
package hydration

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sietch-labs/hydrator-go/pkg/batch"
	"github.com/sietch-labs/hydrator-go/pkg/interfaces/bluesky"
	"github.com/sietch-labs/hydrator-go/pkg/retry"
)

// PostFetcher is the remote client contract the hydrator depends on.
// *bluesky.Client satisfies it.
type PostFetcher interface {
	GetPosts(ctx context.Context, uris []string) ([]bluesky.PostView, error)
}

// Hydrator refreshes engagement counters on posts through batched
// remote lookups.
type Hydrator struct {
	processor *batch.Processor
	logger    *logrus.Logger
}

// NewHydrator creates a Hydrator using the given batch configuration.
// The batch size must not exceed the API's per-call URI cap.
func NewHydrator(config batch.Config, logger *logrus.Logger) (*Hydrator, error) {
	if config.BatchSize > bluesky.MaxURIsPerRequest {
		return nil, fmt.Errorf("batch size %d exceeds post lookup cap of %d; use %s or smaller",
			config.BatchSize, bluesky.MaxURIsPerRequest, batch.StrategyStandard)
	}
	if logger == nil {
		logger = logrus.New()
	}

	processor, err := batch.NewProcessor(config, logger)
	if err != nil {
		return nil, err
	}

	return &Hydrator{
		processor: processor,
		logger:    logger,
	}, nil
}

// HydratePosts fetches fresh counters for the given posts and writes
// them back in place, matching by URI. URIs absent from the remote
// result are left unchanged: not hydrated this round, not an error.
// The returned Result carries partial-failure bookkeeping; failed
// batches leave their posts untouched.
func (h *Hydrator) HydratePosts(ctx context.Context, client PostFetcher, posts []*Post, progress batch.ProgressFunc) (*batch.Result, error) {
	if client == nil {
		return nil, fmt.Errorf("post fetcher is required")
	}

	byURI := make(map[string]*Post, len(posts))
	uris := make([]string, 0, len(posts))
	for _, post := range posts {
		if post == nil || post.URI == "" {
			continue
		}
		uris = append(uris, post.URI)
		byURI[post.URI] = post
	}

	log := h.logger.WithFields(logrus.Fields{
		"method":     "HydratePosts",
		"post_count": len(uris),
	})

	result, err := h.processor.Process(ctx, uris, func(batchCtx context.Context, chunk []string) (interface{}, error) {
		views, fetchErr := client.GetPosts(batchCtx, chunk)
		if fetchErr != nil {
			if !bluesky.IsRetryable(fetchErr) {
				// Shape mismatches and client errors will not improve
				// with another attempt.
				return nil, retry.Permanent(fetchErr)
			}
			return nil, fetchErr
		}
		return views, nil
	}, progress)

	now := time.Now()
	hydrated := 0
	for _, output := range result.Results {
		views, ok := output.([]bluesky.PostView)
		if !ok {
			continue
		}
		for _, view := range views {
			if post, found := byURI[view.URI]; found {
				normalizePostView(view).apply(post, now)
				hydrated++
			}
		}
	}

	log.WithFields(logrus.Fields{
		"hydrated":     hydrated,
		"success_rate": result.SuccessRate(),
		"batch_errors": len(result.Errors),
	}).Info("Post hydration finished")

	return result, err
}
