// Package hydratorconfig builds hydration jobs from process
// configuration.
package hydratorconfig

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sietch-labs/hydrator-go/pkg/hydration"
	"github.com/sietch-labs/hydrator-go/pkg/interfaces/bluesky"
)

// JobConfig holds the inputs for building hydration jobs.
type JobConfig struct {
	Client *bluesky.Client
	Logger *logrus.Logger
	// Accounts are handles or DIDs, one job per account. Defaults to
	// the comma-separated HYDRATOR_ACCOUNTS env value.
	Accounts []string
	// MaxPostsPerAccount caps how far back each account's feed is
	// walked. Defaults to HYDRATOR_MAX_POSTS or 200.
	MaxPostsPerAccount int
}

// BuildJobs walks each account's feed to discover post URIs and returns
// one hydration job per account, ready for the orchestrator.
func BuildJobs(ctx context.Context, config JobConfig) ([]hydration.Job, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("bluesky client is required")
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}

	accounts := config.Accounts
	if len(accounts) == 0 {
		accounts = accountsFromEnv()
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured; set HYDRATOR_ACCOUNTS")
	}

	maxPosts := config.MaxPostsPerAccount
	if maxPosts <= 0 {
		maxPosts = 200
		if v, err := strconv.Atoi(os.Getenv("HYDRATOR_MAX_POSTS")); err == nil && v > 0 {
			maxPosts = v
		}
	}

	jobs := make([]hydration.Job, 0, len(accounts))
	for _, account := range accounts {
		log := config.Logger.WithField("job_handle", account)

		uris, err := config.Client.ListAuthorPostURIs(ctx, account, maxPosts)
		if err != nil {
			return nil, fmt.Errorf("failed to list posts for %s: %w", account, err)
		}

		posts := make([]*hydration.Post, 0, len(uris))
		for _, uri := range uris {
			posts = append(posts, &hydration.Post{URI: uri})
		}

		log.WithField("post_count", len(posts)).Info("Built hydration job")

		jobs = append(jobs, hydration.Job{
			Handle: account,
			Posts:  posts,
			Client: config.Client,
			Metadata: map[string]string{
				"account": account,
			},
		})
	}

	return jobs, nil
}

func accountsFromEnv() []string {
	raw := os.Getenv("HYDRATOR_ACCOUNTS")
	if raw == "" {
		return nil
	}
	var accounts []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			accounts = append(accounts, trimmed)
		}
	}
	return accounts
}
