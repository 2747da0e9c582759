package bluesky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DefaultFeedPageSize is the page size used when walking an author feed.
const DefaultFeedPageSize = 100

// GetAuthorFeedParams holds the parameters for one author-feed page.
type GetAuthorFeedParams struct {
	// Actor is the account's handle or DID.
	Actor string
	// Cursor is the opaque pagination token from the previous page;
	// empty for the first page.
	Cursor string
	// Limit is the page size; defaults to DefaultFeedPageSize.
	Limit int
}

// GetAuthorFeed retrieves one page of an account's posts. An empty
// cursor in the response signals the last page.
func (c *Client) GetAuthorFeed(ctx context.Context, params GetAuthorFeedParams) (*AuthorFeedResponse, error) {
	if params.Actor == "" {
		return nil, fmt.Errorf("actor is required")
	}
	if params.Limit <= 0 {
		params.Limit = DefaultFeedPageSize
	}

	log := c.logger.WithFields(logrus.Fields{
		"method": "GetAuthorFeed",
		"actor":  params.Actor,
	})

	query := url.Values{}
	query.Set("actor", params.Actor)
	query.Set("limit", strconv.Itoa(params.Limit))
	if params.Cursor != "" {
		query.Set("cursor", params.Cursor)
	}

	resp, err := c.makeRequest(ctx, c.config.AuthorFeedEndpoint, query)
	if err != nil {
		log.WithError(err).Error("Failed to fetch author feed")
		return nil, fmt.Errorf("failed to fetch author feed: %w", err)
	}
	defer resp.Body.Close()

	if err := c.handleResponse(resp); err != nil {
		return nil, err
	}

	var feedResp AuthorFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feedResp); err != nil {
		log.WithError(err).Error("Failed to decode response")
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	log.WithFields(logrus.Fields{
		"post_count": len(feedResp.Feed),
		"has_cursor": feedResp.Cursor != "",
	}).Debug("Received author feed page")

	return &feedResp, nil
}

// ListAuthorPostURIs walks an account's feed page by page and returns
// the URIs of its posts, newest first, up to maxPosts (0 means no cap).
func (c *Client) ListAuthorPostURIs(ctx context.Context, actor string, maxPosts int) ([]string, error) {
	var uris []string
	cursor := ""

	for {
		page, err := c.GetAuthorFeed(ctx, GetAuthorFeedParams{Actor: actor, Cursor: cursor})
		if err != nil {
			return uris, err
		}

		for _, item := range page.Feed {
			uris = append(uris, item.Post.URI)
			if maxPosts > 0 && len(uris) >= maxPosts {
				return uris, nil
			}
		}

		if page.Cursor == "" || len(page.Feed) == 0 {
			return uris, nil
		}
		cursor = page.Cursor
	}
}
