package bluesky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
)

// GetPosts retrieves hydrated views for up to MaxURIsPerRequest posts
// in one call. Order of the returned posts follows the API; callers
// should match by URI, not position. URIs the API omits (deleted or
// blocked posts) are simply absent from the result.
func (c *Client) GetPosts(ctx context.Context, uris []string) ([]PostView, error) {
	if len(uris) == 0 {
		return nil, nil
	}
	if len(uris) > MaxURIsPerRequest {
		return nil, fmt.Errorf("too many uris for one lookup: %d > %d", len(uris), MaxURIsPerRequest)
	}

	log := c.logger.WithFields(logrus.Fields{
		"method":    "GetPosts",
		"uri_count": len(uris),
	})

	query := url.Values{}
	for _, uri := range uris {
		query.Add("uris", uri)
	}

	log.Debug("Fetching posts")

	resp, err := c.makeRequest(ctx, c.config.GetPostsEndpoint, query)
	if err != nil {
		log.WithError(err).Error("Failed to fetch posts")
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}
	defer resp.Body.Close()

	if err := c.handleResponse(resp); err != nil {
		return nil, err
	}

	var postsResp GetPostsResponse
	if err := json.NewDecoder(resp.Body).Decode(&postsResp); err != nil {
		log.WithError(err).Error("Failed to decode response")
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	log.WithFields(logrus.Fields{
		"requested": len(uris),
		"returned":  len(postsResp.Posts),
	}).Debug("Received post views")

	return postsResp.Posts, nil
}
