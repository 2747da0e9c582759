package hydration

import (
	"time"

	"github.com/sietch-labs/hydrator-go/pkg/interfaces/bluesky"
)

// EngagementMetrics is the canonical counter set extracted from a
// remote post view. Shape variance of the remote response stays at this
// boundary; the rest of the package only sees this struct.
type EngagementMetrics struct {
	URI     string
	Likes   int
	Reposts int
	Replies int
	Quotes  int
}

// normalizePostView maps an API post view onto the canonical metrics.
func normalizePostView(view bluesky.PostView) EngagementMetrics {
	return EngagementMetrics{
		URI:     view.URI,
		Likes:   view.LikeCount,
		Reposts: view.RepostCount,
		Replies: view.ReplyCount,
		Quotes:  view.QuoteCount,
	}
}

// apply writes the metrics onto the post and refreshes the derived
// fields.
func (m EngagementMetrics) apply(post *Post, now time.Time) {
	post.LikeCount = m.Likes
	post.RepostCount = m.Reposts
	post.ReplyCount = m.Replies
	post.QuoteCount = m.Quotes
	post.HydratedAt = now
	post.UpdateEngagementScore()
}
