package hydration

import "time"

// Engagement score weights. Reposts and quotes carry a post to new
// audiences, so they weigh more than likes.
const (
	likeWeight   = 1.0
	replyWeight  = 1.5
	repostWeight = 2.0
	quoteWeight  = 2.5
)

// Post is one content item to hydrate. The caller owns the slice; the
// hydrator only writes the counter fields, the score, and HydratedAt.
type Post struct {
	// URI uniquely identifies the post
	URI string `json:"uri"`
	// Text is optional display context; never touched by hydration
	Text string `json:"text,omitempty"`

	LikeCount   int `json:"like_count"`
	RepostCount int `json:"repost_count"`
	ReplyCount  int `json:"reply_count"`
	QuoteCount  int `json:"quote_count"`

	// EngagementScore is derived from the counters on every hydration
	EngagementScore float64 `json:"engagement_score"`
	// HydratedAt records when the counters were last refreshed
	HydratedAt time.Time `json:"hydrated_at,omitempty"`
}

// UpdateEngagementScore recomputes the derived score from the current
// counters.
func (p *Post) UpdateEngagementScore() {
	p.EngagementScore = likeWeight*float64(p.LikeCount) +
		replyWeight*float64(p.ReplyCount) +
		repostWeight*float64(p.RepostCount) +
		quoteWeight*float64(p.QuoteCount)
}
