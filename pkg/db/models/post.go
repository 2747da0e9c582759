package models

import (
	"time"

	"github.com/lib/pq"
)

// Post represents the database model for hydrated posts
type Post struct {
	URI       string    `gorm:"primaryKey;column:uri"`
	CID       string    `gorm:"column:cid"`
	Text      string    `gorm:"column:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`

	// Author Information
	AuthorDID    string `gorm:"column:author_did"`
	AuthorHandle string `gorm:"column:author_handle"`

	// Engagement Counters
	LikeCount   int `gorm:"column:like_count;default:0"`
	RepostCount int `gorm:"column:repost_count;default:0"`
	ReplyCount  int `gorm:"column:reply_count;default:0"`
	QuoteCount  int `gorm:"column:quote_count;default:0"`

	// Derived and operational fields
	EngagementScore float64        `gorm:"column:engagement_score;default:0"`
	HydratedAt      *time.Time     `gorm:"column:hydrated_at"`
	HydrationCount  int            `gorm:"column:hydration_count;default:0"`
	Tags            pq.StringArray `gorm:"column:tags;type:text[]"`
	LastUpdated     time.Time      `gorm:"column:last_updated;not null"`
}

// TableName specifies the table name for the Post model
func (Post) TableName() string {
	return "posts"
}
