// Package memory persists hydrated posts and recalls the ones whose
// counters have gone stale.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sietch-labs/hydrator-go/pkg/db/models"
	"github.com/sietch-labs/hydrator-go/pkg/hydration"
)

// DefaultStaleAfter is how old counters may get before a post is due
// for another hydration round.
const DefaultStaleAfter = 6 * time.Hour

// PostStore persists hydrated posts through GORM.
type PostStore struct {
	mu     sync.RWMutex
	logger *logrus.Logger
	db     *gorm.DB
}

// NewPostStore creates a PostStore backed by the given database handle.
func NewPostStore(logger *logrus.Logger, db *gorm.DB) (*PostStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &PostStore{
		logger: logger,
		db:     db,
	}, nil
}

// SaveHydratedPosts upserts the posts' counters and derived score.
// Posts that were never hydrated (zero HydratedAt) are skipped.
func (s *PostStore) SaveHydratedPosts(ctx context.Context, posts []*hydration.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	for _, post := range posts {
		if post == nil || post.URI == "" || post.HydratedAt.IsZero() {
			continue
		}

		hydratedAt := post.HydratedAt
		record := models.Post{
			URI:             post.URI,
			Text:            post.Text,
			LikeCount:       post.LikeCount,
			RepostCount:     post.RepostCount,
			ReplyCount:      post.ReplyCount,
			QuoteCount:      post.QuoteCount,
			EngagementScore: post.EngagementScore,
			HydratedAt:      &hydratedAt,
			HydrationCount:  1,
			LastUpdated:     time.Now(),
		}

		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "uri"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"like_count":       record.LikeCount,
				"repost_count":     record.RepostCount,
				"reply_count":      record.ReplyCount,
				"quote_count":      record.QuoteCount,
				"engagement_score": record.EngagementScore,
				"hydrated_at":      record.HydratedAt,
				"hydration_count":  gorm.Expr("posts.hydration_count + 1"),
				"last_updated":     record.LastUpdated,
			}),
		}).Create(&record).Error
		if err != nil {
			s.logger.WithError(err).WithField("post_uri", post.URI).Error("Failed to save hydrated post")
			return fmt.Errorf("failed to save post %s: %w", post.URI, err)
		}
		saved++
	}

	s.logger.WithField("saved", saved).Debug("Saved hydrated posts")
	return nil
}

// GetPost loads one stored post by URI.
func (s *PostStore) GetPost(ctx context.Context, uri string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var record models.Post
	if err := s.db.WithContext(ctx).First(&record, "uri = ?", uri).Error; err != nil {
		return nil, fmt.Errorf("failed to load post %s: %w", uri, err)
	}
	return &record, nil
}

// RecallPostsNeedingHydration returns posts whose counters are older
// than staleAfter (or were never hydrated), up to limit, as work items
// ready for a hydration job.
func (s *PostStore) RecallPostsNeedingHydration(ctx context.Context, staleAfter time.Duration, limit int) ([]*hydration.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	cutoff := time.Now().Add(-staleAfter)

	query := s.db.WithContext(ctx).
		Where("hydrated_at IS NULL OR hydrated_at < ?", cutoff).
		Order("hydrated_at ASC NULLS FIRST")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.Post
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to recall stale posts: %w", err)
	}

	posts := make([]*hydration.Post, 0, len(records))
	for _, record := range records {
		posts = append(posts, &hydration.Post{
			URI:         record.URI,
			Text:        record.Text,
			LikeCount:   record.LikeCount,
			RepostCount: record.RepostCount,
			ReplyCount:  record.ReplyCount,
			QuoteCount:  record.QuoteCount,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"stale_posts": len(posts),
		"cutoff":      cutoff.Format(time.RFC3339),
	}).Debug("Recalled posts needing hydration")

	return posts, nil
}
