// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback model.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving business rules (rating bounds, review ownership)
// to the services package.
//
// Error semantics:
//   - A second feedback row for the same review violates the unique index on
//     review_id and is returned as a raw DB error; use IsDuplicate to detect it.
//   - Lookups that match nothing return ErrNotFound.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-codereview-backend/internal/domain"
)

// CreateFeedback inserts fb, assigning ID and CreatedAt when unset.
func CreateFeedback(ctx context.Context, db *gorm.DB, fb *domain.Feedback) error {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Omit("Review").Create(fb).Error
}

// GetFeedbackByReview returns the feedback attached to reviewID, or ErrNotFound.
func GetFeedbackByReview(ctx context.Context, db *gorm.DB, reviewID string) (*domain.Feedback, error) {
	var fb domain.Feedback
	if err := db.WithContext(ctx).Where("review_id = ?", reviewID).First(&fb).Error; err != nil {
		return nil, err
	}
	return &fb, nil
}

// FeedbackExists reports whether reviewID already has feedback.
func FeedbackExists(ctx context.Context, db *gorm.DB, reviewID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Feedback{}).Where("review_id = ?", reviewID).Count(&n).Error
	return n > 0, err
}
