// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries: per-user review
// metadata used for ETag generation, and the cross-user feedback totals
// behind the statistics endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-codereview-backend/internal/domain"
)

// ReviewsStats returns the number of reviews owned by userID and the newest
// CreatedAt among them. When the user has no reviews, count is 0 and
// maxCreatedAt is nil.
func ReviewsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Review{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// FeedbackTotals holds the row count and per-column sums over the feedback
// table. Averages are derived by the caller so rounding stays in one place.
type FeedbackTotals struct {
	Count          int64
	SumAccuracy    int64
	SumHelpfulness int64
	SumTrust       int64
	SumTimeSpent   int64
}

// SumFeedback aggregates every feedback row in the store, across all users.
func SumFeedback(ctx context.Context, db *gorm.DB) (FeedbackTotals, error) {
	var t FeedbackTotals
	err := db.WithContext(ctx).
		Model(&domain.Feedback{}).
		Select(`COUNT(*) AS count,
			COALESCE(SUM(accuracy_rating), 0) AS sum_accuracy,
			COALESCE(SUM(helpfulness_rating), 0) AS sum_helpfulness,
			COALESCE(SUM(trust_rating), 0) AS sum_trust,
			COALESCE(SUM(time_spent_seconds), 0) AS sum_time_spent`).
		Scan(&t).Error
	return t, err
}
