// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Review model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. Every
// read and delete is scoped by (id, user_id) so a caller can never reach
// another user's review.
//
// Error semantics:
//   - When a review is not found (or is owned by someone else), functions
//     return gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateReview(ctx, db, review) -> error
//     Inserts a Review row, assigning a UUID and UTC CreatedAt when unset.
//
//   - CountReviews(ctx, db, userID) -> (int64, error)
//     Returns the number of reviews owned by the user.
//
//   - ListReviewsPage(ctx, db, userID, offset, limit) -> []domain.Review, error
//     Returns a page of the user's reviews, newest first.
//
//   - GetReview(ctx, db, id, userID) -> *domain.Review, error
//     Fetches one review by id and owner, or ErrNotFound.
//
//   - DeleteReview(ctx, db, id, userID) -> error
//     Removes the review and its feedback; ErrNotFound if nothing matched.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-codereview-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateReview inserts r. ID and CreatedAt are filled in when empty.
func CreateReview(ctx context.Context, db *gorm.DB, r *domain.Review) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(r).Error
}

// CountReviews returns the total number of reviews owned by userID.
func CountReviews(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListReviewsPage returns a paginated slice of reviews for userID, ordered by
// creation time descending. Use CountReviews to obtain the total for
// pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*limit).
func ListReviewsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Review, error) {
	out := []domain.Review{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetReview fetches a single review by its ID and owner (userID). If the
// record does not exist, it returns ErrNotFound.
func GetReview(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Review, error) {
	var r domain.Review
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReview removes the review identified by (id, userID) together with
// its feedback row, if any. If no review matched, it returns ErrNotFound and
// nothing is deleted.
func DeleteReview(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Review{}).
			Where("id = ? AND user_id = ?", id, userID).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		if err := tx.Where("review_id = ?", id).Delete(&domain.Feedback{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Review{}).Error
	})
}
