// Package services – FeedbackService
//
// This file implements the FeedbackService, which governs how users rate the
// reviews they own. It enforces business rules (rating bounds, review
// ownership, one feedback per review), persists feedback atomically and
// computes the cross-user statistics.
package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-codereview-backend/internal/apperror"
	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/repo"
)

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 10
)

// FeedbackInput carries the ratings submitted for one review.
type FeedbackInput struct {
	Accuracy    int
	Helpfulness int
	Trust       int
	TimeSpent   int
	Comments    *string
}

// Statistics is the aggregate over every feedback row. Averages are rounded
// to two decimals; all fields are zero when there is no feedback.
type Statistics struct {
	TotalFeedback      int64   `json:"total_feedback"`
	AverageAccuracy    float64 `json:"average_accuracy"`
	AverageHelpfulness float64 `json:"average_helpfulness"`
	AverageTrust       float64 `json:"average_trust"`
	AverageTimeSpent   float64 `json:"average_time_spent"`
}

// FeedbackService implements the use-cases around review feedback. It opens
// its own transaction per Submit call.
type FeedbackService struct {
	DB *gorm.DB
}

// Submit records feedback for reviewID on behalf of userID.
//
// Semantics and validation:
//   - every rating must be within [1,10] and time spent must not be negative;
//     these checks run before any database access.
//   - reviewID must exist and belong to userID; otherwise ErrReviewNotFound.
//   - a review takes at most one feedback; a second attempt yields
//     ErrFeedbackExists, whether caught by the pre-check or by the unique index.
func (s *FeedbackService) Submit(ctx context.Context, userID, reviewID string, in FeedbackInput) (*domain.Feedback, error) {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("review.id", reviewID),
		),
	)
	defer span.End()

	if err := validateRatings(in); err != nil {
		return nil, err
	}

	var fb *domain.Feedback
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetReview(ctx, tx, reviewID, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrReviewNotFound
			}
			return err
		}

		exists, err := repo.FeedbackExists(ctx, tx, reviewID)
		if err != nil {
			return err
		}
		if exists {
			return ErrFeedbackExists
		}

		row := &domain.Feedback{
			ReviewID:          reviewID,
			AccuracyRating:    in.Accuracy,
			HelpfulnessRating: in.Helpfulness,
			TrustRating:       in.Trust,
			TimeSpentSeconds:  in.TimeSpent,
			Comments:          normalizeComments(in.Comments),
		}
		if err := repo.CreateFeedback(ctx, tx, row); err != nil {
			if repo.IsDuplicate(err) {
				return ErrFeedbackExists
			}
			return err
		}
		fb = row
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperror.Store(err)
	}
	return fb, nil
}

// Get returns the feedback of a review owned by userID. Ownership is checked
// first so that foreign reviews are reported as ErrReviewNotFound.
func (s *FeedbackService) Get(ctx context.Context, userID, reviewID string) (*domain.Feedback, error) {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("review.id", reviewID)),
	)
	defer span.End()

	if _, err := repo.GetReview(ctx, s.DB, reviewID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, apperror.Store(err)
	}
	fb, err := repo.GetFeedbackByReview(ctx, s.DB, reviewID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, apperror.Store(err)
	}
	return fb, nil
}

// Statistics aggregates all feedback rows across all users.
func (s *FeedbackService) Statistics(ctx context.Context) (Statistics, error) {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Statistics")
	defer span.End()

	t, err := repo.SumFeedback(ctx, s.DB)
	if err != nil {
		span.RecordError(err)
		return Statistics{}, apperror.Store(err)
	}
	if t.Count == 0 {
		return Statistics{}, nil
	}
	n := float64(t.Count)
	return Statistics{
		TotalFeedback:      t.Count,
		AverageAccuracy:    round2(float64(t.SumAccuracy) / n),
		AverageHelpfulness: round2(float64(t.SumHelpfulness) / n),
		AverageTrust:       round2(float64(t.SumTrust) / n),
		AverageTimeSpent:   round2(float64(t.SumTimeSpent) / n),
	}, nil
}

func validateRatings(in FeedbackInput) error {
	switch {
	case !inRange(in.Accuracy):
		return ErrInvalidAccuracy
	case !inRange(in.Helpfulness):
		return ErrInvalidHelpfulness
	case !inRange(in.Trust):
		return ErrInvalidTrust
	case in.TimeSpent < 0:
		return ErrInvalidTimeSpent
	}
	return nil
}

func inRange(v int) bool { return v >= MinRating && v <= MaxRating }

// normalizeComments stores blank comments as NULL.
func normalizeComments(c *string) *string {
	if c == nil || strings.TrimSpace(*c) == "" {
		return nil
	}
	v := strings.TrimSpace(*c)
	return &v
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
