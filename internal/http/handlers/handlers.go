// Package handlers exposes the REST endpoints of the code review API.
//
// Handlers are transport-thin: they bind and shape JSON, read the
// authenticated user from the Gin context, call the application services and
// translate service errors with writeError.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/identity"
	"github.com/tbourn/go-codereview-backend/internal/services"
)

// ReviewService is the review lifecycle consumed by the handlers.
type ReviewService interface {
	CreateIdempotent(ctx context.Context, userID, key string, in services.CreateReviewInput) (*domain.Review, bool, error)
	List(ctx context.Context, userID string, page, limit int) ([]domain.Review, int64, error)
	Get(ctx context.Context, userID, id string) (*domain.Review, error)
	Delete(ctx context.Context, userID, id string) error
	// Fingerprint returns (count, newest created_at) for list ETags.
	Fingerprint(ctx context.Context, userID string) (int64, *time.Time, error)
}

// FeedbackService records and aggregates review feedback.
type FeedbackService interface {
	Submit(ctx context.Context, userID, reviewID string, in services.FeedbackInput) (*domain.Feedback, error)
	Get(ctx context.Context, userID, reviewID string) (*domain.Feedback, error)
	Statistics(ctx context.Context) (services.Statistics, error)
}

// ProfileService reads and edits the current user's profile.
type ProfileService interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Update(ctx context.Context, userID, email string, f services.ProfileFields) (*domain.Profile, error)
	CompleteSurvey(ctx context.Context, userID, email string, f services.ProfileFields) (*domain.Profile, error)
	UpdateImage(ctx context.Context, userID, url string) (*domain.Profile, error)
}

// AuthService fronts the identity provider.
type AuthService interface {
	Register(ctx context.Context, email, password, username string) (*domain.Profile, error)
	Login(ctx context.Context, email, password string) (identity.Session, error)
	Me(ctx context.Context, userID string) (*domain.Profile, error)
	Refresh(ctx context.Context, refreshToken string) (identity.Session, error)
	Logout(ctx context.Context, accessToken string) error
}

// Handlers groups every API endpoint.
type Handlers struct {
	reviews  ReviewService
	feedback FeedbackService
	profiles ProfileService
	auth     AuthService

	// Environment is reported by the health endpoint.
	Environment string
	now         func() time.Time
}

// New constructs Handlers bound to the given services.
func New(rv ReviewService, fb FeedbackService, pr ProfileService, au AuthService) *Handlers {
	return &Handlers{reviews: rv, feedback: fb, profiles: pr, auth: au, now: time.Now}
}
