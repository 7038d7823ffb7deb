// Package services – ProfileService
//
// ProfileService reads and writes the per-user profile row. Writes are
// upserts keyed by the identity provider's user id; only the fields a caller
// supplies are overwritten. Completing the onboarding survey is a separate
// operation from a plain edit so that editing a profile never re-stamps the
// survey timestamp.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-codereview-backend/internal/apperror"
	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/repo"
)

// ProfileFields are the user-editable profile fields. A nil field is left
// untouched on an existing row.
type ProfileFields struct {
	FullName              *string
	ProgrammingExperience *string
	Role                  *string
	ProfileImageURL       *string
}

// ProfileService implements profile reads and upserts.
type ProfileService struct {
	DB  *gorm.DB
	now func() time.Time
}

// NewProfileService returns a ProfileService bound to db.
func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db, now: time.Now}
}

// Get returns the user's profile, or (nil, nil) when none exists yet.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return p, apperror.Store(err)
}

// Update upserts the supplied fields. Survey flags are not modified.
func (s *ProfileService) Update(ctx context.Context, userID, email string, f ProfileFields) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	p, cols := s.build(userID, email, f)
	return storeResult(repo.UpsertProfile(ctx, s.DB, p, cols...))
}

// CompleteSurvey upserts the supplied fields and marks the onboarding survey
// as completed now.
func (s *ProfileService) CompleteSurvey(ctx context.Context, userID, email string, f ProfileFields) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "CompleteSurvey", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	p, cols := s.build(userID, email, f)
	at := s.now().UTC()
	p.SurveyCompleted = true
	p.SurveyCompletedAt = &at
	return storeResult(repo.UpsertProfile(ctx, s.DB, p, append(cols, "survey_completed", "survey_completed_at")...))
}

// UpdateImage sets the profile image URL of an existing profile.
func (s *ProfileService) UpdateImage(ctx context.Context, userID, url string) (*domain.Profile, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrImageURLRequired
	}
	p, err := repo.UpdateProfileImage(ctx, s.DB, userID, url)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return p, apperror.Store(err)
}

// Ensure creates the profile row for a newly registered user. An existing
// row is left as is.
func (s *ProfileService) Ensure(ctx context.Context, userID, email, fullName string) (*domain.Profile, error) {
	p := &domain.Profile{
		ID:       userID,
		Email:    strings.ToLower(strings.TrimSpace(email)),
		FullName: strings.TrimSpace(fullName),
	}
	if err := repo.EnsureProfile(ctx, s.DB, p); err != nil {
		return nil, apperror.Store(err)
	}
	return storeResult(repo.GetProfile(ctx, s.DB, userID))
}

func storeResult(p *domain.Profile, err error) (*domain.Profile, error) {
	if err != nil {
		return nil, apperror.Store(err)
	}
	return p, nil
}

// build assembles the row to insert and the columns to overwrite on conflict.
func (s *ProfileService) build(userID, email string, f ProfileFields) (*domain.Profile, []string) {
	p := &domain.Profile{ID: userID}
	var cols []string
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		p.Email = email
		cols = append(cols, "email")
	}
	set := func(dst *string, src *string, col string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
			cols = append(cols, col)
		}
	}
	set(&p.FullName, f.FullName, "full_name")
	set(&p.ProgrammingExperience, f.ProgrammingExperience, "programming_experience")
	set(&p.Role, f.Role, "role")
	set(&p.ProfileImageURL, f.ProfileImageURL, "profile_image_url")
	return p, cols
}
