// Package services – ReviewService
//
// This file implements the ReviewService, which owns the lifecycle of code
// reviews: input validation, the call into the analysis pipeline, persistence
// of the resulting record and owner-scoped reads and deletes. Idempotent
// creation replays a previously created review instead of paying for a second
// analysis.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the user and review identifiers.
package services

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-codereview-backend/internal/analysis"
	"github.com/tbourn/go-codereview-backend/internal/apperror"
	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/repo"
)

const defaultLanguage = "javascript"

// ReviewScope namespaces Idempotency-Key records of review creation.
const ReviewScope = "reviews"

// ReviewRepo defines the repository contract required by ReviewService.
type ReviewRepo interface {
	CreateReview(ctx context.Context, db *gorm.DB, r *domain.Review) error
	CountReviews(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListReviewsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Review, error)
	GetReview(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Review, error)
	DeleteReview(ctx context.Context, db *gorm.DB, id, userID string) error
	ReviewsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error)
}

// Analyzer produces an analysis record for a code snippet.
type Analyzer interface {
	AnalyzeFocus(ctx context.Context, code string, focus analysis.Focus) (domain.Analysis, error)
}

// CreateReviewInput carries the user-supplied fields of a new review.
type CreateReviewInput struct {
	Title    string
	Code     string
	Language string
	Focus    string
}

// ReviewService provides review-level operations.
type ReviewService struct {
	DB       *gorm.DB
	Repo     ReviewRepo
	Analyzer Analyzer

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// IdempotencyTTL is how long an Idempotency-Key keeps replaying.
	IdempotencyTTL time.Duration

	now func() time.Time
}

// NewReviewService constructs a ReviewService with defaults for title
// handling and idempotency.
func NewReviewService(db *gorm.DB, r ReviewRepo, a Analyzer) *ReviewService {
	return &ReviewService{
		DB:             db,
		Repo:           r,
		Analyzer:       a,
		TitleMaxLen:    255,
		IdempotencyTTL: 24 * time.Hour,
		now:            time.Now,
	}
}

// Create validates input, analyzes the code and stores the review with
// score = analysis.score. Validation happens before the analyzer is called.
func (s *ReviewService) Create(ctx context.Context, userID string, in CreateReviewInput) (*domain.Review, error) {
	tr := otel.Tracer("services/ReviewService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("code.runes", utf8.RuneCountInString(in.Code)),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.Code) == "" {
		return nil, ErrEmptyInput
	}
	title := s.clip(normalizeTitle(in.Title))
	if title == "" {
		return nil, ErrTitleRequired
	}
	focus, ok := analysis.ParseFocus(in.Focus)
	if !ok {
		return nil, ErrInvalidFocus
	}

	result, err := s.Analyzer.AnalyzeFocus(ctx, in.Code, focus)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, err
	}

	rv := &domain.Review{
		UserID:        userID,
		Title:         title,
		CodeSnippet:   in.Code,
		Language:      normalizeLanguage(in.Language),
		AISuggestions: datatypes.NewJSONType(result),
		Score:         analysis.ClampScore(float64(result.Score)),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.Repo.CreateReview(ctx, s.DB, rv); err != nil {
		span.RecordError(err)
		return nil, apperror.Store(err)
	}
	span.SetAttributes(attribute.String("review.id", rv.ID), attribute.Int("review.score", rv.Score))
	return rv, nil
}

// CreateIdempotent behaves like Create but remembers key for the configured
// TTL. A repeated key from the same user returns the original review and
// replayed=true without re-running the analysis. An empty key disables the
// mechanism.
func (s *ReviewService) CreateIdempotent(ctx context.Context, userID, key string, in CreateReviewInput) (rv *domain.Review, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		rv, err = s.Create(ctx, userID, in)
		return rv, false, err
	}

	if rec, err := repo.GetIdempotency(ctx, s.DB, userID, ReviewScope, key, s.now().UTC()); err == nil {
		prev, err := s.Repo.GetReview(ctx, s.DB, rec.ResourceID, userID)
		if err == nil {
			return prev, true, nil
		}
		// The review was deleted since; fall through and create a fresh one.
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, apperror.Store(err)
	}

	rv, err = s.Create(ctx, userID, in)
	if err != nil {
		return nil, false, err
	}
	// A concurrent request with the same key may have won; the review stands either way.
	if _, err := repo.CreateIdempotency(ctx, s.DB, userID, ReviewScope, key, rv.ID, http.StatusCreated, s.IdempotencyTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		log.Ctx(ctx).Warn().Err(err).Str("review_id", rv.ID).Msg("idempotency: record not stored")
	}
	return rv, false, nil
}

// List returns one page of the user's reviews, newest first, with the total.
// page and limit below 1 are raised to 1.
func (s *ReviewService) List(ctx context.Context, userID string, page, limit int) ([]domain.Review, int64, error) {
	tr := otel.Tracer("services/ReviewService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}

	total, err := s.Repo.CountReviews(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, apperror.Store(err)
	}
	if total == 0 {
		return []domain.Review{}, 0, nil
	}
	items, err := s.Repo.ListReviewsPage(ctx, s.DB, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, apperror.Store(err)
	}
	return items, total, nil
}

// Get returns the review when it exists and belongs to userID.
func (s *ReviewService) Get(ctx context.Context, userID, id string) (*domain.Review, error) {
	tr := otel.Tracer("services/ReviewService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("review.id", id)),
	)
	defer span.End()

	rv, err := s.Repo.GetReview(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, apperror.Store(err)
	}
	return rv, nil
}

// Delete removes the review and its feedback. A review that does not exist
// or is owned by someone else yields ErrReviewNotFound.
func (s *ReviewService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/ReviewService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("review.id", id)),
	)
	defer span.End()

	if err := s.Repo.DeleteReview(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrReviewNotFound
		}
		return apperror.Store(err)
	}
	return nil
}

// Fingerprint returns (count, newest created_at) of the user's reviews. It
// changes whenever the user's list changes and backs the list ETag.
func (s *ReviewService) Fingerprint(ctx context.Context, userID string) (int64, *time.Time, error) {
	n, newest, err := s.Repo.ReviewsStats(ctx, s.DB, userID)
	if err != nil {
		return 0, nil, apperror.Store(err)
	}
	return n, newest, nil
}

func (s *ReviewService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return strings.TrimSpace(string([]rune(title)[:s.TitleMaxLen]))
	}
	return title
}

// normalizeTitle applies NFC, trims whitespace and collapses inner runs of
// whitespace to one space.
func normalizeTitle(s string) string {
	s = norm.NFC.String(s)
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeLanguage lower-cases the language tag and defaults to javascript.
func normalizeLanguage(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultLanguage
	}
	s = cases.Lower(language.Und).String(s)
	if utf8.RuneCountInString(s) > 32 {
		s = string([]rune(s)[:32])
	}
	return s
}
