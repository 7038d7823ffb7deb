package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-codereview-backend/internal/analysis"
	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// repoShim routes ReviewRepo calls to the repo package.
type repoShim struct{}

func (repoShim) CreateReview(ctx context.Context, db *gorm.DB, r *domain.Review) error {
	return repo.CreateReview(ctx, db, r)
}
func (repoShim) CountReviews(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountReviews(ctx, db, userID)
}
func (repoShim) ListReviewsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Review, error) {
	return repo.ListReviewsPage(ctx, db, userID, offset, limit)
}
func (repoShim) GetReview(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Review, error) {
	return repo.GetReview(ctx, db, id, userID)
}
func (repoShim) DeleteReview(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteReview(ctx, db, id, userID)
}
func (repoShim) ReviewsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.ReviewsStats(ctx, db, userID)
}

type fakeAnalyzer struct {
	calls  int
	code   string
	focus  analysis.Focus
	result domain.Analysis
	err    error
}

func (f *fakeAnalyzer) AnalyzeFocus(_ context.Context, code string, focus analysis.Focus) (domain.Analysis, error) {
	f.calls++
	f.code, f.focus = code, focus
	return f.result, f.err
}

func seedReview(t *testing.T, db *gorm.DB, userID string) *domain.Review {
	t.Helper()
	rv := &domain.Review{
		UserID:        userID,
		Title:         "seed",
		CodeSnippet:   "x = 1",
		Language:      "python",
		AISuggestions: datatypes.NewJSONType(domain.Analysis{Summary: "ok", Score: 70, Issues: []domain.Issue{}}),
		Score:         70,
	}
	if err := repo.CreateReview(context.Background(), db, rv); err != nil {
		t.Fatalf("seed review: %v", err)
	}
	return rv
}

func strptr(s string) *string { return &s }
