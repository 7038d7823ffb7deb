package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-codereview-backend/internal/analysis"
	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/http/middleware"
	"github.com/tbourn/go-codereview-backend/internal/identity"
	"github.com/tbourn/go-codereview-backend/internal/repo"
	"github.com/tbourn/go-codereview-backend/internal/services"
)

// ---------- test DB + repo shim ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testReviewRepo struct{}

func (testReviewRepo) CreateReview(ctx context.Context, db *gorm.DB, r *domain.Review) error {
	return repo.CreateReview(ctx, db, r)
}
func (testReviewRepo) CountReviews(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountReviews(ctx, db, userID)
}
func (testReviewRepo) ListReviewsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Review, error) {
	return repo.ListReviewsPage(ctx, db, userID, offset, limit)
}
func (testReviewRepo) GetReview(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Review, error) {
	return repo.GetReview(ctx, db, id, userID)
}
func (testReviewRepo) DeleteReview(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteReview(ctx, db, id, userID)
}
func (testReviewRepo) ReviewsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.ReviewsStats(ctx, db, userID)
}

// ---------- analyzer stub ----------

type stubAnalyzer struct {
	calls  int
	result domain.Analysis
	err    error
}

func (s *stubAnalyzer) AnalyzeFocus(context.Context, string, analysis.Focus) (domain.Analysis, error) {
	s.calls++
	return s.result, s.err
}

// ---------- fixture ----------

type fixture struct {
	db       *gorm.DB
	h        *Handlers
	analyzer *stubAnalyzer
	idp      *identity.LocalProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newHandlerDB(t)
	an := &stubAnalyzer{result: domain.Analysis{
		Summary: "Looks fine",
		Score:   82,
		Issues: []domain.Issue{{
			Severity: "LOW", Category: "style", Line: "3",
			Issue: "Missing semicolon", Suggestion: "Add one",
		}},
	}}
	idp, err := identity.NewLocalProvider(db, identity.LocalOptions{
		Secret:     "handler-test-secret-0123456789",
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	profiles := services.NewProfileService(db)
	h := New(
		services.NewReviewService(db, testReviewRepo{}, an),
		&services.FeedbackService{DB: db},
		profiles,
		&services.AuthService{Identity: idp, Profiles: profiles},
	)
	h.Environment = "test"
	return &fixture{db: db, h: h, analyzer: an, idp: idp}
}

// engine mounts the routes the way the router does, with a stub auth step
// that trusts the X-Test-User header.
func (f *fixture) engine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())

	pub := r.Group("/api")
	pub.POST("/auth/register", f.h.Register)
	pub.POST("/auth/login", f.h.Login)
	pub.POST("/auth/refresh", f.h.Refresh)
	pub.POST("/auth/logout", f.h.Logout)
	pub.GET("/health", f.h.Health)

	api := r.Group("/api", func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set(middleware.CtxUserID, uid)
			c.Set(middleware.CtxUserEmail, uid+"@example.com")
		}
		c.Next()
	})
	api.GET("/auth/user", f.h.Me)
	api.POST("/reviews", middleware.IdempotencyValidator(middleware.IdempotencyOptions{Scope: "reviews"}, nil), f.h.CreateReview)
	api.GET("/reviews", f.h.ListReviews)
	api.GET("/reviews/:id", f.h.GetReview)
	api.DELETE("/reviews/:id", f.h.DeleteReview)
	api.POST("/reviews/:id/feedback", f.h.SubmitFeedback)
	api.GET("/reviews/:id/feedback", f.h.GetFeedback)
	api.GET("/statistics", f.h.Statistics)
	api.GET("/profiles", f.h.GetProfile)
	api.PUT("/profiles", f.h.CompleteSurvey)
	api.PATCH("/profiles", f.h.UpdateProfile)
	api.POST("/profiles/image", f.h.UpdateProfileImage)
	return r
}

func do(r http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func as(uid string) map[string]string { return map[string]string{"X-Test-User": uid} }

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func createReview(t *testing.T, r http.Handler, uid, title string) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/reviews", CreateReviewRequest{Code: "let x = 1", Title: title}, as(uid))
	if w.Code != http.StatusCreated {
		t.Fatalf("create review: %d %s", w.Code, w.Body.String())
	}
	return decode[CreateReviewResponse](t, w).Review.ID
}
