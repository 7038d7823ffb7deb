// Package httpapi wires the Gin transport to the application services,
// middleware and route handlers.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-codereview-backend/internal/config"
	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/http/handlers"
	"github.com/tbourn/go-codereview-backend/internal/http/middleware"
	"github.com/tbourn/go-codereview-backend/internal/identity"
	"github.com/tbourn/go-codereview-backend/internal/repo"
	"github.com/tbourn/go-codereview-backend/internal/services"
)

// reviewRepoShim adapts the repo free functions to services.ReviewRepo.
type reviewRepoShim struct{}

func (reviewRepoShim) CreateReview(ctx context.Context, db *gorm.DB, r *domain.Review) error {
	return repo.CreateReview(ctx, db, r)
}

func (reviewRepoShim) CountReviews(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountReviews(ctx, db, userID)
}

func (reviewRepoShim) ListReviewsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Review, error) {
	return repo.ListReviewsPage(ctx, db, userID, offset, limit)
}

func (reviewRepoShim) GetReview(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Review, error) {
	return repo.GetReview(ctx, db, id, userID)
}

func (reviewRepoShim) DeleteReview(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteReview(ctx, db, id, userID)
}

func (reviewRepoShim) ReviewsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.ReviewsStats(ctx, db, userID)
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry, so every request gets a span
//  2. RequestID and the request-scoped logger
//  3. RedactingLogger, then Recovery so panics are logged with the id
//  4. body size limit, metrics and compression
//  5. CORS and security headers
//
// Authentication, idempotency and rate limiting are applied on the protected
// group only: the validator runs before the limiter so replays bypass it.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, idp identity.Provider, analyzer services.Analyzer, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.ContextLogger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Refresh-Token"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(cfg.MaxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "Route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// services <- repo/db/identity/analyzer
	reviewSvc := services.NewReviewService(db, reviewRepoShim{}, analyzer)
	if cfg.IdempotencyTTL > 0 {
		reviewSvc.IdempotencyTTL = cfg.IdempotencyTTL
	}
	profileSvc := services.NewProfileService(db)
	h := handlers.New(
		reviewSvc,
		&services.FeedbackService{DB: db},
		profileSvc,
		&services.AuthService{Identity: idp, Profiles: profileSvc},
	)
	h.Environment = cfg.Environment

	base := groupWithPrefix(r, cfg.APIBasePath)
	{
		base.GET("/health", h.Health)
		base.POST("/auth/register", h.Register)
		base.POST("/auth/login", h.Login)
		base.POST("/auth/refresh", h.Refresh)
		base.POST("/auth/logout", h.Logout)
	}

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	idem := middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{Scope: services.ReviewScope},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return rec != nil, err
		},
	)

	api := base.Group("", middleware.RequireAuth(idp))
	{
		api.GET("/auth/user", rl.Handler(), h.Me)

		api.POST("/reviews", idem, rl.Handler(), h.CreateReview)
		api.GET("/reviews", rl.Handler(), h.ListReviews)
		api.GET("/reviews/:id", rl.Handler(), h.GetReview)
		api.DELETE("/reviews/:id", rl.Handler(), h.DeleteReview)

		api.POST("/reviews/:id/feedback", rl.Handler(), h.SubmitFeedback)
		api.GET("/reviews/:id/feedback", rl.Handler(), h.GetFeedback)
		api.GET("/statistics", rl.Handler(), h.Statistics)

		api.GET("/profiles", rl.Handler(), h.GetProfile)
		api.PUT("/profiles", rl.Handler(), h.CompleteSurvey)
		api.PATCH("/profiles", rl.Handler(), h.UpdateProfile)
		api.POST("/profiles/image", rl.Handler(), h.UpdateProfileImage)
	}
}

// corsMiddleware allows the configured origins, or any origin without
// credentials when none are configured.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"If-None-Match", middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
		cc.AllowCredentials = true
	}
	return cors.New(cc)
}

// limitBody caps request bodies at maxBytes; larger bodies fail on read.
// A non-positive limit disables the cap.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
