// Command server runs the code review API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-codereview-backend/docs"
	"github.com/tbourn/go-codereview-backend/internal/analysis"
	"github.com/tbourn/go-codereview-backend/internal/config"
	httpapi "github.com/tbourn/go-codereview-backend/internal/http"
	"github.com/tbourn/go-codereview-backend/internal/identity"
	"github.com/tbourn/go-codereview-backend/internal/llm"
	"github.com/tbourn/go-codereview-backend/internal/observability"
	"github.com/tbourn/go-codereview-backend/internal/repo"
	"github.com/tbourn/go-codereview-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// @title          Code Review API
// @version        1.0
// @description    LLM-assisted code review with per-review feedback, research statistics and user profiles.
// @BasePath       /api
// @schemes        http https

// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the access token.

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, os.Stdout)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := observability.Build{
		Version:     sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version),
		Environment: cfg.Environment,
	}
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, build)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.Path, cfg.DB.URL, repo.Options{
		Logger:  repo.NewZerologGorm(log.Logger, 200*time.Millisecond),
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	idp, closeIdentity, err := identity.FromConfig(ctx, cfg.Identity, db)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Identity.Provider).Msg("identity provider")
	}

	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("LLM_API_KEY is not set; analysis requests will fail upstream")
	}
	analyzer := analysis.New(llm.New(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.Timeout))
	temperature := cfg.LLM.Temperature
	analyzer.Temperature = &temperature
	analyzer.MaxTokens = cfg.LLM.MaxTokens
	analyzer.RedactSecrets = cfg.LLM.RedactSecrets

	r := gin.New()
	// nil trusts no proxy: ClientIP is the socket peer.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Fatal().Err(err).Msg("TRUSTED_PROXIES")
	}
	httpapi.RegisterRoutes(r, db, idp, analyzer, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.Environment).
			Str("version", build.Version).
			Str("db", cfg.DB.Driver).
			Str("identity", cfg.Identity.Provider).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := closeIdentity(); err != nil {
		log.Error().Err(err).Msg("identity close")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(sctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
}
