package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"galapa/internal/caching"
	"galapa/internal/common"
	"galapa/internal/config"
	"galapa/internal/handlers"
	"galapa/internal/jobs/background"
	"galapa/internal/middleware"
	"galapa/internal/repositories"
	"galapa/internal/services"
	"galapa/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	common.SetupLogger(cfg.IsDevelopment(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection pool
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxConns:       cfg.DBMaxConns,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.ClosePool(pool)

	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	// Cache is optional
	var cacheSvc caching.CacheService
	if cfg.RedisAddr != "" {
		cacheSvc = caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer cacheSvc.Close()
	} else {
		log.Info().Msg("REDIS_ADDR not set, provider cache disabled")
	}

	// Repositories
	auditLogRepo := repositories.NewAuditLogsRepo(pool, cfg.DBQueryTimeout)
	providerRepo := repositories.NewProviderRepository(pool, auditLogRepo, cfg.DBQueryTimeout)

	// Services
	providerSvc := services.NewProviderService(providerRepo, cacheSvc, cfg.CacheTTL)
	auditSvc := services.NewAuditLogsService(auditLogRepo)

	// Background jobs
	jobOpts := background.Options{AuditRetention: cfg.AuditRetention()}
	if cacheSvc != nil {
		jobOpts.CacheRefreshInterval = cfg.CacheRefreshInterval
	}
	scheduler, err := background.NewJobScheduler(providerSvc, auditSvc, jobOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create job scheduler")
	}
	scheduler.Start()

	// Handlers
	providerHandlers := handlers.NewProviderHandlers(providerSvc, auditSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, version)
	metrics := middleware.NewMetrics("galapa")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.RequestIDWithConfig(echoMiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLogger())
	e.Use(echoMiddleware.Recover())
	e.Use(metrics.Middleware())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoMiddleware.BodyLimit("1M"))

	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	// Health and metrics endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	var writeMiddleware []echo.MiddlewareFunc
	if cfg.JWTSecret != "" {
		writeMiddleware = append(writeMiddleware, middleware.JWTAuth(cfg.JWTSecret))
	} else {
		log.Warn().Msg("JWT_SECRET not set, write routes are unauthenticated")
	}

	providerHandlers.Register(e.Group(""), writeMiddleware...)
	providerHandlers.Register(versionMiddleware.VersionRoute(e, "v1"), writeMiddleware...)

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("version", version).Msg("provider directory starting")
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := scheduler.Stop(); err != nil {
		log.Error().Err(err).Msg("job scheduler shutdown failed")
	}
}
