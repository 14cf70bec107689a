package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/scribe/internal/config"
	"github.com/ehr/scribe/internal/domain/note"
	"github.com/ehr/scribe/internal/domain/preferences"
	"github.com/ehr/scribe/internal/platform/auth"
	"github.com/ehr/scribe/internal/platform/db"
	"github.com/ehr/scribe/internal/platform/generation"
	"github.com/ehr/scribe/internal/platform/middleware"
	"github.com/ehr/scribe/internal/platform/secret"
	"github.com/ehr/scribe/internal/platform/sessionstore"
	"github.com/ehr/scribe/internal/platform/telemetry"
)

const version = "0.1.0"

func runServer() error {
	// Config
	cfg, err := config.Load()
	logger := newLogger(os.Getenv("ENV"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	applied, err := db.NewMigrator(pool, migrationSource(cfg.MigrationsDir)).Up(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}
	logger.Info().Int("applied", applied).Msg("migrations up to date")

	// Session checkpoints
	healthChecks := []db.Check{db.PoolCheck(pool)}
	var store sessionstore.Store = sessionstore.NewMemoryStore()
	if cfg.RedisURL != "" {
		rs, err := sessionstore.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rs.Close()
		store = rs
		healthChecks = append(healthChecks, db.Check{Name: "redis", Ping: rs.Ping})
		logger.Info().Msg("session checkpoints in redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set, session checkpoints are kept in process memory")
	}

	sessions := note.NewManager(store, cfg.SessionTTL, logger)
	go sessions.Run(ctx, max(cfg.SessionTTL/4, time.Second))

	metrics := telemetry.NewMetrics()

	// Generation
	instruction, err := generation.LoadSystemInstruction(cfg.SystemInstructionFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load system instruction")
	}
	adapter := generation.NewAdapter(
		generation.NewGeminiCompleter(cfg.GeminiBaseURL, nil),
		generation.Options{
			Model:             cfg.GeminiModel,
			SystemInstruction: instruction,
			Timeout:           cfg.GenerationTimeout,
			Observer:          metrics,
		},
		logger,
	)

	// Preferences
	sealer, err := secret.FromHex(cfg.CredentialEncryptionKey, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid credential encryption key")
	}
	catalog, err := preferences.DefaultCatalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load vocabulary")
	}
	prefsSvc := preferences.NewService(
		preferences.NewRepo(pool),
		catalog,
		sealer,
		cfg.GeminiAPIKey,
		func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
		logger,
	)

	noteSvc := note.NewService(sessions, adapter, prefsSvc, logger)

	e := newEcho(cfg, metrics, logger)

	// Health checks are public.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(healthChecks...))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1", authMiddleware(cfg))
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))

	note.NewHandler(noteSvc).RegisterRoutes(apiV1)
	preferences.NewHandler(prefsSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newEcho builds the server with the global middleware chain.
func newEcho(cfg *config.Config, metrics *telemetry.Metrics, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit("1M"))
	// Leave room for one generation call plus checkpointing.
	e.Use(middleware.RequestTimeout(cfg.GenerationTimeout + 15*time.Second))
	return e
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtConfig(cfg))
	}
	return auth.JWTMiddleware(jwtConfig(cfg))
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}
