package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AaronBergman/flyer-tracker/internal/config"
	"github.com/AaronBergman/flyer-tracker/internal/handlers"
	"github.com/AaronBergman/flyer-tracker/internal/repository"
	"github.com/AaronBergman/flyer-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Setup Logger
	var handler slog.Handler
	if cfg.AppEnv == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 3. Initialize Database. A missing or unreachable store is not fatal:
	// the HTTP surface stays up and serves diagnostics until it is fixed.
	db, err := repository.InitDB(cfg)
	if err != nil {
		if errors.Is(err, repository.ErrNoDatabaseURL) {
			logger.Warn("DATABASE_URL is not set, starting without a store")
		} else {
			logger.Error("Failed to initialize database, starting without a store", "error", err)
		}
		db = nil
	}

	// 4. Run Migrations
	if db != nil {
		if err := repository.Migrate(db, cfg.DatabaseURL, ""); err != nil {
			logger.Error("Migrations failed", "error", err)
		}
	}

	// 5. Initialize Redis (optional slug cache)
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = repository.InitRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Failed to connect to Redis, slug cache disabled", "error", err)
		}
	}

	// 6. Initialize Services
	geoIPService := services.NewGeoIPService(cfg, logger)
	linkService := services.NewLinkService(db, logger)
	scanService := services.NewScanService(db, logger, geoIPService)
	qrService := services.NewQRService()
	rateLimiter := services.NewIPRateLimiter(5, 10, logger)

	// 7. Initialize Handler
	h := handlers.NewHandler(cfg, logger, db, rdb, linkService, scanService, qrService)

	// 8. Setup Router
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := h.SetupRouter(rateLimiter, "web/templates/*.html", "./web/static")

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	rateLimiter.StartCleanup(10*time.Minute, 30*time.Minute)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exiting")
	return nil
}
