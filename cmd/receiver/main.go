package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ucgmax/webhook-receiver/internal/config"
	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/ucgmax/webhook-receiver/internal/handlers"
	"github.com/ucgmax/webhook-receiver/internal/jobs"
	"github.com/ucgmax/webhook-receiver/internal/logging"
	"github.com/ucgmax/webhook-receiver/internal/metrics"
	"github.com/ucgmax/webhook-receiver/internal/middleware"
	"github.com/ucgmax/webhook-receiver/internal/services"
	slacknotify "github.com/ucgmax/webhook-receiver/internal/slack"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("receiver stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	zlog.Info("starting UCG Max webhook receiver", zap.Int("port", cfg.HTTPPort), zap.Strings("webhook_sources", cfg.WebhookSources))

	if cfg.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is not set")
	}
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		Expiry:            cfg.JWTExpiry(),
	}, zlog)

	db, err := database.Open(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		return err
	}
	defer database.Close(db)
	zlog.Info("database connection established", zap.String("dialect", db.Dialector.Name()))

	if err := database.AutoMigrate(db, zlog); err != nil {
		return err
	}

	store := database.NewAlertStore(db)
	verifier := middleware.NewWebhookVerifier(cfg.BearerToken, cfg.HMACSecret)
	alertService := services.NewAlertService(store, verifier, cfg.WebhookSources, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Slack notifications
	if cfg.SlackWebhookURL != "" {
		notifier := slacknotify.NewNotifier(cfg.SlackWebhookURL, cfg.SlackNotifySeverities, zlog)
		notifier.Start(ctx)
		defer notifier.Stop()
		alertService.SetNotifier(notifier)
		zlog.Info("slack notifications enabled", zap.Strings("severities", cfg.SlackNotifySeverities))
	}

	// Rate limiting shares state through Redis when configured
	var windowStore middleware.WindowStore
	if cfg.RedisURL != "" {
		client, err := middleware.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		windowStore = middleware.NewRedisWindowStore(client, "")
		zlog.Info("rate limiting backed by redis")
	} else {
		memStore := middleware.NewMemoryWindowStore(cfg.RateLimitWindow)
		defer memStore.Stop()
		windowStore = memStore
	}
	rateLimiter := middleware.NewRateLimiter(windowStore, cfg.RateLimitRequests, cfg.RateLimitWindow, zlog)
	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	sweeper := jobs.NewRetentionSweeper(store, cfg.RetentionDays, zlog)
	if cfg.RetentionDays > 0 && cfg.RetentionSchedule != "" {
		stopSweeps, err := sweeper.Launch(cfg.RetentionSchedule)
		if err != nil {
			return err
		}
		defer stopSweeps()
	} else {
		zlog.Info("retention sweep disabled")
	}

	registry, err := metrics.NewRegistry()
	if err != nil {
		return err
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		DB:             db,
		Alerts:         alertService,
		JWTAuth:        jwtAuth,
		RateLimiter:    rateLimiter,
		TrustedProxies: trustedProxies,
		Gatherer:       registry,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         zlog,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zlog.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("HTTP server shutdown did not complete cleanly", zap.Error(err))
	}
	zlog.Info("shutdown complete")
	return nil
}
