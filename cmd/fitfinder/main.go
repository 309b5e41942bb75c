// Package main запускает HTTP-сервер каталога академий.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/fitfinder/internal/config"
	"github.com/mmeshcher/fitfinder/internal/events"
	"github.com/mmeshcher/fitfinder/internal/handler"
	"github.com/mmeshcher/fitfinder/internal/middleware"
	"github.com/mmeshcher/fitfinder/internal/realtime"
	"github.com/mmeshcher/fitfinder/internal/repository"
	"github.com/mmeshcher/fitfinder/internal/service"
	"github.com/mmeshcher/fitfinder/internal/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	bus, err := newBus(ctx, cfg, logger)
	if err != nil {
		sugar.Fatalw("event bus initialization error", "error", err.Error())
	}
	defer bus.Close()

	var blobs service.BlobStore
	if cfg.Storage.Bucket != "" {
		s3, err := storage.NewS3Storage(ctx, storage.Options{
			Region:          cfg.Storage.Region,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Endpoint:        cfg.Storage.Endpoint,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			sugar.Fatalw("image storage initialization error", "error", err.Error())
		}
		blobs = s3
	} else {
		sugar.Warn("S3 bucket is not configured, image uploads are disabled")
	}

	svc := service.NewService(repo, blobs, bus, logger)
	defer svc.Close()

	hub := realtime.NewHub(logger, cfg.CORSAllowedOrigins)
	unsubscribe := bus.OnEntityCreated(hub.Publish)
	defer unsubscribe()

	authMiddleware := middleware.NewAuthMiddleware(cfg.SessionSecret)
	h := handler.NewHandler(svc, hub, logger, authMiddleware, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return bus.Run(ctx)
	})

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		sugar.Infow("starting fitfinder server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Остановка сервера при сигнале или ошибке в другой горутине
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// newBus выбирает Redis для нескольких экземпляров сервиса и локальную шину иначе.
func newBus(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Bus, error) {
	if cfg.RedisAddress == "" {
		return events.NewMemoryBus(), nil
	}
	return events.NewRedisBus(ctx, cfg.RedisAddress, logger)
}
