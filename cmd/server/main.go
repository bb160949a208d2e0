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

	"github.com/gin-gonic/gin"
	"github.com/nextmessage/backend/config"
	"github.com/nextmessage/backend/internal/auth"
	"github.com/nextmessage/backend/internal/blob"
	"github.com/nextmessage/backend/internal/cache"
	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/handlers"
	"github.com/nextmessage/backend/internal/middleware"
	"github.com/nextmessage/backend/internal/repository"
	"github.com/nextmessage/backend/internal/repository/memory"
	"github.com/nextmessage/backend/internal/repository/mongodb"
	"github.com/nextmessage/backend/internal/repository/postgres"
	"github.com/nextmessage/backend/internal/service"
	"github.com/nextmessage/backend/pkg/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.SetupWith(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// closer releases a backend after the server has drained.
type closer func(context.Context) error

func run(ctx context.Context, cfg *config.Config) error {
	var closers []closer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](shutdownCtx); err != nil {
				slog.Warn("failed to close backend", "error", err)
			}
		}
	}()

	repos, mongoDB, err := openStore(ctx, cfg, &closers)
	if err != nil {
		return err
	}

	blobs, err := openBlobStore(ctx, cfg, mongoDB)
	if err != nil {
		return err
	}

	// Connect to Redis
	var redis *cache.RedisClient
	if cfg.Redis.Enabled {
		redis, err = cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Warn("running without Redis, throttles fall back to in-process limits", "error", err)
			redis = nil
		} else {
			closers = append(closers, func(context.Context) error { return redis.Close() })
		}
	}

	var (
		throttle service.SeenThrottle
		shared   middleware.ActionLimiter
	)
	if redis != nil {
		throttle = redis
		shared = redis
	}

	svc := handlers.Services{
		Profiles:      service.NewProfiles(repos.Profiles, throttle),
		Messages:      service.NewMessages(repos.Profiles, repos.Messages, blobs, cfg.API.MaxImageBytes),
		Groups:        service.NewGroups(repos),
		Conversations: service.NewConversations(repos),
	}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.API.RateLimitMessagesPerSec, shared)
	rateLimiter.Cleanup(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(svc, handlers.RouterOptions{
		Tokens:         auth.NewJWTService(cfg.Identity.JWTSecret, cfg.Identity.Issuer, cfg.Identity.ExpiryHours),
		RateLimiter:    rateLimiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxUploadBytes: cfg.API.MaxImageBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "env", cfg.Server.Env,
			"store", cfg.Store.Driver, "blob", cfg.Blob.Driver, "redis", redis != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// openStore connects the configured backend. The Mongo handle is returned
// as well so GridFS can share it.
func openStore(ctx context.Context, cfg *config.Config, closers *[]closer) (repository.Set, *database.MongoDB, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := database.NewPostgresDB(cfg.GetDSN())
		if err != nil {
			return repository.Set{}, nil, err
		}
		*closers = append(*closers, func(context.Context) error { return db.Close() })

		if err := database.RunMigrations(db.DB); err != nil {
			return repository.Set{}, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.NewSet(db), nil, nil

	case "mongo":
		m, err := database.NewMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return repository.Set{}, nil, err
		}
		*closers = append(*closers, m.Close)

		if err := m.EnsureIndexes(ctx); err != nil {
			return repository.Set{}, nil, fmt.Errorf("failed to ensure indexes: %w", err)
		}
		return mongodb.NewSet(m), m, nil

	default:
		slog.Warn("using the in-memory store, data is lost on restart")
		return memory.NewSet(), nil, nil
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config, m *database.MongoDB) (blob.Store, error) {
	switch cfg.Blob.Driver {
	case "gridfs":
		return blob.NewGridFSStore(m.DB), nil
	case "s3":
		return blob.NewS3Store(ctx, blob.S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return blob.NewMemoryStore(), nil
	}
}
