// Package app assembles the services, handlers and router from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/handlers"
	"github.com/imagehost/backend/internal/logger"
	"github.com/imagehost/backend/internal/models"
	"github.com/imagehost/backend/internal/router"
	"github.com/imagehost/backend/internal/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// redisLimiterPrefix is prepended to the upload: and api: keys in Redis.
const redisLimiterPrefix = "ratelimit:"

// App holds the wired HTTP engine and the resources it owns.
type App struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
}

// New opens the database, runs migrations, picks the blob and limiter
// backends and returns the ready engine.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := models.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := models.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return NewWithDB(ctx, cfg, db)
}

// NewWithDB wires everything on top of an already migrated database.
func NewWithDB(ctx context.Context, cfg *config.Config, db *gorm.DB) (*App, error) {
	a := &App{DB: db}

	if cfg.SiteURL == "" {
		logger.Get().Warn("SITE_URL is not set; public links are relative and ShareX configs are unavailable")
	}

	switch cfg.RateLimitBackend {
	case config.RateLimitBackendRedis:
		a.Redis = models.InitRedis(cfg)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			// Limiter calls fail open, so an unreachable Redis only loses throttling.
			logger.WithError(err).Warn("Redis not reachable at startup")
		}
	case config.RateLimitBackendMemory, "":
	default:
		return nil, fmt.Errorf("unsupported rate limit backend: %s", cfg.RateLimitBackend)
	}

	blobs, err := NewBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	assets := services.NewAssetRepository(db)
	owners := services.NewOwnerService(db)

	ingest := services.NewIngestService(cfg,
		a.newLimiter(cfg, cfg.UploadRateLimit, cfg.UploadRateWindow),
		services.NewValidator(cfg.MaxFileSize, cfg.AllowedFileTypes),
		services.NewTransformer(cfg),
		services.NewIdentifierAllocator(cfg.ShortCodeLength),
		blobs, assets, owners)

	media := handlers.NewMediaHandler(cfg, ingest,
		services.NewRetrievalService(assets, blobs),
		services.NewDeletionService(assets, blobs),
		assets,
		services.NewShareXService(cfg),
		services.NewQRService(ingest))

	a.Engine = router.New(router.Deps{
		Config:     cfg,
		Owners:     owners,
		APILimiter: a.newLimiter(cfg, cfg.RateLimitRequests, cfg.RateLimitDuration),
		Media:      media,
		Health:     handlers.NewHealthHandler(db),
	})
	return a, nil
}

// newLimiter returns a Redis-backed limiter when a client is configured and
// an in-process one otherwise.
func (a *App) newLimiter(cfg *config.Config, limit int, window time.Duration) services.RateLimiter {
	if a.Redis != nil {
		return services.NewRedisRateLimiter(a.Redis, redisLimiterPrefix, limit, window)
	}
	return services.NewMemoryRateLimiter(limit, window, cfg.RateLimitCapacity)
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis client")
		}
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewBlobStore opens the backend named by cfg.BlobBackend.
func NewBlobStore(ctx context.Context, cfg *config.Config) (services.BlobStore, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendLocal, "":
		return services.NewLocalBlobStore(cfg.UploadDir)
	case config.BlobBackendS3:
		return services.NewS3BlobStore(ctx, cfg)
	case config.BlobBackendMinio:
		return services.NewMinioBlobStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", cfg.BlobBackend)
	}
}
