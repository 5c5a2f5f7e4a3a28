package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/cache"
	"github.com/stocknews/newsbot/internal/config"
	"github.com/stocknews/newsbot/internal/storage"
)

// Backends are the store and seen cache selected by the configuration
type Backends struct {
	Store storage.NewsStore
	Seen  cache.SeenCache

	closers []func() error
}

// OpenBackends connects the configured blob backend and seen cache
func OpenBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	blobs, err := openBlobStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	b := &Backends{Store: storage.NewBlobNewsStore(blobs)}

	if cfg.RedisURL == "" {
		logrus.Info("REDIS_URL not set, using in-memory seen cache")
		b.Seen = cache.NewMemorySeenCache()
		return b, nil
	}

	redisCache, err := cache.NewRedisSeenCache(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize seen cache: %w", err)
	}
	b.Seen = redisCache
	b.closers = append(b.closers, redisCache.Close)
	return b, nil
}

func openBlobStorage(ctx context.Context, cfg *config.Config) (storage.BlobStorage, error) {
	switch cfg.StorageBackend {
	case "file":
		logrus.Infof("Using file storage in %s", cfg.StorageDir)
		return storage.NewFileStorage(cfg.StorageDir)
	case "azure":
		logrus.Infof("Using Azure blob storage (account %s, container %s)", cfg.StorageAccount, cfg.StorageContainer)
		return storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	case "s3":
		logrus.Infof("Using S3 storage (bucket %s)", cfg.S3Bucket)
		return storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
		})
	case "memory", "":
		logrus.Warn("Using in-memory storage, news is lost on restart")
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Close releases backend connections
func (b *Backends) Close() {
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			logrus.Warnf("Failed to close backend: %v", err)
		}
	}
}
