package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventlake/eventlake/internal/batch"
	"github.com/eventlake/eventlake/internal/config"
	"github.com/eventlake/eventlake/internal/normalize"
	"github.com/eventlake/eventlake/internal/observability"
	"github.com/eventlake/eventlake/internal/server"
	"github.com/eventlake/eventlake/internal/storage"
	"github.com/eventlake/eventlake/internal/store"
	"github.com/eventlake/eventlake/internal/stream"
)

// NewLogger builds the process logger from the log configuration.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

// OpenStorage opens the object storage holding bucket. Local buckets are
// subdirectories of the storage path.
func OpenStorage(ctx context.Context, cfg *config.Config, bucket string) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case config.StorageLocal:
		return storage.NewLocalStorage(filepath.Join(cfg.Storage.Path, filepath.FromSlash(strings.Trim(bucket, "/"))))
	case config.StorageS3:
		s3Cfg := storage.DefaultS3Config()
		if cfg.Region != "" {
			s3Cfg.Region = cfg.Region
		}
		s3Cfg.Endpoint = cfg.Endpoint
		s3Cfg.UsePathStyle = cfg.Storage.UsePathStyle
		return storage.NewS3Storage(ctx, bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// StorageOpener adapts OpenStorage to the normalizer's bucket resolver.
func StorageOpener(cfg *config.Config) normalize.OpenFunc {
	return func(ctx context.Context, bucket string) (storage.ObjectStorage, error) {
		return OpenStorage(ctx, cfg, bucket)
	}
}

// OpenStore opens the source-of-record store. The returned SQLiteStore is
// nil unless the store is local; it is the relay's change source.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, *store.SQLiteStore, server.CloserFunc, error) {
	switch cfg.Store.Type {
	case config.StoreSQLite:
		s, err := store.NewSQLiteStore(cfg.Store.Path, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s.Close, nil
	case config.StoreDynamoDB:
		s, err := store.NewDynamoStore(ctx, cfg.Store.Table, store.DynamoConfig{
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		}, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, func() error { return nil }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}

// OpenPublisher opens the configured stream. A nil Publisher means
// publishing is disabled.
func OpenPublisher(ctx context.Context, cfg *config.Config, log *zap.Logger) (stream.Publisher, server.CloserFunc, error) {
	noop := func() error { return nil }
	if !cfg.StreamEnabled() {
		return nil, noop, nil
	}

	switch cfg.Stream.Type {
	case config.StreamLocal:
		return stream.NewLocalStream(cfg.Stream.Shards), noop, nil
	case config.StreamKinesis:
		p, err := stream.NewKinesisPublisher(ctx, cfg.Stream.Name, stream.KinesisConfig{
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return p, noop, nil
	case config.StreamRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Stream.RedisAddr})
		p := stream.NewRedisPublisher(client, cfg.Stream.Name, cfg.Stream.MaxLen)
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported stream type: %s", cfg.Stream.Type)
	}
}

// NewPipeline builds the change-feed pipeline writing into lake.
func NewPipeline(cfg *config.Config, lake storage.ObjectStorage, log *zap.Logger, metrics *observability.Metrics) *batch.Pipeline {
	writer := batch.NewWriter(lake,
		batch.WithPrefix(cfg.Batch.Prefix),
		batch.WithLogger(log),
		batch.WithMetrics(metrics),
	)
	return batch.NewPipeline(writer, nil, metrics)
}

// NewNormalizer builds a normalizer over the configured object storage.
func NewNormalizer(cfg *config.Config, log *zap.Logger, metrics *observability.Metrics) *normalize.Normalizer {
	return normalize.New(StorageOpener(cfg), normalize.Config{
		MaxFiles:      cfg.Normalize.MaxFiles,
		Concurrency:   cfg.Normalize.Concurrency,
		IncludeHeader: cfg.Normalize.IncludeHeader,
		FileName:      cfg.Normalize.FileName,
		WorkDir:       cfg.Normalize.WorkDir,
	}, normalize.WithLogger(log), normalize.WithMetrics(metrics))
}
