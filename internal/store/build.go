package store

import (
	"context"
	"fmt"

	"github.com/kenneth/fs2cloud/internal/config"
	"github.com/kenneth/fs2cloud/internal/crypto"
	"github.com/kenneth/fs2cloud/internal/ferrors"
	"github.com/kenneth/fs2cloud/internal/metrics"
	"github.com/kenneth/fs2cloud/internal/s3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Build assembles the layered store stack from cfg: a backend selected by
// cfg.Type, wrapped in the encrypt layer, wrapped in a cache layer
// (filesystem or redis) when a cache is configured. Build order is bottom
// to top: backend -> encrypt -> cache, so the exposed Store holds clear
// bytes and everything below the encrypt layer holds cipher bytes. m may
// be nil.
func Build(cfg config.StoreConfig, cacheDir string, encryptor crypto.Encryptor, m *metrics.Metrics, log *logrus.Logger) (Store, error) {
	backend, err := buildBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	if m != nil {
		backend = NewMeteredStore(backend, cfg.Type, m)
	}

	stack := Store(NewEncryptLayer(backend, encryptor, m))

	switch {
	case cfg.Redis.Addr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if _, err := client.Ping(context.Background()).Result(); err != nil {
			return nil, fmt.Errorf("%w: connect redis cache %s: %v", ferrors.ErrStore, cfg.Redis.Addr, err)
		}
		stack = NewCacheLayer(stack, NewRedisCache(client, 0, log), log)
	case cacheDir != "":
		fsCache, err := NewFSCache(cacheDir, log)
		if err != nil {
			return nil, fmt.Errorf("%w: build fs cache %s: %v", ferrors.ErrStore, cacheDir, err)
		}
		stack = NewCacheLayer(stack, fsCache, log)
	}

	return stack, nil
}

func buildBackend(cfg config.StoreConfig, log *logrus.Logger) (Store, error) {
	switch cfg.Type {
	case "log":
		return NewLogStore(log), nil
	case "local":
		local, err := NewLocalStore(cfg.Local.Path)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "s3", "s3-official":
		backendCfg := cfg.S3
		client, err := s3.NewClient(&backendCfg)
		if err != nil {
			return nil, fmt.Errorf("%w: build s3 client: %v", ferrors.ErrStore, err)
		}
		bucket := cfg.S3.Bucket
		if cfg.Type == "s3-official" {
			bucket = cfg.S3Official.Bucket
		}
		return NewS3Store(client, bucket), nil
	default:
		return nil, fmt.Errorf("%w: unknown store.type %q", ferrors.ErrStore, cfg.Type)
	}
}
