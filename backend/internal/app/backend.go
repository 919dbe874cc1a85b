// Package app wires configuration into a ready-to-use social store. The
// server and the CLIs share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"diarymap/backend/internal/cache"
	"diarymap/backend/internal/geo"
	"diarymap/backend/internal/graph"
	"diarymap/backend/internal/memgraph"
	"diarymap/backend/internal/social"
	"diarymap/backend/pkg/config"
	"diarymap/backend/pkg/logger"
)

// Backend is the opened store plus what it holds open.
type Backend struct {
	Store social.Store
	// Repo is set when the store is Neo4j.
	Repo    *graph.Repository
	Redis   goredis.UniversalClient
	closers []func() error
}

// Open builds the store selected by cfg. With EnsureSchema set the Neo4j
// constraints and spatial layers are installed first.
func Open(ctx context.Context, cfg *config.Config, ensureSchema bool) (*Backend, error) {
	log := logger.Named("app")
	b := &Backend{}

	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:        cfg.RedisAddr,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
		})
		if err := cache.Ping(ctx, rdb); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		b.Redis = rdb
		b.closers = append(b.closers, rdb.Close)
	}

	switch cfg.StoreBackend {
	case config.BackendNeo4j:
		driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Repo = graph.NewRepository(driver, cfg.Neo4jDatabase)
		b.closers = append(b.closers, b.Repo.Close)
		if ensureSchema {
			if err := b.Repo.EnsureSchema(ctx); err != nil {
				b.Close()
				return nil, fmt.Errorf("failed to ensure schema: %w", err)
			}
		}
		b.Store = b.Repo
		log.Info("Using Neo4j store", zap.String("uri", cfg.Neo4jURI))

	case config.BackendMemory:
		var index geo.Index = geo.NewMemoryIndex()
		if cfg.SpatialBackend == config.BackendRedis {
			index = geo.NewRedisIndex(b.Redis, "geo:")
		}
		b.Store = memgraph.New(index)
		log.Info("Using in-memory store", zap.String("spatial_backend", cfg.SpatialBackend))

	default:
		b.Close()
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if b.Redis != nil && cfg.CacheEnabled() {
		b.Store = cache.New(b.Store, b.Redis, cfg.UserCacheTTL)
		log.Info("User cache enabled", zap.Duration("ttl", cfg.UserCacheTTL))
	}
	return b, nil
}

// Health checks every connection the backend depends on.
func (b *Backend) Health(ctx context.Context) error {
	if b.Repo != nil {
		if err := b.Repo.Ping(ctx); err != nil {
			return err
		}
	}
	if b.Redis != nil {
		if err := cache.Ping(ctx, b.Redis); err != nil {
			return err
		}
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
