// Package cache adds a Redis read-through cache of user records in front of
// any social.Store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"diarymap/backend/internal/geo"
	"diarymap/backend/internal/social"
	"diarymap/backend/pkg/logger"
)

const (
	keyPrefixID       = "user:id:"
	keyPrefixExternal = "user:fb:"

	// loadTimeout bounds a shared load once it is detached from the caller.
	loadTimeout = 10 * time.Second
)

// entry is the cached form of a user. social.User never serializes its
// access token, so it is carried alongside to keep hits identical to misses.
type entry struct {
	social.User
	AccessToken string `json:"access_token,omitempty"`
}

// Store caches FindUserByID and FindUserByExternalID. Every other call is
// passed through; writes that change a user record drop its cache entries.
// Redis failures never fail a call: reads fall back to the wrapped store and
// stale entries expire after the TTL.
type Store struct {
	social.Store
	rdb    goredis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// New wraps next.
func New(next social.Store, rdb goredis.UniversalClient, ttl time.Duration) *Store {
	return &Store{
		Store:  next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.Named("cache"),
	}
}

// FindUserByID returns the cached user or loads it from the wrapped store.
// Absent users are not cached. Concurrent misses share one load, which is
// not cancelled when the caller that started it goes away.
func (s *Store) FindUserByID(ctx context.Context, id string) (*social.User, error) {
	key := keyPrefixID + id
	if u, ok := s.get(ctx, key); ok {
		return u, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		u, err := s.Store.FindUserByID(lctx, id)
		if err != nil || u == nil {
			return u, err
		}
		s.set(lctx, key, u)
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*social.User), nil
}

// FindUserByExternalID resolves the external id to a cached internal id.
// Stub users without an internal id are always read from the wrapped store.
func (s *Store) FindUserByExternalID(ctx context.Context, externalID string) (*social.User, error) {
	key := keyPrefixExternal + externalID
	id, err := s.rdb.Get(ctx, key).Result()
	switch {
	case err == nil && id != "":
		return s.FindUserByID(ctx, id)
	case err != nil && !errors.Is(err, goredis.Nil):
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	u, err := s.Store.FindUserByExternalID(ctx, externalID)
	if err != nil || u == nil || u.ID == "" {
		return u, err
	}
	if err := s.rdb.Set(ctx, key, u.ID, s.ttl).Err(); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	s.set(ctx, keyPrefixID+u.ID, u)
	return u, nil
}

// Register drops the entries of the identity once the wrapped store has run.
func (s *Store) Register(ctx context.Context, p social.Profile, newID string) (social.RegisterResult, error) {
	res, err := s.Store.Register(ctx, p, newID)
	if err != nil {
		return res, err
	}
	if res.Registered {
		s.invalidate(ctx, keyPrefixExternal+p.ExternalID, keyPrefixID+res.ID)
	}
	return res, nil
}

// UpdateLocation drops the cached user after moving it.
func (s *Store) UpdateLocation(ctx context.Context, uid string, p geo.Point) error {
	if err := s.Store.UpdateLocation(ctx, uid, p); err != nil {
		return err
	}
	s.invalidate(ctx, keyPrefixID+uid)
	return nil
}

func (s *Store) get(ctx context.Context, key string) (*social.User, bool) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.logger.Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		s.invalidate(ctx, key)
		return nil, false
	}
	u := e.User
	u.AccessToken = e.AccessToken
	return &u, true
}

func (s *Store) set(ctx context.Context, key string, u *social.User) {
	raw, err := json.Marshal(entry{User: *u, AccessToken: u.AccessToken})
	if err != nil {
		s.logger.Warn("Cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) invalidate(ctx context.Context, keys ...string) {
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.logger.Error("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, rdb goredis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
