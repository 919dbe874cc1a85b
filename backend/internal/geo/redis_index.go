package geo

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	apperrors "diarymap/backend/pkg/errors"
)

// RedisMaxLatitude is the largest absolute latitude GEOADD accepts.
const RedisMaxLatitude = 85.05112878

// RedisIndex stores each layer as a Redis GEO sorted set.
//
// Redis limits latitude to +/-RedisMaxLatitude; points beyond it are
// rejected as invalid input. Redis also uses its own earth radius, so
// distances differ from DistanceKm by under 0.1%.
type RedisIndex struct {
	rdb    goredis.UniversalClient
	prefix string
}

// NewRedisIndex wraps an existing client. Keys are "<prefix><layer>".
func NewRedisIndex(rdb goredis.UniversalClient, prefix string) *RedisIndex {
	if prefix == "" {
		prefix = "geo:"
	}
	return &RedisIndex{rdb: rdb, prefix: prefix}
}

func (r *RedisIndex) key(layer string) string {
	return r.prefix + layer
}

func validateRedis(p Point) error {
	if err := p.Validate(); err != nil {
		return apperrors.NewValidationFailed("location", err.Error())
	}
	if p.Lat < -RedisMaxLatitude || p.Lat > RedisMaxLatitude {
		return apperrors.NewValidationFailed("latitude",
			fmt.Sprintf("%v is outside the indexable range [-%v, %v]", p.Lat, RedisMaxLatitude, RedisMaxLatitude))
	}
	return nil
}

// Upsert implements Index. GEOADD overwrites the position of an existing member.
func (r *RedisIndex) Upsert(ctx context.Context, layer, id string, p Point) error {
	if err := validateRedis(p); err != nil {
		return err
	}
	err := r.rdb.GeoAdd(ctx, r.key(layer), &goredis.GeoLocation{
		Name:      id,
		Longitude: p.Lon,
		Latitude:  p.Lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis geoadd %s/%s: %w", layer, id, err)
	}
	return nil
}

// Remove implements Index.
func (r *RedisIndex) Remove(ctx context.Context, layer, id string) error {
	if err := r.rdb.ZRem(ctx, r.key(layer), id).Err(); err != nil {
		return fmt.Errorf("redis zrem %s/%s: %w", layer, id, err)
	}
	return nil
}

// Within implements Index.
func (r *RedisIndex) Within(ctx context.Context, layer string, center Point, radiusKm float64) ([]Hit, error) {
	if err := validateRedis(center); err != nil {
		return nil, err
	}
	if radiusKm < 0 {
		return nil, fmt.Errorf("radius %v must not be negative", radiusKm)
	}

	locs, err := r.rdb.GeoRadius(ctx, r.key(layer), center.Lon, center.Lat, &goredis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis georadius %s: %w", layer, err)
	}

	hits := make([]Hit, 0, len(locs))
	for _, loc := range locs {
		hits = append(hits, Hit{
			ID:         loc.Name,
			Point:      Point{Lat: loc.Latitude, Lon: loc.Longitude},
			DistanceKm: loc.Dist,
		})
	}
	sortHits(hits)
	return hits, nil
}
