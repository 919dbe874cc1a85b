package geo

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "diarymap/backend/pkg/errors"
)

func hitIDs(hits []Hit) []string {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestMemoryIndex_WithinMatchesBruteForce(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	rng := rand.New(rand.NewSource(7))

	center := Point{Lat: 48.8566, Lon: 2.3522}
	points := make(map[string]Point)
	for i := 0; i < 400; i++ {
		p := Point{
			Lat: center.Lat + (rng.Float64()-0.5)*0.5,
			Lon: center.Lon + (rng.Float64()-0.5)*0.5,
		}
		id := fmt.Sprintf("p%03d", i)
		points[id] = p
		require.NoError(t, idx.Upsert(ctx, "member", id, p))
	}

	for _, radius := range []float64{0, 0.5, 2, 5, 10, 25, 100} {
		var want []string
		for id, p := range points {
			if DistanceKm(center, p) <= radius {
				want = append(want, id)
			}
		}
		sort.Strings(want)

		hits, err := idx.Within(ctx, "member", center, radius)
		require.NoError(t, err)
		if want == nil {
			want = []string{}
		}
		assert.Equal(t, want, hitIDs(hits), "radius %v", radius)

		for i := 1; i < len(hits); i++ {
			assert.LessOrEqual(t, hits[i-1].DistanceKm, hits[i].DistanceKm)
		}
	}
}

func TestMemoryIndex_RadiusIsInclusive(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	center := Point{Lat: 1.0, Lon: 2.0}
	edge := Point{Lat: 1.001, Lon: 2.001}
	require.NoError(t, idx.Upsert(ctx, "member", "edge", edge))

	exact := DistanceKm(center, edge)
	hits, err := idx.Within(ctx, "member", center, exact)
	require.NoError(t, err)
	assert.Equal(t, []string{"edge"}, hitIDs(hits))
}

func TestMemoryIndex_UpsertMovesPoint(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, "member", "u1", Point{Lat: 10, Lon: 10}))
	require.NoError(t, idx.Upsert(ctx, "member", "u1", Point{Lat: -10, Lon: -10}))

	hits, err := idx.Within(ctx, "member", Point{Lat: 10, Lon: 10}, 50)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Within(ctx, "member", Point{Lat: -10, Lon: -10}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, hitIDs(hits))

	p, ok := idx.Lookup("member", "u1")
	assert.True(t, ok)
	assert.Equal(t, Point{Lat: -10, Lon: -10}, p)
}

func TestMemoryIndex_LayersAreIndependent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	p := Point{Lat: 35.0, Lon: 139.0}
	require.NoError(t, idx.Upsert(ctx, "member", "same-id", p))

	hits, err := idx.Within(ctx, "diary", p, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Remove(ctx, "diary", "same-id"))
	hits, err = idx.Within(ctx, "member", p, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"same-id"}, hitIDs(hits))

	require.NoError(t, idx.Remove(ctx, "member", "same-id"))
	hits, err = idx.Within(ctx, "member", p, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndex_AntimeridianAndPoles(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, "member", "east", Point{Lat: 0, Lon: 179.999}))
	require.NoError(t, idx.Upsert(ctx, "member", "west", Point{Lat: 0, Lon: -179.999}))
	require.NoError(t, idx.Upsert(ctx, "member", "pole", Point{Lat: 89.999, Lon: 45}))

	hits, err := idx.Within(ctx, "member", Point{Lat: 0, Lon: 180}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"east", "west"}, hitIDs(hits))

	hits, err = idx.Within(ctx, "member", Point{Lat: 90, Lon: -120}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"pole"}, hitIDs(hits))
}

func TestMemoryIndex_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	assert.Error(t, idx.Upsert(ctx, "member", "x", Point{Lat: 100, Lon: 0}))
	_, err := idx.Within(ctx, "member", Point{}, -1)
	assert.Error(t, err)
}

func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisIndex_UpsertWithinRemove(t *testing.T) {
	ctx := context.Background()
	idx := NewRedisIndex(newTestRedis(t), "")

	u1 := Point{Lat: 1.0, Lon: 2.0}
	u2 := Point{Lat: 1.001, Lon: 2.001}
	far := Point{Lat: 10, Lon: 20}
	require.NoError(t, idx.Upsert(ctx, "member", "u1", u1))
	require.NoError(t, idx.Upsert(ctx, "member", "u2", u2))
	require.NoError(t, idx.Upsert(ctx, "member", "far", far))
	require.NoError(t, idx.Upsert(ctx, "diary", "d1", u1))

	hits, err := idx.Within(ctx, "member", u1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, hitIDs(hits))
	assert.Equal(t, "u1", hits[0].ID)

	hits, err = idx.Within(ctx, "member", u1, 0.01)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, hitIDs(hits))

	require.NoError(t, idx.Remove(ctx, "member", "u2"))
	hits, err = idx.Within(ctx, "member", u1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, hitIDs(hits))

	hits, err = idx.Within(ctx, "diary", u1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, hitIDs(hits))
}

func TestRedisIndex_UnknownLayerIsEmpty(t *testing.T) {
	idx := NewRedisIndex(newTestRedis(t), "test:")
	hits, err := idx.Within(context.Background(), "nothing", Point{Lat: 1, Lon: 1}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRedisIndex_WithinMatchesBruteForce(t *testing.T) {
	ctx := context.Background()
	idx := NewRedisIndex(newTestRedis(t), "")
	rng := rand.New(rand.NewSource(7))

	center := Point{Lat: 48.8566, Lon: 2.3522}
	points := make(map[string]Point)
	for i := 0; i < 400; i++ {
		p := Point{
			Lat: center.Lat + (rng.Float64()-0.5)*0.5,
			Lon: center.Lon + (rng.Float64()-0.5)*0.5,
		}
		id := fmt.Sprintf("p%03d", i)
		points[id] = p
		require.NoError(t, idx.Upsert(ctx, "member", id, p))
	}

	for _, radius := range []float64{0.5, 2, 5, 10, 25, 100} {
		// redis uses a smaller earth radius and 52-bit geohashes; points
		// this close to the boundary may land on either side of it
		tol := 0.002 + radius*0.002

		hits, err := idx.Within(ctx, "member", center, radius)
		require.NoError(t, err)

		got := make(map[string]bool, len(hits))
		for _, h := range hits {
			got[h.ID] = true
			want := points[h.ID]
			assert.InDelta(t, DistanceKm(center, want), h.DistanceKm, tol, "radius %v id %s", radius, h.ID)
			assert.InDelta(t, want.Lat, h.Point.Lat, 1e-5)
			assert.InDelta(t, want.Lon, h.Point.Lon, 1e-5)
		}
		for i := 1; i < len(hits); i++ {
			assert.LessOrEqual(t, hits[i-1].DistanceKm, hits[i].DistanceKm)
		}

		for id, p := range points {
			d := DistanceKm(center, p)
			switch {
			case d < radius-tol:
				assert.True(t, got[id], "radius %v: %s at %.4f km missing", radius, id, d)
			case d > radius+tol:
				assert.False(t, got[id], "radius %v: %s at %.4f km returned", radius, id, d)
			}
		}
	}
}

func TestRedisIndex_RejectsUnindexableLatitude(t *testing.T) {
	ctx := context.Background()
	idx := NewRedisIndex(newTestRedis(t), "")

	err := idx.Upsert(ctx, "member", "north", Point{Lat: 86, Lon: 10})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.False(t, apperrors.IsRetryable(err))

	_, err = idx.Within(ctx, "member", Point{Lat: -86, Lon: 10}, 5)
	assert.True(t, apperrors.IsValidation(err))

	err = idx.Upsert(ctx, "member", "bad", Point{Lat: 91, Lon: 0})
	assert.True(t, apperrors.IsValidation(err))

	require.NoError(t, idx.Upsert(ctx, "member", "edge", Point{Lat: 85.05, Lon: 10}))
	hits, err := idx.Within(ctx, "member", Point{Lat: 85.05, Lon: 10}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"edge"}, hitIDs(hits))
}
