package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarymap/backend/internal/geo"
	"diarymap/backend/internal/memgraph"
	"diarymap/backend/internal/social"
)

// countingStore counts reads that reach the wrapped store.
type countingStore struct {
	social.Store
	byID       atomic.Int32
	byExternal atomic.Int32
}

func (c *countingStore) FindUserByID(ctx context.Context, id string) (*social.User, error) {
	c.byID.Add(1)
	return c.Store.FindUserByID(ctx, id)
}

func (c *countingStore) FindUserByExternalID(ctx context.Context, externalID string) (*social.User, error) {
	c.byExternal.Add(1)
	return c.Store.FindUserByExternalID(ctx, externalID)
}

func newTestCache(t *testing.T) (*Store, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backing := &countingStore{Store: memgraph.New(nil)}
	return New(backing, rdb, time.Minute), backing, mr
}

func register(t *testing.T, s social.Store, fbID, id string) {
	t.Helper()
	_, err := s.Register(context.Background(), social.Profile{ExternalID: fbID, Name: fbID, AccessToken: "secret"}, id)
	require.NoError(t, err)
}

func TestStore_FindUserByIDIsCached(t *testing.T) {
	s, backing, mr := newTestCache(t)
	ctx := context.Background()
	register(t, s, "fb-1", "u1")

	first, err := s.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := s.FindUserByID(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), backing.byID.Load())
	assert.Equal(t, first.Name, second.Name)
	assert.True(t, mr.Exists(keyPrefixID+"u1"))
	assert.Equal(t, first, second)
	assert.Equal(t, "secret", second.AccessToken)

	mr.FastForward(2 * time.Minute)
	_, err = s.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), backing.byID.Load())
}

func TestStore_AbsentUserIsNotCached(t *testing.T) {
	s, backing, mr := newTestCache(t)
	ctx := context.Background()

	u, err := s.FindUserByID(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.False(t, mr.Exists(keyPrefixID+"nobody"))

	_, err = s.FindUserByID(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int32(2), backing.byID.Load())
}

func TestStore_FindUserByExternalID(t *testing.T) {
	s, backing, mr := newTestCache(t)
	ctx := context.Background()
	register(t, s, "fb-1", "u1")

	u, err := s.FindUserByExternalID(ctx, "fb-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)

	got, err := mr.Get(keyPrefixExternal + "fb-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got)

	u, err = s.FindUserByExternalID(ctx, "fb-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, int32(1), backing.byExternal.Load())
	assert.Equal(t, int32(0), backing.byID.Load())
}

func TestStore_StubsBypassCache(t *testing.T) {
	s, backing, mr := newTestCache(t)
	ctx := context.Background()
	register(t, s, "fb-1", "u1")
	require.NoError(t, s.AddFriend(ctx, "u1", social.FriendProfile{ExternalID: "fb-stub", Name: "Stub"}))

	for i := 0; i < 2; i++ {
		stub, err := s.FindUserByExternalID(ctx, "fb-stub")
		require.NoError(t, err)
		require.NotNil(t, stub)
		assert.Empty(t, stub.ID)
	}
	assert.Equal(t, int32(2), backing.byExternal.Load())
	assert.False(t, mr.Exists(keyPrefixExternal+"fb-stub"))

	// the stub registers; the backfilled record must be visible right away
	res, err := s.Register(ctx, social.Profile{ExternalID: "fb-stub", Name: "Now Registered"}, "u2")
	require.NoError(t, err)
	assert.Equal(t, social.OutcomeBackfilled, res.Outcome)

	u, err := s.FindUserByExternalID(ctx, "fb-stub")
	require.NoError(t, err)
	assert.Equal(t, "u2", u.ID)
	assert.Equal(t, "Now Registered", u.Name)
}

func TestStore_UpdateLocationInvalidates(t *testing.T) {
	s, _, mr := newTestCache(t)
	ctx := context.Background()
	register(t, s, "fb-1", "u1")

	u, err := s.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	_, ok := u.Location()
	assert.False(t, ok)
	require.True(t, mr.Exists(keyPrefixID+"u1"))

	require.NoError(t, s.UpdateLocation(ctx, "u1", geo.Point{Lat: 1, Lon: 2}))
	assert.False(t, mr.Exists(keyPrefixID+"u1"))

	u, err = s.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	loc, ok := u.Location()
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 1, Lon: 2}, loc)
}

func TestStore_UndecodableEntryIsDropped(t *testing.T) {
	s, backing, mr := newTestCache(t)
	ctx := context.Background()
	register(t, s, "fb-1", "u1")
	require.NoError(t, mr.Set(keyPrefixID+"u1", "{not json"))

	u, err := s.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, int32(1), backing.byID.Load())
}

func TestStore_RedisDownFallsBack(t *testing.T) {
	s, backing, mr := newTestCache(t)
	ctx := context.Background()
	register(t, s, "fb-1", "u1")
	mr.Close()

	u, err := s.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int32(1), backing.byID.Load())

	u, err = s.FindUserByExternalID(ctx, "fb-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestStore_ConcurrentMissesShareLoad(t *testing.T) {
	s, backing, _ := newTestCache(t)
	ctx := context.Background()
	register(t, s, "fb-1", "u1")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := s.FindUserByID(ctx, "u1")
			assert.NoError(t, err)
			assert.NotNil(t, u)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, backing.byID.Load(), int32(16))
	assert.GreaterOrEqual(t, backing.byID.Load(), int32(1))
}

// contextStore fails reads whose context is already done.
type contextStore struct {
	social.Store
}

func (c contextStore) FindUserByID(ctx context.Context, id string) (*social.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Store.FindUserByID(ctx, id)
}

func TestStore_SharedLoadOutlivesCaller(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := New(contextStore{Store: memgraph.New(nil)}, rdb, time.Minute)
	register(t, s, "fb-1", "u1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u, err := s.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)
	assert.True(t, mr.Exists(keyPrefixID+"u1"))
}

func TestStore_SignInOnCachedUser(t *testing.T) {
	s, backing, _ := newTestCache(t)
	ctx := context.Background()
	svc := social.NewService(s)

	first, err := svc.SignIn(ctx, social.Profile{ExternalID: "fb-1", Name: "A", AccessToken: "tok-a"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := svc.SignIn(ctx, social.Profile{ExternalID: "fb-1", AccessToken: "tok-a"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, res.ID)
	}
	assert.Equal(t, int32(1), backing.byID.Load())

	_, err = svc.SignIn(ctx, social.Profile{ExternalID: "fb-1", AccessToken: "tok-b"})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	assert.NoError(t, Ping(context.Background(), rdb))

	mr.Close()
	assert.ErrorContains(t, Ping(context.Background(), rdb), "redis ping")
}
