package memgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarymap/backend/internal/constants"
	"diarymap/backend/internal/geo"
	"diarymap/backend/internal/social"
	apperrors "diarymap/backend/pkg/errors"
)

func register(t *testing.T, s *Store, fbID, name string) string {
	t.Helper()
	res, err := s.Register(context.Background(), social.Profile{ExternalID: fbID, Name: name}, "id-"+fbID)
	require.NoError(t, err)
	require.True(t, res.Registered)
	return res.ID
}

func ids(rows []social.UserSummary) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestRegister_ThreeWayBranch(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	res, err := s.Register(ctx, social.Profile{ExternalID: "fb:1", Name: "A"}, "U1")
	require.NoError(t, err)
	assert.Equal(t, social.RegisterResult{ID: "U1", Registered: true, Outcome: social.OutcomeCreated}, res)

	res, err = s.Register(ctx, social.Profile{ExternalID: "fb:1", Name: "A2"}, "other")
	require.NoError(t, err)
	assert.Equal(t, social.RegisterResult{ID: "U1", Registered: false, Outcome: social.OutcomeAlreadyRegistered}, res)

	u, err := s.FindUserByID(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)

	// a friend import leaves a stub without id
	require.NoError(t, s.AddFriend(ctx, "U1", social.FriendProfile{ExternalID: "fb:2", Name: "B"}))
	stub, err := s.FindUserByExternalID(ctx, "fb:2")
	require.NoError(t, err)
	require.NotNil(t, stub)
	assert.Empty(t, stub.ID)

	res, err = s.Register(ctx, social.Profile{ExternalID: "fb:2", Name: "Bee", Email: "b@example.com"}, "U2")
	require.NoError(t, err)
	assert.Equal(t, social.OutcomeBackfilled, res.Outcome)
	assert.Equal(t, "U2", res.ID)

	u, err = s.FindUserByID(ctx, "U2")
	require.NoError(t, err)
	assert.Equal(t, "Bee", u.Name)
	assert.Equal(t, "b@example.com", u.Email)

	// the friendship made against the stub survives registration
	friends, err := s.FriendsOf(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U2"}, ids(friends))
}

func TestFindUser_Absent(t *testing.T) {
	s := New(nil)
	u, err := s.FindUserByID(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, u)
	u, err = s.FindUserByExternalID(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestAddFriend_MergesEdge(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	u1 := register(t, s, "1", "A")
	register(t, s, "2", "B")

	require.NoError(t, s.AddFriend(ctx, u1, social.FriendProfile{ExternalID: "2", Name: "B"}))
	require.NoError(t, s.AddFriend(ctx, u1, social.FriendProfile{ExternalID: "2", Name: "B renamed"}))

	u := s.user(u1)
	f := s.g.FindOne(constants.LabelUser, "fb_id", "2")
	var count int
	for e := range s.g.Edges(u, constants.RelFriend, Outgoing) {
		if e.To == f {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, "B", f.String("name"))
}

func TestAddFriend_Errors(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	u1 := register(t, s, "1", "A")

	err := s.AddFriend(ctx, "ghost", social.FriendProfile{ExternalID: "2"})
	assert.True(t, apperrors.IsNotFound(err))

	err = s.AddFriend(ctx, u1, social.FriendProfile{ExternalID: "1"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestFriendsOfFriends_Exclusions(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	u1 := register(t, s, "1", "A")
	u2 := register(t, s, "2", "B")
	u3 := register(t, s, "3", "C")
	u4 := register(t, s, "4", "D")

	require.NoError(t, s.AddFriend(ctx, u1, social.FriendProfile{ExternalID: "2"}))
	require.NoError(t, s.AddFriend(ctx, u2, social.FriendProfile{ExternalID: "3"}))

	fof, err := s.FriendsOfFriends(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, []string{u3}, ids(fof))

	require.NoError(t, s.AddFriend(ctx, u4, social.FriendProfile{ExternalID: "2"}))
	require.NoError(t, s.AddFriend(ctx, u3, social.FriendProfile{ExternalID: "4"}))
	fof, err = s.FriendsOfFriends(ctx, u1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{u3, u4}, ids(fof))

	// C becomes a direct friend and drops out; D is now reachable through
	// both B and C but reported once
	require.NoError(t, s.AddFriend(ctx, u3, social.FriendProfile{ExternalID: "1"}))
	fof, err = s.FriendsOfFriends(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, []string{u4}, ids(fof))
	assert.NotContains(t, ids(fof), u1)
	assert.NotContains(t, ids(fof), u2)
}

func TestFriendsOf_AnyRelationship(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	u1 := register(t, s, "1", "A")
	register(t, s, "2", "B")
	register(t, s, "3", "C")
	require.NoError(t, s.AddFriend(ctx, u1, social.FriendProfile{ExternalID: "2"}))

	// a non-FRIEND edge between users still counts
	s.g.MergeEdge(s.g.FindOne(constants.LabelUser, "fb_id", "3"), "BLOCKED", s.user(u1), nil)

	friends, err := s.FriendsOf(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-2", "id-3"}, ids(friends))

	friends, err = s.FriendsOf(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestCommonLikes(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	u1 := register(t, s, "1", "A")
	u2 := register(t, s, "2", "B")
	u3 := register(t, s, "3", "C")

	for _, l := range []string{"go", "neo4j", "maps"} {
		require.NoError(t, s.AddLike(ctx, u1, social.LikeTarget{ID: l, Name: l}))
	}
	require.NoError(t, s.AddLike(ctx, u2, social.LikeTarget{ID: "go", Name: "go"}))
	require.NoError(t, s.AddLike(ctx, u3, social.LikeTarget{ID: "go"}))
	require.NoError(t, s.AddLike(ctx, u3, social.LikeTarget{ID: "maps"}))
	require.NoError(t, s.AddLike(ctx, u3, social.LikeTarget{ID: "maps"}))

	users, err := s.CommonLikeUsers(ctx, u1)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, u3, users[0].ID)
	assert.Equal(t, 2, users[0].AmountOfCommonLikes)
	assert.Equal(t, u2, users[1].ID)
	assert.Equal(t, 1, users[1].AmountOfCommonLikes)

	likes, err := s.CommonLikes(ctx, u1, u3)
	require.NoError(t, err)
	assert.Equal(t, []social.LikeTarget{{ID: "go", Name: "go"}, {ID: "maps", Name: "maps"}}, likes)

	likes, err = s.CommonLikes(ctx, u1, "ghost")
	require.NoError(t, err)
	assert.Empty(t, likes)
}

func TestSimilarUsers(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	u1 := register(t, s, "1", "A")
	u2 := register(t, s, "2", "B")
	u3 := register(t, s, "3", "C")
	u4 := register(t, s, "4", "D")
	u5 := register(t, s, "5", "E")

	post := func(uid, id string, tags ...string) {
		require.NoError(t, s.CreatePost(ctx, uid, social.Post{ID: id, Title: id}, tags))
	}
	post(u1, "p1", "travel", "food")
	post(u2, "p2", "food", "music")

	similar, err := s.SimilarUsers(ctx, u1, 3)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, u2, similar[0].ID)
	assert.Equal(t, []string{"food"}, similar[0].Tags)

	post(u3, "p3", "travel")
	post(u3, "p4", "food")
	post(u4, "p5", "travel")
	post(u5, "p6", "food")

	similar, err = s.SimilarUsers(ctx, u1, 3)
	require.NoError(t, err)
	require.Len(t, similar, 3)
	assert.Equal(t, u3, similar[0].ID)
	assert.Equal(t, []string{"food", "travel"}, similar[0].Tags)
	// ties on one tag are ordered by id
	assert.Equal(t, []string{u2, u4}, []string{similar[1].ID, similar[2].ID})
}

func TestCommonality(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	a := register(t, s, "1", "A")
	b := register(t, s, "2", "B")

	c, err := s.Commonality(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, social.Commonality{Tags: []string{}}, c)

	require.NoError(t, s.CreatePost(ctx, a, social.Post{ID: "a1"}, []string{"go", "maps"}))
	require.NoError(t, s.CreatePost(ctx, a, social.Post{ID: "a2"}, nil))
	require.NoError(t, s.CreatePost(ctx, b, social.Post{ID: "b1"}, []string{"maps"}))
	require.NoError(t, s.LikePost(ctx, b, "a1"))
	require.NoError(t, s.LikePost(ctx, b, "a2"))
	require.NoError(t, s.LikePost(ctx, b, "a2"))
	require.NoError(t, s.LikePost(ctx, a, "b1"))

	c, err = s.Commonality(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Likes)
	assert.Equal(t, []string{"maps"}, c.Tags)

	c, err = s.Commonality(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Likes)

	c, err = s.Commonality(ctx, a, "ghost")
	require.NoError(t, err)
	assert.Zero(t, c.Likes)

	err = s.LikePost(ctx, a, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRecentPosts(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	a := register(t, s, "1", "A")

	for i, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		require.NoError(t, s.CreatePost(ctx, a, social.Post{ID: id, CreatedAt: float64(100 + i), Date: "2024-05-01"}, []string{"x"}))
	}
	require.NoError(t, s.CreatePost(ctx, a, social.Post{ID: "untagged", CreatedAt: 200, Date: "2024-05-01"}, nil))
	require.NoError(t, s.CreatePost(ctx, a, social.Post{ID: "old", CreatedAt: 999, Date: "2024-04-30"}, nil))

	posts, err := s.RecentPosts(ctx, "2024-05-01", 5)
	require.NoError(t, err)
	require.Len(t, posts, 5)
	got := []string{}
	for _, p := range posts {
		got = append(got, p.Post.ID)
	}
	assert.Equal(t, []string{"untagged", "p6", "p5", "p4", "p3"}, got)
	assert.Equal(t, []string{}, posts[0].Tags)
	assert.Equal(t, []string{"x"}, posts[1].Tags)
	assert.Equal(t, a, posts[1].Author.ID)
}

func TestFriendsDiaries(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	a := register(t, s, "1", "A")
	b := register(t, s, "2", "B")
	c := register(t, s, "3", "C")
	require.NoError(t, s.AddFriend(ctx, a, social.FriendProfile{ExternalID: "2"}))

	diary := func(uid, id string, ts float64, perm string) {
		require.NoError(t, s.CreateDiary(ctx, uid, social.Diary{ID: id, CreatedAt: ts, Permission: perm, Latitude: 1, Longitude: 1}))
	}
	diary(b, "b-old", 10, constants.PermissionPublic)
	diary(b, "b-friends", 20, constants.PermissionFriends)
	diary(b, "b-private", 25, constants.PermissionPrivate)
	diary(b, "b-new", 40, constants.PermissionPublic)
	diary(c, "c-public", 15, constants.PermissionPublic)
	diary(a, "a-own", 15, constants.PermissionPublic)

	feed, err := s.FriendsDiaries(ctx, a, 30, 20)
	require.NoError(t, err)
	got := []string{}
	for _, row := range feed {
		got = append(got, row.Diary.ID)
		assert.Equal(t, b, row.Friend.ID)
	}
	assert.Equal(t, []string{"b-friends", "b-old"}, got)

	// the friendship is undirected
	feed, err = s.FriendsDiaries(ctx, b, 100, 20)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "a-own", feed[0].Diary.ID)

	feed, err = s.FriendsDiaries(ctx, a, 100, 1)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "b-new", feed[0].Diary.ID)

	own, err := s.UserDiaries(ctx, b)
	require.NoError(t, err)
	require.Len(t, own, 4)
	assert.Equal(t, "b-new", own[0].ID)
}

func TestNearbyMembers(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	u1 := register(t, s, "1", "A")
	u2 := register(t, s, "2", "B")
	u3 := register(t, s, "3", "C")

	none, err := s.NearbyMembers(ctx, u1, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.UpdateLocation(ctx, u1, geo.Point{Lat: 1.0, Lon: 2.0}))
	require.NoError(t, s.UpdateLocation(ctx, u2, geo.Point{Lat: 1.001, Lon: 2.001}))
	require.NoError(t, s.UpdateLocation(ctx, u3, geo.Point{Lat: 5, Lon: 5}))

	near, err := s.NearbyMembers(ctx, u1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{u2}, ids(near))

	near, err = s.NearbyMembers(ctx, u1, 0.01)
	require.NoError(t, err)
	assert.Empty(t, near)

	// moving u3 next to u1 re-indexes it
	require.NoError(t, s.UpdateLocation(ctx, u3, geo.Point{Lat: 1.0001, Lon: 2.0}))
	near, err = s.NearbyMembers(ctx, u1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{u3, u2}, ids(near))

	u, err := s.FindUserByID(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, "POINT (2 1)", u.WKT)
}

func TestNearbyDiaries(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	a := register(t, s, "1", "A")
	b := register(t, s, "2", "B")
	c := register(t, s, "3", "C")
	require.NoError(t, s.AddFriend(ctx, a, social.FriendProfile{ExternalID: "2"}))
	require.NoError(t, s.UpdateLocation(ctx, a, geo.Point{Lat: 10, Lon: 10}))

	diary := func(uid, id, perm string, lat float64) {
		require.NoError(t, s.CreateDiary(ctx, uid, social.Diary{ID: id, Permission: perm, Latitude: lat, Longitude: 10}))
	}
	diary(a, "own", constants.PermissionPublic, 10)
	diary(b, "friend-only", constants.PermissionFriends, 10.001)
	diary(b, "private", constants.PermissionPrivate, 10.001)
	diary(c, "stranger-public", constants.PermissionPublic, 10.002)
	diary(c, "stranger-friends", constants.PermissionFriends, 10.002)
	diary(c, "far", constants.PermissionPublic, 20)

	near, err := s.NearbyDiaries(ctx, a, 5)
	require.NoError(t, err)
	got := []string{}
	for _, n := range near {
		got = append(got, n.Diary.ID)
	}
	assert.Equal(t, []string{"friend-only", "stranger-public"}, got)
	assert.Equal(t, b, near[0].Author.ID)
	assert.Equal(t, c, near[1].Author.ID)
	assert.Less(t, near[0].DistanceKm, near[1].DistanceKm)
}

type failingIndex struct {
	*geo.MemoryIndex
	fail bool
}

func (f *failingIndex) Upsert(ctx context.Context, layer, id string, p geo.Point) error {
	if f.fail {
		return errors.New("index unavailable")
	}
	return f.MemoryIndex.Upsert(ctx, layer, id, p)
}

func TestUpdateLocation_RollsBackWhenIndexFails(t *testing.T) {
	ctx := context.Background()
	idx := &failingIndex{MemoryIndex: geo.NewMemoryIndex()}
	s := New(idx)
	u1 := register(t, s, "1", "A")

	require.NoError(t, s.UpdateLocation(ctx, u1, geo.Point{Lat: 1, Lon: 2}))

	idx.fail = true
	err := s.UpdateLocation(ctx, u1, geo.Point{Lat: 3, Lon: 4})
	require.Error(t, err)
	var sf *apperrors.ErrStoreFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "spatial_index", sf.Step)

	u, err := s.FindUserByID(ctx, u1)
	require.NoError(t, err)
	p, ok := u.Location()
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 1, Lon: 2}, p)
	assert.Equal(t, "POINT (2 1)", u.WKT)

	indexed, ok := idx.Lookup(constants.IndexMember, u1)
	require.True(t, ok)
	assert.Equal(t, p, indexed)
}

func TestCreateDiary_RollsBackWhenIndexFails(t *testing.T) {
	ctx := context.Background()
	idx := &failingIndex{MemoryIndex: geo.NewMemoryIndex(), fail: true}
	s := New(idx)
	u1 := register(t, s, "1", "A")

	err := s.CreateDiary(ctx, u1, social.Diary{ID: "d1", Latitude: 1, Longitude: 1})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))

	diaries, err := s.UserDiaries(ctx, u1)
	require.NoError(t, err)
	assert.Empty(t, diaries)
	assert.Nil(t, s.g.FindOne(constants.LabelDiary, "id", "d1"))
}

func TestUpdateLocation_UnindexablePointIsValidationError(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := New(geo.NewRedisIndex(rdb, ""))
	u1 := register(t, s, "1", "A")

	require.NoError(t, s.UpdateLocation(ctx, u1, geo.Point{Lat: 60, Lon: 10}))

	err := s.UpdateLocation(ctx, u1, geo.Point{Lat: 86, Lon: 10})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.False(t, apperrors.IsRetryable(err))

	u, err := s.FindUserByID(ctx, u1)
	require.NoError(t, err)
	p, ok := u.Location()
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 60, Lon: 10}, p)

	err = s.CreateDiary(ctx, u1, social.Diary{ID: "d-north", Latitude: 86, Longitude: 10})
	assert.True(t, apperrors.IsValidation(err))
	assert.Nil(t, s.g.FindOne(constants.LabelDiary, "id", "d-north"))
}

func TestWritesOnUnknownUser(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	assert.True(t, apperrors.IsNotFound(s.AddLike(ctx, "ghost", social.LikeTarget{ID: "x"})))
	assert.True(t, apperrors.IsNotFound(s.CreatePost(ctx, "ghost", social.Post{ID: "p"}, nil)))
	assert.True(t, apperrors.IsNotFound(s.CreateDiary(ctx, "ghost", social.Diary{ID: "d"})))
	assert.True(t, apperrors.IsNotFound(s.UpdateLocation(ctx, "ghost", geo.Point{})))
	assert.True(t, apperrors.IsNotFound(s.LikePost(ctx, "ghost", "p")))
}
