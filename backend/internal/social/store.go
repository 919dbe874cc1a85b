package social

import (
	"context"

	"diarymap/backend/internal/geo"
)

// Store is the persistence contract shared by the Neo4j and in-memory
// backends. Implementations must keep coordinates and spatial index entries
// in step and must serialize registration per external id.
//
// Lookups return nil, nil when nothing matches. Queries keyed on an unknown
// user id return an empty result. Writes on an unknown user id return a
// not-found error.
type Store interface {
	// Register creates, backfills or leaves alone the user with p.ExternalID.
	// newID is assigned only by the create and backfill branches.
	Register(ctx context.Context, p Profile, newID string) (RegisterResult, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByExternalID(ctx context.Context, externalID string) (*User, error)

	AddFriend(ctx context.Context, uid string, friend FriendProfile) error
	AddLike(ctx context.Context, uid string, like LikeTarget) error
	CreatePost(ctx context.Context, uid string, post Post, tags []string) error
	LikePost(ctx context.Context, uid, postID string) error
	CreateDiary(ctx context.Context, uid string, diary Diary) error
	UpdateLocation(ctx context.Context, uid string, p geo.Point) error

	FriendsOf(ctx context.Context, uid string) ([]UserSummary, error)
	FriendsOfFriends(ctx context.Context, uid string) ([]UserSummary, error)
	CommonLikeUsers(ctx context.Context, uid string) ([]CommonLikeUser, error)
	CommonLikes(ctx context.Context, uid, otherID string) ([]LikeTarget, error)
	SimilarUsers(ctx context.Context, uid string, limit int) ([]SimilarUser, error)
	Commonality(ctx context.Context, a, b string) (Commonality, error)
	RecentPosts(ctx context.Context, date string, limit int) ([]PostWithTags, error)
	FriendsDiaries(ctx context.Context, uid string, maxCreatedAt float64, limit int) ([]FriendDiary, error)
	UserDiaries(ctx context.Context, uid string) ([]Diary, error)
	NearbyDiaries(ctx context.Context, uid string, radiusKm float64) ([]NearbyDiary, error)
	NearbyMembers(ctx context.Context, uid string, radiusKm float64) ([]UserSummary, error)
}
