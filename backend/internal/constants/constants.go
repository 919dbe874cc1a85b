package constants

// Node labels
const (
	LabelUser  = "User"
	LabelPost  = "Post"
	LabelDiary = "Diary"
	LabelTag   = "Tag"
	// LabelLikes marks an external like target imported from the identity provider
	LabelLikes = "Likes"
)

// Relationship types
const (
	RelFriend    = "FRIEND"
	RelLike      = "LIKE"
	RelLiked     = "LIKED"
	RelPublished = "PUBLISHED"
	RelTagged    = "TAGGED"
)

// Spatial index (layer) names
const (
	IndexMember = "member"
	IndexDiary  = "diary"
)

// Diary permissions
const (
	PermissionPublic  = "public"
	PermissionFriends = "friends"
	PermissionPrivate = "private"
)

// Query limits
const (
	// SimilarUsersLimit is how many users SimilarUsers ranks
	SimilarUsersLimit = 3
	// RecentPostsLimit caps the recent posts feed
	RecentPostsLimit = 5
	// FriendsDiariesLimit caps one page of the friends' diary feed
	FriendsDiariesLimit = 20
)

// DateLayout is the calendar-date format stored on posts and diaries
const DateLayout = "2006-01-02"
