package memgraph

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"diarymap/backend/internal/constants"
	"diarymap/backend/internal/geo"
	"diarymap/backend/internal/social"
	apperrors "diarymap/backend/pkg/errors"
	"diarymap/backend/pkg/logger"
)

var _ social.Store = (*Store)(nil)

// Store implements social.Store over a Graph and a geo.Index. Every write
// holds the store lock for its whole read-modify-write sequence, including
// the spatial index call.
type Store struct {
	mu     sync.RWMutex
	g      *Graph
	index  geo.Index
	logger *zap.Logger
}

// New creates an empty store. A nil index selects a geo.MemoryIndex.
func New(index geo.Index) *Store {
	if index == nil {
		index = geo.NewMemoryIndex()
	}
	g := NewGraph()
	g.Unique(constants.LabelUser, "id")
	g.Unique(constants.LabelUser, "fb_id")
	g.Unique(constants.LabelPost, "id")
	g.Unique(constants.LabelDiary, "id")
	g.Unique(constants.LabelTag, "name")
	g.Unique(constants.LabelLikes, "id")

	return &Store{
		g:      g,
		index:  index,
		logger: logger.Named("memgraph"),
	}
}

// Register implements social.Store.
func (s *Store) Register(_ context.Context, p social.Profile, newID string) (social.RegisterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.g.FindOne(constants.LabelUser, "fb_id", p.ExternalID)
	switch {
	case n == nil:
		props := profileProps(p)
		props["id"] = newID
		props["fb_id"] = p.ExternalID
		if _, err := s.g.CreateNode(constants.LabelUser, props); err != nil {
			return social.RegisterResult{}, apperrors.NewStoreFailure("register", "create_user", err)
		}
		return social.RegisterResult{ID: newID, Registered: true, Outcome: social.OutcomeCreated}, nil

	case n.String("id") == "":
		if err := s.g.SetProp(n, "id", newID); err != nil {
			return social.RegisterResult{}, apperrors.NewStoreFailure("register", "backfill_id", err)
		}
		for attr, v := range profileProps(p) {
			if err := s.g.SetProp(n, attr, v); err != nil {
				return social.RegisterResult{}, apperrors.NewStoreFailure("register", "backfill_profile", err)
			}
		}
		s.logger.Info("Backfilled user id", zap.String("fb_id", p.ExternalID), zap.String("user_id", newID))
		return social.RegisterResult{ID: newID, Registered: true, Outcome: social.OutcomeBackfilled}, nil

	default:
		return social.RegisterResult{ID: n.String("id"), Registered: false, Outcome: social.OutcomeAlreadyRegistered}, nil
	}
}

// FindUserByID implements social.Store.
func (s *Store) FindUserByID(_ context.Context, id string) (*social.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n := s.user(id); n != nil {
		return userFromNode(n), nil
	}
	return nil, nil
}

// FindUserByExternalID implements social.Store.
func (s *Store) FindUserByExternalID(_ context.Context, externalID string) (*social.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n := s.g.FindOne(constants.LabelUser, "fb_id", externalID); n != nil {
		return userFromNode(n), nil
	}
	return nil, nil
}

// AddFriend implements social.Store.
func (s *Store) AddFriend(_ context.Context, uid string, friend social.FriendProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(uid)
	if u == nil {
		return apperrors.NewUserNotFound(uid)
	}
	if u.String("fb_id") == friend.ExternalID {
		return apperrors.NewValidationFailed("friend.id", "cannot befriend yourself")
	}

	f := s.g.FindOne(constants.LabelUser, "fb_id", friend.ExternalID)
	if f == nil {
		var err error
		f, err = s.g.CreateNode(constants.LabelUser, map[string]any{
			"fb_id": friend.ExternalID,
			"name":  friend.Name,
		})
		if err != nil {
			return apperrors.NewStoreFailure("add_friend", "create_stub", err)
		}
	}
	s.g.MergeEdge(u, constants.RelFriend, f, nil)
	return nil
}

// AddLike implements social.Store.
func (s *Store) AddLike(_ context.Context, uid string, like social.LikeTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(uid)
	if u == nil {
		return apperrors.NewUserNotFound(uid)
	}
	attrs := map[string]any{}
	if like.Name != "" {
		attrs["name"] = like.Name
	}
	k, err := s.g.UpsertNode(constants.LabelLikes, "id", like.ID, attrs)
	if err != nil {
		return apperrors.NewStoreFailure("add_like", "upsert_target", err)
	}
	s.g.MergeEdge(u, constants.RelLike, k, nil)
	return nil
}

// CreatePost implements social.Store.
func (s *Store) CreatePost(_ context.Context, uid string, post social.Post, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(uid)
	if u == nil {
		return apperrors.NewUserNotFound(uid)
	}
	p, err := s.g.CreateNode(constants.LabelPost, postProps(post))
	if err != nil {
		return apperrors.NewStoreFailure("create_post", "create_post", err)
	}
	s.g.CreateEdge(u, constants.RelPublished, p, nil)

	for _, name := range tags {
		t, err := s.g.UpsertNode(constants.LabelTag, "name", name, nil)
		if err != nil {
			s.g.RemoveNode(p)
			return apperrors.NewStoreFailure("create_post", "tag", err)
		}
		s.g.CreateEdge(t, constants.RelTagged, p, nil)
	}
	return nil
}

// LikePost implements social.Store.
func (s *Store) LikePost(_ context.Context, uid, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(uid)
	if u == nil {
		return apperrors.NewUserNotFound(uid)
	}
	p := s.g.FindOne(constants.LabelPost, "id", postID)
	if p == nil {
		return apperrors.NewPostNotFound(postID)
	}
	s.g.MergeEdge(u, constants.RelLiked, p, nil)
	return nil
}

// CreateDiary implements social.Store. The diary node and its index entry
// are written together; if indexing fails the node is removed again.
func (s *Store) CreateDiary(ctx context.Context, uid string, diary social.Diary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(uid)
	if u == nil {
		return apperrors.NewUserNotFound(uid)
	}
	d, err := s.g.CreateNode(constants.LabelDiary, diaryProps(diary))
	if err != nil {
		return apperrors.NewStoreFailure("create_diary", "create_diary", err)
	}
	s.g.CreateEdge(u, constants.RelPublished, d, nil)

	if err := s.index.Upsert(ctx, constants.IndexDiary, diary.ID, diary.Point()); err != nil {
		s.g.RemoveNode(d)
		s.logger.Error("Diary indexing failed, rolled back",
			zap.String("diary_id", diary.ID),
			zap.Error(err),
		)
		if apperrors.IsValidation(err) {
			return err
		}
		return apperrors.NewStoreFailure("create_diary", "spatial_index", err)
	}
	return nil
}

// UpdateLocation implements social.Store. Coordinates are restored if the
// member index rejects the new point.
func (s *Store) UpdateLocation(ctx context.Context, uid string, p geo.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(uid)
	if u == nil {
		return apperrors.NewUserNotFound(uid)
	}

	saved := make(map[string]any, 3)
	for _, attr := range []string{"latitude", "longitude", "wkt"} {
		if v, ok := u.Props[attr]; ok {
			saved[attr] = v
		}
	}

	u.Props["latitude"] = p.Lat
	u.Props["longitude"] = p.Lon
	u.Props["wkt"] = p.WKT()

	if err := s.index.Upsert(ctx, constants.IndexMember, uid, p); err != nil {
		for _, attr := range []string{"latitude", "longitude", "wkt"} {
			if v, ok := saved[attr]; ok {
				u.Props[attr] = v
			} else {
				delete(u.Props, attr)
			}
		}
		s.logger.Error("Member indexing failed, location restored",
			zap.String("user_id", uid),
			zap.Error(err),
		)
		if apperrors.IsValidation(err) {
			return err
		}
		return apperrors.NewStoreFailure("update_location", "spatial_index", err)
	}
	return nil
}

// user returns the registered user with id, or nil. Callers hold the lock.
func (s *Store) user(id string) *Node {
	if id == "" {
		return nil
	}
	return s.g.FindOne(constants.LabelUser, "id", id)
}
