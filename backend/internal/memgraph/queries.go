package memgraph

import (
	"context"
	"sort"

	"diarymap/backend/internal/constants"
	"diarymap/backend/internal/social"
	apperrors "diarymap/backend/pkg/errors"
)

// FriendsOf implements social.Store. Any relationship to another user counts,
// not only FRIEND.
func (s *Store) FriendsOf(_ context.Context, uid string) ([]social.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []social.UserSummary{}
	u := s.user(uid)
	if u == nil {
		return out, nil
	}
	for n := range Distinct(Filter(s.g.Neighbors(u, "", Both), HasLabel(constants.LabelUser))) {
		out = append(out, summaryFromNode(n))
	}
	sortSummaries(out)
	return out, nil
}

// FriendsOfFriends implements social.Store.
func (s *Store) FriendsOfFriends(_ context.Context, uid string) ([]social.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []social.UserSummary{}
	u := s.user(uid)
	if u == nil {
		return out, nil
	}

	twoHops := func(yield func(*Node) bool) {
		for f := range s.g.Neighbors(u, constants.RelFriend, Both) {
			for v := range s.g.Neighbors(f, constants.RelFriend, Both) {
				if !yield(v) {
					return
				}
			}
		}
	}
	keep := func(v *Node) bool {
		return v != u && !s.g.HasEdge(u, constants.RelFriend, v, Both)
	}
	for v := range Distinct(Filter(twoHops, keep)) {
		out = append(out, summaryFromNode(v))
	}
	sortSummaries(out)
	return out, nil
}

// CommonLikeUsers implements social.Store.
func (s *Store) CommonLikeUsers(_ context.Context, uid string) ([]social.CommonLikeUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []social.CommonLikeUser{}
	u := s.user(uid)
	if u == nil {
		return out, nil
	}

	counts := make(map[*Node]int)
	for k := range Distinct(s.g.Neighbors(u, constants.RelLike, Outgoing)) {
		for v := range Distinct(s.g.Neighbors(k, constants.RelLike, Incoming)) {
			if v != u && v.Label == constants.LabelUser {
				counts[v]++
			}
		}
	}
	for v, c := range counts {
		out = append(out, social.CommonLikeUser{
			ID:                  v.String("id"),
			Name:                v.String("name"),
			Gender:              v.String("gender"),
			Portrait:            v.String("portrait"),
			AmountOfCommonLikes: c,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AmountOfCommonLikes != out[j].AmountOfCommonLikes {
			return out[i].AmountOfCommonLikes > out[j].AmountOfCommonLikes
		}
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// CommonLikes implements social.Store.
func (s *Store) CommonLikes(_ context.Context, uid, otherID string) ([]social.LikeTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []social.LikeTarget{}
	u, v := s.user(uid), s.user(otherID)
	if u == nil || v == nil {
		return out, nil
	}
	for k := range Distinct(s.g.Neighbors(u, constants.RelLike, Outgoing)) {
		if s.g.HasEdge(v, constants.RelLike, k, Outgoing) {
			out = append(out, social.LikeTarget{ID: k.String("id"), Name: k.String("name")})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SimilarUsers implements social.Store. Ties are broken by user id.
func (s *Store) SimilarUsers(_ context.Context, uid string, limit int) ([]social.SimilarUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []social.SimilarUser{}
	u := s.user(uid)
	if u == nil {
		return out, nil
	}

	shared := make(map[*Node]map[string]struct{})
	for name, tag := range s.tagsUsedBy(u) {
		for post := range s.g.Neighbors(tag, constants.RelTagged, Outgoing) {
			for author := range s.g.Neighbors(post, constants.RelPublished, Incoming) {
				if author == u || author.Label != constants.LabelUser {
					continue
				}
				if shared[author] == nil {
					shared[author] = make(map[string]struct{})
				}
				shared[author][name] = struct{}{}
			}
		}
	}

	for author, names := range shared {
		out = append(out, social.SimilarUser{
			ID:   author.String("id"),
			Name: author.String("name"),
			Tags: sortedKeys(names),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Tags) != len(out[j].Tags) {
			return len(out[i].Tags) > len(out[j].Tags)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Commonality implements social.Store.
func (s *Store) Commonality(_ context.Context, a, b string) (social.Commonality, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := social.Commonality{Tags: []string{}}
	ua, ub := s.user(a), s.user(b)
	if ua == nil || ub == nil {
		return res, nil
	}

	for post := range Distinct(s.g.Neighbors(ub, constants.RelLiked, Outgoing)) {
		if s.g.HasEdge(ua, constants.RelPublished, post, Outgoing) {
			res.Likes++
		}
	}

	tagsB := s.tagsUsedBy(ub)
	for name := range s.tagsUsedBy(ua) {
		if _, ok := tagsB[name]; ok {
			res.Tags = append(res.Tags, name)
		}
	}
	sort.Strings(res.Tags)
	return res, nil
}

// RecentPosts implements social.Store. Posts without tags are included.
func (s *Store) RecentPosts(_ context.Context, date string, limit int) ([]social.PostWithTags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []social.PostWithTags{}
	for p := range s.g.Nodes(constants.LabelPost) {
		if p.String("date") != date {
			continue
		}
		row := social.PostWithTags{Post: postFromNode(p), Tags: []string{}}
		for author := range s.g.Neighbors(p, constants.RelPublished, Incoming) {
			row.Author = summaryFromNode(author)
			break
		}
		for tag := range Distinct(s.g.Neighbors(p, constants.RelTagged, Incoming)) {
			row.Tags = append(row.Tags, tag.String("name"))
		}
		sort.Strings(row.Tags)
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Post.CreatedAt != out[j].Post.CreatedAt {
			return out[i].Post.CreatedAt > out[j].Post.CreatedAt
		}
		return out[i].Post.ID < out[j].Post.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FriendsDiaries implements social.Store.
func (s *Store) FriendsDiaries(_ context.Context, uid string, maxCreatedAt float64, limit int) ([]social.FriendDiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []social.FriendDiary{}
	u := s.user(uid)
	if u == nil {
		return out, nil
	}

	for f := range Distinct(s.g.Neighbors(u, constants.RelFriend, Both)) {
		if f.Label != constants.LabelUser {
			continue
		}
		friend := summaryFromNode(f)
		friend.Nickname = ""
		for d := range Filter(s.g.Neighbors(f, constants.RelPublished, Outgoing), HasLabel(constants.LabelDiary)) {
			diary := diaryFromNode(d)
			if diary.CreatedAt > maxCreatedAt || diary.Permission == constants.PermissionPrivate {
				continue
			}
			out = append(out, social.FriendDiary{Diary: diary, Friend: friend})
		}
	}

	sortFriendDiaries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UserDiaries implements social.Store.
func (s *Store) UserDiaries(_ context.Context, uid string) ([]social.Diary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []social.Diary{}
	u := s.user(uid)
	if u == nil {
		return out, nil
	}
	for d := range Filter(s.g.Neighbors(u, constants.RelPublished, Outgoing), HasLabel(constants.LabelDiary)) {
		out = append(out, diaryFromNode(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// NearbyDiaries implements social.Store. Diaries by uid, private diaries and
// friends-only diaries of non-friends are left out.
func (s *Store) NearbyDiaries(ctx context.Context, uid string, radiusKm float64) ([]social.NearbyDiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []social.NearbyDiary{}
	u := s.user(uid)
	if u == nil {
		return out, nil
	}
	center, ok := userFromNode(u).Location()
	if !ok {
		return out, nil
	}

	hits, err := s.index.Within(ctx, constants.IndexDiary, center, radiusKm)
	if err != nil {
		return nil, apperrors.NewStoreFailure("nearby_diaries", "spatial_index", err)
	}
	for _, h := range hits {
		d := s.g.FindOne(constants.LabelDiary, "id", h.ID)
		if d == nil {
			continue
		}
		var author *Node
		for a := range s.g.Neighbors(d, constants.RelPublished, Incoming) {
			author = a
			break
		}
		if author == nil || author == u {
			continue
		}
		diary := diaryFromNode(d)
		if !visibleTo(diary.Permission, s.g.HasEdge(u, constants.RelFriend, author, Both)) {
			continue
		}
		out = append(out, social.NearbyDiary{
			Diary:      diary,
			Author:     summaryFromNode(author),
			DistanceKm: h.DistanceKm,
		})
	}
	return out, nil
}

// NearbyMembers implements social.Store.
func (s *Store) NearbyMembers(ctx context.Context, uid string, radiusKm float64) ([]social.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []social.UserSummary{}
	u := s.user(uid)
	if u == nil {
		return out, nil
	}
	center, ok := userFromNode(u).Location()
	if !ok {
		return out, nil
	}

	hits, err := s.index.Within(ctx, constants.IndexMember, center, radiusKm)
	if err != nil {
		return nil, apperrors.NewStoreFailure("nearby_members", "spatial_index", err)
	}
	for _, h := range hits {
		if h.ID == uid {
			continue
		}
		if m := s.user(h.ID); m != nil {
			out = append(out, summaryFromNode(m))
		}
	}
	return out, nil
}

// tagsUsedBy maps tag name to tag node for every tag on a post u published.
func (s *Store) tagsUsedBy(u *Node) map[string]*Node {
	tags := make(map[string]*Node)
	for post := range Filter(s.g.Neighbors(u, constants.RelPublished, Outgoing), HasLabel(constants.LabelPost)) {
		for tag := range s.g.Neighbors(post, constants.RelTagged, Incoming) {
			tags[tag.String("name")] = tag
		}
	}
	return tags
}

func visibleTo(permission string, isFriend bool) bool {
	switch permission {
	case constants.PermissionPrivate:
		return false
	case constants.PermissionFriends:
		return isFriend
	default:
		return true
	}
}

func sortSummaries(out []social.UserSummary) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
}

func sortFriendDiaries(out []social.FriendDiary) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Diary.CreatedAt != out[j].Diary.CreatedAt {
			return out[i].Diary.CreatedAt > out[j].Diary.CreatedAt
		}
		return out[i].Diary.ID < out[j].Diary.ID
	})
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
