package social

import (
	"context"
	"crypto/subtle"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"diarymap/backend/internal/constants"
	"diarymap/backend/internal/geo"
	apperrors "diarymap/backend/pkg/errors"
	"diarymap/backend/pkg/logger"
)

// DefaultImportConcurrency bounds parallel writes during friend/like imports.
const DefaultImportConcurrency = 8

// Service is the entry point used by the HTTP layer and the CLIs.
type Service struct {
	store             Store
	logger            *zap.Logger
	now               func() time.Time
	importConcurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for created_at and date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithImportConcurrency sets how many friend/like writes run at once.
func WithImportConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.importConcurrency = n
		}
	}
}

// NewService creates a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:             store,
		logger:            logger.Named("social"),
		now:               time.Now,
		importConcurrency: DefaultImportConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// ============================================================================
// Identity
// ============================================================================

// Register maps an external identity to an internal user id. See
// RegisterResult for the three possible outcomes.
func (s *Service) Register(ctx context.Context, p Profile) (res RegisterResult, err error) {
	defer func(start time.Time) { observe("register", start, err) }(time.Now())

	p.ExternalID = strings.TrimSpace(p.ExternalID)
	if p.ExternalID == "" {
		return RegisterResult{}, apperrors.NewValidationFailed("fb_id", "must not be empty")
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("failed to allocate user id: %w", err)
	}

	res, err = s.store.Register(ctx, p, id.String())
	if err != nil {
		return RegisterResult{}, err
	}
	registrations.WithLabelValues(string(res.Outcome)).Inc()

	s.logger.Info("Register resolved",
		zap.String("fb_id", p.ExternalID),
		zap.String("user_id", res.ID),
		zap.String("outcome", string(res.Outcome)),
	)
	return res, nil
}

// SignIn is Register for untrusted callers. The provider access token is
// mandatory, and a caller resolving to an already registered user must
// present the token stored for that user.
func (s *Service) SignIn(ctx context.Context, p Profile) (RegisterResult, error) {
	if strings.TrimSpace(p.AccessToken) == "" {
		return RegisterResult{}, apperrors.NewValidationFailed("access_token", "must not be empty")
	}

	res, err := s.Register(ctx, p)
	if err != nil || res.Outcome != OutcomeAlreadyRegistered {
		return res, err
	}

	u, err := s.store.FindUserByID(ctx, res.ID)
	if err != nil {
		return RegisterResult{}, err
	}
	if u == nil || u.AccessToken == "" ||
		subtle.ConstantTimeCompare([]byte(u.AccessToken), []byte(p.AccessToken)) != 1 {
		s.logger.Warn("Sign-in rejected",
			zap.String("fb_id", strings.TrimSpace(p.ExternalID)),
			zap.String("user_id", res.ID),
		)
		return RegisterResult{}, apperrors.NewUnauthorized("access token mismatch", nil)
	}
	return res, nil
}

// FindUserByID returns the user or nil when absent.
func (s *Service) FindUserByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, nil
	}
	return s.store.FindUserByID(ctx, id)
}

// FindUserByExternalID returns the user or nil when absent.
func (s *Service) FindUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	if externalID == "" {
		return nil, nil
	}
	return s.store.FindUserByExternalID(ctx, externalID)
}

// ============================================================================
// Mutations
// ============================================================================

// AddFriend links uid to the friend identified by its external id, creating a
// stub user for friends who have not registered yet.
func (s *Service) AddFriend(ctx context.Context, uid string, friend FriendProfile) (err error) {
	defer func(start time.Time) { observe("add_friend", start, err) }(time.Now())

	if err := requireUID(uid); err != nil {
		return err
	}
	if friend.ExternalID = strings.TrimSpace(friend.ExternalID); friend.ExternalID == "" {
		return apperrors.NewValidationFailed("friend.id", "must not be empty")
	}
	return s.store.AddFriend(ctx, uid, friend)
}

// AddLike records that uid likes an external target.
func (s *Service) AddLike(ctx context.Context, uid string, like LikeTarget) (err error) {
	defer func(start time.Time) { observe("add_like", start, err) }(time.Now())

	if err := requireUID(uid); err != nil {
		return err
	}
	if like.ID = strings.TrimSpace(like.ID); like.ID == "" {
		return apperrors.NewValidationFailed("like.id", "must not be empty")
	}
	return s.store.AddLike(ctx, uid, like)
}

// ImportFriends adds every friend of the provider friend list.
func (s *Service) ImportFriends(ctx context.Context, uid string, friends []FriendProfile) error {
	if err := s.requireUser(ctx, uid); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.importConcurrency)
	for _, f := range friends {
		g.Go(func() error {
			return s.AddFriend(gctx, uid, f)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to import friends: %w", err)
	}

	s.logger.Info("Friends imported", zap.String("user_id", uid), zap.Int("count", len(friends)))
	return nil
}

// ImportLikes adds every like target of the provider like list.
func (s *Service) ImportLikes(ctx context.Context, uid string, likes []LikeTarget) error {
	if err := s.requireUser(ctx, uid); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.importConcurrency)
	for _, l := range likes {
		g.Go(func() error {
			return s.AddLike(gctx, uid, l)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to import likes: %w", err)
	}

	s.logger.Info("Likes imported", zap.String("user_id", uid), zap.Int("count", len(likes)))
	return nil
}

// PublishPost creates a post owned by uid and tags it with the names in
// tagsCSV.
func (s *Service) PublishPost(ctx context.Context, uid, title, tagsCSV, text string) (post *Post, err error) {
	defer func(start time.Time) { observe("publish_post", start, err) }(time.Now())

	if err := requireUID(uid); err != nil {
		return nil, err
	}
	if title = strings.TrimSpace(title); title == "" {
		return nil, apperrors.NewValidationFailed("title", "must not be empty")
	}

	now := s.now().UTC()
	post = &Post{
		ID:        uuid.New().String(),
		Title:     title,
		Text:      text,
		CreatedAt: unixSeconds(now),
		Date:      now.Format(constants.DateLayout),
	}
	if err := s.store.CreatePost(ctx, uid, *post, ParseTags(tagsCSV)); err != nil {
		return nil, err
	}
	return post, nil
}

// LikePost records that uid liked a post.
func (s *Service) LikePost(ctx context.Context, uid, postID string) (err error) {
	defer func(start time.Time) { observe("like_post", start, err) }(time.Now())

	if err := requireUID(uid); err != nil {
		return err
	}
	if postID == "" {
		return apperrors.NewValidationFailed("post_id", "must not be empty")
	}
	return s.store.LikePost(ctx, uid, postID)
}

// PublishDiary creates a geotagged diary owned by uid and indexes it.
func (s *Service) PublishDiary(ctx context.Context, uid string, in DiaryInput) (diary *Diary, err error) {
	defer func(start time.Time) { observe("publish_diary", start, err) }(time.Now())

	if err := requireUID(uid); err != nil {
		return nil, err
	}
	if in.Title = strings.TrimSpace(in.Title); in.Title == "" {
		return nil, apperrors.NewValidationFailed("title", "must not be empty")
	}
	p, err := geo.NewPoint(in.Latitude, in.Longitude)
	if err != nil {
		return nil, apperrors.NewValidationFailed("location", err.Error())
	}
	perm, ok := NormalizePermission(in.Permission)
	if !ok {
		return nil, apperrors.NewValidationFailed("permission", fmt.Sprintf("unknown value %q", in.Permission))
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate diary id: %w", err)
	}

	now := s.now().UTC()
	diary = &Diary{
		ID:         id.String(),
		Title:      in.Title,
		Content:    in.Content,
		CreatedAt:  unixSeconds(now),
		Date:       now.Format(constants.DateLayout),
		Latitude:   p.Lat,
		Longitude:  p.Lon,
		WKT:        p.WKT(),
		Category:   in.Category,
		Location:   in.Location,
		Address:    in.Address,
		Permission: perm,
	}
	if err := s.store.CreateDiary(ctx, uid, *diary); err != nil {
		return nil, err
	}
	return diary, nil
}

// UpdateLocation moves uid to (lat, lon) and re-indexes it.
func (s *Service) UpdateLocation(ctx context.Context, uid string, lat, lon float64) (err error) {
	defer func(start time.Time) { observe("update_location", start, err) }(time.Now())

	if err := requireUID(uid); err != nil {
		return err
	}
	p, err := geo.NewPoint(lat, lon)
	if err != nil {
		return apperrors.NewValidationFailed("location", err.Error())
	}
	return s.store.UpdateLocation(ctx, uid, p)
}

// ============================================================================
// Queries
// ============================================================================

func (s *Service) FriendsOf(ctx context.Context, uid string) ([]UserSummary, error) {
	return s.store.FriendsOf(ctx, uid)
}

func (s *Service) FriendsOfFriends(ctx context.Context, uid string) ([]UserSummary, error) {
	return s.store.FriendsOfFriends(ctx, uid)
}

func (s *Service) CommonLikeUsers(ctx context.Context, uid string) ([]CommonLikeUser, error) {
	return s.store.CommonLikeUsers(ctx, uid)
}

func (s *Service) CommonLikes(ctx context.Context, uid, otherID string) ([]LikeTarget, error) {
	return s.store.CommonLikes(ctx, uid, otherID)
}

// SimilarUsers returns the users sharing the most tags with uid.
func (s *Service) SimilarUsers(ctx context.Context, uid string) ([]SimilarUser, error) {
	return s.store.SimilarUsers(ctx, uid, constants.SimilarUsersLimit)
}

// Commonality reports how other relates to uid.
func (s *Service) Commonality(ctx context.Context, uid, otherID string) (Commonality, error) {
	return s.store.Commonality(ctx, uid, otherID)
}

// RecentPosts lists the latest posts of a calendar day. An empty date means
// today (UTC).
func (s *Service) RecentPosts(ctx context.Context, date string) ([]PostWithTags, error) {
	if date == "" {
		date = s.now().UTC().Format(constants.DateLayout)
	} else if _, err := time.Parse(constants.DateLayout, date); err != nil {
		return nil, apperrors.NewValidationFailed("date", "expected YYYY-MM-DD")
	}
	return s.store.RecentPosts(ctx, date, constants.RecentPostsLimit)
}

// FriendsDiaries pages through the diaries of uid's friends, newest first,
// starting at before. A zero before means now.
func (s *Service) FriendsDiaries(ctx context.Context, uid string, before float64) ([]FriendDiary, error) {
	if before <= 0 {
		before = unixSeconds(s.now())
	}
	return s.store.FriendsDiaries(ctx, uid, before, constants.FriendsDiariesLimit)
}

// UserDiaries lists uid's own diaries, newest first.
func (s *Service) UserDiaries(ctx context.Context, uid string) ([]Diary, error) {
	return s.store.UserDiaries(ctx, uid)
}

// NearbyDiaries finds other users' diaries within radiusKm of uid.
func (s *Service) NearbyDiaries(ctx context.Context, uid string, radiusKm float64) (out []NearbyDiary, err error) {
	defer func(start time.Time) { observe("nearby_diaries", start, err) }(time.Now())

	if err := validateRadius(radiusKm); err != nil {
		return nil, err
	}
	return s.store.NearbyDiaries(ctx, uid, radiusKm)
}

// NearbyMembers finds other users within radiusKm of uid.
func (s *Service) NearbyMembers(ctx context.Context, uid string, radiusKm float64) (out []UserSummary, err error) {
	defer func(start time.Time) { observe("nearby_members", start, err) }(time.Now())

	if err := validateRadius(radiusKm); err != nil {
		return nil, err
	}
	return s.store.NearbyMembers(ctx, uid, radiusKm)
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Service) requireUser(ctx context.Context, uid string) error {
	if err := requireUID(uid); err != nil {
		return err
	}
	u, err := s.store.FindUserByID(ctx, uid)
	if err != nil {
		return err
	}
	if u == nil {
		return apperrors.NewUserNotFound(uid)
	}
	return nil
}

func requireUID(uid string) error {
	if strings.TrimSpace(uid) == "" {
		return apperrors.NewValidationFailed("user_id", "must not be empty")
	}
	return nil
}

func validateRadius(km float64) error {
	if math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
		return apperrors.NewValidationFailed("distance", "must be a non-negative number of kilometres")
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperrors.IsValidation(err):
		return string(apperrors.ErrorTypeValidation)
	case apperrors.IsNotFound(err):
		return string(apperrors.ErrorTypeNotFound)
	case apperrors.IsErrorType(err, apperrors.ErrorTypeStore):
		return string(apperrors.ErrorTypeStore)
	default:
		return "error"
	}
}
