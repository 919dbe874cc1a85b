package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"diarymap/backend/internal/social"
)

// Handlers binds the social service to HTTP.
type Handlers struct {
	svc    *social.Service
	tokens *TokenService
}

// NewHandlers creates the handler set.
func NewHandlers(svc *social.Service, tokens *TokenService) *Handlers {
	return &Handlers{svc: svc, tokens: tokens}
}

type registerResponse struct {
	social.RegisterResult
	Token string `json:"token"`
}

// Register resolves the provider profile to an internal user and issues a
// session token for it. Returning users must present their stored
// provider access token.
func (h *Handlers) Register(c *gin.Context) {
	var req social.Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.svc.SignIn(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	token, err := h.tokens.Issue(res.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	status := http.StatusOK
	if res.Registered {
		status = http.StatusCreated
	}
	c.JSON(status, registerResponse{RegisterResult: res, Token: token})
}

// Me returns the caller's own record.
func (h *Handlers) Me(c *gin.Context) {
	uid := currentUser(c)
	u, err := h.svc.FindUserByID(c.Request.Context(), uid)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if u == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"code": ErrCodeNotFound, "error": "user not found: " + uid})
		return
	}
	c.JSON(http.StatusOK, u)
}

// UpdateLocation moves the caller.
func (h *Handlers) UpdateLocation(c *gin.Context) {
	var req struct {
		Latitude  *float64 `json:"latitude" binding:"required"`
		Longitude *float64 `json:"longitude" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.svc.UpdateLocation(c.Request.Context(), currentUser(c), *req.Latitude, *req.Longitude); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// ImportFriends adds the provider friend list of the caller.
func (h *Handlers) ImportFriends(c *gin.Context) {
	var req struct {
		Friends []social.FriendProfile `json:"friends" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.svc.ImportFriends(c.Request.Context(), currentUser(c), req.Friends); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": len(req.Friends)})
}

// ImportLikes adds the provider like list of the caller.
func (h *Handlers) ImportLikes(c *gin.Context) {
	var req struct {
		Likes []social.LikeTarget `json:"likes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.svc.ImportLikes(c.Request.Context(), currentUser(c), req.Likes); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": len(req.Likes)})
}

func (h *Handlers) Friends(c *gin.Context) {
	respond(c, h.svc.FriendsOf)
}

func (h *Handlers) FriendsOfFriends(c *gin.Context) {
	respond(c, h.svc.FriendsOfFriends)
}

func (h *Handlers) CommonLikeUsers(c *gin.Context) {
	respond(c, h.svc.CommonLikeUsers)
}

// CommonLikes lists the targets liked by both the caller and other_id.
func (h *Handlers) CommonLikes(c *gin.Context) {
	other := c.Query("other_id")
	if other == "" {
		badRequest(c, "other_id is required")
		return
	}
	likes, err := h.svc.CommonLikes(c.Request.Context(), currentUser(c), other)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, likes)
}

func (h *Handlers) SimilarUsers(c *gin.Context) {
	respond(c, h.svc.SimilarUsers)
}

func (h *Handlers) Commonality(c *gin.Context) {
	out, err := h.svc.Commonality(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// PublishPost creates a post. Tags arrive comma separated.
func (h *Handlers) PublishPost(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
		Tags  string `json:"tags"`
		Text  string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	post, err := h.svc.PublishPost(c.Request.Context(), currentUser(c), req.Title, req.Tags, req.Text)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handlers) LikePost(c *gin.Context) {
	if err := h.svc.LikePost(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "liked"})
}

func (h *Handlers) RecentPosts(c *gin.Context) {
	posts, err := h.svc.RecentPosts(c.Request.Context(), c.Query("date"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// PublishDiary creates a geotagged diary.
func (h *Handlers) PublishDiary(c *gin.Context) {
	var req struct {
		social.DiaryInput
		Latitude  *float64 `json:"latitude" binding:"required"`
		Longitude *float64 `json:"longitude" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	in := req.DiaryInput
	in.Latitude, in.Longitude = *req.Latitude, *req.Longitude

	diary, err := h.svc.PublishDiary(c.Request.Context(), currentUser(c), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, diary)
}

func (h *Handlers) MyDiaries(c *gin.Context) {
	respond(c, h.svc.UserDiaries)
}

// FriendsDiaries pages the friends' feed. before is a unix timestamp in
// seconds; absent means now.
func (h *Handlers) FriendsDiaries(c *gin.Context) {
	before, ok := floatQuery(c, "before", 0)
	if !ok {
		return
	}
	out, err := h.svc.FriendsDiaries(c.Request.Context(), currentUser(c), before)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) NearbyDiaries(c *gin.Context) {
	km, ok := floatQuery(c, "distance", defaultRadiusKm)
	if !ok {
		return
	}
	out, err := h.svc.NearbyDiaries(c.Request.Context(), currentUser(c), km)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) NearbyMembers(c *gin.Context) {
	km, ok := floatQuery(c, "distance", defaultRadiusKm)
	if !ok {
		return
	}
	out, err := h.svc.NearbyMembers(c.Request.Context(), currentUser(c), km)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// defaultRadiusKm is used when a nearby request names no distance.
const defaultRadiusKm = 1.0

// respond runs a per-user query and writes its result.
func respond[T any](c *gin.Context, query func(ctx context.Context, uid string) ([]T, error)) {
	out, err := query(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if out == nil {
		out = []T{}
	}
	c.JSON(http.StatusOK, out)
}

func floatQuery(c *gin.Context, name string, def float64) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		badRequest(c, name+" must be a number")
		return 0, false
	}
	return v, true
}
