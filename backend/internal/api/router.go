// Package api exposes the social service over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"diarymap/backend/internal/social"
	"diarymap/backend/pkg/logger"
)

// RouterConfig carries what NewRouter needs besides the service.
type RouterConfig struct {
	Tokens         *TokenService
	Logger         *zap.Logger
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	// Health reports backend readiness; nil means always healthy.
	Health func(context.Context) error
}

// NewRouter builds the engine with every route mounted.
func NewRouter(svc *social.Service, cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("http")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(Metrics())
	router.Use(RequestLogger(cfg.Logger))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	router.GET("/health", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request.Context()); err != nil {
				cfg.Logger.Warn("Health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := NewHandlers(svc, cfg.Tokens)
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	v1 := router.Group("/api/v1")
	v1.POST("/register", limiter.Handler(), h.Register)

	authed := v1.Group("", RequireAuth(cfg.Tokens), limiter.Handler())
	{
		authed.GET("/me", h.Me)
		authed.POST("/me/location", h.UpdateLocation)
		authed.POST("/me/friends", h.ImportFriends)
		authed.POST("/me/likes", h.ImportLikes)

		authed.GET("/friends/me", h.Friends)
		authed.GET("/friends/friends-of-friends", h.FriendsOfFriends)
		authed.GET("/friends/common-likes/users", h.CommonLikeUsers)
		authed.GET("/friends/common-likes", h.CommonLikes)

		authed.GET("/users/similar", h.SimilarUsers)
		authed.GET("/users/:id/commonality", h.Commonality)

		authed.POST("/posts", h.PublishPost)
		authed.POST("/posts/:id/like", h.LikePost)
		authed.GET("/posts/recent", h.RecentPosts)

		authed.POST("/diaries", h.PublishDiary)
		authed.GET("/diaries/me", h.MyDiaries)
		authed.GET("/diaries/friends", h.FriendsDiaries)
		authed.GET("/diaries/nearby", h.NearbyDiaries)

		authed.GET("/members/nearby", h.NearbyMembers)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
