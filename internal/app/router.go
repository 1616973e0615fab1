package app

import (
	"context"

	"github.com/lostmedia/interaction-service/internal/config"
	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers is everything the router mounts.
type Handlers struct {
	Comments     *CommentHandler
	Reactions    *ReactionHandler
	Interactions *InteractionHandler
	HealthChecks map[string]func(c *gin.Context) error
	RateLimiter  *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	if h.RateLimiter != nil {
		r.Use(h.RateLimiter.Middleware())
		logger.For(context.Background()).Infof("Rate limiting enabled: %d req/sec, burst: %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	auth := middleware.Auth(cfg.JWTSecret)
	optionalAuth := middleware.OptionalAuth(cfg.JWTSecret)

	api := r.Group("/api/v1")
	{
		posts := api.Group("/posts")
		{
			// Public routes
			posts.GET("/:id/comments", h.Comments.GetCommentsByPost)
			posts.GET("/:id/reactions", h.Reactions.GetReactions)
			posts.GET("/:id/reactions/count", h.Reactions.GetReactionCount)
			posts.GET("/:id/interactions", optionalAuth, h.Interactions.GetPostInteractions)

			// Protected routes
			posts.POST("/:id/react", auth, h.Reactions.ReactToPost)
			posts.GET("/:id/react/me", auth, h.Reactions.GetMyReaction)
		}

		comments := api.Group("/comments")
		{
			// Public routes
			comments.GET("/:id/replies", h.Comments.GetReplies)

			// Protected routes
			comments.POST("", auth, h.Comments.CreateComment)
			comments.PUT("/:id", auth, h.Comments.EditComment)
			comments.DELETE("/:id", auth, h.Comments.DeleteComment)
			comments.POST("/:id/like", auth, h.Comments.ToggleLike)
		}
	}

	r.GET("/health", health(h.HealthChecks))

	return r
}
