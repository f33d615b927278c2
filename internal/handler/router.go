package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xxxsen/tribute/internal/middleware"
	"github.com/xxxsen/tribute/internal/ratelimit"
)

type RouterDeps struct {
	Shares         *ShareHandler
	Comments       *CommentHandler
	Resources      *ResourceHandler
	Public         *PublicHandler
	CommentLimiter ratelimit.Limiter
	JWTSecret      []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/shares", deps.Shares.Create)
	authGroup.GET("/shares", deps.Shares.ListByResource)
	authGroup.GET("/shares/:id", deps.Shares.Get)
	authGroup.PUT("/shares/:id", deps.Shares.Update)
	authGroup.DELETE("/shares/:id", deps.Shares.Revoke)
	authGroup.POST("/shares/:id/invite", deps.Shares.Invite)
	authGroup.GET("/entries/:id/shares", deps.Shares.ListByEntry)

	authGroup.GET("/documents/:id/comments", deps.Comments.List)
	authGroup.POST("/documents/:id/comments", middleware.RateLimit(deps.CommentLimiter), deps.Comments.Create)
	authGroup.DELETE("/comments/:id", deps.Comments.Delete)

	authGroup.PUT("/documents/:id/comments-enabled", deps.Resources.SetCommentsEnabled)
	authGroup.GET("/entries/:id/images", deps.Resources.ListEntryImages)
	authGroup.DELETE("/images/:id", deps.Resources.DeleteImage)

	public := api.Group("/public/share/:id")
	public.GET("", deps.Public.Get)
	public.POST("/unlock", deps.Public.Unlock)
	public.GET("/comments", deps.Public.ListComments)
	public.POST("/comments", middleware.RateLimit(deps.CommentLimiter), deps.Public.CreateComment)
	public.PUT("/commenter", deps.Public.Rename)
	public.GET("/image", deps.Public.Image)
}
