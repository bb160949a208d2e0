package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextmessage/backend/internal/middleware"
	"github.com/nextmessage/backend/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services are the dependencies the HTTP layer is built from.
type Services struct {
	Profiles      *service.Profiles
	Messages      *service.Messages
	Groups        *service.Groups
	Conversations *service.Conversations
}

type RouterOptions struct {
	Tokens         middleware.TokenValidator
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
	MaxUploadBytes int64
}

// NewRouter wires every route onto a fresh engine.
func NewRouter(svc Services, opts RouterOptions) *gin.Engine {
	authHandler := NewAuthHandler(svc.Profiles)
	userHandler := NewUserHandler(svc.Profiles)
	msgHandler := NewMessageHandler(svc.Messages)
	imageHandler := NewImageHandler(svc.Messages)
	convHandler := NewConversationHandler(svc.Conversations)
	groupHandler := NewGroupHandler(svc.Groups)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORSMiddleware(opts.AllowedOrigins))
	if opts.MaxUploadBytes > 0 {
		// multipart parts beyond this spill to disk
		router.MaxMultipartMemory = opts.MaxUploadBytes
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limit := func(action string) gin.HandlerFunc {
		if opts.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimitMiddleware(opts.RateLimiter, action)
	}

	// Protected routes
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(opts.Tokens, svc.Profiles))
	{
		api.POST("/auth/signup", authHandler.Signup)
		api.GET("/me", authHandler.GetMe)

		// User routes
		api.GET("/users/profile", userHandler.GetProfile)
		api.PUT("/users/profile", userHandler.UpdateProfile)
		api.GET("/users/bulk", userHandler.GetBulk)
		api.GET("/users/search", userHandler.Search)

		// Direct message routes
		api.GET("/messages", msgHandler.GetMessages)
		api.POST("/messages", limit("direct_message"), msgHandler.SendMessage)
		api.POST("/messages/read", msgHandler.MarkRead)
		api.POST("/messages/clear", msgHandler.Clear)

		// Conversation routes
		api.GET("/conversations", convHandler.GetConversations)
		api.GET("/conversations/groups", convHandler.GetGroupConversations)

		// Group routes
		api.POST("/groups", groupHandler.CreateGroup)
		api.GET("/groups", groupHandler.ListGroups)
		api.GET("/groups/search", groupHandler.SearchGroups)
		api.GET("/groups/:id", groupHandler.GetGroup)
		api.PUT("/groups/:id", groupHandler.UpdateGroup)
		api.POST("/groups/:id/members", groupHandler.AddMember)
		api.DELETE("/groups/:id/members/:user_id", groupHandler.RemoveMember)
		api.GET("/groups/:id/messages", groupHandler.GetMessages)
		api.POST("/groups/:id/messages", limit("group_message"), groupHandler.SendMessage)
		api.POST("/groups/:id/read", groupHandler.MarkRead)

		// Image routes
		api.POST("/upload/image", limit("upload"), imageHandler.Upload)
		api.GET("/images/:id", imageHandler.Get)
	}

	return router
}
