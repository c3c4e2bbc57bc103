package routes

import (
	"net/http"
	"strings"
	"time"

	"devconnector/handlers"
	"devconnector/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Options carries what the router needs beyond the handlers.
type Options struct {
	JWTSecret   string
	CORSOrigins []string
	// Limiter throttles /api per client IP. Nil disables rate limiting.
	Limiter middleware.Limiter
	// Activity serves the websocket feed. Nil leaves /ws unrouted.
	Activity gin.HandlerFunc
}

func SetupRouter(h *handlers.Handler, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})
	if opts.Activity != nil {
		router.GET("/ws", opts.Activity)
	}

	api := router.Group("/api")
	if opts.Limiter != nil {
		api.Use(middleware.RateLimit(opts.Limiter))
	}
	auth := middleware.JWTAuth(opts.JWTSecret)

	users := api.Group("/users")
	users.GET("/test", h.UsersTest)
	users.POST("/register", h.Register)
	users.POST("/login", h.Login)
	users.GET("/current", auth, h.CurrentUser)

	// Public profile lookups
	profile := api.Group("/profile")
	profile.GET("/handle/:handle", h.ProfileByHandle)
	profile.GET("/user/:userId", h.ProfileByUser)
	profile.GET("/all", h.AllProfiles)

	profile.GET("", auth, h.CurrentProfile)
	profile.POST("", auth, h.UpsertProfile)
	profile.DELETE("", auth, h.DeleteAccount)
	profile.POST("/experience", auth, h.AddExperience)
	profile.DELETE("/experience/:id", auth, h.DeleteExperience)
	profile.POST("/education", auth, h.AddEducation)
	profile.DELETE("/education/:id", auth, h.DeleteEducation)

	posts := api.Group("/posts", auth)
	posts.GET("", h.ListPosts)
	posts.GET("/:id", h.GetPost)
	posts.POST("", h.CreatePost)
	posts.DELETE("/:id", h.DeletePost)
	posts.POST("/like/:id", h.LikePost)
	posts.POST("/unlike/:id", h.UnlikePost)
	posts.POST("/comment/:id", h.AddComment)
	posts.DELETE("/comment/:id/:commentId", h.DeleteComment)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Endpoint not found",
				"path":  c.Request.URL.Path,
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}
