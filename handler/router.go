package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/AnTengye/contractchat/middleware"
	"github.com/AnTengye/contractchat/service"
	"github.com/gin-gonic/gin"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Tokens    *service.TokenStore
	Session   *service.Session
	Premium   *service.PremiumReconciler
	Checkout  *service.Checkout
	Selection *service.Selection
	Sources   []service.FileSource
	Uploader  *service.Uploader
	Manifests *service.ManifestStore
	Browser   *service.JobBrowser
	Chat      *service.ChatPane
	Throttle  *middleware.Throttle
	StaticDir string
}

// NewRouter builds the gin engine with the full middleware chain and every
// route.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cacheMiddleware())

	// the next user must not see anything the previous one left behind
	d.Session.OnSignOut(d.Selection.StartOver, d.Chat.Close, d.Browser.Reset, d.Manifests.Clear)

	authHandler := NewAuthHandler(d.Session, d.Premium, d.Tokens)
	callbackHandler := NewCallbackHandler(d.Session, authHandler)
	premiumHandler := NewPremiumHandler(d.Premium, d.Checkout)
	uploadHandler := NewUploadHandler(d.Selection, d.Uploader, d.Manifests, d.Sources...)
	jobsHandler := NewJobsHandler(d.Browser, d.Chat)
	chatHandler := NewChatHandler(d.Chat)

	throttled := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if d.Throttle == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{d.Throttle.Handler(), h}
	}

	if d.StaticDir != "" {
		router.Static("/static", d.StaticDir)
	}

	router.GET("/", callbackHandler.HandleEntry)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/auth/google", authHandler.Login)

	// Public routes
	api := router.Group("/api")
	{
		api.GET("/session", authHandler.Session)
		api.POST("/auth/logout", authHandler.Logout)
		api.GET("/auth/token", authHandler.Token)
		api.GET("/status", throttled(authHandler.Status)...)
	}

	// Routes that need a signed-in user
	protected := api.Group("/")
	protected.Use(middleware.RequireSession(d.Session))
	{
		protected.GET("/premium", premiumHandler.Get)
		protected.POST("/premium/refresh", throttled(premiumHandler.Refresh)...)
		protected.POST("/payments/checkout", throttled(premiumHandler.Checkout)...)

		protected.POST("/selection", uploadHandler.Pick)
		protected.GET("/selection", uploadHandler.Selection)
		protected.PATCH("/selection/files/:index", uploadHandler.Toggle)
		protected.POST("/selection/toggle-all", uploadHandler.ToggleAll)
		protected.DELETE("/selection", uploadHandler.StartOver)

		protected.POST("/uploads", throttled(uploadHandler.Upload)...)
		protected.GET("/uploads", uploadHandler.ListManifests)
		protected.GET("/uploads/:id", uploadHandler.GetManifest)
		protected.POST("/analyze", throttled(uploadHandler.Analyze)...)

		protected.GET("/jobs", jobsHandler.List)
		protected.POST("/jobs/:job/toggle", jobsHandler.Toggle)
		protected.POST("/jobs/:job/select", jobsHandler.Select)

		protected.POST("/chat/open", chatHandler.Open)
		protected.GET("/chat", chatHandler.Get)
		protected.POST("/chat/messages", throttled(chatHandler.Send)...)
		protected.DELETE("/chat", chatHandler.Close)
	}

	return router
}

// cacheMiddleware keeps API answers out of caches; they carry the session.
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if strings.HasPrefix(path, "/api") || path == "/" {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		} else if strings.HasPrefix(path, "/static/") {
			c.Header("Cache-Control", "public, max-age=3600, must-revalidate")
		}

		c.Next()
	}
}
