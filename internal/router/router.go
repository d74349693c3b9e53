// internal/router/router.go
package router

import (
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"

	"kbtrial/internal/config"
	"kbtrial/internal/handlers"
	"kbtrial/internal/repository"
	"kbtrial/internal/services"
)

const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:"

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Try again later."})
}

// Setup builds the HTTP host. repo may be nil when no database is configured,
// in which case the admin routes are not registered.
func Setup(log *zap.Logger, cfg *config.Config, runner *services.Runner, repo *repository.Repository) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7,
	})
	router.Use(sessions.Sessions("kbtrial", store))

	router.Use(ParticipantMiddleware(log))
	router.Use(CSRFProtection())

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: contentSecurityPolicy,
	})
	router.Use(func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
	})

	if cfg.Server.AssetDirectory != "" {
		router.Static("/assets", cfg.Server.AssetDirectory)
	}

	sessionHandler := handlers.NewSessionHandler(log, runner)
	protocolHandler := handlers.NewProtocolHandler(runner.Protocol())

	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: uint(cfg.Server.RateLimit),
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": runner.Len()})
	})
	router.GET("/", sessionHandler.Index)
	router.GET("/sessions/:id", sessionHandler.Page)

	api := router.Group("/api")
	{
		api.GET("/protocol", protocolHandler.Show)
		api.POST("/sessions", limiter, sessionHandler.Start)
		api.GET("/sessions/:id", sessionHandler.State)
		api.POST("/sessions/:id/keys", sessionHandler.Keys)
		api.GET("/sessions/:id/results", sessionHandler.Results)
	}

	if repo != nil && cfg.Server.AdminKeyHash != "" {
		adminHandler := handlers.NewAdminHandler(log, repo)
		admin := router.Group("/admin")
		admin.Use(AdminRequired(log, cfg.Server.AdminKeyHash))
		{
			admin.GET("/sessions", adminHandler.ListSessions)
			admin.GET("/sessions/:id/results", adminHandler.SessionResults)
			admin.GET("/sessions/:id/chart", adminHandler.ReactionTimeChart)
		}
	}

	return router
}
