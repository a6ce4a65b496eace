// Package http exposes the quiz service over REST and WebSocket.
package http

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"quiz-agent-service/internal/app"
)

const apiKeyHeader = "X-API-Key"

// RouterConfig wires the handlers. Admin may be nil to leave admin routes out.
type RouterConfig struct {
	Service        *app.QuizService
	Admin          *app.AdminService
	APIKey         string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(cfg.Logger))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Content-Type", "Accept", "Origin", apiKeyHeader},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/health", health(cfg.Service))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := requireAPIKey(cfg.APIKey)
	ws := NewWSHandler(cfg.Service, originChecker(cfg.AllowedOrigins), cfg.Logger)
	r.GET("/ws", auth, ws.ServeWS)

	sessions := NewSessionHandler(cfg.Service)
	v1 := r.Group("/api/v1", auth)
	{
		v1.POST("/sessions", sessions.CreateSession)
		v1.GET("/sessions/:id", sessions.GetSession)
		v1.DELETE("/sessions/:id", sessions.DeleteSession)
		v1.POST("/sessions/:id/extend", sessions.ExtendSession)
		v1.POST("/sessions/:id/start", sessions.StartSession)
		v1.POST("/sessions/:id/input", sessions.SubmitInput)
		v1.POST("/sessions/:id/advance", sessions.Advance)
		v1.GET("/sessions/:id/question", sessions.CurrentQuestion)
		v1.POST("/sessions/:id/rate", sessions.Rate)
		v1.POST("/sessions/:id/participants", sessions.AddParticipant)
		v1.DELETE("/sessions/:id/participants/:pid", sessions.RemoveParticipant)
	}

	if cfg.Admin != nil {
		admin := NewAdminHandler(cfg.Admin)
		g := v1.Group("/admin")
		g.PATCH("/questions/:id", admin.PatchQuestion)
		g.GET("/questions/:id/rating", admin.QuestionRating)
		g.GET("/ratings/low", admin.LowRated)
		g.POST("/generate", admin.Generate)
	}
	return r
}

func health(service *app.QuizService) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, err := service.ActiveCount(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "activeSessions": active})
	}
}

// requireAPIKey checks the shared secret in the X-API-Key header, or the
// apiKey query parameter for browser WebSocket clients. An empty key disables the check.
func requireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(apiKeyHeader)
		if got == "" {
			got = c.Query("apiKey")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
			logger.Error("request failed", fields...)
			return
		}
		logger.Debug("request", fields...)
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
