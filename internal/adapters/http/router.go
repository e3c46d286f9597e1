package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Interview/internal/adapters/signal"
	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/app/orch"
	"github.com/dkeye/Interview/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware keeps an anonymous client token in the cookie session.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			s.Set(clientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// RateLimitMiddleware throttles websocket upgrades per client.
func RateLimitMiddleware(rl *app.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(clientTokenKey)
		if key == "" {
			key = c.ClientIP()
		}
		if !rl.Allow(key) {
			log.Warn().Str("module", "adapters.http").Str("client", key).Msg("join rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many connection attempts"})
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, limiter *app.RateLimiter) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("InterviewSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{orch: o}
	r.GET("/healthz", h.health)

	ctrl := signal.NewSignalWSController(o, cfg.WS)
	ws := func(c *gin.Context) { ctrl.HandleSignal(ctx, c) }
	r.GET("/ws", RateLimitMiddleware(limiter), ws)
	r.GET("/ws/", RateLimitMiddleware(limiter), ws)

	api := r.Group("/api")
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id", h.getRoom)
	api.DELETE("/rooms/:id", h.evictRoom)

	api.GET("/connections", h.listConnections)
	api.GET("/connections/:sid", h.getConnection)
	api.DELETE("/connections/:sid", h.kickConnection)

	api.POST("/sessions", h.createSession)
	api.GET("/sessions", h.listSessions)
	api.GET("/sessions/:code", h.getSession)
	api.DELETE("/sessions/:code", h.deleteSession)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
