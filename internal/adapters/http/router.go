package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dkeye/vlcsync/internal/adapters/signal"
	"github.com/dkeye/vlcsync/internal/app"
	"github.com/dkeye/vlcsync/internal/config"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PasswordMiddleware requires "Authorization: Bearer <password>" when a relay
// password is configured.
func PasswordMiddleware(password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if password == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(password)) != 1 {
			log.Warn().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("rejected unauthenticated request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ctrl := signal.NewSignalWSController(orch, signal.Options{
		ReadLimit:     cfg.ReadLimit,
		PingPeriod:    cfg.PingPeriod,
		SendBuffer:    cfg.SendBuffer,
		PublishLimit:  cfg.PublishLimit,
		PublishWindow: cfg.PublishWindow,
	})

	api := r.Group("/api", PasswordMiddleware(cfg.Password))

	api.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": orch.Rooms.List()})
	})

	api.GET("/rooms/:name", func(c *gin.Context) {
		name, err := domain.NewRoomName(c.Param("name"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		room, ok := orch.Rooms.Get(name)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"name": name, "member_count": 0, "members": []any{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"name":         name,
			"member_count": room.MemberCount(),
			"members":      room.MembersSnapshot(),
		})
	})

	// Kicks every subscriber and drops the room.
	api.DELETE("/rooms/:name", func(c *gin.Context) {
		name, err := domain.NewRoomName(c.Param("name"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, ok := orch.Rooms.Get(name); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such room"})
			return
		}
		orch.EvictRoom(name)
		log.Info().Str("module", "adapters.http").Str("room", string(name)).Msg("room evicted")
		c.Status(http.StatusNoContent)
	})

	log.Info().Str("module", "adapters.http").Bool("auth", cfg.Password != "").Msg("router setup")
	return r
}
