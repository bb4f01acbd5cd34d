package http

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callrelay/internal/adapters/rtc"
	"github.com/dkeye/callrelay/internal/adapters/signal"
	"github.com/dkeye/callrelay/internal/app/orch"
	"github.com/dkeye/callrelay/internal/config"
	"github.com/dkeye/callrelay/internal/observability"
)

const clientTokenKey = "ct"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware gives every browser a stable token kept in the
// signed session cookie. It is used for log correlation only.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// OriginChecker mirrors the CORS origin list for the WebSocket upgrade.
func OriginChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(observability.RequestLogger(log.Logger))
	}
	r.Use(gin.Recovery())
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CallRelaySessions", store))
	r.Use(ClientTokenMiddleware())

	index := filepath.Join(cfg.StaticPath, "index.html")
	if _, err := os.Stat(index); err == nil {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(index)
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:   cfg.ReadLimit,
		PingPeriod:  cfg.PingPeriod,
		PongWait:    cfg.PongWait,
		WriteWait:   cfg.WriteWait,
		SendBuffer:  cfg.SendBuffer,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		CheckOrigin: OriginChecker(cfg.AllowedOrigins),
	})
	handleWS := func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c.Writer, c.Request, c.GetString("client_token"))
	}
	iceServers := rtc.ICEServers(cfg.ICEServers)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", handleWS)

	api := r.Group("/api")
	api.GET("/ws/signal", handleWS)
	api.GET("/users", func(c *gin.Context) {
		ids, version := o.Users()
		c.JSON(http.StatusOK, gin.H{"identifiers": ids, "version": version})
	})
	api.GET("/calls", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"calls": o.CallsSnapshot()})
	})
	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceServers})
	})

	return r
}
