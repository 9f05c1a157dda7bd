// Package httpapi wires the Gin engine to the Veil services, middleware and
// handlers.
//
// Global middleware order:
//  1. OpenTelemetry span per request
//  2. RequestID
//  3. RedactingLogger (stores the request logger in the context)
//  4. Recovery
//  5. body size cap, gzip, Prometheus metrics
//  6. CORS and security headers
//
// Participant routes add Authenticate, then the idempotency validator, then
// the rate limiter, so the latter two can key on the resolved participant.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/veil-backend/docs" // registers the OpenAPI document with swag
	"github.com/tbourn/veil-backend/internal/broker"
	"github.com/tbourn/veil-backend/internal/config"
	"github.com/tbourn/veil-backend/internal/http/handlers"
	"github.com/tbourn/veil-backend/internal/http/middleware"
	"github.com/tbourn/veil-backend/internal/services"
)

const maxBodyBytes = 1 << 20

// Services is the set of application services the routes call into.
type Services struct {
	Matches      *services.MatchService
	Participants *services.ParticipantService
	Messages     *services.MessageService
	Votes        *services.VoteService
	Sweep        *services.SweepService
	Reconcile    *services.ReconcileService
}

// NewServices builds every service over the same dependencies. locker may be
// nil, in which case sweeps rely on the database alone.
func NewServices(deps services.Deps, cfg config.Config, locker broker.Locker) Services {
	calc := cfg.Cycle.Calculator()
	return Services{
		Matches:      &services.MatchService{Deps: deps, Calc: calc},
		Participants: &services.ParticipantService{Deps: deps},
		Messages: &services.MessageService{
			Deps:           deps,
			MaxRunes:       cfg.Cycle.MaxMessageRunes,
			IdempotencyTTL: cfg.IdempotencyTTL,
		},
		Votes:     &services.VoteService{Deps: deps},
		Sweep:     &services.SweepService{Deps: deps, Calc: calc, Locker: locker, LockTTL: cfg.Scheduler.SweepLockTTL},
		Reconcile: &services.ReconcileService{Deps: deps},
	}
}

// RegisterRoutes attaches the middleware chain and every endpoint to r.
func RegisterRoutes(r *gin.Engine, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	useCORS(r, cfg.CORS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := &handlers.Handlers{
		Matches:      svc.Matches,
		Participants: svc.Participants,
		Messages:     svc.Messages,
		Votes:        svc.Votes,
		Sweep:        svc.Sweep,
		Reconcile:    svc.Reconcile,
		Clock:        svc.Matches.Clock,
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.GET("/phase", h.GetPhase)

	rl := middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:   cfg.RateRPS,
		Burst: cfg.RateBurst,
		Key:   middleware.KeyByParticipantOrIP(),
	})
	me := api.Group("",
		middleware.Authenticate(middleware.AuthOptions{JWTSecret: cfg.Auth.JWTSecret}),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{Clock: svc.Matches.Clock}, svc.Messages.HasReplay),
		rl.Handler(),
	)
	{
		me.POST("/participants/me", h.Enroll)
		me.GET("/participants/me", h.Me)
		me.GET("/matches/current", h.CurrentMatch)
		me.GET("/matches/:id/messages", h.ListMessages)
		me.POST("/matches/:id/messages", h.PostMessage)
		me.POST("/matches/:id/votes", h.CastVote)
		me.GET("/matches/:id/votes", h.VoteStatus)
	}

	// Without a cron secret the admin surface does not exist.
	if cfg.Auth.CronSecret != "" {
		admin := api.Group("/admin", middleware.CronSecret(cfg.Auth.CronSecret))
		admin.POST("/sweep", h.RunSweep)
		admin.POST("/reconcile", h.RunReconcile)
	}
}

// useCORS installs gin-contrib/cors. With no allowlist every origin is
// accepted and credentials stay off; otherwise only listed origins are echoed.
func useCORS(r *gin.Engine, cc config.CORSConfig) {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
			middleware.HeaderUserID, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{"X-Request-ID", "ETag", handlers.HeaderReplayed, "Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	if len(cc.AllowedOrigins) == 0 {
		// Set ACAO even without an Origin header so plain requests see it too.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		base.AllowAllOrigins = true
		r.Use(cors.New(base))
		return
	}

	allowed := make(map[string]struct{}, len(cc.AllowedOrigins))
	for _, o := range cc.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	base.AllowOrigins = cc.AllowedOrigins
	r.Use(cors.New(base))
}

// limitBody caps request bodies at maxBytes; reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
