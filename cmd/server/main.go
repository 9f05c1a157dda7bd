// Command server runs the Veil HTTP API and, when enabled, the in-process
// sweep/reconcile scheduler.
//
// @title                      Veil API
// @version                    1.0
// @description                Daily anonymous pairing: chat, vote, then reveal or wipe.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/veil-backend/internal/broker"
	"github.com/tbourn/veil-backend/internal/clock"
	"github.com/tbourn/veil-backend/internal/config"
	httpapi "github.com/tbourn/veil-backend/internal/http"
	"github.com/tbourn/veil-backend/internal/observability"
	"github.com/tbourn/veil-backend/internal/repo"
	"github.com/tbourn/veil-backend/internal/scheduler"
	"github.com/tbourn/veil-backend/internal/services"
	"github.com/tbourn/veil-backend/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	sysutil.SetupLogging(sysutil.NewLogger(os.Stderr, cfg.LogPretty, cfg.OTEL.ServiceName), cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	if err := run(ctx, cfg, ver); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config, ver string) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	log.Info().Str("driver", cfg.DB.Driver).Msg("database ready")

	deps := services.Deps{DB: db, Clock: clock.System{}, Publisher: broker.NopPublisher{}}
	var locker broker.Locker
	if cfg.Redis.Enabled() {
		rdb, err := broker.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		bcfg := &broker.Config{RedisClient: rdb}
		pub, err := broker.NewRedisPublisher(bcfg)
		if err != nil {
			return err
		}
		rl, err := broker.NewRedisLocker(bcfg)
		if err != nil {
			return err
		}
		deps.Publisher, locker = pub, rl
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis broker connected")
	}

	svc := httpapi.NewServices(deps, cfg, locker)

	r := gin.New()
	httpapi.RegisterRoutes(r, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if cfg.Scheduler.Enabled {
		sched := &scheduler.Scheduler{
			Sweep:     svc.Sweep,
			Reconcile: svc.Reconcile,
			Calc:      cfg.Cycle.Calculator(),
			Clock:     deps.Clock,
			Interval:  cfg.Scheduler.ReconcileInterval,
		}
		go func() {
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("scheduler stopped")
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", ver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
