package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/auth"
	"github.com/oakmontrealty/voicrm-sydney/internal/config"
	"github.com/oakmontrealty/voicrm-sydney/internal/metrics"
	"github.com/oakmontrealty/voicrm-sydney/internal/sessions"
	"github.com/oakmontrealty/voicrm-sydney/pkg/logger"
	"github.com/oakmontrealty/voicrm-sydney/pkg/tracing"
	"github.com/oakmontrealty/voicrm-sydney/pkg/utils"
)

const janitorInterval = time.Minute

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing := tracing.Init(rootCtx, log, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.App.Env,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		Insecure:     cfg.Tracing.Insecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	})

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Fatal("auth init failed", zap.Error(err))
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxConns: int32(cfg.DB.MaxConns)})
	if err != nil {
		log.Fatal("postgres init failed", zap.Error(err))
	}
	defer db.Close()

	m := metrics.New()
	deps := infra{cfg: cfg, log: log, db: db, metrics: m}

	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("redis init failed", zap.Error(err))
		}
		defer rdb.Close()
		deps.rdb = rdb
	} else {
		log.Info("redis not configured; selection throttle off, sessions in memory")
	}

	app, err := build(rootCtx, deps)
	if err != nil {
		log.Fatal("service wiring failed", zap.Error(err))
	}
	defer app.close()

	go sessions.RunJanitor(rootCtx, app.sessions, janitorInterval, func(evicted, active int, err error) {
		if err != nil {
			log.Warn("session sweep failed", zap.Error(err))
			return
		}
		m.SetActiveStreams(active)
		if evicted > 0 {
			log.Info("expired media sessions evicted", zap.Int("evicted", evicted), zap.Int("active", active))
		}
	})
	go sessions.RunJanitor(rootCtx, app.calls, janitorInterval, func(evicted, active int, err error) {
		if err == nil && evicted > 0 {
			log.Warn("calls dropped without terminal status", zap.Int("evicted", evicted), zap.Int("active", active))
		}
	})

	r := gin.New()
	r.Use(gin.Recovery())
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposeHeaders:    []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(m.Middleware())
	r.Use(logger.Middleware(log))

	registerRoutes(r, app, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	app.close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown failed", zap.Error(err))
	}

	_ = logger.ShutdownFlush(shutdownCtx, log, 2*time.Second)
}
