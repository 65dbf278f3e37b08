package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-bridge/internal/audit"
	"call-bridge/internal/auth"
	"call-bridge/internal/calls"
	"call-bridge/internal/config"
	"call-bridge/internal/crm"
	"call-bridge/internal/httpapi"
	"call-bridge/internal/metrics"
	"call-bridge/internal/ratelimit"
	"call-bridge/internal/registry"
	"call-bridge/internal/routing"
	"call-bridge/internal/telephony"
	"call-bridge/pkg/logger"
	"call-bridge/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/time/rate"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	m := metrics.New()

	store := registry.NewPostgresStore(db)
	resolver := routing.NewResolver(store)
	hubspot := crm.NewHubSpotClient(cfg.CRM.BaseURL, cfg.CRM.Token, cfg.App.UpstreamTimeout)
	twilio := telephony.NewTwilioClient(cfg.Twilio.APIBaseURL, cfg.App.UpstreamTimeout)

	orch := calls.NewOrchestrator(resolver, hubspot, twilio, cfg.App.BaseURL)
	orch.Metrics = m

	rec := calls.NewReconciler(hubspot)
	rec.Failures = audit.NewService(audit.NewPostgresRepo(db))
	rec.Metrics = m

	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		rec.Dedupe = calls.NewRedisDeduper(rdb)
	} else {
		log.Info("redis not configured; recording callbacks are not deduplicated")
	}

	limitCfg := ratelimit.DefaultConfig()
	limitCfg.Rate = rate.Limit(cfg.RateLimit.RPS)
	limitCfg.Burst = cfg.RateLimit.Burst
	limiter := ratelimit.New(limitCfg)
	defer limiter.Stop()

	deps := routeDeps{
		Calls: httpapi.Handlers{
			Tokens:     auth.NewVoiceTokenIssuer(resolver, cfg.Twilio.TwiMLAppSID, cfg.Twilio.VoiceTokenTTL),
			Calls:      orch,
			Recordings: rec,
		},
		Registry:   registry.Handlers{Store: store},
		AdminToken: cfg.Admin.ConfigToken,
		Limiter:    limiter,
		Metrics:    m,
		Health: func(ctx context.Context) error {
			return utils.HealthCheck(ctx, db, 2*time.Second)
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware())
	registerRoutes(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "base_url", cfg.App.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
