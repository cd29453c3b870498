package main

import (
	"context"
	"database/sql"
	"huddle/internal/app/dispatch"
	"huddle/internal/app/registry"
	"huddle/internal/app/server"
	"huddle/internal/app/server/session"
	"huddle/internal/config"
	"huddle/internal/core/services"
	"huddle/internal/platform/logger"
	"huddle/internal/platform/telemetry"
	"huddle/internal/plugins/postgres"
	redisPlugin "huddle/internal/plugins/redis"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		if otelShutdown == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	defer pdb.Close()
	log.Info("postgres connected")

	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, "err", err)
		return
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	userRepo := postgres.NewUserRepo(pdb)
	channelRepo := postgres.NewChannelRepo(pdb)
	membershipRepo := postgres.NewMembershipRepo(pdb)
	msgRepo := postgres.NewMessageRepo(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb)
	txManager := postgres.NewTxManager(pdb)

	// Realtime core
	reg := registry.NewRegistry()
	dispatcher := dispatch.NewDispatcher(log, reg)

	// Services
	tokenSvc := services.NewTokenService(cfg.SecretToken)
	userSvc := services.NewUserService(log, userRepo)
	channelSvc := services.NewChannelService(log, channelRepo, membershipRepo, txManager)
	msgSvc := services.NewMessageService(log, msgRepo, userRepo, membershipRepo, txManager)

	sessionDeps := session.Deps{
		Log:        log,
		Verifier:   tokenSvc,
		Registry:   reg,
		Dispatcher: dispatcher,
		Membership: membershipRepo,
		Messages:   msgSvc,
		Presence:   presStore,
		WS:         cfg.WS,
	}

	srv := server.NewServer(log, cfg, userSvc, tokenSvc, channelSvc, msgSvc, dispatcher, presStore, sessionDeps)
	if err := srv.Start(ctx); err != nil {
		log.Error("server stopped", "err", err)
	}
}
