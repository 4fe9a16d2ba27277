package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/identity"
	"stockledger/internal/infra"
	"stockledger/internal/metrics"
	"stockledger/internal/repository"
	"stockledger/internal/router"
	"stockledger/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	backend := newBackend(cfg)
	codec := newCodec(cfg)
	reg := metrics.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis holds no ledger state: without it the rate limiter falls back to
	// process-local counters and low-stock alerts are not queued.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = infra.NewRedis(cfg.RedisURL); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing without it")
			rdb = nil
		}
	}

	deps := router.Deps{Backend: backend, Codec: codec, Redis: rdb, Metrics: reg}
	var pool *worker.Pool
	if rdb != nil {
		deps.Notifier = worker.NewDispatcher(rdb, reg)
		pool = worker.NewPool(rdb, worker.NewSender(cfg.AlertWebhookURL), reg)
		pool.Start(ctx, cfg.WorkerPoolSize)
	}

	r := router.New(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("store", cfg.StoreDriver).Str("identity", cfg.IdentityMode).Msgf("warehouse API listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	if pool != nil {
		pool.Wait()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}

// setupLogger: dev gets pretty console output, prod gets JSON.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func newBackend(cfg *config.Config) repository.Backend {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("using the in-memory store; data is lost on exit")
		return repository.NewMemoryBackend(nil)
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.DBScopedRole)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	return repository.NewPostgresBackend(db, cfg.DBScopedRole, infra.NewCircuitBreaker(infra.DefaultCBConfig()))
}

func newCodec(cfg *config.Config) identity.TokenCodec {
	if cfg.IdentityMode == config.IdentityModeRemote {
		timeout := time.Duration(cfg.IdentityTimeoutSeconds) * time.Second
		return identity.NewRemoteCodec(cfg.IdentityURL, cfg.IdentityAPIKey, timeout)
	}
	return identity.NewJWTCodec(cfg.JWTSecret, cfg.JWTAudience)
}
