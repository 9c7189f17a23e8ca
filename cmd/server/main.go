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

	"github.com/Mtaasisi/NEON-POS-sub042/internal/config"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/infra"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/router"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/service"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, infra.DatabaseOptions{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Only storage outages move the breaker; drift reports do not.
	breaker := infra.NewBreaker(infra.BreakerConfig{
		Name:           "stock-audit",
		CountsAsFailed: func(err error) bool { return errors.Is(err, service.ErrUnavailable) },
	})

	variantRepo := repository.NewVariantRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	stockSvc := service.NewStockService(variantRepo, movementRepo, cfg.AuditBatchSize)

	auditor := worker.NewAuditor(stockSvc, rdb, breaker)
	worker.StartWorkerPool(ctx, rdb, auditor.Handlers(), cfg.WorkerPoolSize)
	worker.StartAuditCron(ctx, auditor, time.Duration(cfg.AuditIntervalMinutes)*time.Minute)

	limiter := router.DefaultLimiter()
	go limiter.RunPurge(ctx, 5*time.Minute)

	r := router.New(cfg, router.Deps{
		DB:         db,
		Redis:      rdb,
		Breaker:    breaker,
		Auditor:    auditor,
		Dispatcher: worker.NewDispatcher(rdb),
		Limiter:    limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("inventory service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	_ = rdb.Close()
	log.Info().Msg("server exited")
}

