package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/auth"
	"github.com/cyberclick/backend/internal/config"
	"github.com/cyberclick/backend/internal/handlers"
	"github.com/cyberclick/backend/internal/jobs"
	"github.com/cyberclick/backend/internal/ledger"
	"github.com/cyberclick/backend/internal/middleware"
	"github.com/cyberclick/backend/internal/repository"
	"github.com/cyberclick/backend/internal/router"
	"github.com/cyberclick/backend/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel())
	if cfg.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st        store.Store
		stopJobs  func()
		startJobs func(context.Context, ledger.Service) (func(), error)
	)

	if cfg.DatabaseURL != "" {
		pool := openPool(ctx, cfg, logger)
		defer pool.Close()
		st = repository.NewPostgres(pool, logger)
		startJobs = func(ctx context.Context, led ledger.Service) (func(), error) {
			return startRiver(ctx, pool, led, cfg.AccrualSweepCron, logger)
		}
	} else {
		logger.Warn("DATABASE_URL not set, using the in-memory store; state is lost on restart")
		st = store.NewMemory()
		startJobs = func(_ context.Context, led ledger.Service) (func(), error) {
			return startScheduler(led, cfg.AccrualSweepCron, logger)
		}
	}

	led := ledger.NewService(st, cfg.Ledger(), logger)

	stopJobs, err = startJobs(ctx, led)
	if err != nil {
		logger.WithError(err).Fatal("Failed to start accrual sweep")
	}
	defer stopJobs()

	authSvc := auth.NewService(st, led, auth.Options{
		Secret:            cfg.JWTSecret,
		TokenTTL:          cfg.TokenTTL,
		AdminMobile:       cfg.AdminMobile,
		AdminPasswordHash: cfg.AdminPasswordHash,
	})

	keys, closeKeys := idempotencyStore(ctx, cfg, logger)
	defer closeKeys()

	handler := router.New(router.Deps{
		Auth:           auth.NewHandler(authSvc, logger),
		Tokens:         authSvc,
		Accounts:       &handlers.AccountHandler{Ledger: led, Logger: logger},
		Admin:          &handlers.AdminHandler{Ledger: led, Logger: logger},
		Catalog:        &handlers.CatalogHandler{Ledger: led},
		Idempotency:    keys,
		IdempotencyTTL: cfg.IdempotencyTTL,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           http.TimeoutHandler(handler, cfg.RequestTimeout, `{"error":"timeout","message":"request timed out"}`),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP shutdown failed")
	}
}

func openPool(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *pgxpool.Pool {
	migrator, err := repository.NewMigrator(cfg.DatabaseURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migrator")
	}
	if err := migrator.Up(); err != nil {
		logger.WithError(err).Fatal("Schema migration failed")
	}
	_ = migrator.Close()

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("Invalid DATABASE_URL")
	}
	poolCfg.MaxConns = cfg.DBMaxConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.WithError(err).Fatal("Unable to create database pool")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("Cannot reach PostgreSQL")
	}
	logger.Info("Connected to PostgreSQL")
	return pool
}

func startRiver(ctx context.Context, pool *pgxpool.Pool, led ledger.Service, cronSpec string, logger *logrus.Logger) (func(), error) {
	if err := jobs.MigrateRiver(ctx, pool, logger); err != nil {
		return nil, err
	}
	client, err := jobs.NewRiverClient(pool, led, cronSpec, logger)
	if err != nil {
		return nil, err
	}
	if err := client.Start(ctx); err != nil {
		return nil, err
	}
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("River client did not stop cleanly")
		}
	}, nil
}

func startScheduler(led ledger.Service, cronSpec string, logger *logrus.Logger) (func(), error) {
	if cronSpec == "" {
		return func() {}, nil
	}
	sched, err := jobs.NewScheduler(led, cronSpec, logger)
	if err != nil {
		return nil, err
	}
	sched.Start()
	return sched.Stop, nil
}

func idempotencyStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (middleware.KeyStore, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, idempotency keys are kept in memory")
		return middleware.NewMemoryKeyStore(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("Cannot reach Redis")
	}
	return middleware.NewRedisKeyStore(client, "cyberclick:idem:"), func() { _ = client.Close() }
}
