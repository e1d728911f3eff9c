package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"stockledger/internal/cache"
	"stockledger/internal/config"
	"stockledger/internal/db"
	httpapi "stockledger/internal/http"
	"stockledger/internal/lock"
	"stockledger/internal/logging"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").WithError(err).Fatal("config error")
	}
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	opts := []service.Option{service.WithLogger(logger)}
	if cfg.RedisAddress != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			logger.WithError(err).Fatal("redis error")
		}
		defer client.Close()
		opts = append(opts,
			service.WithLocker(lock.NewRedis(client, cfg.LockTTL)),
			service.WithAlertCountCache(cache.NewAlertCount(client, cfg.AlertCountCache)),
		)
		logger.WithField("addr", cfg.RedisAddress).Info("using redis for document locks and alert count cache")
	}

	svc := service.New(store, opts...)
	handler := httpapi.NewHandler(svc, logger)
	router := httpapi.NewRouter(handler)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("stockledger listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
		if closeErr := server.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("force close failed")
		}
	}
}

// openStore uses Postgres when DATABASE_URL is set and falls back to the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.Store, func()) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory store, data is lost on restart")
		return repository.NewMemory(), func() {}
	}

	pool, err := db.NewPool(ctx, db.PoolOptions{
		URL:          cfg.DatabaseURL,
		MaxConns:     int32(cfg.DBMaxConns),
		PingAttempts: cfg.DBPingAttempts,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("database error")
	}
	if err := db.RunMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		logger.WithError(err).Fatal("migration error")
	}
	return repository.New(pool), pool.Close
}
