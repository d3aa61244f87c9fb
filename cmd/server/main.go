// Command server runs the admin backend: the auth HTTP API backed by
// Postgres for credentials and Redis for session state.
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

	"github.com/redis/go-redis/v9"

	"github.com/onicare/admin-backend/internal/auth"
	"github.com/onicare/admin-backend/internal/audit"
	"github.com/onicare/admin-backend/internal/authtoken"
	"github.com/onicare/admin-backend/internal/config"
	"github.com/onicare/admin-backend/internal/httpapi"
	"github.com/onicare/admin-backend/internal/logging"
	"github.com/onicare/admin-backend/internal/metrics"
	"github.com/onicare/admin-backend/internal/store"
	"github.com/onicare/admin-backend/internal/tokencache"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	log := logging.NewDefault(cfg.Env)
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	manager, err := store.NewManager(cfg.AdminDatabaseURL, cfg.AppDSN())
	if err != nil {
		return fmt.Errorf("open databases: %w", err)
	}
	defer manager.Close()

	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	codec, err := authtoken.NewCodec(authtoken.Config{
		Secret:     []byte(cfg.TokenSecret),
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	})
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	reg := metrics.NewRegistry()
	cache := tokencache.NewStore(rdb, log, reg, cfg.AccessTTL())

	// the cache is fail-open, so a dead Redis delays nothing at startup
	if _, err := cache.Ping(ctx); err != nil {
		log.Warn(ctx, "session cache unreachable at startup, continuing fail-open",
			"addr", cfg.RedisAddr, "error", err)
	}

	svc, err := auth.NewService(auth.Deps{
		Users:        manager.AdminUsers(),
		Cache:        cache,
		Codec:        codec,
		Organization: cfg.Organization,
		Logger:       log,
		Audit:        audit.NewJSONWriterSink(os.Stdout),
		Metrics:      reg,
	})
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Auth:        svc,
		Cache:       cache,
		Codec:       codec,
		DB:          manager,
		Metrics:     reg,
		Logger:      log,
		CORSOrigins: cfg.CORSOriginList(),
		Env:         cfg.Env,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
