package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/signcast/internal/broadcast"
	"github.com/pscheid92/signcast/internal/config"
	"github.com/pscheid92/signcast/internal/coordination"
	"github.com/pscheid92/signcast/internal/feedcache"
	"github.com/pscheid92/signcast/internal/liveness"
	"github.com/pscheid92/signcast/internal/logging"
	"github.com/pscheid92/signcast/internal/postgres"
	"github.com/pscheid92/signcast/internal/registry"
	"github.com/pscheid92/signcast/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *goredis.Client {
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		os.Exit(1)
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, reg *registry.Registry, cancelRelay context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		reg.CloseAllGraceful("server shutting down")
		cancelRelay()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	displayRepo := postgres.NewDisplayRepo(pool)
	slideshowRepo := postgres.NewSlideshowRepo(pool)
	feedRepo := postgres.NewFeedRepo(pool)

	reg := registry.New(clock)
	broadcaster := broadcast.New(reg, displayRepo, clock)
	livenessSvc := liveness.NewService(displayRepo, clock, cfg.DefaultHeartbeatPeriod)
	feedSvc := feedcache.NewService(feedRepo, feedcache.NewHTTPFetcher(cfg.FeedFetchTimeout), clock)

	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient = setupRedis(cfg)
		defer func() { _ = redisClient.Close() }()

		relay := coordination.NewEventRelay(redisClient)
		broadcaster.SetRelay(relay)
		go relay.Start(relayCtx, broadcaster.DeliverLocal)
		slog.Info("Cross-process event relay enabled")
	}

	srv := server.NewServer(cfg, server.Dependencies{
		Clock:       clock,
		Registry:    reg,
		Broadcaster: broadcaster,
		Liveness:    livenessSvc,
		Feeds:       feedSvc,
		Displays:    displayRepo,
		Slideshows:  slideshowRepo,
		Postgres:    pool,
		Redis:       redisClient,
	})

	done := runGracefulShutdown(srv, reg, cancelRelay)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
