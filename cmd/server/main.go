// cmd/server/main.go
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

	"github.com/jason-s-yu/taleroom/internal/cache"
	"github.com/jason-s-yu/taleroom/internal/config"
	"github.com/jason-s-yu/taleroom/internal/database"
	"github.com/jason-s-yu/taleroom/internal/handlers"
	"github.com/jason-s-yu/taleroom/internal/hub"
	"github.com/jason-s-yu/taleroom/internal/lobby"
	"github.com/jason-s-yu/taleroom/internal/middleware"
	"github.com/jason-s-yu/taleroom/internal/reaper"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// backend is the store side of the process, chosen by STORE_DRIVER.
type backend struct {
	store   lobby.Store
	defs    lobby.DefinitionProvider
	sweeper reaper.Store
	checks  map[string]handlers.Check
	close   func()
}

func openBackend(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*backend, error) {
	if cfg.StoreDriver == "memory" {
		defs, err := lobby.LoadDefinitionsDir(cfg.GamesDir)
		if err != nil {
			logger.WithError(err).Warnf("no game definitions loaded from %s", cfg.GamesDir)
			defs = lobby.StaticDefinitions{}
		}
		store := lobby.NewMemoryStore()
		logger.Infof("using in-memory store with %d game definitions", len(defs))
		return &backend{store: store, defs: defs, sweeper: store, checks: map[string]handlers.Check{}, close: func() {}}, nil
	}

	pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	store := database.NewSessionStore(pool)
	logger.Info("connected to postgres")
	return &backend{
		store:   store,
		defs:    database.NewDefinitionStore(pool),
		sweeper: store,
		checks:  map[string]handlers.Check{"postgres": pool.Ping},
		close:   pool.Close,
	}, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	h := hub.New(logger, nil)
	defs := be.defs
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, running single-instance")
		} else {
			defer rdb.Close()
			relay := cache.NewEventRelay(rdb, cfg.EventsChannel, logger)
			h.SetRelay(relay)
			go func() {
				if err := relay.Run(ctx, h.DeliverLocal); err != nil {
					logger.WithError(err).Error("relay stopped")
				}
			}()
			defs = cache.NewDefinitionCache(rdb, defs, cfg.DefinitionTTL, logger)
			be.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	coord := lobby.NewCoordinator(be.store, defs, h, logger, lobby.Options{
		RoomCodeLength:    cfg.RoomCodeLength,
		DefaultMaxPlayers: cfg.DefaultMaxPlayers,
		Countdown:         cfg.Countdown,
		StartRequiresHost: cfg.StartRequiresHost,
		StoreTimeout:      cfg.StoreTimeout,
	})
	defer coord.Close()

	if cfg.ReaperEnabled {
		r := reaper.New(be.sweeper, cfg.ReaperInterval, cfg.SessionTimeout, cfg.StoreTimeout, logger)
		go r.Run(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/lobby/ws", middleware.LogMiddleware(logger)(
		handlers.LobbyWSHandler(logger, h, coord, cfg.StoreTimeout),
	))
	mux.Handle("/healthz", handlers.HealthHandler(be.checks))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received; stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		logrus.Fatal(err)
	}
}
