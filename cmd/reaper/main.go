// cmd/reaper/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/taleroom/internal/config"
	"github.com/jason-s-yu/taleroom/internal/database"
	"github.com/jason-s-yu/taleroom/internal/reaper"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// main runs the inactivity sweep out-of-process against Postgres, for deployments
// that set REAPER_ENABLED=false on the servers.
func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()

	r := reaper.New(database.NewSessionStore(pool), cfg.ReaperInterval, cfg.SessionTimeout, cfg.StoreTimeout, logger)
	r.Run(ctx)
	logger.Info("reaper shutdown complete")
}
