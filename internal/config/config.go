// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StoreDriver   string        `env:"STORE_DRIVER"    envDefault:"postgres"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	AutoMigrate   bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT"   envDefault:"5s"`
	GamesDir      string        `env:"GAMES_DIR"       envDefault:"./games"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisDB       int           `env:"REDIS_DB"        envDefault:"0"`
	EventsChannel string        `env:"LOBBY_EVENTS_CHANNEL" envDefault:"lobby_events"`
	DefinitionTTL time.Duration `env:"DEFINITION_CACHE_TTL" envDefault:"5m"`

	RoomCodeLength    int           `env:"ROOM_CODE_LENGTH"    envDefault:"4"`
	DefaultMaxPlayers int           `env:"DEFAULT_MAX_PLAYERS" envDefault:"5"`
	Countdown         time.Duration `env:"AUTOSTART_COUNTDOWN" envDefault:"5s"`
	StartRequiresHost bool          `env:"START_REQUIRES_HOST" envDefault:"false"`

	ReaperEnabled  bool          `env:"REAPER_ENABLED"  envDefault:"true"`
	ReaperInterval time.Duration `env:"REAPER_INTERVAL" envDefault:"60s"`
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"4m"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresURLFromParts()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the coordinator cannot run with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.StoreDriver)
	}
	if c.RoomCodeLength < 4 || c.RoomCodeLength > 6 {
		return fmt.Errorf("ROOM_CODE_LENGTH must be between 4 and 6, got %d", c.RoomCodeLength)
	}
	if c.DefaultMaxPlayers < 1 {
		return fmt.Errorf("DEFAULT_MAX_PLAYERS must be positive")
	}
	if c.ReaperInterval <= 0 || c.SessionTimeout <= 0 {
		return fmt.Errorf("REAPER_INTERVAL and SESSION_TIMEOUT must be positive")
	}
	return nil
}

// postgresURLFromParts builds a URL from the discrete POSTGRES_* / PG_* variables.
func postgresURLFromParts() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	port := os.Getenv("PG_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		port,
		os.Getenv("PG_DATABASE"),
	)
}
