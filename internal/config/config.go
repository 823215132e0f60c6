// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port            string        `env:"PORT"             envDefault:"8008"`
	Env             string        `env:"APP_ENV"          envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Redis features (event stream, projections, transfer intake) are off
	// when RedisAddr is empty.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`

	TransferStreamEnabled bool          `env:"TRANSFER_STREAM_ENABLED" envDefault:"false"`
	ConsumerName          string        `env:"CONSUMER_NAME"           envDefault:"ledger-consumer-1"`
	ProcessedTTL          time.Duration `env:"PROCESSED_TTL"           envDefault:"72h"`
	ReclaimMinIdle        time.Duration `env:"RECLAIM_MIN_IDLE"        envDefault:"30s"`

	JWTSecret string `env:"JWT_SECRET"`
}

// RedisEnabled reports whether a Redis address was configured.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// AuthEnabled reports whether the API requires bearer tokens.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Load reads optional .env files and then parses the environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TransferStreamEnabled && !cfg.RedisEnabled() {
		return Config{}, errors.New("TRANSFER_STREAM_ENABLED requires REDIS_ADDR")
	}
	return cfg, nil
}
