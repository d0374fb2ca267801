// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string        `env:"KUHHANDEL_ADDR" envDefault:":8080"`
	Players       int           `env:"KUHHANDEL_PLAYERS" envDefault:"3"`
	AuctionWindow time.Duration `env:"KUHHANDEL_AUCTION_WINDOW" envDefault:"15s"`
	BuyOutWindow  time.Duration `env:"KUHHANDEL_BUYOUT_WINDOW" envDefault:"10s"`
	LogLevel      string        `env:"KUHHANDEL_LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"KUHHANDEL_LOG_FORMAT" envDefault:"json"`
	DatabaseURL   string        `env:"KUHHANDEL_DATABASE_URL"`
	OTelEndpoint  string        `env:"KUHHANDEL_OTEL_ENDPOINT"`
}

// Load reads an optional .env file, then the environment.
func Load(dotenv ...string) (Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load(dotenv...)

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Players < 2 {
		errs = append(errs, fmt.Errorf("KUHHANDEL_PLAYERS must be at least 2, got %d", c.Players))
	}
	if c.AuctionWindow <= 0 {
		errs = append(errs, errors.New("KUHHANDEL_AUCTION_WINDOW must be positive"))
	}
	if c.BuyOutWindow <= 0 {
		errs = append(errs, errors.New("KUHHANDEL_BUYOUT_WINDOW must be positive"))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("KUHHANDEL_LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
