// Package billing parses billing command flags and launches the HTTP API.
package billing

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	entrypoint "github.com/louisbranch/tradebook/internal/platform/cmd"
	"github.com/louisbranch/tradebook/internal/platform/logging"
	billingapp "github.com/louisbranch/tradebook/internal/services/billing/app"
)

// Config holds billing command configuration.
type Config struct {
	HTTPAddr       string        `env:"TRADEBOOK_BILLING_HTTP_ADDR" envDefault:":8080"`
	DBPath         string        `env:"TRADEBOOK_BILLING_DB_PATH" envDefault:"data/billing.db"`
	InternalToken  string        `env:"TRADEBOOK_INTERNAL_TOKEN"`
	Timezone       string        `env:"TRADEBOOK_TIMEZONE" envDefault:"Europe/Paris"`
	RateLimitRPS   float64       `env:"TRADEBOOK_BILLING_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int           `env:"TRADEBOOK_BILLING_RATE_LIMIT_BURST" envDefault:"40"`
	RedisURL       string        `env:"TRADEBOOK_REDIS_URL"`
	ExpiryInterval time.Duration `env:"TRADEBOOK_BILLING_EXPIRY_INTERVAL" envDefault:"15m"`
	Logging        logging.Config
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The billing HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The billing SQLite database path")
	fs.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "IANA timezone for spoken dates and appointments")
	fs.Float64Var(&cfg.RateLimitRPS, "rate-limit-rps", cfg.RateLimitRPS, "Requests per second allowed per account (0 disables)")
	fs.IntVar(&cfg.RateLimitBurst, "rate-limit-burst", cfg.RateLimitBurst, "Rate limiter burst size")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for rate-limit stats")
	fs.DurationVar(&cfg.ExpiryInterval, "expiry-interval", cfg.ExpiryInterval, "How often sent quotes are checked for expiry")
	fs.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format: json or console")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the billing service.
func Run(ctx context.Context, cfg Config) error {
	options := entrypoint.RunOptions{Logging: cfg.Logging}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceBilling, options, func(ctx context.Context, logger *zap.Logger) error {
		return billingapp.Run(ctx, billingapp.RuntimeConfig{
			HTTPAddr:       cfg.HTTPAddr,
			DBPath:         cfg.DBPath,
			InternalToken:  cfg.InternalToken,
			Timezone:       cfg.Timezone,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
			RedisURL:       cfg.RedisURL,
			ExpiryInterval: cfg.ExpiryInterval,
		}, logger)
	})
}
