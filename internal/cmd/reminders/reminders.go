// Package reminders parses reminders worker flags and launches the loop.
package reminders

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	entrypoint "github.com/louisbranch/tradebook/internal/platform/cmd"
	"github.com/louisbranch/tradebook/internal/platform/logging"
	remindersapp "github.com/louisbranch/tradebook/internal/services/reminders/app"
)

// Config holds reminders worker configuration.
type Config struct {
	Port          int           `env:"TRADEBOOK_REMINDERS_PORT" envDefault:"8090"`
	MetricsAddr   string        `env:"TRADEBOOK_REMINDERS_METRICS_ADDR" envDefault:":9091"`
	BillingURL    string        `env:"TRADEBOOK_REMINDERS_BILLING_URL" envDefault:"http://localhost:8080"`
	InternalToken string        `env:"TRADEBOOK_INTERNAL_TOKEN"`
	DBPath        string        `env:"TRADEBOOK_REMINDERS_DB_PATH" envDefault:"data/reminders.db"`
	NATSURL       string        `env:"TRADEBOOK_REMINDERS_NATS_URL"`
	PollInterval  time.Duration `env:"TRADEBOOK_REMINDERS_POLL_INTERVAL" envDefault:"1m"`
	BatchSize     int           `env:"TRADEBOOK_REMINDERS_BATCH_SIZE" envDefault:"50"`
	MaxAttempts   int           `env:"TRADEBOOK_REMINDERS_MAX_ATTEMPTS" envDefault:"5"`
	Logging       logging.Config
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The gRPC health port")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "The Prometheus metrics listen address (empty disables)")
	fs.StringVar(&cfg.BillingURL, "billing-url", cfg.BillingURL, "Base URL of the billing API")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The reminders SQLite database path")
	fs.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS URL reminders are published to (empty logs them)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "How often billing is polled for due follow-ups")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Follow-ups fetched per poll")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Failed attempts before a reminder is parked")
	fs.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format: json or console")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the reminders worker.
func Run(ctx context.Context, cfg Config) error {
	options := entrypoint.RunOptions{Logging: cfg.Logging}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceReminders, options, func(ctx context.Context, logger *zap.Logger) error {
		return remindersapp.Run(ctx, remindersapp.RuntimeConfig{
			Port:          cfg.Port,
			MetricsAddr:   cfg.MetricsAddr,
			BillingURL:    cfg.BillingURL,
			InternalToken: cfg.InternalToken,
			DBPath:        cfg.DBPath,
			NATSURL:       cfg.NATSURL,
			PollInterval:  cfg.PollInterval,
			BatchSize:     cfg.BatchSize,
			MaxAttempts:   cfg.MaxAttempts,
		}, logger)
	})
}
