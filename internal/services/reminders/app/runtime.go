// Package app runs the reminders worker: it polls billing for due
// follow-ups, renders and publishes reminders, and reports each step back.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	platformgrpc "github.com/louisbranch/tradebook/internal/platform/grpc"
	"github.com/louisbranch/tradebook/internal/platform/httpx"
	"github.com/louisbranch/tradebook/internal/platform/logging"
	"github.com/louisbranch/tradebook/internal/platform/metrics"
	"github.com/louisbranch/tradebook/internal/platform/timeouts"
	"github.com/louisbranch/tradebook/internal/services/billing/api/httpapi"
	"github.com/louisbranch/tradebook/internal/services/reminders/storage/sqlite"
)

// HealthService is the gRPC health service name reported by the loop.
const HealthService = "reminders.loop"

// RuntimeConfig controls worker startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	Port          int
	MetricsAddr   string
	BillingURL    string
	InternalToken string
	DBPath        string
	// NATSURL enables broker delivery; reminders are logged when empty.
	NATSURL      string
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

const (
	defaultWorkerPort = 8090
	defaultWorkerDB   = "data/reminders.db"
)

func (cfg RuntimeConfig) normalized() RuntimeConfig {
	if cfg.Port <= 0 {
		cfg.Port = defaultWorkerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultWorkerDB
	}
	return cfg
}

// Run starts worker runtime dependencies and the background processing loop.
func Run(ctx context.Context, cfg RuntimeConfig, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger = logging.OrNop(logger)
	if strings.TrimSpace(cfg.BillingURL) == "" {
		return fmt.Errorf("billing url is required")
	}
	cfg = cfg.normalized()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open reminders sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("close reminders sqlite store", zap.Error(closeErr))
		}
	}()

	var publisher Publisher
	if strings.TrimSpace(cfg.NATSURL) != "" {
		conn, err := connectNATS(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer func() {
			if drainErr := conn.Drain(); drainErr != nil {
				logger.Warn("drain nats connection", zap.Error(drainErr))
			}
		}()
		publisher = &natsPublisher{conn: conn}
		logger.Info("publishing reminders to nats", zap.String("url", conn.ConnectedUrlRedacted()))
	}

	registry := metrics.NewRegistry()
	billing := httpapi.NewClient(cfg.BillingURL, cfg.InternalToken, &http.Client{Timeout: timeouts.HTTPRequest})
	loop := New(billing, store, publisher, Config{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		MaxAttempts:  cfg.MaxAttempts,
		Logger:       logger,
		Metrics:      metrics.NewWorker(registry),
	})

	health, err := platformgrpc.ServeHealth(fmt.Sprintf(":%d", cfg.Port), HealthService)
	if err != nil {
		return fmt.Errorf("serve reminders health: %w", err)
	}
	defer func() {
		if stopErr := health.Stop(); stopErr != nil {
			logger.Warn("stop health server", zap.Error(stopErr))
		}
	}()
	logger.Info("reminders health listening", zap.String("addr", health.Addr()))

	if strings.TrimSpace(cfg.MetricsAddr) != "" {
		server, err := httpx.NewServer("reminders-metrics", cfg.MetricsAddr, metrics.Handler(registry))
		if err != nil {
			return err
		}
		metricsErr := make(chan error, 1)
		go func() {
			metricsErr <- server.ListenAndServe(ctx)
		}()
		defer func() {
			cancel()
			if serveErr := <-metricsErr; serveErr != nil {
				logger.Warn("metrics server", zap.Error(serveErr))
			}
		}()
		logger.Info("reminders metrics listening", zap.String("addr", server.Addr()))
	}

	return loop.Run(ctx)
}
