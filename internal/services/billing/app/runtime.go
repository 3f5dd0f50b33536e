// Package app wires the billing HTTP API to its storage and background jobs.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/louisbranch/tradebook/internal/platform/httpx"
	"github.com/louisbranch/tradebook/internal/platform/logging"
	"github.com/louisbranch/tradebook/internal/platform/metrics"
	"github.com/louisbranch/tradebook/internal/platform/ratelimit"
	"github.com/louisbranch/tradebook/internal/services/billing/api/httpapi"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
	"github.com/louisbranch/tradebook/internal/services/billing/storage/sqlite"
)

// RuntimeConfig controls billing startup.
type RuntimeConfig struct {
	HTTPAddr      string
	DBPath        string
	InternalToken string
	// Timezone resolves spoken dates and appointment wall-clock times.
	Timezone       string
	RateLimitRPS   float64
	RateLimitBurst int
	// RedisURL enables rate-limit decision stats when set.
	RedisURL       string
	ExpiryInterval time.Duration
}

const (
	defaultHTTPAddr       = ":8080"
	defaultDBPath         = "data/billing.db"
	defaultExpiryInterval = 15 * time.Minute
)

func (cfg RuntimeConfig) normalized() RuntimeConfig {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.ExpiryInterval <= 0 {
		cfg.ExpiryInterval = defaultExpiryInterval
	}
	return cfg
}

// Run serves the billing API until ctx is cancelled.
func Run(ctx context.Context, cfg RuntimeConfig, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger = logging.OrNop(logger)
	cfg = cfg.normalized()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create billing storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open billing sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("close billing sqlite store", zap.Error(closeErr))
		}
	}()

	var limiter *ratelimit.Store
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.NewStore(cfg.RateLimitRPS, cfg.RateLimitBurst)
		limiter.StartJanitor(ctx)
	}
	var stats ratelimit.StatsRecorder
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				logger.Warn("close redis client", zap.Error(closeErr))
			}
		}()
		stats = ratelimit.NewRedisStats(rdb)
	}

	svc := domain.NewService(store, nil, nil)
	registry := metrics.NewRegistry()
	handler, err := httpapi.NewHandler(httpapi.Options{
		Service:        svc,
		Logger:         logger,
		Location:       loc,
		Metrics:        metrics.NewHTTP(registry, "billing"),
		MetricsHandler: metrics.Handler(registry),
		RateLimit:      limiter,
		RateStats:      stats,
		InternalToken:  cfg.InternalToken,
		Health:         store.Ping,
	})
	if err != nil {
		return err
	}
	server, err := httpx.NewServer("billing", cfg.HTTPAddr, handler)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runExpiry(ctx, svc, cfg.ExpiryInterval, time.Now, logger)
	}()
	defer wg.Wait()

	logger.Info("billing listening", zap.String("addr", server.Addr()))
	return server.ListenAndServe(ctx)
}

// quoteExpirer is the slice of the service the expiry loop needs.
type quoteExpirer interface {
	ExpireQuotes(ctx context.Context, now time.Time) (int, error)
}

// runExpiry marks sent quotes past their validity as expired every interval.
func runExpiry(ctx context.Context, svc quoteExpirer, interval time.Duration, now func() time.Time, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := svc.ExpireQuotes(ctx, now())
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("expire quotes", zap.Error(err))
				}
				continue
			}
			if expired > 0 {
				logger.Info("expired quotes", zap.Int("count", expired))
			}
		}
	}
}
