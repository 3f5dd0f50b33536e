// Package cmd holds the startup steps shared by the tradebook binaries:
// environment then flag parsing, and the logger and tracer lifecycle
// around a service's run function.
package cmd

import (
	"context"
	"errors"
	"flag"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/louisbranch/tradebook/internal/platform/config"
	"github.com/louisbranch/tradebook/internal/platform/logging"
	"github.com/louisbranch/tradebook/internal/platform/otel"
)

// Service names, used as logger names and in the traced service name.
const (
	ServiceBilling   = "billing"
	ServiceReminders = "reminders"
	ServiceCLI       = "cli"
)

const tracerFlushTimeout = 5 * time.Second

// RunOptions tunes RunWithTelemetryAndOptions.
type RunOptions struct {
	Logging logging.Config
	// Tracing defaults to the TRADEBOOK_OTEL_* environment when nil.
	Tracing *otel.Config
	// ShutdownTimeout bounds the final span flush.
	ShutdownTimeout time.Duration
}

// ParseConfig fills cfg from its env tags. Commands call it before
// registering flags so flag defaults show the environment's values.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses args into fs; nil args parse as none.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag set is required")
	}
	return fs.Parse(append([]string{}, args...))
}

// RunWithTelemetryAndOptions builds the service logger, starts tracing and
// calls run. Tracing is flushed after run returns, whatever its result.
func RunWithTelemetryAndOptions(ctx context.Context, service string, opts RunOptions, run func(context.Context, *zap.Logger) error) error {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return errors.New("service name is required")
	case run == nil:
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.New(service, opts.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tracing := opts.Tracing
	if tracing == nil {
		tracing = &otel.Config{}
		if err := config.ParseEnv(tracing); err != nil {
			return err
		}
	}
	shutdown, err := otel.Setup(ctx, service, *tracing)
	if err != nil {
		return err
	}
	defer func() {
		timeout := opts.ShutdownTimeout
		if timeout <= 0 {
			timeout = tracerFlushTimeout
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("flush traces", zap.Error(err))
		}
	}()
	if tracing.Enabled() {
		logger.Debug("tracing enabled", zap.String("endpoint", tracing.Endpoint))
	}

	return run(ctx, logger)
}
