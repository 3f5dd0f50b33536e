package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/louisbranch/tradebook/internal/platform/timeouts"
)

// Publisher delivers rendered reminders to downstream senders.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// natsPublisher publishes core NATS messages and waits for the server to
// confirm each one.
type natsPublisher struct {
	conn *nats.Conn
}

func connectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(strings.TrimSpace(url),
		nats.Name("tradebook-reminders"),
		nats.Timeout(timeouts.NATSConnect),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.conn == nil {
		return fmt.Errorf("nats connection is not configured")
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := p.conn.FlushTimeout(timeouts.NATSFlush); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

// logPublisher stands in for a broker when none is configured.
type logPublisher struct {
	logger *zap.Logger
}

func (p logPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.logger.Info("reminder ready", zap.String("subject", subject), zap.ByteString("payload", data))
	return nil
}
