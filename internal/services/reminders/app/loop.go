package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/platform/logging"
	"github.com/louisbranch/tradebook/internal/platform/metrics"
	"github.com/louisbranch/tradebook/internal/services/billing/api/httpapi"
	"github.com/louisbranch/tradebook/internal/services/reminders/domain"
	"github.com/louisbranch/tradebook/internal/services/reminders/storage"
)

const tracerName = "github.com/louisbranch/tradebook/internal/services/reminders/app"

const (
	defaultPollInterval = time.Minute
	defaultBatchSize    = 50
	defaultMaxAttempts  = 5
)

// BillingClient is the part of the billing API the loop drives.
type BillingClient interface {
	DueFollowUps(ctx context.Context, limit int) ([]httpapi.FollowUp, error)
	RecordFollowUpAction(ctx context.Context, kind followup.Kind, targetID string, step int, at time.Time) (httpapi.FollowUpActionResponse, error)
}

// Store persists reminders and the attempts made to deliver them.
type Store interface {
	storage.ReminderStore
	storage.AttemptStore
}

// Config controls loop behavior.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxAttempts is how many failed attempts a reminder gets before it is
	// parked as failed.
	MaxAttempts int
	Logger      *zap.Logger
	Metrics     *metrics.Worker
	Now         func() time.Time
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	c.Logger = logging.OrNop(c.Logger)
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Loop turns due follow-ups into published reminders.
type Loop struct {
	billing   BillingClient
	store     Store
	publisher Publisher
	cfg       Config
	tracer    trace.Tracer
}

// New creates a loop. A nil publisher logs reminders instead of sending them.
func New(billing BillingClient, store Store, publisher Publisher, cfg Config) *Loop {
	cfg = cfg.normalized()
	if publisher == nil {
		publisher = logPublisher{logger: cfg.Logger}
	}
	return &Loop{
		billing:   billing,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		tracer:    otel.Tracer(tracerName),
	}
}

// Run ticks immediately and then every poll interval until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil || l.billing == nil || l.store == nil {
		return errors.New("reminder loop is not configured")
	}
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := l.Tick(ctx); err != nil && ctx.Err() == nil {
			l.cfg.Logger.Warn("reminder tick", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// TickResult counts what one tick did.
type TickResult struct {
	Due       int
	Succeeded int
	Retried   int
	Failed    int
	Skipped   int
}

// Tick fetches one batch of due follow-ups and processes each in order.
func (l *Loop) Tick(ctx context.Context) (TickResult, error) {
	start := l.cfg.Now()
	defer func() { l.cfg.Metrics.ObserveTick(time.Since(start)) }()

	ctx, span := l.tracer.Start(ctx, "reminders.tick")
	defer span.End()

	due, err := l.billing.DueFollowUps(ctx, l.cfg.BatchSize)
	if err != nil {
		l.cfg.Metrics.Failed("poll")
		span.RecordError(err)
		return TickResult{}, fmt.Errorf("list due follow-ups: %w", err)
	}
	result := TickResult{Due: len(due)}
	span.SetAttributes(attribute.Int("reminders.due", len(due)))
	for _, item := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		switch l.process(ctx, item) {
		case storage.OutcomeSucceeded:
			result.Succeeded++
		case storage.OutcomeRetry:
			result.Retried++
		case storage.OutcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}
	return result, nil
}

const outcomeSkipped = "skipped"

func (l *Loop) process(ctx context.Context, item httpapi.FollowUp) string {
	now := l.cfg.Now().UTC()
	reminder := domain.Render(dueFromFollowUp(item), now)
	logger := l.cfg.Logger.With(zap.String("dedupe_key", reminder.DedupeKey))

	record, err := l.store.Reserve(ctx, reminder)
	if err != nil {
		l.cfg.Metrics.Failed("store")
		logger.Warn("reserve reminder", zap.Error(err))
		return outcomeSkipped
	}
	if record.Status == storage.StatusFailed {
		l.cfg.Metrics.Processed(string(item.Kind), outcomeSkipped)
		return outcomeSkipped
	}

	if record.Status == storage.StatusPending {
		payload, err := json.Marshal(record.Reminder)
		if err != nil {
			return l.fail(ctx, logger, record, "encode", err)
		}
		if err := l.publisher.Publish(ctx, domain.Subject(record.Kind), payload); err != nil {
			return l.fail(ctx, logger, record, "publish", err)
		}
		if err := l.store.MarkPublished(ctx, record.DedupeKey, now); err != nil {
			l.cfg.Metrics.Failed("store")
			logger.Warn("mark reminder published", zap.Error(err))
		}
		record.PublishedAt = &now
	}

	actionAt := now
	if record.PublishedAt != nil {
		actionAt = *record.PublishedAt
	}
	if _, err := l.billing.RecordFollowUpAction(ctx, item.Kind, item.TargetID, item.Step, actionAt); err != nil && !httpapi.IsStale(err) {
		return l.fail(ctx, logger, record, "ack", err)
	}
	if record.Status != storage.StatusAcknowledged {
		if err := l.store.MarkAcknowledged(ctx, record.DedupeKey, now); err != nil {
			l.cfg.Metrics.Failed("store")
			logger.Warn("mark reminder acknowledged", zap.Error(err))
		}
	}

	l.recordAttempt(ctx, logger, record, storage.OutcomeSucceeded, record.Attempts+1, "")
	l.cfg.Metrics.Processed(string(item.Kind), storage.OutcomeSucceeded)
	logger.Info("reminder delivered", zap.String("kind", string(item.Kind)), zap.Int("step", item.Step))
	return storage.OutcomeSucceeded
}

func (l *Loop) fail(ctx context.Context, logger *zap.Logger, record storage.ReminderRecord, stage string, cause error) string {
	l.cfg.Metrics.Failed(stage)
	final := record.Attempts+1 >= l.cfg.MaxAttempts
	outcome := storage.OutcomeRetry
	if final {
		outcome = storage.OutcomeFailed
	}
	lastError := fmt.Sprintf("%s: %v", stage, cause)
	updated, err := l.store.MarkFailure(ctx, record.DedupeKey, lastError, final, l.cfg.Now())
	if err != nil {
		logger.Warn("mark reminder failure", zap.Error(err))
		updated = record
		updated.Attempts++
	}
	l.recordAttempt(ctx, logger, record, outcome, updated.Attempts, lastError)
	l.cfg.Metrics.Processed(string(record.Kind), outcome)
	logger.Warn("reminder attempt failed",
		zap.String("stage", stage),
		zap.String("outcome", outcome),
		zap.Int("attempts", updated.Attempts),
		zap.Error(cause),
	)
	return outcome
}

func (l *Loop) recordAttempt(ctx context.Context, logger *zap.Logger, record storage.ReminderRecord, outcome string, count int, lastError string) {
	err := l.store.RecordAttempt(ctx, storage.AttemptRecord{
		DedupeKey:    record.DedupeKey,
		Kind:         string(record.Kind),
		Outcome:      outcome,
		AttemptCount: count,
		LastError:    lastError,
		CreatedAt:    l.cfg.Now(),
	})
	if err != nil {
		l.cfg.Metrics.Failed("store")
		logger.Warn("record attempt", zap.Error(err))
	}
}

func dueFromFollowUp(item httpapi.FollowUp) domain.Due {
	return domain.Due{
		Kind:         item.Kind,
		TargetID:     item.TargetID,
		AccountID:    item.AccountID,
		BusinessName: item.BusinessName,
		Locale:       item.Locale,
		Currency:     item.Currency,
		ClientName:   item.ClientName,
		ClientEmail:  item.ClientEmail,
		Number:       item.Number,
		Position:     item.Position,
		Amount:       item.Amount,
		DueAt:        item.DueTime,
		Step:         item.Step,
		StepLabel:    item.StepLabel,
	}
}
