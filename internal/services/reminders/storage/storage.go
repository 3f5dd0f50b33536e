// Package storage defines persistence contracts for the reminders worker.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/tradebook/internal/services/reminders/domain"
)

// ErrNotFound is returned when no reminder matches a dedupe key.
var ErrNotFound = errors.New("reminder not found")

// Status is the delivery state of one reminder.
type Status string

const (
	// StatusPending has been rendered but not yet published.
	StatusPending Status = "pending"
	// StatusPublished has been handed to the broker but billing has not
	// recorded the step yet.
	StatusPublished Status = "published"
	// StatusAcknowledged is done on both sides.
	StatusAcknowledged Status = "acknowledged"
	// StatusFailed exhausted its attempts and is no longer retried.
	StatusFailed Status = "failed"
)

// Attempt outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetry     = "retry"
	OutcomeFailed    = "failed"
)

// ReminderRecord is one persisted reminder and its delivery progress.
type ReminderRecord struct {
	domain.Reminder
	Status         Status
	Attempts       int
	LastError      string
	UpdatedAt      time.Time
	PublishedAt    *time.Time
	AcknowledgedAt *time.Time
}

// AttemptRecord is one processing attempt of a reminder.
type AttemptRecord struct {
	ID           int64
	DedupeKey    string
	Kind         string
	Outcome      string
	AttemptCount int
	LastError    string
	CreatedAt    time.Time
}

// ReminderStore persists reminders keyed by their dedupe key.
type ReminderStore interface {
	// Reserve stores reminder unless its dedupe key exists and returns the
	// stored record either way.
	Reserve(ctx context.Context, reminder domain.Reminder) (ReminderRecord, error)
	GetReminder(ctx context.Context, dedupeKey string) (ReminderRecord, error)
	ListReminders(ctx context.Context, limit int) ([]ReminderRecord, error)
	MarkPublished(ctx context.Context, dedupeKey string, at time.Time) error
	MarkAcknowledged(ctx context.Context, dedupeKey string, at time.Time) error
	// MarkFailure counts one failed attempt; final moves the reminder to
	// StatusFailed.
	MarkFailure(ctx context.Context, dedupeKey, lastError string, final bool, at time.Time) (ReminderRecord, error)
}

// AttemptStore persists worker attempt outcomes.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	ListAttempts(ctx context.Context, limit int) ([]AttemptRecord, error)
}
