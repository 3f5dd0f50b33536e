// Package sqlite provides SQLite-backed reminder and attempt persistence.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tradebook/internal/services/reminders/domain"
	"github.com/louisbranch/tradebook/internal/services/reminders/storage"
	"github.com/louisbranch/tradebook/internal/services/reminders/storage/sqlite/migrations"
)

var errNotConfigured = errors.New("storage is not configured")

// Store persists reminders and worker attempts.
type Store struct {
	sqlDB *sql.DB
}

var (
	_ storage.ReminderStore = (*Store)(nil)
	_ storage.AttemptStore  = (*Store)(nil)
)

// Open opens a reminders SQLite store and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := sqlitedb.Open(ctx, path, migrations.FS)
	if err != nil {
		return nil, err
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	return nil
}

const reminderColumns = `
	dedupe_key, kind, target_id, account_id, step, step_label, locale, recipient,
	subject, body, amount_display, status, attempts, last_error, created_at,
	updated_at, published_at, acknowledged_at`

// Reserve inserts reminder as pending unless its dedupe key is taken.
func (s *Store) Reserve(ctx context.Context, reminder domain.Reminder) (storage.ReminderRecord, error) {
	if err := s.check(ctx); err != nil {
		return storage.ReminderRecord{}, err
	}
	reminder.DedupeKey = strings.TrimSpace(reminder.DedupeKey)
	if reminder.DedupeKey == "" {
		return storage.ReminderRecord{}, fmt.Errorf("dedupe key is required")
	}
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	createdAt := sqlitedb.ToMillis(reminder.CreatedAt)

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO reminders (`+reminderColumns+`
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?, NULL, NULL)
ON CONFLICT (dedupe_key) DO NOTHING`,
		reminder.DedupeKey,
		string(reminder.Kind),
		reminder.TargetID,
		reminder.AccountID,
		reminder.Step,
		reminder.StepLabel,
		reminder.Locale,
		reminder.Recipient,
		reminder.Subject,
		reminder.Body,
		reminder.AmountDisplay,
		string(storage.StatusPending),
		createdAt,
		createdAt,
	)
	if err != nil {
		return storage.ReminderRecord{}, fmt.Errorf("reserve reminder: %w", err)
	}
	return s.GetReminder(ctx, reminder.DedupeKey)
}

// GetReminder loads one reminder by dedupe key.
func (s *Store) GetReminder(ctx context.Context, dedupeKey string) (storage.ReminderRecord, error) {
	if err := s.check(ctx); err != nil {
		return storage.ReminderRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE dedupe_key = ?`,
		strings.TrimSpace(dedupeKey))
	record, err := scanReminder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ReminderRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ReminderRecord{}, fmt.Errorf("get reminder: %w", err)
	}
	return record, nil
}

// ListReminders lists newest-first reminders.
func (s *Store) ListReminders(ctx context.Context, limit int) ([]storage.ReminderRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+reminderColumns+`
FROM reminders
ORDER BY created_at DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	records := make([]storage.ReminderRecord, 0, limit)
	for rows.Next() {
		record, err := scanReminder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return records, nil
}

// MarkPublished records that the reminder reached the broker.
func (s *Store) MarkPublished(ctx context.Context, dedupeKey string, at time.Time) error {
	return s.transition(ctx, `
UPDATE reminders
SET status = ?, published_at = COALESCE(published_at, ?), updated_at = ?
WHERE dedupe_key = ? AND status IN (?, ?)`,
		string(storage.StatusPublished), sqlitedb.ToMillis(at), sqlitedb.ToMillis(at),
		strings.TrimSpace(dedupeKey), string(storage.StatusPending), string(storage.StatusPublished))
}

// MarkAcknowledged records that billing accepted the follow-up action.
func (s *Store) MarkAcknowledged(ctx context.Context, dedupeKey string, at time.Time) error {
	return s.transition(ctx, `
UPDATE reminders
SET status = ?, acknowledged_at = COALESCE(acknowledged_at, ?), updated_at = ?
WHERE dedupe_key = ? AND status <> ?`,
		string(storage.StatusAcknowledged), sqlitedb.ToMillis(at), sqlitedb.ToMillis(at),
		strings.TrimSpace(dedupeKey), string(storage.StatusFailed))
}

// MarkFailure counts one failed attempt.
func (s *Store) MarkFailure(ctx context.Context, dedupeKey, lastError string, final bool, at time.Time) (storage.ReminderRecord, error) {
	if err := s.check(ctx); err != nil {
		return storage.ReminderRecord{}, err
	}
	dedupeKey = strings.TrimSpace(dedupeKey)
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE reminders
SET attempts = attempts + 1,
    last_error = ?,
    status = CASE WHEN ? THEN ? ELSE status END,
    updated_at = ?
WHERE dedupe_key = ? AND status NOT IN (?, ?)`,
		strings.TrimSpace(lastError),
		final, string(storage.StatusFailed),
		sqlitedb.ToMillis(at),
		dedupeKey, string(storage.StatusAcknowledged), string(storage.StatusFailed))
	if err != nil {
		return storage.ReminderRecord{}, fmt.Errorf("mark reminder failure: %w", err)
	}
	if err := requireRow(result); err != nil {
		return storage.ReminderRecord{}, err
	}
	return s.GetReminder(ctx, dedupeKey)
}

func (s *Store) transition(ctx context.Context, query string, args ...any) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanReminder(scan sqlitedb.Scanner) (storage.ReminderRecord, error) {
	var (
		record         storage.ReminderRecord
		kind           string
		status         string
		createdAt      int64
		updatedAt      int64
		publishedAt    sql.NullInt64
		acknowledgedAt sql.NullInt64
	)
	if err := scan(
		&record.DedupeKey,
		&kind,
		&record.TargetID,
		&record.AccountID,
		&record.Step,
		&record.StepLabel,
		&record.Locale,
		&record.Recipient,
		&record.Subject,
		&record.Body,
		&record.AmountDisplay,
		&status,
		&record.Attempts,
		&record.LastError,
		&createdAt,
		&updatedAt,
		&publishedAt,
		&acknowledgedAt,
	); err != nil {
		return storage.ReminderRecord{}, err
	}
	record.Kind = followup.Kind(kind)
	record.Status = storage.Status(status)
	record.CreatedAt = sqlitedb.FromMillis(createdAt)
	record.UpdatedAt = sqlitedb.FromMillis(updatedAt)
	record.PublishedAt = sqlitedb.FromNullMillis(publishedAt)
	record.AcknowledgedAt = sqlitedb.FromNullMillis(acknowledgedAt)
	return record, nil
}
