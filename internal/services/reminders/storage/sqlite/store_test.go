package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/services/reminders/domain"
	"github.com/louisbranch/tradebook/internal/services/reminders/storage"
)

var storeNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "reminders.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func testReminder(step int, subject string) domain.Reminder {
	return domain.Reminder{
		DedupeKey: domain.DedupeKey(followup.KindQuote, "q-1", step),
		Kind:      followup.KindQuote,
		TargetID:  "q-1",
		AccountID: "acct-1",
		Step:      step,
		Locale:    "fr-FR",
		Subject:   subject,
		Body:      "Bonjour",
		CreatedAt: storeNow,
	}
}

func TestReserveKeepsFirstRendering(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	first, err := store.Reserve(ctx, testReminder(0, "Votre devis D-1"))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if first.Status != storage.StatusPending {
		t.Fatalf("status = %q, want pending", first.Status)
	}

	again, err := store.Reserve(ctx, testReminder(0, "changed"))
	if err != nil {
		t.Fatalf("reserve again: %v", err)
	}
	if again.Subject != "Votre devis D-1" {
		t.Fatalf("subject = %q, want first rendering", again.Subject)
	}

	records, err := store.ListReminders(ctx, 10)
	if err != nil {
		t.Fatalf("list reminders: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("reminders len = %d, want 1", len(records))
	}
}

func TestReminderLifecycle(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	reminder := testReminder(1, "Votre devis D-1")
	if _, err := store.Reserve(ctx, reminder); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	failed, err := store.MarkFailure(ctx, reminder.DedupeKey, "broker down", false, storeNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("mark failure: %v", err)
	}
	if failed.Attempts != 1 || failed.Status != storage.StatusPending || failed.LastError != "broker down" {
		t.Fatalf("after failure = %+v", failed)
	}

	publishedAt := storeNow.Add(2 * time.Minute)
	if err := store.MarkPublished(ctx, reminder.DedupeKey, publishedAt); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if err := store.MarkAcknowledged(ctx, reminder.DedupeKey, storeNow.Add(3*time.Minute)); err != nil {
		t.Fatalf("mark acknowledged: %v", err)
	}

	got, err := store.GetReminder(ctx, reminder.DedupeKey)
	if err != nil {
		t.Fatalf("get reminder: %v", err)
	}
	if got.Status != storage.StatusAcknowledged {
		t.Fatalf("status = %q, want acknowledged", got.Status)
	}
	if got.PublishedAt == nil || !got.PublishedAt.Equal(publishedAt) {
		t.Fatalf("published at = %v, want %v", got.PublishedAt, publishedAt)
	}
	if got.AcknowledgedAt == nil {
		t.Fatal("expected acknowledged time")
	}

	if _, err := store.MarkFailure(ctx, reminder.DedupeKey, "late", false, storeNow); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("failure after ack err = %v, want not found", err)
	}
}

func TestMarkFailureFinal(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	reminder := testReminder(2, "Votre devis D-1")
	if _, err := store.Reserve(ctx, reminder); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	got, err := store.MarkFailure(ctx, reminder.DedupeKey, "gone", true, storeNow)
	if err != nil {
		t.Fatalf("mark failure: %v", err)
	}
	if got.Status != storage.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if err := store.MarkAcknowledged(ctx, reminder.DedupeKey, storeNow); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ack after failure err = %v, want not found", err)
	}
}

func TestGetReminderNotFound(t *testing.T) {
	store := openTempStore(t)
	if _, err := store.GetReminder(context.Background(), "quote:none:step:0"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestReserveRequiresDedupeKey(t *testing.T) {
	store := openTempStore(t)
	if _, err := store.Reserve(context.Background(), domain.Reminder{}); err == nil {
		t.Fatal("expected error for empty dedupe key")
	}
}

func TestRecordAndListAttempts(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if err := store.RecordAttempt(ctx, storage.AttemptRecord{
		DedupeKey:    "quote:q-1:step:0",
		Kind:         "quote",
		Outcome:      storage.OutcomeRetry,
		AttemptCount: 1,
		LastError:    "temporary error",
		CreatedAt:    storeNow,
	}); err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	if err := store.RecordAttempt(ctx, storage.AttemptRecord{
		DedupeKey:    "quote:q-1:step:0",
		Kind:         "quote",
		Outcome:      storage.OutcomeSucceeded,
		AttemptCount: 2,
		CreatedAt:    storeNow.Add(time.Minute),
	}); err != nil {
		t.Fatalf("record attempt second: %v", err)
	}

	attempts, err := store.ListAttempts(ctx, 10)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts len = %d, want 2", len(attempts))
	}
	if attempts[0].Outcome != storage.OutcomeSucceeded {
		t.Fatalf("attempts[0].outcome = %q, want succeeded", attempts[0].Outcome)
	}
	if attempts[1].LastError != "temporary error" {
		t.Fatalf("attempts[1].last_error = %q", attempts[1].LastError)
	}
}

func TestRecordAttemptValidation(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if err := store.RecordAttempt(ctx, storage.AttemptRecord{}); err == nil {
		t.Fatal("expected validation error for empty attempt")
	}
	if err := store.RecordAttempt(ctx, storage.AttemptRecord{DedupeKey: "k", Kind: "quote", Outcome: "dead"}); err == nil {
		t.Fatal("expected validation error for unknown outcome")
	}
}

func TestListRequiresPositiveLimit(t *testing.T) {
	store := openTempStore(t)
	if _, err := store.ListAttempts(context.Background(), 0); err == nil {
		t.Fatal("expected limit error")
	}
	if _, err := store.ListReminders(context.Background(), 0); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	var store *Store
	if err := store.RecordAttempt(context.Background(), storage.AttemptRecord{}); !errors.Is(err, errNotConfigured) {
		t.Fatalf("err = %v, want not configured", err)
	}
}
