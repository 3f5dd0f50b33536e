package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/platform/metrics"
	"github.com/louisbranch/tradebook/internal/services/billing/api/httpapi"
	billingdomain "github.com/louisbranch/tradebook/internal/services/billing/domain"
	billingsqlite "github.com/louisbranch/tradebook/internal/services/billing/storage/sqlite"
	"github.com/louisbranch/tradebook/internal/services/reminders/domain"
	"github.com/louisbranch/tradebook/internal/services/reminders/storage"
	"github.com/louisbranch/tradebook/internal/services/reminders/storage/sqlite"
)

var loopNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fakeBilling struct {
	mu      sync.Mutex
	due     []httpapi.FollowUp
	listErr error
	ackErr  error
	acks    []string
}

func (f *fakeBilling) DueFollowUps(context.Context, int) ([]httpapi.FollowUp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.due, f.listErr
}

func (f *fakeBilling) RecordFollowUpAction(_ context.Context, kind followup.Kind, targetID string, step int, _ time.Time) (httpapi.FollowUpActionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return httpapi.FollowUpActionResponse{}, f.ackErr
	}
	f.acks = append(f.acks, domain.DedupeKey(kind, targetID, step))
	return httpapi.FollowUpActionResponse{Index: step + 1}, nil
}

type publishedMessage struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []publishedMessage
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, publishedMessage{subject: subject, data: data})
	return nil
}

func openTempStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func quoteFollowUp() httpapi.FollowUp {
	return httpapi.FollowUp{
		Kind:         followup.KindQuote,
		TargetID:     "q-1",
		AccountID:    "acct-1",
		BusinessName: "Plomberie Martin",
		Locale:       "fr-FR",
		Currency:     "EUR",
		ClientName:   "Mme Leroy",
		ClientEmail:  "leroy@example.fr",
		Number:       "D-2026-0001",
		Amount:       money.Cents(117150),
		Step:         0,
		StepLabel:    "relance 1",
	}
}

func newTestLoop(billing BillingClient, store Store, publisher Publisher, m *metrics.Worker) *Loop {
	return New(billing, store, publisher, Config{
		MaxAttempts: 2,
		Metrics:     m,
		Now:         func() time.Time { return loopNow },
	})
}

func TestTickPublishesAndAcknowledges(t *testing.T) {
	billing := &fakeBilling{due: []httpapi.FollowUp{quoteFollowUp()}}
	publisher := &fakePublisher{}
	store := openTempStore(t)
	registry := prometheus.NewRegistry()
	loop := newTestLoop(billing, store, publisher, metrics.NewWorker(registry))

	result, err := loop.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickResult{Due: 1, Succeeded: 1}, result)

	require.Len(t, publisher.sent, 1)
	assert.Equal(t, "tradebook.reminders.quote", publisher.sent[0].subject)
	var payload domain.Reminder
	require.NoError(t, json.Unmarshal(publisher.sent[0].data, &payload))
	assert.Equal(t, "quote:q-1:step:0", payload.DedupeKey)
	assert.Equal(t, "Votre devis D-2026-0001", payload.Subject)
	assert.Equal(t, "leroy@example.fr", payload.Recipient)

	assert.Equal(t, []string{"quote:q-1:step:0"}, billing.acks)
	record, err := store.GetReminder(context.Background(), "quote:q-1:step:0")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusAcknowledged, record.Status)

	attempts, err := store.ListAttempts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, storage.OutcomeSucceeded, attempts[0].Outcome)
	assert.Equal(t, 1, attempts[0].AttemptCount)

	processed, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, processed)
}

func TestTickDoesNotRepublishAfterAckFailure(t *testing.T) {
	billing := &fakeBilling{due: []httpapi.FollowUp{quoteFollowUp()}, ackErr: errors.New("billing down")}
	publisher := &fakePublisher{}
	store := openTempStore(t)
	loop := newTestLoop(billing, store, publisher, nil)

	result, err := loop.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Retried)
	require.Len(t, publisher.sent, 1)

	record, err := store.GetReminder(context.Background(), "quote:q-1:step:0")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPublished, record.Status)
	assert.Equal(t, 1, record.Attempts)
	assert.Contains(t, record.LastError, "ack: billing down")

	billing.ackErr = nil
	result, err = loop.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Len(t, publisher.sent, 1, "reminder must be published once")
	assert.Equal(t, []string{"quote:q-1:step:0"}, billing.acks)
}

func TestTickTreatsStaleActionAsDone(t *testing.T) {
	billing := &fakeBilling{
		due:    []httpapi.FollowUp{quoteFollowUp()},
		ackErr: &httpapi.StatusError{Status: http.StatusConflict, Code: "FOLLOWUP_STALE"},
	}
	store := openTempStore(t)
	loop := newTestLoop(billing, store, &fakePublisher{}, nil)

	result, err := loop.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	record, err := store.GetReminder(context.Background(), "quote:q-1:step:0")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusAcknowledged, record.Status)
}

func TestTickParksReminderAfterMaxAttempts(t *testing.T) {
	billing := &fakeBilling{due: []httpapi.FollowUp{quoteFollowUp()}}
	publisher := &fakePublisher{err: errors.New("broker down")}
	store := openTempStore(t)
	registry := prometheus.NewRegistry()
	workerMetrics := metrics.NewWorker(registry)
	loop := newTestLoop(billing, store, publisher, workerMetrics)

	first, err := loop.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Retried)

	second, err := loop.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Failed)

	third, err := loop.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, third.Skipped)

	record, err := store.GetReminder(context.Background(), "quote:q-1:step:0")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, record.Status)
	assert.Empty(t, billing.acks)

	attempts, err := store.ListAttempts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, storage.OutcomeFailed, attempts[0].Outcome)
	assert.Equal(t, storage.OutcomeRetry, attempts[1].Outcome)

	count, err := testutil.GatherAndCount(registry, "tradebook_reminders_failed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTickReportsPollFailure(t *testing.T) {
	billing := &fakeBilling{listErr: errors.New("connection refused")}
	loop := newTestLoop(billing, openTempStore(t), &fakePublisher{}, nil)

	_, err := loop.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list due follow-ups")
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err)
	defer store.Close()
	billing := &fakeBilling{}
	loop := New(billing, store, &fakePublisher{}, Config{PollInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestRunRequiresDependencies(t *testing.T) {
	var loop *Loop
	require.Error(t, loop.Run(context.Background()))
	require.Error(t, New(nil, nil, nil, Config{}).Run(context.Background()))
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLoopAgainstBillingAPI(t *testing.T) {
	ctx := context.Background()
	billingStore, err := billingsqlite.Open(ctx, filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = billingStore.Close() })

	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	svc := billingdomain.NewService(billingStore, clock.Now, nil)
	handler, err := httpapi.NewHandler(httpapi.Options{
		Service:       svc,
		Clock:         clock.Now,
		Location:      time.UTC,
		InternalToken: "secret",
	})
	require.NoError(t, err)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := svc.CreateClient(ctx, "acct-1", billingdomain.ClientInput{Name: "Madame Leroy", Email: "leroy@example.fr"})
	require.NoError(t, err)
	quote, err := svc.CreateQuote(ctx, "acct-1", billingdomain.QuoteInput{
		ClientID: client.ID,
		Title:    "Chauffe-eau",
		Lines: []billingdomain.Line{{
			Label:     "Remplacement chauffe-eau",
			Quantity:  money.Units(1),
			Unit:      "forfait",
			UnitPrice: money.Cents(90000),
			VATRate:   money.Rate(1000),
		}},
	})
	require.NoError(t, err)
	_, err = svc.SendQuote(ctx, "acct-1", quote.ID)
	require.NoError(t, err)

	publisher := &fakePublisher{}
	loop := New(httpapi.NewClient(server.URL, "secret", server.Client()), openTempStore(t), publisher, Config{Now: clock.Now})

	result, err := loop.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Due)

	clock.Advance(4 * 24 * time.Hour)
	result, err = loop.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickResult{Due: 1, Succeeded: 1}, result)
	require.Len(t, publisher.sent, 1)
	assert.Equal(t, domain.Subject(followup.KindQuote), publisher.sent[0].subject)

	result, err = loop.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Due, "billing must have recorded the first step")
}
