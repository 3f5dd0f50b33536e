package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/platform/ratelimit"
	"github.com/louisbranch/tradebook/internal/platform/requestctx"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
	"github.com/louisbranch/tradebook/internal/services/billing/storage/sqlite"
)

const (
	testAccount = "acct-1"
	testToken   = "internal-secret"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestAPI(t *testing.T) (http.Handler, *testClock) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	handler, err := NewHandler(Options{
		Service:       domain.NewService(store, clock.Now, nil),
		Clock:         clock.Now,
		Location:      time.UTC,
		InternalToken: testToken,
		Health:        store.Ping,
	})
	require.NoError(t, err)
	return handler, clock
}

type request struct {
	method  string
	path    string
	body    any
	account string
	headers map[string]string
}

func do(t *testing.T, h http.Handler, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(req.body))
	}
	r := httptest.NewRequest(req.method, req.path, &body)
	if req.account != "" {
		r.Header.Set(requestctx.AccountHeader, req.account)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	resp := decodeBody[ErrorResponse](t, rec)
	require.Equal(t, code, resp.Error.Code)
	return resp
}

func createTestClient(t *testing.T, h http.Handler) clientResponse {
	t.Helper()
	rec := do(t, h, request{method: http.MethodPost, path: "/v1/clients", account: testAccount, body: map[string]any{
		"name":     "Madame Leroy",
		"email":    "leroy@example.fr",
		"location": map[string]float64{"lat": 48.8566, "lng": 2.3522},
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[clientResponse](t, rec)
}

func createTestQuote(t *testing.T, h http.Handler, clientID string) quoteResponse {
	t.Helper()
	rec := do(t, h, request{method: http.MethodPost, path: "/v1/prices", account: testAccount, body: map[string]any{
		"label":            "Remplacement chauffe-eau",
		"category":         "Plomberie",
		"unit":             "forfait",
		"unit_price_cents": 90000,
		"vat_rate_bp":      1000,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	price := decodeBody[priceResponse](t, rec)
	assert.Equal(t, "plomberie", price.Category)

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/quotes", account: testAccount, body: map[string]any{
		"client_id": clientID,
		"title":     "Chauffe-eau",
		"lines": []map[string]any{
			{"price_item_id": price.ID},
			{"label": "Main d'oeuvre", "quantity": "3", "unit": "h", "unit_price_cents": 5500, "vat_rate_bp": 1000},
		},
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[quoteResponse](t, rec)
}

func TestHealthDoesNotNeedAccount(t *testing.T) {
	t.Parallel()
	h, _ := newTestAPI(t)

	rec := do(t, h, request{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAccountHeaderRequired(t *testing.T) {
	t.Parallel()
	h, _ := newTestAPI(t)

	rec := do(t, h, request{method: http.MethodGet, path: "/v1/clients", headers: map[string]string{"Accept-Language": "en-US"}})
	resp := requireCode(t, rec, http.StatusUnauthorized, "ACCOUNT_REQUIRED")
	assert.Equal(t, "Account is not identified.", resp.Error.Message)
}

func TestValidationErrorsUseEnvelope(t *testing.T) {
	t.Parallel()
	h, _ := newTestAPI(t)

	rec := do(t, h, request{method: http.MethodPost, path: "/v1/clients", account: testAccount, body: map[string]any{"name": " "}})
	requireCode(t, rec, http.StatusBadRequest, "CLIENT_NAME_EMPTY")

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/clients", account: testAccount, body: map[string]any{"name": "x", "colour": "red"}})
	requireCode(t, rec, http.StatusBadRequest, "INVALID_REQUEST")

	rec = do(t, h, request{method: http.MethodGet, path: "/v1/clients/missing", account: testAccount})
	requireCode(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = do(t, h, request{method: http.MethodGet, path: "/v1/prices?filter=colour%3D%22red%22", account: testAccount})
	requireCode(t, rec, http.StatusBadRequest, "FILTER_INVALID")
}

func TestAccountSettingsRoundTrip(t *testing.T) {
	t.Parallel()
	h, _ := newTestAPI(t)

	rec := do(t, h, request{method: http.MethodGet, path: "/v1/account", account: testAccount})
	require.Equal(t, http.StatusOK, rec.Code)
	defaults := decodeBody[accountResponse](t, rec)
	assert.Equal(t, "EUR", defaults.Currency)
	assert.Nil(t, defaults.CreateTime)

	rec = do(t, h, request{method: http.MethodPut, path: "/v1/account", account: testAccount, body: map[string]any{
		"business_name":  "Plomberie Leroy",
		"trade":          "plombier",
		"default_vat_bp": 1000,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[accountResponse](t, rec)
	assert.Equal(t, "Plomberie Leroy", updated.BusinessName)
	assert.Equal(t, money.Rate(1000), updated.DefaultVAT)
	assert.NotNil(t, updated.CreateTime)

	rec = do(t, h, request{method: http.MethodPut, path: "/v1/account", account: testAccount, body: map[string]any{"quote_validity_days": 0}})
	requireCode(t, rec, http.StatusBadRequest, "ACCOUNT_INVALID_SETTINGS")
}

func TestQuoteToPaidInvoice(t *testing.T) {
	t.Parallel()
	h, _ := newTestAPI(t)
	client := createTestClient(t, h)
	quote := createTestQuote(t, h, client.ID)

	assert.Equal(t, domain.QuoteDraft, quote.Status)
	assert.Equal(t, "D-2026-0001", quote.Number)
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, "Remplacement chauffe-eau", quote.Lines[0].Label)
	assert.Equal(t, "1", quote.Lines[0].Quantity)
	assert.Equal(t, money.Cents(117150), quote.Totals.Gross)
	assert.Nil(t, quote.FollowUp)

	rec := do(t, h, request{method: http.MethodPost, path: "/v1/quotes/" + quote.ID + "/invoice", account: testAccount})
	requireCode(t, rec, http.StatusConflict, "QUOTE_INVALID_STATUS_TRANSITION")

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/quotes/" + quote.ID + "/send", account: testAccount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := decodeBody[quoteResponse](t, rec)
	assert.Equal(t, domain.QuoteSent, sent.Status)
	require.NotNil(t, sent.FollowUp)
	assert.Equal(t, 0, sent.FollowUp.Index)
	assert.Equal(t, 3, sent.FollowUp.Remaining)

	rec = do(t, h, request{method: http.MethodPut, path: "/v1/quotes/" + quote.ID, account: testAccount, body: map[string]any{
		"client_id": client.ID,
		"lines":     []map[string]any{{"label": "x", "unit_price_cents": 100, "vat_rate_bp": 2000}},
	}})
	requireCode(t, rec, http.StatusConflict, "QUOTE_NOT_EDITABLE")

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/quotes/" + quote.ID + "/accept", account: testAccount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/quotes/" + quote.ID + "/invoice", account: testAccount, body: map[string]any{
		"plan": map[string]any{"kind": "equal", "count": 2, "interval_days": 30},
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	invoice := decodeBody[invoiceResponse](t, rec)
	assert.Equal(t, "F-2026-0001", invoice.Number)
	assert.Equal(t, domain.InvoiceIssued, invoice.Status)
	require.Len(t, invoice.Installments, 2)
	assert.Equal(t, money.Cents(58575), invoice.Installments[0].Amount)
	assert.Equal(t, money.Cents(58575), invoice.Installments[1].Amount)

	payments := "/v1/invoices/" + invoice.ID + "/payments"
	rec = do(t, h, request{method: http.MethodPost, path: payments, account: testAccount, body: map[string]any{"amount_cents": 200000, "method": "virement"}})
	requireCode(t, rec, http.StatusConflict, "INVOICE_OVERPAYMENT")

	rec = do(t, h, request{method: http.MethodPost, path: payments, account: testAccount, body: map[string]any{"amount_cents": 58575, "method": "virement"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	partial := decodeBody[invoiceResponse](t, rec)
	assert.Equal(t, domain.InvoicePartiallyPaid, partial.Status)
	assert.Equal(t, money.Cents(58575), partial.Outstanding)

	rec = do(t, h, request{method: http.MethodPost, path: payments, account: testAccount, body: map[string]any{"amount_cents": 58575, "method": "chèque"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeBody[invoiceResponse](t, rec)
	assert.Equal(t, domain.InvoicePaid, paid.Status)
	assert.Zero(t, paid.Outstanding)

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/invoices/" + invoice.ID + "/cancel", account: testAccount})
	requireCode(t, rec, http.StatusConflict, "INVOICE_NOT_PAYABLE")

	rec = do(t, h, request{method: http.MethodGet, path: "/v1/invoices?filter=status%3D%22paid%22", account: testAccount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeBody[listInvoicesResponse](t, rec)
	require.Len(t, list.Invoices, 1)
	assert.Equal(t, invoice.ID, list.Invoices[0].ID)
}

func TestAccountsAreIsolated(t *testing.T) {
	t.Parallel()
	h, _ := newTestAPI(t)
	client := createTestClient(t, h)

	rec := do(t, h, request{method: http.MethodGet, path: "/v1/clients/" + client.ID, account: "acct-2"})
	requireCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestAppointmentFromTranscript(t *testing.T) {
	t.Parallel()
	h, _ := newTestAPI(t)

	rec := do(t, h, request{method: http.MethodPost, path: "/v1/appointments", account: testAccount, body: map[string]any{
		"transcript": "Rendez-vous chez madame Leroy demain à 14h30",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decodeBody[appointmentResponse](t, rec)
	assert.Equal(t, "Madame Leroy", appt.Title)
	assert.True(t, appt.StartTime.Equal(time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC)), appt.StartTime)
	assert.Equal(t, time.Hour, appt.EndTime.Sub(appt.StartTime))

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/appointments", account: testAccount, body: map[string]any{
		"title":      "Visite",
		"start_time": "2026-03-03T15:00:00Z",
		"end_time":   "2026-03-03T16:00:00Z",
	}})
	requireCode(t, rec, http.StatusConflict, "APPOINTMENT_OVERLAP")

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/appointments", account: testAccount, body: map[string]any{"title": "Visite"}})
	requireCode(t, rec, http.StatusBadRequest, "APPOINTMENT_INVALID_RANGE")

	rec = do(t, h, request{method: http.MethodGet, path: "/v1/appointments?from=2026-03-03T00:00:00Z&to=2026-03-04T00:00:00Z", account: testAccount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeBody[listAppointmentsResponse](t, rec)
	require.Len(t, list.Appointments, 1)
	assert.Equal(t, appt.ID, list.Appointments[0].ID)
}

func TestTools(t *testing.T) {
	t.Parallel()
	h, _ := newTestAPI(t)

	rec := do(t, h, request{method: http.MethodPost, path: "/v1/tools/installments", account: testAccount, body: map[string]any{"total_cents": 10000, "count": 3}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	split := decodeBody[installmentsResponse](t, rec)
	assert.Equal(t, []money.Cents{3333, 3333, 3334}, split.Parts)

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/tools/installments", account: testAccount, body: map[string]any{"total_cents": 10000, "count": 0}})
	requireCode(t, rec, http.StatusBadRequest, "INVOICE_INVALID_PLAN")

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/tools/voice", account: testAccount, body: map[string]any{
		"transcript": "Ajoute 3 mètres de tuyau cuivre à 12 euros 50",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	parsed := decodeBody[voiceResponse](t, rec)
	assert.Equal(t, "add_line", string(parsed.Command.Intent))
	require.NotNil(t, parsed.Command.UnitPrice)
	assert.Equal(t, money.Cents(1250), *parsed.Command.UnitPrice)

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/tools/travel-fee", account: testAccount, body: map[string]any{
		"site":   map[string]float64{"lat": 48.8566, "lng": 2.3522},
		"base":   map[string]float64{"lat": 48.8566, "lng": 2.3522},
		"policy": map[string]any{"free_radius_km": 10, "per_km_cents": 50},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fee := decodeBody[travelFeeResponse](t, rec)
	assert.True(t, fee.Free)
	assert.Zero(t, fee.Fee)

	rec = do(t, h, request{method: http.MethodPost, path: "/v1/tools/travel-fee", account: testAccount, body: map[string]any{
		"site": map[string]float64{"lat": 91, "lng": 0},
	}})
	requireCode(t, rec, http.StatusBadRequest, "TRAVEL_INVALID_COORDINATES")

	rec = do(t, h, request{method: http.MethodGet, path: "/v1/trades/plombier", account: testAccount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[tradeResponse](t, rec).Known)

	rec = do(t, h, request{method: http.MethodGet, path: "/v1/trades/astronaute", account: testAccount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeBody[tradeResponse](t, rec).Known)
}

func TestInternalFollowUpRoutes(t *testing.T) {
	t.Parallel()
	h, clock := newTestAPI(t)
	client := createTestClient(t, h)
	quote := createTestQuote(t, h, client.ID)
	rec := do(t, h, request{method: http.MethodPost, path: "/v1/quotes/" + quote.ID + "/send", account: testAccount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, request{method: http.MethodGet, path: PathDueFollowUps})
	requireCode(t, rec, http.StatusUnauthorized, "ACCOUNT_REQUIRED")

	clock.now = clock.now.AddDate(0, 0, 3)
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	billing := NewClient(server.URL, testToken, server.Client())
	ctx := context.Background()

	due, err := billing.DueFollowUps(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, followup.KindQuote, due[0].Kind)
	assert.Equal(t, quote.ID, due[0].TargetID)
	assert.Equal(t, 0, due[0].Step)
	assert.Equal(t, "Madame Leroy", due[0].ClientName)
	assert.Equal(t, money.Cents(117150), due[0].Amount)

	state, err := billing.RecordFollowUpAction(ctx, followup.KindQuote, quote.ID, 0, clock.now)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Index)

	_, err = billing.RecordFollowUpAction(ctx, followup.KindQuote, quote.ID, 0, clock.now)
	require.Error(t, err)
	assert.True(t, IsStale(err), err)

	due, err = billing.DueFollowUps(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	_, err = billing.RecordFollowUpAction(ctx, followup.Kind("letter"), quote.ID, 0, clock.now)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.False(t, IsStale(err))
}

func TestRateLimitedRequestsUseEnvelope(t *testing.T) {
	t.Parallel()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h, err := NewHandler(Options{
		Service:   domain.NewService(store, nil, nil),
		RateLimit: newTightLimiter(),
	})
	require.NoError(t, err)

	rec := do(t, h, request{method: http.MethodGet, path: "/v1/trades", account: testAccount})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, request{method: http.MethodGet, path: "/v1/trades", account: testAccount})
	requireCode(t, rec, http.StatusTooManyRequests, "RATE_LIMITED")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = do(t, h, request{method: http.MethodGet, path: "/v1/trades", account: "acct-2"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, request{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func newTightLimiter() *ratelimit.Store {
	return ratelimit.NewStore(0.001, 1)
}
