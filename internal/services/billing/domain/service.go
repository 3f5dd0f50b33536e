// Package domain holds the billing use-cases: accounts, clients, the price
// library, quotes, invoices, appointments and their follow-up state.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/tradebook/internal/followup"
	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/platform/filter"
	"github.com/louisbranch/tradebook/internal/platform/id"
)

var (
	// ErrNotFound indicates a billing record was not found.
	ErrNotFound = errors.New("billing record not found")
	// ErrConflict indicates a write conflicted with existing uniqueness constraints.
	ErrConflict = errors.New("billing record conflict")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("billing store is not configured")
	// ErrAccountIDRequired indicates the calling account is unknown.
	ErrAccountIDRequired = errors.New("account id is required")
	// ErrStaleFollowUp indicates a follow-up action targeted a step that is
	// no longer current.
	ErrStaleFollowUp = errors.New("follow-up step is stale")
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ListInput configures one paged, optionally filtered, listing.
type ListInput struct {
	PageSize  int
	PageToken string
	Filter    string
}

// Page bounds one store listing.
type Page struct {
	Size  int
	Token string
	Where filter.SQLCondition
}

// Store is the domain persistence boundary for billing behavior.
type Store interface {
	GetAccount(ctx context.Context, accountID string) (Account, error)
	PutAccount(ctx context.Context, account Account) error

	PutClient(ctx context.Context, client Client) error
	GetClient(ctx context.Context, accountID, clientID string) (Client, error)
	DeleteClient(ctx context.Context, accountID, clientID string) error
	ListClients(ctx context.Context, accountID string, page Page) ([]Client, string, error)

	PutPriceItem(ctx context.Context, item PriceItem) error
	GetPriceItem(ctx context.Context, accountID, itemID string) (PriceItem, error)
	DeletePriceItem(ctx context.Context, accountID, itemID string) error
	ListPriceItems(ctx context.Context, accountID string, page Page) ([]PriceItem, string, error)

	// CreateQuote allocates the quote number and inserts quote atomically.
	CreateQuote(ctx context.Context, quote Quote) (Quote, error)
	// UpdateQuote replaces quote when its stored status still equals expected.
	UpdateQuote(ctx context.Context, quote Quote, expected QuoteStatus) error
	GetQuote(ctx context.Context, accountID, quoteID string) (Quote, error)
	ListQuotes(ctx context.Context, accountID string, page Page) ([]Quote, string, error)
	ExpireQuotes(ctx context.Context, now time.Time) (int, error)

	// CreateInvoice marks the source quote invoiced, allocates the invoice
	// number and inserts the invoice with its installments atomically.
	CreateInvoice(ctx context.Context, invoice Invoice) (Invoice, error)
	GetInvoice(ctx context.Context, accountID, invoiceID string) (Invoice, error)
	ListInvoices(ctx context.Context, accountID string, page Page) ([]Invoice, string, error)
	// RecordPayment persists payment and the updated invoice atomically.
	RecordPayment(ctx context.Context, invoice Invoice, payment Payment) error
	UpdateInvoiceStatus(ctx context.Context, accountID, invoiceID string, status InvoiceStatus, at time.Time) error

	PutAppointment(ctx context.Context, appointment Appointment) error
	GetAppointment(ctx context.Context, accountID, appointmentID string) (Appointment, error)
	DeleteAppointment(ctx context.Context, accountID, appointmentID string) error
	ListAppointments(ctx context.Context, accountID string, from, to time.Time) ([]Appointment, error)
	ListOverlappingAppointments(ctx context.Context, accountID string, start, end time.Time, excludeID string) ([]Appointment, error)

	ListFollowUpTargets(ctx context.Context, kind followup.Kind, now time.Time, maxIndex int) ([]FollowUpTarget, error)
	GetFollowUpState(ctx context.Context, kind followup.Kind, targetID string) (followup.State, error)
	// AdvanceFollowUp stores next when the current index still equals
	// expectedIndex and reports whether the row was updated.
	AdvanceFollowUp(ctx context.Context, kind followup.Kind, targetID string, expectedIndex int, next followup.State) (bool, error)
}

// Service orchestrates billing use-cases.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs billing domain use-cases.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store: store,
		clock: clock,
		newID: newID,
	}
}

func (s *Service) ready(accountID string) (string, error) {
	if s == nil || s.store == nil {
		return "", ErrStoreNotConfigured
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", apperrors.Wrap(apperrors.CodeAccountRequired, "account id is required", ErrAccountIDRequired)
	}
	return accountID, nil
}

func (s *Service) nowUTC() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

func pageFor(input ListInput, schema *filter.Schema) (Page, error) {
	size := input.PageSize
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	page := Page{Size: size, Token: strings.TrimSpace(input.PageToken)}
	if schema != nil {
		where, err := schema.Parse(input.Filter)
		if err != nil {
			return Page{}, apperrors.WrapWithMetadata(apperrors.CodeFilterInvalid, "invalid filter", map[string]string{"reason": err.Error()}, err)
		}
		page.Where = where
	}
	return page, nil
}

// notFound converts the store sentinel into a coded error.
func notFound(err error, what string) error {
	if errors.Is(err, ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNotFound, what+" not found", err)
	}
	if errors.Is(err, ErrConflict) {
		return apperrors.Wrap(apperrors.CodeAlreadyExists, what+" already exists", err)
	}
	return err
}

func invalid(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidRequest, reason, map[string]string{"reason": reason})
}
