package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/platform/filter"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceIssued        InvoiceStatus = "issued"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

// PlanKind selects how an invoice total is split into installments.
type PlanKind string

const (
	// PlanEqual splits into Count equal parts every IntervalDays.
	PlanEqual PlanKind = "equal"
	// PlanWeights splits proportionally to Weights, due at OffsetsDays.
	PlanWeights PlanKind = "weights"
)

const maxInstallments = 36

// Plan describes an installment schedule.
type Plan struct {
	Kind         PlanKind `json:"kind"`
	Count        int      `json:"count,omitempty"`
	IntervalDays int      `json:"interval_days,omitempty"`
	FirstDueDays int      `json:"first_due_days,omitempty"`
	Weights      []int    `json:"weights,omitempty"`
	OffsetsDays  []int    `json:"offsets_days,omitempty"`
}

// Installment is one scheduled partial payment.
type Installment struct {
	ID       string
	Position int
	DueAt    time.Time
	Amount   money.Cents
	Paid     money.Cents
	PaidAt   *time.Time
	FollowUp followup.State
}

// Outstanding is the unpaid part of the installment.
func (i Installment) Outstanding() money.Cents {
	return i.Amount - i.Paid
}

// Overdue reports whether the installment is unpaid past its due date.
func (i Installment) Overdue(now time.Time) bool {
	return i.Outstanding() > 0 && now.After(i.DueAt)
}

// Invoice bills an accepted quote.
type Invoice struct {
	ID           string
	AccountID    string
	ClientID     string
	QuoteID      string
	Number       string
	Title        string
	Net          money.Cents
	VATTotal     money.Cents
	Gross        money.Cents
	Plan         Plan
	Installments []Installment
	Status       InvoiceStatus
	IssuedAt     time.Time
	PaidAt       *time.Time
	CancelledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Paid sums the payments applied to the installments.
func (inv Invoice) Paid() money.Cents {
	var paid money.Cents
	for _, inst := range inv.Installments {
		paid += inst.Paid
	}
	return paid
}

// Outstanding is the unpaid remainder of the invoice.
func (inv Invoice) Outstanding() money.Cents {
	return inv.Gross - inv.Paid()
}

// Overdue reports whether any open installment is past due.
func (inv Invoice) Overdue(now time.Time) bool {
	if inv.Status == InvoiceCancelled || inv.Status == InvoicePaid {
		return false
	}
	for _, inst := range inv.Installments {
		if inst.Overdue(now) {
			return true
		}
	}
	return false
}

// Payment records money received against an invoice.
type Payment struct {
	ID        string
	InvoiceID string
	Amount    money.Cents
	Method    string
	PaidAt    time.Time
	CreatedAt time.Time
}

// InvoiceFilter lists the fields invoices can be filtered on.
var InvoiceFilter = filter.MustSchema(
	filter.Field{Name: "status", Column: "status", Type: filter.String},
	filter.Field{Name: "client_id", Column: "client_id", Type: filter.String},
	filter.Field{Name: "number", Column: "number", Type: filter.String},
	filter.Field{Name: "gross", Column: "gross_cents", Type: filter.Int},
	filter.Field{Name: "issue_time", Column: "issued_at", Type: filter.Timestamp},
)

// InvoiceNumber formats an invoice number such as F-2026-0007.
func InvoiceNumber(year, seq int) string {
	return fmt.Sprintf("F-%04d-%04d", year, seq)
}

// Schedule splits total into installments per plan starting at issuedAt.
// Each installment's follow-up sequence is referenced to its due date.
func Schedule(total money.Cents, issuedAt time.Time, plan Plan) ([]Installment, error) {
	var (
		amounts []money.Cents
		offsets []int
		err     error
	)
	switch plan.Kind {
	case PlanEqual, "":
		count := plan.Count
		if count == 0 {
			count = 1
		}
		if count < 0 || count > maxInstallments {
			return nil, invalidPlan(fmt.Sprintf("count must be between 1 and %d", maxInstallments))
		}
		if plan.IntervalDays < 0 || plan.FirstDueDays < 0 {
			return nil, invalidPlan("days must not be negative")
		}
		if count > 1 && plan.IntervalDays == 0 {
			return nil, invalidPlan("interval_days is required for several installments")
		}
		amounts, err = money.Split(total, count)
		offsets = make([]int, count)
		for i := range offsets {
			offsets[i] = plan.FirstDueDays + i*plan.IntervalDays
		}
	case PlanWeights:
		if len(plan.Weights) == 0 || len(plan.Weights) > maxInstallments {
			return nil, invalidPlan("weights are required")
		}
		if len(plan.OffsetsDays) != len(plan.Weights) {
			return nil, invalidPlan("offsets_days must match weights")
		}
		for i, offset := range plan.OffsetsDays {
			if offset < 0 || (i > 0 && offset < plan.OffsetsDays[i-1]) {
				return nil, invalidPlan("offsets_days must be ascending and not negative")
			}
		}
		amounts, err = money.SplitByWeights(total, plan.Weights)
		offsets = plan.OffsetsDays
	default:
		return nil, invalidPlan("unknown plan kind " + string(plan.Kind))
	}
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeInvoiceInvalidPlan, "invalid plan", map[string]string{"reason": err.Error()}, err)
	}

	installments := make([]Installment, len(amounts))
	for i, amount := range amounts {
		due := issuedAt.AddDate(0, 0, offsets[i])
		installments[i] = Installment{
			Position: i + 1,
			DueAt:    due,
			Amount:   amount,
			FollowUp: followup.Start(due),
		}
	}
	return installments, nil
}

// ApplyPayment allocates amount to the earliest open installments and
// updates the invoice status. Overpayment is rejected.
func ApplyPayment(inv Invoice, amount money.Cents, at time.Time) (Invoice, error) {
	if amount <= 0 {
		return Invoice{}, apperrors.New(apperrors.CodePaymentInvalidAmount, "payment must be positive")
	}
	if inv.Status != InvoiceIssued && inv.Status != InvoicePartiallyPaid {
		return Invoice{}, apperrors.WithMetadata(apperrors.CodeInvoiceNotPayable, "invoice is not payable", map[string]string{"number": inv.Number})
	}
	if remaining := inv.Outstanding(); amount > remaining {
		return Invoice{}, apperrors.WithMetadata(apperrors.CodeInvoiceOverpayment, "payment exceeds outstanding", map[string]string{"remaining": remaining.Decimal()})
	}

	installments := make([]Installment, len(inv.Installments))
	copy(installments, inv.Installments)
	left := amount
	for i := range installments {
		if left == 0 {
			break
		}
		open := installments[i].Outstanding()
		if open <= 0 {
			continue
		}
		applied := min(open, left)
		installments[i].Paid += applied
		left -= applied
		if installments[i].Outstanding() == 0 {
			paidAt := at
			installments[i].PaidAt = &paidAt
		}
	}
	inv.Installments = installments

	if inv.Outstanding() == 0 {
		inv.Status = InvoicePaid
		paidAt := at
		inv.PaidAt = &paidAt
	} else {
		inv.Status = InvoicePartiallyPaid
	}
	inv.UpdatedAt = at
	return inv, nil
}

// InvoiceQuote creates an invoice from an accepted quote.
func (s *Service) InvoiceQuote(ctx context.Context, accountID, quoteID string, plan *Plan) (Invoice, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Invoice{}, err
	}
	quote, err := s.store.GetQuote(ctx, accountID, strings.TrimSpace(quoteID))
	if err != nil {
		return Invoice{}, notFound(err, "quote")
	}
	if !CanTransition(quote.Status, QuoteInvoiced) {
		return Invoice{}, invalidTransition(quote.Status, QuoteInvoiced)
	}
	account, err := s.account(ctx, accountID)
	if err != nil {
		return Invoice{}, err
	}

	now := s.nowUTC()
	if plan == nil {
		plan = &Plan{Kind: PlanEqual, Count: 1, FirstDueDays: account.PaymentTermsDays}
	}
	totals := quote.Totals()
	installments, err := Schedule(totals.Gross, now, *plan)
	if err != nil {
		return Invoice{}, err
	}
	for i := range installments {
		if installments[i].ID, err = s.newID(); err != nil {
			return Invoice{}, err
		}
	}
	invoiceID, err := s.newID()
	if err != nil {
		return Invoice{}, err
	}
	invoice := Invoice{
		ID:           invoiceID,
		AccountID:    accountID,
		ClientID:     quote.ClientID,
		QuoteID:      quote.ID,
		Title:        quote.Title,
		Net:          totals.Net,
		VATTotal:     totals.VATTotal,
		Gross:        totals.Gross,
		Plan:         *plan,
		Installments: installments,
		Status:       InvoiceIssued,
		IssuedAt:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.store.CreateInvoice(ctx, invoice)
	if errors.Is(err, ErrConflict) {
		return Invoice{}, invalidTransition(quote.Status, QuoteInvoiced)
	}
	return created, err
}

// GetInvoice returns one invoice of the account.
func (s *Service) GetInvoice(ctx context.Context, accountID, invoiceID string) (Invoice, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Invoice{}, err
	}
	invoice, err := s.store.GetInvoice(ctx, accountID, strings.TrimSpace(invoiceID))
	if err != nil {
		return Invoice{}, notFound(err, "invoice")
	}
	return invoice, nil
}

// ListInvoices lists invoices newest first.
func (s *Service) ListInvoices(ctx context.Context, accountID string, input ListInput) ([]Invoice, string, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return nil, "", err
	}
	page, err := pageFor(input, InvoiceFilter)
	if err != nil {
		return nil, "", err
	}
	return s.store.ListInvoices(ctx, accountID, page)
}

// PaymentInput records money received. A zero PaidAt means now.
type PaymentInput struct {
	Amount money.Cents
	Method string
	PaidAt time.Time
}

// RecordPayment applies a payment to an invoice.
func (s *Service) RecordPayment(ctx context.Context, accountID, invoiceID string, input PaymentInput) (Invoice, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Invoice{}, err
	}
	invoice, err := s.store.GetInvoice(ctx, accountID, strings.TrimSpace(invoiceID))
	if err != nil {
		return Invoice{}, notFound(err, "invoice")
	}
	now := s.nowUTC()
	paidAt := input.PaidAt.UTC().Truncate(time.Millisecond)
	if input.PaidAt.IsZero() {
		paidAt = now
	}
	updated, err := ApplyPayment(invoice, input.Amount, paidAt)
	if err != nil {
		return Invoice{}, err
	}
	updated.UpdatedAt = now
	paymentID, err := s.newID()
	if err != nil {
		return Invoice{}, err
	}
	payment := Payment{
		ID:        paymentID,
		InvoiceID: invoice.ID,
		Amount:    input.Amount,
		Method:    strings.TrimSpace(input.Method),
		PaidAt:    paidAt,
		CreatedAt: now,
	}
	if err := s.store.RecordPayment(ctx, updated, payment); err != nil {
		return Invoice{}, notFound(err, "payment")
	}
	return updated, nil
}

// CancelInvoice cancels an invoice that is not fully paid.
func (s *Service) CancelInvoice(ctx context.Context, accountID, invoiceID string) (Invoice, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Invoice{}, err
	}
	invoice, err := s.store.GetInvoice(ctx, accountID, strings.TrimSpace(invoiceID))
	if err != nil {
		return Invoice{}, notFound(err, "invoice")
	}
	if invoice.Status == InvoicePaid || invoice.Status == InvoiceCancelled {
		return Invoice{}, apperrors.WithMetadata(apperrors.CodeInvoiceNotPayable, "invoice cannot be cancelled", map[string]string{"number": invoice.Number})
	}
	now := s.nowUTC()
	if err := s.store.UpdateInvoiceStatus(ctx, accountID, invoice.ID, InvoiceCancelled, now); err != nil {
		return Invoice{}, err
	}
	invoice.Status = InvoiceCancelled
	invoice.CancelledAt = &now
	invoice.UpdatedAt = now
	return invoice, nil
}

func invalidPlan(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvoiceInvalidPlan, "invalid plan", map[string]string{"reason": reason})
}
