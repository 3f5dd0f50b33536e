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
	"github.com/louisbranch/tradebook/internal/travel"
)

// QuoteStatus is the lifecycle state of a quote.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRefused  QuoteStatus = "refused"
	QuoteExpired  QuoteStatus = "expired"
	QuoteInvoiced QuoteStatus = "invoiced"
)

// TravelFeeLabel labels the line added for travel fees.
const TravelFeeLabel = "Frais de déplacement"

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteDraft:    {QuoteSent},
	QuoteSent:     {QuoteAccepted, QuoteRefused, QuoteExpired},
	QuoteAccepted: {QuoteInvoiced},
}

// CanTransition reports whether a quote may move from one status to another.
func CanTransition(from, to QuoteStatus) bool {
	for _, next := range quoteTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// QuoteFilter lists the fields quotes can be filtered on.
var QuoteFilter = filter.MustSchema(
	filter.Field{Name: "status", Column: "status", Type: filter.String},
	filter.Field{Name: "client_id", Column: "client_id", Type: filter.String},
	filter.Field{Name: "number", Column: "number", Type: filter.String},
	filter.Field{Name: "title", Column: "title", Type: filter.String},
	filter.Field{Name: "create_time", Column: "created_at", Type: filter.Timestamp},
)

// Quote is a priced proposal sent to a client.
type Quote struct {
	ID           string
	AccountID    string
	ClientID     string
	Number       string
	Title        string
	Lines        []Line
	DiscountRate money.Rate
	DepositRate  money.Rate
	Travel       *travel.Estimate
	Status       QuoteStatus
	SentAt       *time.Time
	ValidUntil   *time.Time
	DecidedAt    *time.Time
	FollowUp     followup.State
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Totals computes the quote amounts.
func (q Quote) Totals() Totals {
	totals, err := ComputeTotals(q.Lines, q.DiscountRate, q.DepositRate)
	if err != nil {
		return Totals{}
	}
	return totals
}

// ExpiredAt reports whether a sent quote is past its validity at now.
func (q Quote) ExpiredAt(now time.Time) bool {
	return q.Status == QuoteSent && q.ValidUntil != nil && !now.Before(*q.ValidUntil)
}

// QuoteNumber formats a quote number such as D-2026-0042.
func QuoteNumber(year, seq int) string {
	return fmt.Sprintf("D-%04d-%04d", year, seq)
}

// QuoteInput carries quote fields for create and update.
type QuoteInput struct {
	ClientID     string
	Title        string
	Lines        []Line
	DiscountRate money.Rate
	DepositRate  money.Rate
	// ApplyTravelFee prices travel from the account base to the client site.
	ApplyTravelFee bool
}

func (s *Service) buildQuote(ctx context.Context, account Account, input QuoteInput) (Quote, error) {
	clientID := strings.TrimSpace(input.ClientID)
	if clientID == "" {
		return Quote{}, invalid("client_id is required")
	}
	client, err := s.store.GetClient(ctx, account.ID, clientID)
	if err != nil {
		return Quote{}, notFound(err, "client")
	}

	lines := make([]Line, 0, len(input.Lines)+1)
	for _, line := range input.Lines {
		line.Label = strings.TrimSpace(line.Label)
		line.Unit = strings.ToLower(strings.TrimSpace(line.Unit))
		if line.PriceItemID = strings.TrimSpace(line.PriceItemID); line.PriceItemID != "" {
			item, err := s.store.GetPriceItem(ctx, account.ID, line.PriceItemID)
			if err != nil {
				return Quote{}, notFound(err, "price item")
			}
			line = fromPriceItem(line, item)
		}
		if line.Unit == "" {
			line.Unit = account.TradeConfig().DefaultUnit
		}
		lines = append(lines, line)
	}

	quote := Quote{
		AccountID:    account.ID,
		ClientID:     client.ID,
		Title:        strings.TrimSpace(input.Title),
		DiscountRate: input.DiscountRate,
		DepositRate:  input.DepositRate,
	}
	if input.ApplyTravelFee {
		if account.Base == nil || client.Location == nil {
			return Quote{}, apperrors.New(apperrors.CodeTravelInvalidCoordinates, "travel fee needs account base and client location")
		}
		estimate, err := EstimateTravel(account.Travel, *account.Base, *client.Location)
		if err != nil {
			return Quote{}, err
		}
		quote.Travel = &estimate
		if estimate.Fee > 0 {
			lines = append(lines, Line{
				Label:     TravelFeeLabel,
				Quantity:  money.Units(1),
				Unit:      "forfait",
				UnitPrice: estimate.Fee,
				VATRate:   account.DefaultVAT,
			})
		}
	}
	quote.Lines = lines
	if _, err := ComputeTotals(quote.Lines, quote.DiscountRate, quote.DepositRate); err != nil {
		return Quote{}, err
	}
	return quote, nil
}

// fromPriceItem fills the label, unit and price a line leaves empty from
// item. The VAT rate always follows the library entry.
func fromPriceItem(line Line, item PriceItem) Line {
	if line.Label == "" {
		line.Label = item.Label
	}
	if line.Unit == "" {
		line.Unit = item.Unit
	}
	if line.UnitPrice == 0 {
		line.UnitPrice = item.UnitPrice
	}
	line.VATRate = item.VATRate
	return line
}

// EstimateTravel wraps travel.Quote with coded errors.
func EstimateTravel(policy travel.Policy, base, site travel.Point) (travel.Estimate, error) {
	estimate, err := travel.Quote(policy, base, site)
	switch {
	case err == nil:
		return estimate, nil
	case errors.Is(err, travel.ErrInvalidCoordinates):
		return travel.Estimate{}, apperrors.Wrap(apperrors.CodeTravelInvalidCoordinates, "invalid coordinates", err)
	case errors.Is(err, travel.ErrOutOfRange):
		return travel.Estimate{}, apperrors.WrapWithMetadata(apperrors.CodeTravelOutOfRange, "site out of range",
			map[string]string{"distance": fmt.Sprintf("%.1f", estimate.RoadKm)}, err)
	case errors.Is(err, travel.ErrInvalidPolicy):
		return travel.Estimate{}, invalidSettings(err.Error())
	default:
		return travel.Estimate{}, err
	}
}

// CreateQuote stores a new draft quote and assigns its number.
func (s *Service) CreateQuote(ctx context.Context, accountID string, input QuoteInput) (Quote, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Quote{}, err
	}
	account, err := s.account(ctx, accountID)
	if err != nil {
		return Quote{}, err
	}
	quote, err := s.buildQuote(ctx, account, input)
	if err != nil {
		return Quote{}, err
	}
	quote.ID, err = s.newID()
	if err != nil {
		return Quote{}, err
	}
	now := s.nowUTC()
	quote.Status = QuoteDraft
	quote.CreatedAt = now
	quote.UpdatedAt = now
	return s.store.CreateQuote(ctx, quote)
}

// UpdateQuote replaces the content of a draft quote.
func (s *Service) UpdateQuote(ctx context.Context, accountID, quoteID string, input QuoteInput) (Quote, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Quote{}, err
	}
	existing, err := s.store.GetQuote(ctx, accountID, strings.TrimSpace(quoteID))
	if err != nil {
		return Quote{}, notFound(err, "quote")
	}
	if existing.Status != QuoteDraft {
		return Quote{}, notEditable(existing)
	}
	account, err := s.account(ctx, accountID)
	if err != nil {
		return Quote{}, err
	}
	quote, err := s.buildQuote(ctx, account, input)
	if err != nil {
		return Quote{}, err
	}
	quote.ID = existing.ID
	quote.Number = existing.Number
	quote.Status = existing.Status
	quote.CreatedAt = existing.CreatedAt
	quote.UpdatedAt = s.nowUTC()
	if err := s.store.UpdateQuote(ctx, quote, QuoteDraft); err != nil {
		if errors.Is(err, ErrConflict) {
			return Quote{}, notEditable(existing)
		}
		return Quote{}, err
	}
	return quote, nil
}

// GetQuote returns one quote of the account.
func (s *Service) GetQuote(ctx context.Context, accountID, quoteID string) (Quote, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Quote{}, err
	}
	quote, err := s.store.GetQuote(ctx, accountID, strings.TrimSpace(quoteID))
	if err != nil {
		return Quote{}, notFound(err, "quote")
	}
	return quote, nil
}

// ListQuotes lists quotes newest first.
func (s *Service) ListQuotes(ctx context.Context, accountID string, input ListInput) ([]Quote, string, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return nil, "", err
	}
	page, err := pageFor(input, QuoteFilter)
	if err != nil {
		return nil, "", err
	}
	return s.store.ListQuotes(ctx, accountID, page)
}

// SendQuote moves a draft to sent, stamps its validity and starts the quote
// follow-up sequence from the send time.
func (s *Service) SendQuote(ctx context.Context, accountID, quoteID string) (Quote, error) {
	return s.transitionQuote(ctx, accountID, quoteID, QuoteSent, func(q *Quote, account Account, now time.Time) error {
		if len(q.Lines) == 0 {
			return apperrors.New(apperrors.CodeQuoteNoLines, "quote has no lines")
		}
		validUntil := now.AddDate(0, 0, account.QuoteValidityDays)
		q.SentAt = &now
		q.ValidUntil = &validUntil
		q.FollowUp = followup.Start(now)
		return nil
	})
}

// AcceptQuote records the client's acceptance of a sent quote.
func (s *Service) AcceptQuote(ctx context.Context, accountID, quoteID string) (Quote, error) {
	return s.transitionQuote(ctx, accountID, quoteID, QuoteAccepted, decide)
}

// RefuseQuote records the client's refusal of a sent quote.
func (s *Service) RefuseQuote(ctx context.Context, accountID, quoteID string) (Quote, error) {
	return s.transitionQuote(ctx, accountID, quoteID, QuoteRefused, decide)
}

func decide(q *Quote, _ Account, now time.Time) error {
	if q.ExpiredAt(now) {
		return apperrors.WithMetadata(apperrors.CodeQuoteExpired, "quote expired", map[string]string{"number": q.Number})
	}
	q.DecidedAt = &now
	return nil
}

func (s *Service) transitionQuote(ctx context.Context, accountID, quoteID string, to QuoteStatus, apply func(*Quote, Account, time.Time) error) (Quote, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Quote{}, err
	}
	quote, err := s.store.GetQuote(ctx, accountID, strings.TrimSpace(quoteID))
	if err != nil {
		return Quote{}, notFound(err, "quote")
	}
	from := quote.Status
	if !CanTransition(from, to) {
		return Quote{}, invalidTransition(from, to)
	}
	account, err := s.account(ctx, accountID)
	if err != nil {
		return Quote{}, err
	}
	now := s.nowUTC()
	if err := apply(&quote, account, now); err != nil {
		return Quote{}, err
	}
	quote.Status = to
	quote.UpdatedAt = now
	if err := s.store.UpdateQuote(ctx, quote, from); err != nil {
		if errors.Is(err, ErrConflict) {
			return Quote{}, invalidTransition(from, to)
		}
		return Quote{}, err
	}
	return quote, nil
}

// ExpireQuotes moves sent quotes past their validity to expired.
func (s *Service) ExpireQuotes(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	return s.store.ExpireQuotes(ctx, now.UTC())
}

func notEditable(q Quote) error {
	return apperrors.WithMetadata(apperrors.CodeQuoteNotEditable, "quote is not editable", map[string]string{"number": q.Number})
}

func invalidTransition(from, to QuoteStatus) error {
	return apperrors.WithMetadata(apperrors.CodeQuoteInvalidStatusTransition, "invalid quote status transition", map[string]string{
		"from": string(from),
		"to":   string(to),
	})
}
