package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
	"github.com/louisbranch/tradebook/internal/travel"
)

type accountRequest struct {
	BusinessName      *string        `json:"business_name"`
	Trade             *string        `json:"trade"`
	Locale            *string        `json:"locale"`
	Currency          *string        `json:"currency"`
	DefaultVAT        *money.Rate    `json:"default_vat_bp"`
	QuoteValidityDays *int           `json:"quote_validity_days"`
	PaymentTermsDays  *int           `json:"payment_terms_days"`
	Base              *travel.Point  `json:"base"`
	Travel            *travel.Policy `json:"travel"`
}

func (req accountRequest) input() domain.AccountInput {
	return domain.AccountInput{
		BusinessName:      req.BusinessName,
		Trade:             req.Trade,
		Locale:            req.Locale,
		Currency:          req.Currency,
		DefaultVAT:        req.DefaultVAT,
		QuoteValidityDays: req.QuoteValidityDays,
		PaymentTermsDays:  req.PaymentTermsDays,
		Base:              req.Base,
		Travel:            req.Travel,
	}
}

type accountResponse struct {
	ID                string        `json:"id"`
	BusinessName      string        `json:"business_name"`
	Trade             string        `json:"trade"`
	Locale            string        `json:"locale"`
	Currency          string        `json:"currency"`
	DefaultVAT        money.Rate    `json:"default_vat_bp"`
	QuoteValidityDays int           `json:"quote_validity_days"`
	PaymentTermsDays  int           `json:"payment_terms_days"`
	Base              *travel.Point `json:"base,omitempty"`
	Travel            travel.Policy `json:"travel"`
	CreateTime        *time.Time    `json:"create_time,omitempty"`
	UpdateTime        *time.Time    `json:"update_time,omitempty"`
}

func accountToResponse(a domain.Account) accountResponse {
	return accountResponse{
		ID:                a.ID,
		BusinessName:      a.BusinessName,
		Trade:             a.Trade,
		Locale:            a.Locale,
		Currency:          a.Currency,
		DefaultVAT:        a.DefaultVAT,
		QuoteValidityDays: a.QuoteValidityDays,
		PaymentTermsDays:  a.PaymentTermsDays,
		Base:              a.Base,
		Travel:            a.Travel,
		CreateTime:        optionalTime(a.CreatedAt),
		UpdateTime:        optionalTime(a.UpdatedAt),
	}
}

type clientRequest struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Phone    string        `json:"phone"`
	Address  string        `json:"address"`
	Location *travel.Point `json:"location"`
	Notes    string        `json:"notes"`
}

func (req clientRequest) input() domain.ClientInput {
	return domain.ClientInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Location: req.Location,
		Notes:    req.Notes,
	}
}

type clientResponse struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Email      string        `json:"email,omitempty"`
	Phone      string        `json:"phone,omitempty"`
	Address    string        `json:"address,omitempty"`
	Location   *travel.Point `json:"location,omitempty"`
	Notes      string        `json:"notes,omitempty"`
	CreateTime time.Time     `json:"create_time"`
	UpdateTime time.Time     `json:"update_time"`
}

func clientToResponse(c domain.Client) clientResponse {
	return clientResponse{
		ID:         c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		Address:    c.Address,
		Location:   c.Location,
		Notes:      c.Notes,
		CreateTime: c.CreatedAt,
		UpdateTime: c.UpdatedAt,
	}
}

type listClientsResponse struct {
	Clients       []clientResponse `json:"clients"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type priceRequest struct {
	Label     string      `json:"label"`
	Category  string      `json:"category"`
	Unit      string      `json:"unit"`
	UnitPrice money.Cents `json:"unit_price_cents"`
	VATRate   *money.Rate `json:"vat_rate_bp"`
}

func (req priceRequest) input() domain.PriceItemInput {
	return domain.PriceItemInput{
		Label:     req.Label,
		Category:  req.Category,
		Unit:      req.Unit,
		UnitPrice: req.UnitPrice,
		VATRate:   req.VATRate,
	}
}

type priceResponse struct {
	ID         string      `json:"id"`
	Label      string      `json:"label"`
	Category   string      `json:"category,omitempty"`
	Unit       string      `json:"unit"`
	UnitPrice  money.Cents `json:"unit_price_cents"`
	VATRate    money.Rate  `json:"vat_rate_bp"`
	CreateTime time.Time   `json:"create_time"`
	UpdateTime time.Time   `json:"update_time"`
}

func priceToResponse(p domain.PriceItem) priceResponse {
	return priceResponse{
		ID:         p.ID,
		Label:      p.Label,
		Category:   p.Category,
		Unit:       p.Unit,
		UnitPrice:  p.UnitPrice,
		VATRate:    p.VATRate,
		CreateTime: p.CreatedAt,
		UpdateTime: p.UpdatedAt,
	}
}

type listPricesResponse struct {
	Prices        []priceResponse `json:"prices"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

// lineRequest is one quote line. Quantity is a decimal string and defaults
// to one unit; a nil VAT rate takes the account default.
type lineRequest struct {
	PriceItemID  string      `json:"price_item_id"`
	Label        string      `json:"label"`
	Quantity     string      `json:"quantity"`
	Unit         string      `json:"unit"`
	UnitPrice    money.Cents `json:"unit_price_cents"`
	VATRate      *money.Rate `json:"vat_rate_bp"`
	DiscountRate money.Rate  `json:"discount_rate_bp"`
}

type quoteRequest struct {
	ClientID       string        `json:"client_id"`
	Title          string        `json:"title"`
	Lines          []lineRequest `json:"lines"`
	DiscountRate   money.Rate    `json:"discount_rate_bp"`
	DepositRate    money.Rate    `json:"deposit_rate_bp"`
	ApplyTravelFee bool          `json:"apply_travel_fee"`
}

func (req quoteRequest) input(defaultVAT money.Rate) (domain.QuoteInput, error) {
	lines := make([]domain.Line, 0, len(req.Lines))
	for i, l := range req.Lines {
		quantity := money.Units(1)
		if q := strings.TrimSpace(l.Quantity); q != "" {
			parsed, err := money.ParseQuantity(q)
			if err != nil {
				return domain.QuoteInput{}, fmt.Errorf("line %d: %w", i+1, err)
			}
			quantity = parsed
		}
		vat := defaultVAT
		if l.VATRate != nil {
			vat = *l.VATRate
		}
		lines = append(lines, domain.Line{
			PriceItemID:  l.PriceItemID,
			Label:        l.Label,
			Quantity:     quantity,
			Unit:         l.Unit,
			UnitPrice:    l.UnitPrice,
			VATRate:      vat,
			DiscountRate: l.DiscountRate,
		})
	}
	return domain.QuoteInput{
		ClientID:       req.ClientID,
		Title:          req.Title,
		Lines:          lines,
		DiscountRate:   req.DiscountRate,
		DepositRate:    req.DepositRate,
		ApplyTravelFee: req.ApplyTravelFee,
	}, nil
}

func (req quoteRequest) needsDefaultVAT() bool {
	for _, l := range req.Lines {
		if l.VATRate == nil && l.PriceItemID == "" {
			return true
		}
	}
	return false
}

type lineResponse struct {
	PriceItemID  string           `json:"price_item_id,omitempty"`
	Label        string           `json:"label"`
	Quantity     string           `json:"quantity"`
	Unit         string           `json:"unit"`
	UnitPrice    money.Cents      `json:"unit_price_cents"`
	VATRate      money.Rate       `json:"vat_rate_bp"`
	DiscountRate money.Rate       `json:"discount_rate_bp,omitempty"`
	Total        domain.LineTotal `json:"total"`
}

type followUpStateResponse struct {
	Index         int        `json:"index"`
	ReferenceTime time.Time  `json:"reference_time"`
	NextTime      *time.Time `json:"next_time,omitempty"`
	Remaining     int        `json:"remaining"`
}

func followUpToResponse(kind followup.Kind, state followup.State) *followUpStateResponse {
	seq, err := followup.ForKind(kind)
	if err != nil {
		return nil
	}
	resp := &followUpStateResponse{
		Index:         state.Index,
		ReferenceTime: state.ReferenceAt,
		Remaining:     seq.Remaining(state),
	}
	if next, ok := seq.NextAt(state); ok {
		resp.NextTime = &next
	}
	return resp
}

type quoteResponse struct {
	ID           string                 `json:"id"`
	Number       string                 `json:"number"`
	ClientID     string                 `json:"client_id"`
	Title        string                 `json:"title,omitempty"`
	Status       domain.QuoteStatus     `json:"status"`
	Lines        []lineResponse         `json:"lines"`
	DiscountRate money.Rate             `json:"discount_rate_bp"`
	DepositRate  money.Rate             `json:"deposit_rate_bp"`
	Travel       *travel.Estimate       `json:"travel,omitempty"`
	Totals       domain.Totals          `json:"totals"`
	SentTime     *time.Time             `json:"sent_time,omitempty"`
	ValidUntil   *time.Time             `json:"valid_until,omitempty"`
	DecideTime   *time.Time             `json:"decide_time,omitempty"`
	FollowUp     *followUpStateResponse `json:"follow_up,omitempty"`
	CreateTime   time.Time              `json:"create_time"`
	UpdateTime   time.Time              `json:"update_time"`
}

func quoteToResponse(q domain.Quote) quoteResponse {
	totals := q.Totals()
	lines := make([]lineResponse, 0, len(q.Lines))
	for i, l := range q.Lines {
		line := lineResponse{
			PriceItemID:  l.PriceItemID,
			Label:        l.Label,
			Quantity:     l.Quantity.String(),
			Unit:         l.Unit,
			UnitPrice:    l.UnitPrice,
			VATRate:      l.VATRate,
			DiscountRate: l.DiscountRate,
		}
		if i < len(totals.Lines) {
			line.Total = totals.Lines[i]
		}
		lines = append(lines, line)
	}
	resp := quoteResponse{
		ID:           q.ID,
		Number:       q.Number,
		ClientID:     q.ClientID,
		Title:        q.Title,
		Status:       q.Status,
		Lines:        lines,
		DiscountRate: q.DiscountRate,
		DepositRate:  q.DepositRate,
		Travel:       q.Travel,
		Totals:       totals,
		SentTime:     q.SentAt,
		ValidUntil:   q.ValidUntil,
		DecideTime:   q.DecidedAt,
		CreateTime:   q.CreatedAt,
		UpdateTime:   q.UpdatedAt,
	}
	if q.Status == domain.QuoteSent {
		resp.FollowUp = followUpToResponse(followup.KindQuote, q.FollowUp)
	}
	return resp
}

type listQuotesResponse struct {
	Quotes        []quoteResponse `json:"quotes"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type invoiceRequest struct {
	Plan *domain.Plan `json:"plan"`
}

type installmentResponse struct {
	ID          string                 `json:"id"`
	Position    int                    `json:"position"`
	DueTime     time.Time              `json:"due_time"`
	Amount      money.Cents            `json:"amount_cents"`
	Paid        money.Cents            `json:"paid_cents"`
	Outstanding money.Cents            `json:"outstanding_cents"`
	PaidTime    *time.Time             `json:"paid_time,omitempty"`
	Overdue     bool                   `json:"overdue"`
	FollowUp    *followUpStateResponse `json:"follow_up,omitempty"`
}

type invoiceResponse struct {
	ID           string                `json:"id"`
	Number       string                `json:"number"`
	QuoteID      string                `json:"quote_id"`
	ClientID     string                `json:"client_id"`
	Title        string                `json:"title,omitempty"`
	Status       domain.InvoiceStatus  `json:"status"`
	Net          money.Cents           `json:"net_cents"`
	VATTotal     money.Cents           `json:"vat_total_cents"`
	Gross        money.Cents           `json:"gross_cents"`
	Paid         money.Cents           `json:"paid_cents"`
	Outstanding  money.Cents           `json:"outstanding_cents"`
	Overdue      bool                  `json:"overdue"`
	Plan         domain.Plan           `json:"plan"`
	Installments []installmentResponse `json:"installments"`
	IssueTime    time.Time             `json:"issue_time"`
	PaidTime     *time.Time            `json:"paid_time,omitempty"`
	CancelTime   *time.Time            `json:"cancel_time,omitempty"`
	CreateTime   time.Time             `json:"create_time"`
	UpdateTime   time.Time             `json:"update_time"`
}

func invoiceToResponse(inv domain.Invoice, now time.Time) invoiceResponse {
	open := inv.Status == domain.InvoiceIssued || inv.Status == domain.InvoicePartiallyPaid
	installments := make([]installmentResponse, 0, len(inv.Installments))
	for _, in := range inv.Installments {
		item := installmentResponse{
			ID:          in.ID,
			Position:    in.Position,
			DueTime:     in.DueAt,
			Amount:      in.Amount,
			Paid:        in.Paid,
			Outstanding: in.Outstanding(),
			PaidTime:    in.PaidAt,
			Overdue:     open && in.Overdue(now),
		}
		if open && in.Outstanding() > 0 {
			item.FollowUp = followUpToResponse(followup.KindPayment, in.FollowUp)
		}
		installments = append(installments, item)
	}
	return invoiceResponse{
		ID:           inv.ID,
		Number:       inv.Number,
		QuoteID:      inv.QuoteID,
		ClientID:     inv.ClientID,
		Title:        inv.Title,
		Status:       inv.Status,
		Net:          inv.Net,
		VATTotal:     inv.VATTotal,
		Gross:        inv.Gross,
		Paid:         inv.Paid(),
		Outstanding:  inv.Outstanding(),
		Overdue:      open && inv.Overdue(now),
		Plan:         inv.Plan,
		Installments: installments,
		IssueTime:    inv.IssuedAt,
		PaidTime:     inv.PaidAt,
		CancelTime:   inv.CancelledAt,
		CreateTime:   inv.CreatedAt,
		UpdateTime:   inv.UpdatedAt,
	}
}

type listInvoicesResponse struct {
	Invoices      []invoiceResponse `json:"invoices"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type paymentRequest struct {
	Amount   money.Cents `json:"amount_cents"`
	Method   string      `json:"method"`
	PaidTime *time.Time  `json:"paid_time"`
}

// appointmentRequest creates an appointment from explicit times or from a
// spoken transcript.
type appointmentRequest struct {
	ClientID   string     `json:"client_id"`
	QuoteID    string     `json:"quote_id"`
	Title      string     `json:"title"`
	Notes      string     `json:"notes"`
	StartTime  *time.Time `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	Transcript string     `json:"transcript"`
}

type appointmentResponse struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id,omitempty"`
	QuoteID    string    `json:"quote_id,omitempty"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

func appointmentToResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:         a.ID,
		ClientID:   a.ClientID,
		QuoteID:    a.QuoteID,
		Title:      a.Title,
		Notes:      a.Notes,
		StartTime:  a.StartAt,
		EndTime:    a.EndAt,
		CreateTime: a.CreatedAt,
		UpdateTime: a.UpdatedAt,
	}
}

type listAppointmentsResponse struct {
	Appointments []appointmentResponse `json:"appointments"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
