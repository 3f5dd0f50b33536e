package domain

import (
	"sort"
	"strconv"
	"strings"

	"github.com/louisbranch/tradebook/internal/money"
	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
)

// Line is one priced row of a quote.
type Line struct {
	Label        string         `json:"label"`
	Quantity     money.Quantity `json:"quantity"`
	Unit         string         `json:"unit"`
	UnitPrice    money.Cents    `json:"unit_price_cents"`
	VATRate      money.Rate     `json:"vat_rate_bp"`
	DiscountRate money.Rate     `json:"discount_rate_bp,omitempty"`
	// PriceItemID links the line to the price library entry it came from.
	PriceItemID string `json:"price_item_id,omitempty"`
}

// LineTotal is the computed amount of one line before the global discount.
type LineTotal struct {
	Gross    money.Cents `json:"gross_cents"`
	Discount money.Cents `json:"discount_cents"`
	Net      money.Cents `json:"net_cents"`
}

// VATGroup aggregates the lines sharing one VAT rate.
type VATGroup struct {
	Rate     money.Rate  `json:"rate_bp"`
	Base     money.Cents `json:"base_cents"`
	Discount money.Cents `json:"discount_cents"`
	Net      money.Cents `json:"net_cents"`
	VAT      money.Cents `json:"vat_cents"`
}

// Totals holds every derived amount of a quote.
type Totals struct {
	Lines    []LineTotal `json:"lines"`
	Subtotal money.Cents `json:"subtotal_cents"`
	Discount money.Cents `json:"discount_cents"`
	Net      money.Cents `json:"net_cents"`
	VAT      []VATGroup  `json:"vat"`
	VATTotal money.Cents `json:"vat_total_cents"`
	Gross    money.Cents `json:"gross_cents"`
	Deposit  money.Cents `json:"deposit_cents"`
}

// ValidateLines checks every line of a quote.
func ValidateLines(lines []Line) error {
	for i, line := range lines {
		reason := ""
		switch {
		case strings.TrimSpace(line.Label) == "":
			reason = "label is required"
		case line.Quantity <= 0:
			reason = "quantity must be positive"
		case line.UnitPrice < 0:
			reason = "unit price must not be negative"
		case !line.VATRate.Valid():
			reason = "vat rate out of range"
		case !line.DiscountRate.Valid():
			reason = "discount out of range"
		}
		if reason != "" {
			return apperrors.WithMetadata(apperrors.CodeQuoteInvalidLine, "invalid quote line", map[string]string{
				"line":   strconv.Itoa(i + 1),
				"reason": reason,
			})
		}
	}
	return nil
}

// ComputeTotals derives line, VAT and grand totals.
//
// Line amounts are quantity times unit price, minus the line discount. The
// global discount applies to each VAT group base and VAT is rounded once per
// group. The deposit is a share of the gross total.
func ComputeTotals(lines []Line, discount, deposit money.Rate) (Totals, error) {
	if err := ValidateLines(lines); err != nil {
		return Totals{}, err
	}
	for _, rate := range []money.Rate{discount, deposit} {
		if !rate.Valid() {
			return Totals{}, apperrors.WithMetadata(apperrors.CodeQuoteInvalidRate, "invalid rate", map[string]string{"rate": rate.String()})
		}
	}

	totals := Totals{Lines: make([]LineTotal, len(lines))}
	groups := make(map[money.Rate]*VATGroup)
	for i, line := range lines {
		gross := line.Quantity.Times(line.UnitPrice)
		lineDiscount := line.DiscountRate.Of(gross)
		lt := LineTotal{Gross: gross, Discount: lineDiscount, Net: gross - lineDiscount}
		totals.Lines[i] = lt
		totals.Subtotal += lt.Net

		group, ok := groups[line.VATRate]
		if !ok {
			group = &VATGroup{Rate: line.VATRate}
			groups[line.VATRate] = group
		}
		group.Base += lt.Net
	}

	rates := make([]money.Rate, 0, len(groups))
	for rate := range groups {
		rates = append(rates, rate)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] > rates[j] })

	totals.VAT = make([]VATGroup, 0, len(rates))
	for _, rate := range rates {
		group := groups[rate]
		group.Discount = discount.Of(group.Base)
		group.Net = group.Base - group.Discount
		group.VAT = rate.Of(group.Net)
		totals.Discount += group.Discount
		totals.Net += group.Net
		totals.VATTotal += group.VAT
		totals.VAT = append(totals.VAT, *group)
	}
	totals.Gross = totals.Net + totals.VATTotal
	totals.Deposit = deposit.Of(totals.Gross)
	return totals, nil
}
