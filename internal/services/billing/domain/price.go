package domain

import (
	"context"
	"strings"
	"time"

	"github.com/louisbranch/tradebook/internal/money"
	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/platform/filter"
	"github.com/louisbranch/tradebook/internal/trade"
)

// PriceItem is one reusable entry of the account price library.
type PriceItem struct {
	ID        string
	AccountID string
	Label     string
	Category  string
	Unit      string
	UnitPrice money.Cents
	VATRate   money.Rate
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceItemInput carries price item fields. A nil VATRate uses the account
// default and an empty Unit uses the trade default unit.
type PriceItemInput struct {
	Label     string
	Category  string
	Unit      string
	UnitPrice money.Cents
	VATRate   *money.Rate
}

// PriceFilter lists the fields the price library can be filtered on.
var PriceFilter = filter.MustSchema(
	filter.Field{Name: "label", Column: "label", Type: filter.String},
	filter.Field{Name: "category", Column: "category", Type: filter.String},
	filter.Field{Name: "unit", Column: "unit", Type: filter.String},
	filter.Field{Name: "unit_price", Column: "unit_price_cents", Type: filter.Int},
	filter.Field{Name: "vat_rate", Column: "vat_rate_bp", Type: filter.Int},
	filter.Field{Name: "update_time", Column: "updated_at", Type: filter.Timestamp},
)

// knownUnit reports whether any trade of the catalog uses unit.
func knownUnit(unit string) bool {
	for _, cfg := range trade.All() {
		if cfg.AllowsUnit(unit) {
			return true
		}
	}
	return false
}

func (in PriceItemInput) resolve(account Account) (PriceItem, error) {
	item := PriceItem{
		Label:     strings.TrimSpace(in.Label),
		Category:  strings.ToLower(strings.TrimSpace(in.Category)),
		Unit:      strings.ToLower(strings.TrimSpace(in.Unit)),
		UnitPrice: in.UnitPrice,
		VATRate:   account.DefaultVAT,
	}
	if item.Label == "" {
		return PriceItem{}, apperrors.New(apperrors.CodePriceLabelEmpty, "price label is required")
	}
	if item.Unit == "" {
		item.Unit = account.TradeConfig().DefaultUnit
	}
	if !knownUnit(item.Unit) {
		return PriceItem{}, apperrors.WithMetadata(apperrors.CodePriceInvalidUnit, "unknown unit", map[string]string{"unit": item.Unit})
	}
	if item.UnitPrice < 0 {
		return PriceItem{}, apperrors.New(apperrors.CodePriceInvalidAmount, "unit price must not be negative")
	}
	if in.VATRate != nil {
		if !in.VATRate.Valid() {
			return PriceItem{}, apperrors.WithMetadata(apperrors.CodeQuoteInvalidRate, "invalid vat rate", map[string]string{"rate": in.VATRate.String()})
		}
		item.VATRate = *in.VATRate
	}
	return item, nil
}

// CreatePriceItem validates and stores a new price library entry.
func (s *Service) CreatePriceItem(ctx context.Context, accountID string, input PriceItemInput) (PriceItem, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return PriceItem{}, err
	}
	account, err := s.account(ctx, accountID)
	if err != nil {
		return PriceItem{}, err
	}
	item, err := input.resolve(account)
	if err != nil {
		return PriceItem{}, err
	}
	item.ID, err = s.newID()
	if err != nil {
		return PriceItem{}, err
	}
	now := s.nowUTC()
	item.AccountID = accountID
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := s.store.PutPriceItem(ctx, item); err != nil {
		return PriceItem{}, notFound(err, "price item")
	}
	return item, nil
}

// UpdatePriceItem replaces the editable fields of a price library entry.
func (s *Service) UpdatePriceItem(ctx context.Context, accountID, itemID string, input PriceItemInput) (PriceItem, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return PriceItem{}, err
	}
	existing, err := s.store.GetPriceItem(ctx, accountID, strings.TrimSpace(itemID))
	if err != nil {
		return PriceItem{}, notFound(err, "price item")
	}
	account, err := s.account(ctx, accountID)
	if err != nil {
		return PriceItem{}, err
	}
	item, err := input.resolve(account)
	if err != nil {
		return PriceItem{}, err
	}
	item.ID = existing.ID
	item.AccountID = existing.AccountID
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.nowUTC()
	if err := s.store.PutPriceItem(ctx, item); err != nil {
		return PriceItem{}, err
	}
	return item, nil
}

// GetPriceItem returns one price library entry.
func (s *Service) GetPriceItem(ctx context.Context, accountID, itemID string) (PriceItem, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return PriceItem{}, err
	}
	item, err := s.store.GetPriceItem(ctx, accountID, strings.TrimSpace(itemID))
	if err != nil {
		return PriceItem{}, notFound(err, "price item")
	}
	return item, nil
}

// DeletePriceItem removes a price library entry.
func (s *Service) DeletePriceItem(ctx context.Context, accountID, itemID string) error {
	accountID, err := s.ready(accountID)
	if err != nil {
		return err
	}
	return notFound(s.store.DeletePriceItem(ctx, accountID, strings.TrimSpace(itemID)), "price item")
}

// ListPriceItems lists the price library ordered by category then label.
func (s *Service) ListPriceItems(ctx context.Context, accountID string, input ListInput) ([]PriceItem, string, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return nil, "", err
	}
	page, err := pageFor(input, PriceFilter)
	if err != nil {
		return nil, "", err
	}
	return s.store.ListPriceItems(ctx, accountID, page)
}
