package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/currency"

	"github.com/louisbranch/tradebook/internal/money"
	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/platform/i18n"
	"github.com/louisbranch/tradebook/internal/trade"
	"github.com/louisbranch/tradebook/internal/travel"
)

const (
	defaultQuoteValidityDays = 30
	defaultPaymentTermsDays  = 30
	maxTermDays              = 365
)

// Account holds one tradesperson's business settings.
type Account struct {
	ID                string
	BusinessName      string
	Trade             string
	Locale            string
	Currency          string
	DefaultVAT        money.Rate
	QuoteValidityDays int
	PaymentTermsDays  int
	Base              *travel.Point
	Travel            travel.Policy
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TradeConfig resolves the account trade, falling back to generic.
func (a Account) TradeConfig() trade.Config {
	cfg, _ := trade.Lookup(a.Trade)
	return cfg
}

// CurrencyUnit returns the account currency, EUR when unset or unknown.
func (a Account) CurrencyUnit() currency.Unit {
	unit, err := currency.ParseISO(a.Currency)
	if err != nil {
		return money.EUR
	}
	return unit
}

// DefaultAccount returns the settings used before an account saves its own.
func DefaultAccount(accountID string) Account {
	cfg, _ := trade.Lookup(trade.GenericID)
	return Account{
		ID:                accountID,
		Trade:             cfg.ID,
		Locale:            i18n.DefaultTag().String(),
		Currency:          money.EUR.String(),
		DefaultVAT:        cfg.DefaultVAT,
		QuoteValidityDays: defaultQuoteValidityDays,
		PaymentTermsDays:  defaultPaymentTermsDays,
		Travel: travel.Policy{
			RoadFactor: travel.DefaultRoadFactor,
			RoundTrip:  true,
		},
	}
}

// AccountInput updates account settings. Nil fields keep the stored value.
type AccountInput struct {
	BusinessName      *string
	Trade             *string
	Locale            *string
	Currency          *string
	DefaultVAT        *money.Rate
	QuoteValidityDays *int
	PaymentTermsDays  *int
	Base              *travel.Point
	Travel            *travel.Policy
}

// GetAccount returns the stored account or its defaults.
func (s *Service) GetAccount(ctx context.Context, accountID string) (Account, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Account{}, err
	}
	return s.account(ctx, accountID)
}

func (s *Service) account(ctx context.Context, accountID string) (Account, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return DefaultAccount(accountID), nil
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// UpdateAccount validates and stores account settings.
func (s *Service) UpdateAccount(ctx context.Context, accountID string, input AccountInput) (Account, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Account{}, err
	}
	account, err := s.account(ctx, accountID)
	if err != nil {
		return Account{}, err
	}

	if input.BusinessName != nil {
		account.BusinessName = strings.TrimSpace(*input.BusinessName)
	}
	if input.Trade != nil {
		cfg, ok := trade.Lookup(*input.Trade)
		if !ok {
			return Account{}, invalidSettings("unknown trade " + strings.TrimSpace(*input.Trade))
		}
		account.Trade = cfg.ID
	}
	if input.Locale != nil {
		tag, ok := i18n.ParseTag(*input.Locale)
		if !ok {
			return Account{}, invalidSettings("unsupported locale " + strings.TrimSpace(*input.Locale))
		}
		account.Locale = tag.String()
	}
	if input.Currency != nil {
		unit, err := currency.ParseISO(strings.TrimSpace(*input.Currency))
		if err != nil {
			return Account{}, invalidSettings("unknown currency " + strings.TrimSpace(*input.Currency))
		}
		account.Currency = unit.String()
	}
	if input.DefaultVAT != nil {
		if !input.DefaultVAT.Valid() {
			return Account{}, invalidSettings("default vat out of range")
		}
		account.DefaultVAT = *input.DefaultVAT
	}
	if input.QuoteValidityDays != nil {
		if *input.QuoteValidityDays <= 0 || *input.QuoteValidityDays > maxTermDays {
			return Account{}, invalidSettings("quote validity must be between 1 and 365 days")
		}
		account.QuoteValidityDays = *input.QuoteValidityDays
	}
	if input.PaymentTermsDays != nil {
		if *input.PaymentTermsDays < 0 || *input.PaymentTermsDays > maxTermDays {
			return Account{}, invalidSettings("payment terms must be between 0 and 365 days")
		}
		account.PaymentTermsDays = *input.PaymentTermsDays
	}
	if input.Base != nil {
		if err := input.Base.Validate(); err != nil {
			return Account{}, apperrors.Wrap(apperrors.CodeTravelInvalidCoordinates, "invalid base location", err)
		}
		base := *input.Base
		account.Base = &base
	}
	if input.Travel != nil {
		if err := input.Travel.Validate(); err != nil {
			return Account{}, invalidSettings(err.Error())
		}
		account.Travel = *input.Travel
	}

	now := s.nowUTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	if err := s.store.PutAccount(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

func invalidSettings(reason string) error {
	return apperrors.WithMetadata(apperrors.CodeAccountInvalidSettings, "invalid account settings: "+reason, map[string]string{"reason": reason})
}
