package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
)

// GetAccount loads one account's settings.
func (s *Store) GetAccount(ctx context.Context, accountID string) (domain.Account, error) {
	if err := s.check(ctx); err != nil {
		return domain.Account{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, business_name, trade, locale, currency, default_vat_bp, quote_validity_days,
       payment_terms_days, base_lat, base_lng, travel_policy_json, created_at, updated_at
FROM accounts WHERE id = ?`, strings.TrimSpace(accountID))
	account, err := scanAccount(row.Scan)
	if err != nil {
		return domain.Account{}, mapReadError(err)
	}
	return account, nil
}

// PutAccount inserts or replaces one account's settings.
func (s *Store) PutAccount(ctx context.Context, account domain.Account) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(account.ID) == "" {
		return fmt.Errorf("account id is required")
	}
	policy, err := marshalJSON(account.Travel)
	if err != nil {
		return fmt.Errorf("encode travel policy: %w", err)
	}
	lat, lng := nullPoint(account.Base)
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (
    id, business_name, trade, locale, currency, default_vat_bp, quote_validity_days,
    payment_terms_days, base_lat, base_lng, travel_policy_json, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    business_name = excluded.business_name,
    trade = excluded.trade,
    locale = excluded.locale,
    currency = excluded.currency,
    default_vat_bp = excluded.default_vat_bp,
    quote_validity_days = excluded.quote_validity_days,
    payment_terms_days = excluded.payment_terms_days,
    base_lat = excluded.base_lat,
    base_lng = excluded.base_lng,
    travel_policy_json = excluded.travel_policy_json,
    updated_at = excluded.updated_at`,
		account.ID,
		account.BusinessName,
		account.Trade,
		account.Locale,
		account.Currency,
		int64(account.DefaultVAT),
		account.QuoteValidityDays,
		account.PaymentTermsDays,
		lat,
		lng,
		policy,
		sqlitedb.ToMillis(account.CreatedAt),
		sqlitedb.ToMillis(account.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

func scanAccount(scan sqlitedb.Scanner) (domain.Account, error) {
	var (
		account   domain.Account
		vat       int64
		lat, lng  sql.NullFloat64
		policy    string
		createdAt int64
		updatedAt int64
	)
	if err := scan(
		&account.ID,
		&account.BusinessName,
		&account.Trade,
		&account.Locale,
		&account.Currency,
		&vat,
		&account.QuoteValidityDays,
		&account.PaymentTermsDays,
		&lat,
		&lng,
		&policy,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Account{}, err
	}
	if err := json.Unmarshal([]byte(policy), &account.Travel); err != nil {
		return domain.Account{}, fmt.Errorf("decode travel policy: %w", err)
	}
	account.DefaultVAT = money.Rate(vat)
	account.Base = pointFrom(lat, lng)
	account.CreatedAt = sqlitedb.FromMillis(createdAt)
	account.UpdatedAt = sqlitedb.FromMillis(updatedAt)
	return account, nil
}
