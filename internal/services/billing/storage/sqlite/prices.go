package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
)

const priceColumns = `id, account_id, label, category, unit, unit_price_cents, vat_rate_bp, created_at, updated_at`

// PutPriceItem inserts or updates one price library entry.
func (s *Store) PutPriceItem(ctx context.Context, item domain.PriceItem) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.AccountID) == "" {
		return fmt.Errorf("price item id and account id are required")
	}
	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO price_items (`+priceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    label = excluded.label,
    category = excluded.category,
    unit = excluded.unit,
    unit_price_cents = excluded.unit_price_cents,
    vat_rate_bp = excluded.vat_rate_bp,
    updated_at = excluded.updated_at
WHERE price_items.account_id = excluded.account_id`,
		item.ID,
		item.AccountID,
		item.Label,
		item.Category,
		item.Unit,
		int64(item.UnitPrice),
		int64(item.VATRate),
		sqlitedb.ToMillis(item.CreatedAt),
		sqlitedb.ToMillis(item.UpdatedAt),
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("put price item: %w", err))
	}
	if err := requireAffected(result); err != nil {
		return fmt.Errorf("%w: price item owned by another account", domain.ErrConflict)
	}
	return nil
}

// GetPriceItem loads one price library entry.
func (s *Store) GetPriceItem(ctx context.Context, accountID, itemID string) (domain.PriceItem, error) {
	if err := s.check(ctx); err != nil {
		return domain.PriceItem{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+priceColumns+` FROM price_items WHERE account_id = ? AND id = ?`, accountID, itemID)
	item, err := scanPriceItem(row.Scan)
	if err != nil {
		return domain.PriceItem{}, mapReadError(err)
	}
	return item, nil
}

// DeletePriceItem removes one price library entry.
func (s *Store) DeletePriceItem(ctx context.Context, accountID, itemID string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM price_items WHERE account_id = ? AND id = ?`, accountID, itemID)
	if err != nil {
		return fmt.Errorf("delete price item: %w", err)
	}
	return requireAffected(result)
}

// ListPriceItems pages one account's price library by category and label.
func (s *Store) ListPriceItems(ctx context.Context, accountID string, page domain.Page) ([]domain.PriceItem, string, error) {
	if err := s.check(ctx); err != nil {
		return nil, "", err
	}
	query, args, offset, err := listQuery(`SELECT `+priceColumns+` FROM price_items WHERE account_id = ?`, "category, label COLLATE NOCASE, id", accountID, page)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list price items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.PriceItem, 0, page.Size)
	for rows.Next() {
		item, err := scanPriceItem(rows.Scan)
		if err != nil {
			return nil, "", fmt.Errorf("scan price item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate price item rows: %w", err)
	}
	items, token := nextToken(items, page.Size, offset)
	return items, token, nil
}

func scanPriceItem(scan sqlitedb.Scanner) (domain.PriceItem, error) {
	var (
		item      domain.PriceItem
		price     int64
		vat       int64
		createdAt int64
		updatedAt int64
	)
	if err := scan(
		&item.ID,
		&item.AccountID,
		&item.Label,
		&item.Category,
		&item.Unit,
		&price,
		&vat,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.PriceItem{}, err
	}
	item.UnitPrice = money.Cents(price)
	item.VATRate = money.Rate(vat)
	item.CreatedAt = sqlitedb.FromMillis(createdAt)
	item.UpdatedAt = sqlitedb.FromMillis(updatedAt)
	return item, nil
}
