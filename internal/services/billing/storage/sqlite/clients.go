package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/tradebook/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
)

const clientColumns = `id, account_id, name, email, phone, address, lat, lng, notes, created_at, updated_at`

// PutClient inserts or updates one client. An existing id owned by another
// account is reported as a conflict.
func (s *Store) PutClient(ctx context.Context, client domain.Client) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(client.ID) == "" || strings.TrimSpace(client.AccountID) == "" {
		return fmt.Errorf("client id and account id are required")
	}
	lat, lng := nullPoint(client.Location)
	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    email = excluded.email,
    phone = excluded.phone,
    address = excluded.address,
    lat = excluded.lat,
    lng = excluded.lng,
    notes = excluded.notes,
    updated_at = excluded.updated_at
WHERE clients.account_id = excluded.account_id`,
		client.ID,
		client.AccountID,
		client.Name,
		client.Email,
		client.Phone,
		client.Address,
		lat,
		lng,
		client.Notes,
		sqlitedb.ToMillis(client.CreatedAt),
		sqlitedb.ToMillis(client.UpdatedAt),
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("put client: %w", err))
	}
	if err := requireAffected(result); err != nil {
		return fmt.Errorf("%w: client owned by another account", domain.ErrConflict)
	}
	return nil
}

// GetClient loads one client of an account.
func (s *Store) GetClient(ctx context.Context, accountID, clientID string) (domain.Client, error) {
	if err := s.check(ctx); err != nil {
		return domain.Client{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE account_id = ? AND id = ?`, accountID, clientID)
	client, err := scanClient(row.Scan)
	if err != nil {
		return domain.Client{}, mapReadError(err)
	}
	return client, nil
}

// DeleteClient removes one client. Referenced clients are a conflict.
func (s *Store) DeleteClient(ctx context.Context, accountID, clientID string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM clients WHERE account_id = ? AND id = ?`, accountID, clientID)
	if err != nil {
		return mapWriteError(fmt.Errorf("delete client: %w", err))
	}
	return requireAffected(result)
}

// ListClients pages one account's clients by name.
func (s *Store) ListClients(ctx context.Context, accountID string, page domain.Page) ([]domain.Client, string, error) {
	if err := s.check(ctx); err != nil {
		return nil, "", err
	}
	query, args, offset, err := listQuery(`SELECT `+clientColumns+` FROM clients WHERE account_id = ?`, "name COLLATE NOCASE, id", accountID, page)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, page.Size)
	for rows.Next() {
		client, err := scanClient(rows.Scan)
		if err != nil {
			return nil, "", fmt.Errorf("scan client row: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate client rows: %w", err)
	}
	clients, token := nextToken(clients, page.Size, offset)
	return clients, token, nil
}

func scanClient(scan sqlitedb.Scanner) (domain.Client, error) {
	var (
		client    domain.Client
		lat, lng  sql.NullFloat64
		createdAt int64
		updatedAt int64
	)
	if err := scan(
		&client.ID,
		&client.AccountID,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.Address,
		&lat,
		&lng,
		&client.Notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Client{}, err
	}
	client.Location = pointFrom(lat, lng)
	client.CreatedAt = sqlitedb.FromMillis(createdAt)
	client.UpdatedAt = sqlitedb.FromMillis(updatedAt)
	return client, nil
}
