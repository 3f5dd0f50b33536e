// Package sqlite provides SQLite-backed persistence for billing state.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/tradebook/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
	"github.com/louisbranch/tradebook/internal/services/billing/storage/sqlite/migrations"
	"github.com/louisbranch/tradebook/internal/travel"
)

var errNotConfigured = errors.New("storage is not configured")

// Store persists billing state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ domain.Store = (*Store)(nil)

// Open opens a billing SQLite store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := sqlitedb.Open(ctx, path, migrations.FS)
	if err != nil {
		return nil, err
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	return nil
}

// mapWriteError converts constraint failures to domain sentinels.
func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case sqlitedb.IsUniqueConstraintError(err), sqlitedb.IsForeignKeyConstraintError(err):
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	default:
		return err
	}
}

func mapReadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// requireAffected maps a zero-row write to ErrNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func beginTx(ctx context.Context, db *sql.DB, what string) (*sql.Tx, func(error) error, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin %s: %w", what, err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback %s: %v", cause, what, rollbackErr)
		}
		return cause
	}
	return tx, rollbackWith, nil
}

// listQuery appends the page filter, order and bounds to a base query that
// already selects rows for one account.
func listQuery(base, order string, accountID string, page domain.Page) (string, []any, int, error) {
	offset := 0
	if page.Token != "" {
		value, err := strconv.Atoi(page.Token)
		if err != nil || value < 0 {
			return "", nil, 0, fmt.Errorf("invalid page token %q", page.Token)
		}
		offset = value
	}
	args := []any{accountID}
	query := base
	if !page.Where.Empty() {
		query += " AND (" + page.Where.Clause + ")"
		args = append(args, page.Where.Params...)
	}
	query += " ORDER BY " + order + " LIMIT ? OFFSET ?"
	args = append(args, page.Size+1, offset)
	return query, args, offset, nil
}

// nextToken trims the extra probe row and returns the following page token.
func nextToken[T any](items []T, size, offset int) ([]T, string) {
	if len(items) > size {
		return items[:size], strconv.Itoa(offset + size)
	}
	return items, ""
}

func nullPoint(p *travel.Point) (sql.NullFloat64, sql.NullFloat64) {
	if p == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Lat, Valid: true}, sql.NullFloat64{Float64: p.Lng, Valid: true}
}

func pointFrom(lat, lng sql.NullFloat64) *travel.Point {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &travel.Point{Lat: lat.Float64, Lng: lng.Float64}
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}

func marshalJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
