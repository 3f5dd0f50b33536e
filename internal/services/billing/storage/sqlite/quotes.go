package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
	"github.com/louisbranch/tradebook/internal/travel"
)

const quoteColumns = `id, account_id, client_id, number, title, lines_json, discount_rate_bp, deposit_rate_bp,
       travel_json, status, sent_at, valid_until, decided_at, followup_index, followup_ref_at, created_at, updated_at`

const (
	sequenceQuote   = "quote"
	sequenceInvoice = "invoice"
)

// allocateSequence returns the next number of kind for account in year.
func allocateSequence(ctx context.Context, q sqlitedb.Querier, accountID, kind string, year int) (int, error) {
	var value int
	err := q.QueryRowContext(ctx, `
INSERT INTO document_sequences (account_id, kind, year, last_value) VALUES (?, ?, ?, 1)
ON CONFLICT (account_id, kind, year) DO UPDATE SET last_value = last_value + 1
RETURNING last_value`, accountID, kind, year).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("allocate %s number: %w", kind, err)
	}
	return value, nil
}

type quoteRow struct {
	lines  string
	travel sql.NullString
	net    int64
	gross  int64
}

func encodeQuote(quote domain.Quote) (quoteRow, error) {
	lines := quote.Lines
	if lines == nil {
		lines = []domain.Line{}
	}
	encodedLines, err := marshalJSON(lines)
	if err != nil {
		return quoteRow{}, fmt.Errorf("encode quote lines: %w", err)
	}
	row := quoteRow{lines: encodedLines}
	if quote.Travel != nil {
		encodedTravel, err := marshalJSON(quote.Travel)
		if err != nil {
			return quoteRow{}, fmt.Errorf("encode quote travel: %w", err)
		}
		row.travel = sql.NullString{String: encodedTravel, Valid: true}
	}
	totals := quote.Totals()
	row.net = int64(totals.Net)
	row.gross = int64(totals.Gross)
	return row, nil
}

func followUpRef(state followup.State) sql.NullInt64 {
	if state.ReferenceAt.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: sqlitedb.ToMillis(state.ReferenceAt), Valid: true}
}

// CreateQuote allocates the next quote number and inserts quote.
func (s *Store) CreateQuote(ctx context.Context, quote domain.Quote) (domain.Quote, error) {
	if err := s.check(ctx); err != nil {
		return domain.Quote{}, err
	}
	if strings.TrimSpace(quote.ID) == "" || strings.TrimSpace(quote.AccountID) == "" {
		return domain.Quote{}, fmt.Errorf("quote id and account id are required")
	}
	encoded, err := encodeQuote(quote)
	if err != nil {
		return domain.Quote{}, err
	}

	tx, rollbackWith, err := beginTx(ctx, s.sqlDB, "quote create")
	if err != nil {
		return domain.Quote{}, err
	}
	seq, err := allocateSequence(ctx, tx, quote.AccountID, sequenceQuote, quote.CreatedAt.UTC().Year())
	if err != nil {
		return domain.Quote{}, rollbackWith(err)
	}
	quote.Number = domain.QuoteNumber(quote.CreatedAt.UTC().Year(), seq)
	_, err = tx.ExecContext(ctx, `
INSERT INTO quotes (
    id, account_id, client_id, number, title, lines_json, discount_rate_bp, deposit_rate_bp,
    travel_json, net_cents, gross_cents, status, sent_at, valid_until, decided_at,
    followup_index, followup_ref_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		quote.ID,
		quote.AccountID,
		quote.ClientID,
		quote.Number,
		quote.Title,
		encoded.lines,
		int64(quote.DiscountRate),
		int64(quote.DepositRate),
		encoded.travel,
		encoded.net,
		encoded.gross,
		string(quote.Status),
		sqlitedb.NullMillis(quote.SentAt),
		sqlitedb.NullMillis(quote.ValidUntil),
		sqlitedb.NullMillis(quote.DecidedAt),
		quote.FollowUp.Index,
		followUpRef(quote.FollowUp),
		sqlitedb.ToMillis(quote.CreatedAt),
		sqlitedb.ToMillis(quote.UpdatedAt),
	)
	if err != nil {
		return domain.Quote{}, rollbackWith(mapWriteError(fmt.Errorf("insert quote: %w", err)))
	}
	if err := tx.Commit(); err != nil {
		return domain.Quote{}, fmt.Errorf("commit quote create: %w", err)
	}
	return quote, nil
}

// UpdateQuote replaces quote when its stored status equals expected.
func (s *Store) UpdateQuote(ctx context.Context, quote domain.Quote, expected domain.QuoteStatus) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	encoded, err := encodeQuote(quote)
	if err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE quotes SET
    client_id = ?, title = ?, lines_json = ?, discount_rate_bp = ?, deposit_rate_bp = ?,
    travel_json = ?, net_cents = ?, gross_cents = ?, status = ?, sent_at = ?, valid_until = ?,
    decided_at = ?, followup_index = ?, followup_ref_at = ?, updated_at = ?
WHERE account_id = ? AND id = ? AND status = ?`,
		quote.ClientID,
		quote.Title,
		encoded.lines,
		int64(quote.DiscountRate),
		int64(quote.DepositRate),
		encoded.travel,
		encoded.net,
		encoded.gross,
		string(quote.Status),
		sqlitedb.NullMillis(quote.SentAt),
		sqlitedb.NullMillis(quote.ValidUntil),
		sqlitedb.NullMillis(quote.DecidedAt),
		quote.FollowUp.Index,
		followUpRef(quote.FollowUp),
		sqlitedb.ToMillis(quote.UpdatedAt),
		quote.AccountID,
		quote.ID,
		string(expected),
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("update quote: %w", err))
	}
	if err := requireAffected(result); err != nil {
		if _, getErr := s.GetQuote(ctx, quote.AccountID, quote.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: quote status changed", domain.ErrConflict)
	}
	return nil
}

// GetQuote loads one quote of an account.
func (s *Store) GetQuote(ctx context.Context, accountID, quoteID string) (domain.Quote, error) {
	if err := s.check(ctx); err != nil {
		return domain.Quote{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE account_id = ? AND id = ?`, accountID, quoteID)
	quote, err := scanQuote(row.Scan)
	if err != nil {
		return domain.Quote{}, mapReadError(err)
	}
	return quote, nil
}

// ListQuotes pages one account's quotes newest first.
func (s *Store) ListQuotes(ctx context.Context, accountID string, page domain.Page) ([]domain.Quote, string, error) {
	if err := s.check(ctx); err != nil {
		return nil, "", err
	}
	query, args, offset, err := listQuery(`SELECT `+quoteColumns+` FROM quotes WHERE account_id = ?`, "created_at DESC, id DESC", accountID, page)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]domain.Quote, 0, page.Size)
	for rows.Next() {
		quote, err := scanQuote(rows.Scan)
		if err != nil {
			return nil, "", fmt.Errorf("scan quote row: %w", err)
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate quote rows: %w", err)
	}
	quotes, token := nextToken(quotes, page.Size, offset)
	return quotes, token, nil
}

// ExpireQuotes marks sent quotes whose validity ended at or before now.
func (s *Store) ExpireQuotes(ctx context.Context, now time.Time) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE quotes SET status = ?, updated_at = ?
WHERE status = ? AND valid_until IS NOT NULL AND valid_until <= ?`,
		string(domain.QuoteExpired), sqlitedb.ToMillis(now), string(domain.QuoteSent), sqlitedb.ToMillis(now))
	if err != nil {
		return 0, fmt.Errorf("expire quotes: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire quotes: %w", err)
	}
	return int(affected), nil
}

func scanQuote(scan sqlitedb.Scanner) (domain.Quote, error) {
	var (
		quote      domain.Quote
		lines      string
		discount   int64
		deposit    int64
		travelJSON sql.NullString
		status     string
		sentAt     sql.NullInt64
		validUntil sql.NullInt64
		decidedAt  sql.NullInt64
		refAt      sql.NullInt64
		createdAt  int64
		updatedAt  int64
	)
	if err := scan(
		&quote.ID,
		&quote.AccountID,
		&quote.ClientID,
		&quote.Number,
		&quote.Title,
		&lines,
		&discount,
		&deposit,
		&travelJSON,
		&status,
		&sentAt,
		&validUntil,
		&decidedAt,
		&quote.FollowUp.Index,
		&refAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Quote{}, err
	}
	if err := json.Unmarshal([]byte(lines), &quote.Lines); err != nil {
		return domain.Quote{}, fmt.Errorf("decode quote lines: %w", err)
	}
	if travelJSON.Valid {
		var estimate travel.Estimate
		if err := json.Unmarshal([]byte(travelJSON.String), &estimate); err != nil {
			return domain.Quote{}, fmt.Errorf("decode quote travel: %w", err)
		}
		quote.Travel = &estimate
	}
	quote.DiscountRate = money.Rate(discount)
	quote.DepositRate = money.Rate(deposit)
	quote.Status = domain.QuoteStatus(status)
	quote.SentAt = sqlitedb.FromNullMillis(sentAt)
	quote.ValidUntil = sqlitedb.FromNullMillis(validUntil)
	quote.DecidedAt = sqlitedb.FromNullMillis(decidedAt)
	if refAt.Valid {
		quote.FollowUp.ReferenceAt = sqlitedb.FromMillis(refAt.Int64)
	}
	quote.CreatedAt = sqlitedb.FromMillis(createdAt)
	quote.UpdatedAt = sqlitedb.FromMillis(updatedAt)
	return quote, nil
}
