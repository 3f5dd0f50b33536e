package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
)

// followUpTable maps a follow-up kind to the table holding its state.
func followUpTable(kind followup.Kind) (string, error) {
	switch kind {
	case followup.KindQuote:
		return "quotes", nil
	case followup.KindPayment:
		return "installments", nil
	default:
		return "", fmt.Errorf("%w: %q", followup.ErrUnknownKind, kind)
	}
}

// ListFollowUpTargets lists the quotes or installments still in their
// follow-up sequence whose reference time has passed.
func (s *Store) ListFollowUpTargets(ctx context.Context, kind followup.Kind, now time.Time, maxIndex int) ([]domain.FollowUpTarget, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	nowMillis := sqlitedb.ToMillis(now)

	var (
		rows *sql.Rows
		err  error
	)
	switch kind {
	case followup.KindQuote:
		rows, err = s.sqlDB.QueryContext(ctx, `
SELECT q.id, q.account_id, COALESCE(a.business_name, ''), COALESCE(a.locale, ''), COALESCE(a.currency, ''),
       c.id, c.name, c.email, q.number, 0, q.gross_cents, NULL, q.followup_index, q.followup_ref_at
FROM quotes q
JOIN clients c ON c.id = q.client_id
LEFT JOIN accounts a ON a.id = q.account_id
WHERE q.status = ? AND q.valid_until > ? AND q.followup_index < ?
  AND q.followup_ref_at IS NOT NULL AND q.followup_ref_at <= ?
ORDER BY q.followup_ref_at, q.id`,
			string(domain.QuoteSent), nowMillis, maxIndex, nowMillis)
	case followup.KindPayment:
		rows, err = s.sqlDB.QueryContext(ctx, `
SELECT i.id, inv.account_id, COALESCE(a.business_name, ''), COALESCE(a.locale, ''), COALESCE(a.currency, ''),
       c.id, c.name, c.email, inv.number, i.position, i.amount_cents - i.paid_cents, i.due_at,
       i.followup_index, i.followup_ref_at
FROM installments i
JOIN invoices inv ON inv.id = i.invoice_id
JOIN clients c ON c.id = inv.client_id
LEFT JOIN accounts a ON a.id = inv.account_id
WHERE inv.status IN (?, ?) AND i.paid_cents < i.amount_cents AND i.followup_index < ?
  AND i.followup_ref_at <= ?
ORDER BY i.followup_ref_at, i.id`,
			string(domain.InvoiceIssued), string(domain.InvoicePartiallyPaid), maxIndex, nowMillis)
	default:
		_, err = followUpTable(kind)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("list %s follow-up targets: %w", kind, err)
	}
	defer rows.Close()

	var targets []domain.FollowUpTarget
	for rows.Next() {
		var (
			target domain.FollowUpTarget
			amount int64
			dueAt  sql.NullInt64
			refAt  int64
		)
		if err := rows.Scan(
			&target.TargetID,
			&target.AccountID,
			&target.BusinessName,
			&target.Locale,
			&target.Currency,
			&target.ClientID,
			&target.ClientName,
			&target.ClientEmail,
			&target.Number,
			&target.Position,
			&amount,
			&dueAt,
			&target.State.Index,
			&refAt,
		); err != nil {
			return nil, fmt.Errorf("scan follow-up target: %w", err)
		}
		target.Kind = kind
		target.Amount = money.Cents(amount)
		target.DueAt = sqlitedb.FromNullMillis(dueAt)
		target.State.ReferenceAt = sqlitedb.FromMillis(refAt)
		targets = append(targets, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follow-up targets: %w", err)
	}
	return targets, nil
}

// GetFollowUpState loads the follow-up state of one target.
func (s *Store) GetFollowUpState(ctx context.Context, kind followup.Kind, targetID string) (followup.State, error) {
	if err := s.check(ctx); err != nil {
		return followup.State{}, err
	}
	table, err := followUpTable(kind)
	if err != nil {
		return followup.State{}, err
	}
	var (
		state followup.State
		refAt int64
	)
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT followup_index, followup_ref_at FROM `+table+` WHERE id = ? AND followup_ref_at IS NOT NULL`, targetID,
	).Scan(&state.Index, &refAt)
	if err != nil {
		return followup.State{}, mapReadError(err)
	}
	state.ReferenceAt = sqlitedb.FromMillis(refAt)
	return state, nil
}

// AdvanceFollowUp stores next when the stored index equals expectedIndex.
func (s *Store) AdvanceFollowUp(ctx context.Context, kind followup.Kind, targetID string, expectedIndex int, next followup.State) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}
	table, err := followUpTable(kind)
	if err != nil {
		return false, err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE `+table+` SET followup_index = ?, followup_ref_at = ? WHERE id = ? AND followup_index = ?`,
		next.Index, sqlitedb.ToMillis(next.ReferenceAt), targetID, expectedIndex)
	if err != nil {
		return false, fmt.Errorf("advance %s follow-up: %w", kind, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance %s follow-up: %w", kind, err)
	}
	return affected == 1, nil
}
