package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
)

const invoiceColumns = `id, account_id, client_id, quote_id, number, title, net_cents, vat_cents, gross_cents,
       plan_json, status, issued_at, paid_at, cancelled_at, created_at, updated_at`

const installmentColumns = `id, position, due_at, amount_cents, paid_cents, paid_at, followup_index, followup_ref_at`

// CreateInvoice marks the source quote invoiced, allocates the invoice
// number and inserts the invoice with its installments.
func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error) {
	if err := s.check(ctx); err != nil {
		return domain.Invoice{}, err
	}
	if strings.TrimSpace(invoice.ID) == "" || strings.TrimSpace(invoice.AccountID) == "" || strings.TrimSpace(invoice.QuoteID) == "" {
		return domain.Invoice{}, fmt.Errorf("invoice id, account id and quote id are required")
	}
	plan, err := marshalJSON(invoice.Plan)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("encode invoice plan: %w", err)
	}

	tx, rollbackWith, err := beginTx(ctx, s.sqlDB, "invoice create")
	if err != nil {
		return domain.Invoice{}, err
	}
	result, err := tx.ExecContext(ctx, `
UPDATE quotes SET status = ?, updated_at = ?
WHERE account_id = ? AND id = ? AND status = ?`,
		string(domain.QuoteInvoiced), sqlitedb.ToMillis(invoice.CreatedAt),
		invoice.AccountID, invoice.QuoteID, string(domain.QuoteAccepted))
	if err != nil {
		return domain.Invoice{}, rollbackWith(fmt.Errorf("mark quote invoiced: %w", err))
	}
	if err := requireAffected(result); err != nil {
		return domain.Invoice{}, rollbackWith(fmt.Errorf("%w: quote is not accepted", domain.ErrConflict))
	}

	year := invoice.IssuedAt.UTC().Year()
	seq, err := allocateSequence(ctx, tx, invoice.AccountID, sequenceInvoice, year)
	if err != nil {
		return domain.Invoice{}, rollbackWith(err)
	}
	invoice.Number = domain.InvoiceNumber(year, seq)

	_, err = tx.ExecContext(ctx, `
INSERT INTO invoices (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.AccountID,
		invoice.ClientID,
		invoice.QuoteID,
		invoice.Number,
		invoice.Title,
		int64(invoice.Net),
		int64(invoice.VATTotal),
		int64(invoice.Gross),
		plan,
		string(invoice.Status),
		sqlitedb.ToMillis(invoice.IssuedAt),
		sqlitedb.NullMillis(invoice.PaidAt),
		sqlitedb.NullMillis(invoice.CancelledAt),
		sqlitedb.ToMillis(invoice.CreatedAt),
		sqlitedb.ToMillis(invoice.UpdatedAt),
	)
	if err != nil {
		return domain.Invoice{}, rollbackWith(mapWriteError(fmt.Errorf("insert invoice: %w", err)))
	}
	for _, inst := range invoice.Installments {
		_, err := tx.ExecContext(ctx, `
INSERT INTO installments (invoice_id, `+installmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			invoice.ID,
			inst.ID,
			inst.Position,
			sqlitedb.ToMillis(inst.DueAt),
			int64(inst.Amount),
			int64(inst.Paid),
			sqlitedb.NullMillis(inst.PaidAt),
			inst.FollowUp.Index,
			sqlitedb.ToMillis(inst.FollowUp.ReferenceAt),
		)
		if err != nil {
			return domain.Invoice{}, rollbackWith(mapWriteError(fmt.Errorf("insert installment %d: %w", inst.Position, err)))
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Invoice{}, fmt.Errorf("commit invoice create: %w", err)
	}
	return invoice, nil
}

// GetInvoice loads one invoice with its installments.
func (s *Store) GetInvoice(ctx context.Context, accountID, invoiceID string) (domain.Invoice, error) {
	if err := s.check(ctx); err != nil {
		return domain.Invoice{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE account_id = ? AND id = ?`, accountID, invoiceID)
	invoice, err := scanInvoice(row.Scan)
	if err != nil {
		return domain.Invoice{}, mapReadError(err)
	}
	invoice.Installments, err = s.listInstallments(ctx, s.sqlDB, invoice.ID)
	if err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}

// ListInvoices pages one account's invoices newest first.
func (s *Store) ListInvoices(ctx context.Context, accountID string, page domain.Page) ([]domain.Invoice, string, error) {
	if err := s.check(ctx); err != nil {
		return nil, "", err
	}
	query, args, offset, err := listQuery(`SELECT `+invoiceColumns+` FROM invoices WHERE account_id = ?`, "issued_at DESC, id DESC", accountID, page)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list invoices: %w", err)
	}
	invoices := make([]domain.Invoice, 0, page.Size)
	for rows.Next() {
		invoice, err := scanInvoice(rows.Scan)
		if err != nil {
			_ = rows.Close()
			return nil, "", fmt.Errorf("scan invoice row: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, "", fmt.Errorf("iterate invoice rows: %w", err)
	}

	invoices, token := nextToken(invoices, page.Size, offset)
	for i := range invoices {
		invoices[i].Installments, err = s.listInstallments(ctx, s.sqlDB, invoices[i].ID)
		if err != nil {
			return nil, "", err
		}
	}
	return invoices, token, nil
}

// RecordPayment inserts payment and stores the invoice state it produced.
// A concurrent payment on the same invoice is reported as a conflict.
func (s *Store) RecordPayment(ctx context.Context, invoice domain.Invoice, payment domain.Payment) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	tx, rollbackWith, err := beginTx(ctx, s.sqlDB, "payment write")
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO payments (id, invoice_id, amount_cents, method, paid_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.InvoiceID,
		int64(payment.Amount),
		payment.Method,
		sqlitedb.ToMillis(payment.PaidAt),
		sqlitedb.ToMillis(payment.CreatedAt),
	)
	if err != nil {
		return rollbackWith(mapWriteError(fmt.Errorf("insert payment: %w", err)))
	}

	var paidBefore int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(paid_cents), 0) FROM installments WHERE invoice_id = ?`, invoice.ID).Scan(&paidBefore); err != nil {
		return rollbackWith(fmt.Errorf("sum installment payments: %w", err))
	}
	if money.Cents(paidBefore) != invoice.Paid()-payment.Amount {
		return rollbackWith(fmt.Errorf("%w: invoice payments changed", domain.ErrConflict))
	}

	for _, inst := range invoice.Installments {
		if _, err := tx.ExecContext(ctx, `UPDATE installments SET paid_cents = ?, paid_at = ? WHERE id = ? AND invoice_id = ?`,
			int64(inst.Paid), sqlitedb.NullMillis(inst.PaidAt), inst.ID, invoice.ID); err != nil {
			return rollbackWith(fmt.Errorf("update installment %d: %w", inst.Position, err))
		}
	}
	result, err := tx.ExecContext(ctx, `
UPDATE invoices SET status = ?, paid_at = ?, updated_at = ?
WHERE account_id = ? AND id = ? AND status IN (?, ?)`,
		string(invoice.Status),
		sqlitedb.NullMillis(invoice.PaidAt),
		sqlitedb.ToMillis(invoice.UpdatedAt),
		invoice.AccountID,
		invoice.ID,
		string(domain.InvoiceIssued),
		string(domain.InvoicePartiallyPaid),
	)
	if err != nil {
		return rollbackWith(fmt.Errorf("update invoice: %w", err))
	}
	if err := requireAffected(result); err != nil {
		return rollbackWith(fmt.Errorf("%w: invoice is no longer payable", domain.ErrConflict))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment write: %w", err)
	}
	return nil
}

// UpdateInvoiceStatus sets status, stamping cancelled_at for cancellations.
func (s *Store) UpdateInvoiceStatus(ctx context.Context, accountID, invoiceID string, status domain.InvoiceStatus, at time.Time) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	cancelledAt := sql.NullInt64{}
	if status == domain.InvoiceCancelled {
		cancelledAt = sql.NullInt64{Int64: sqlitedb.ToMillis(at), Valid: true}
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE invoices SET status = ?, cancelled_at = COALESCE(?, cancelled_at), updated_at = ?
WHERE account_id = ? AND id = ?`,
		string(status), cancelledAt, sqlitedb.ToMillis(at), accountID, invoiceID)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	return requireAffected(result)
}

func (s *Store) listInstallments(ctx context.Context, q sqlitedb.Querier, invoiceID string) ([]domain.Installment, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+installmentColumns+` FROM installments WHERE invoice_id = ? ORDER BY position`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	var installments []domain.Installment
	for rows.Next() {
		var (
			inst   domain.Installment
			dueAt  int64
			amount int64
			paid   int64
			paidAt sql.NullInt64
			refAt  int64
		)
		if err := rows.Scan(&inst.ID, &inst.Position, &dueAt, &amount, &paid, &paidAt, &inst.FollowUp.Index, &refAt); err != nil {
			return nil, fmt.Errorf("scan installment row: %w", err)
		}
		inst.DueAt = sqlitedb.FromMillis(dueAt)
		inst.Amount = money.Cents(amount)
		inst.Paid = money.Cents(paid)
		inst.PaidAt = sqlitedb.FromNullMillis(paidAt)
		inst.FollowUp.ReferenceAt = sqlitedb.FromMillis(refAt)
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installment rows: %w", err)
	}
	return installments, nil
}

func scanInvoice(scan sqlitedb.Scanner) (domain.Invoice, error) {
	var (
		invoice     domain.Invoice
		net         int64
		vat         int64
		gross       int64
		plan        string
		status      string
		issuedAt    int64
		paidAt      sql.NullInt64
		cancelledAt sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	if err := scan(
		&invoice.ID,
		&invoice.AccountID,
		&invoice.ClientID,
		&invoice.QuoteID,
		&invoice.Number,
		&invoice.Title,
		&net,
		&vat,
		&gross,
		&plan,
		&status,
		&issuedAt,
		&paidAt,
		&cancelledAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Invoice{}, err
	}
	if err := json.Unmarshal([]byte(plan), &invoice.Plan); err != nil {
		return domain.Invoice{}, fmt.Errorf("decode invoice plan: %w", err)
	}
	invoice.Net = money.Cents(net)
	invoice.VATTotal = money.Cents(vat)
	invoice.Gross = money.Cents(gross)
	invoice.Status = domain.InvoiceStatus(status)
	invoice.IssuedAt = sqlitedb.FromMillis(issuedAt)
	invoice.PaidAt = sqlitedb.FromNullMillis(paidAt)
	invoice.CancelledAt = sqlitedb.FromNullMillis(cancelledAt)
	invoice.CreatedAt = sqlitedb.FromMillis(createdAt)
	invoice.UpdatedAt = sqlitedb.FromMillis(updatedAt)
	return invoice, nil
}
