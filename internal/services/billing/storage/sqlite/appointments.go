package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tradebook/internal/platform/storage/sqlitedb"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
)

const appointmentColumns = `id, account_id, client_id, quote_id, title, notes, start_at, end_at, created_at, updated_at`

// PutAppointment inserts one appointment.
func (s *Store) PutAppointment(ctx context.Context, appointment domain.Appointment) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(appointment.ID) == "" || strings.TrimSpace(appointment.AccountID) == "" {
		return fmt.Errorf("appointment id and account id are required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `INSERT INTO appointments (`+appointmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appointment.ID,
		appointment.AccountID,
		nullString(appointment.ClientID),
		nullString(appointment.QuoteID),
		appointment.Title,
		appointment.Notes,
		sqlitedb.ToMillis(appointment.StartAt),
		sqlitedb.ToMillis(appointment.EndAt),
		sqlitedb.ToMillis(appointment.CreatedAt),
		sqlitedb.ToMillis(appointment.UpdatedAt),
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("put appointment: %w", err))
	}
	return nil
}

// GetAppointment loads one appointment of an account.
func (s *Store) GetAppointment(ctx context.Context, accountID, appointmentID string) (domain.Appointment, error) {
	if err := s.check(ctx); err != nil {
		return domain.Appointment{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE account_id = ? AND id = ?`, accountID, appointmentID)
	appointment, err := scanAppointment(row.Scan)
	if err != nil {
		return domain.Appointment{}, mapReadError(err)
	}
	return appointment, nil
}

// DeleteAppointment removes one appointment.
func (s *Store) DeleteAppointment(ctx context.Context, accountID, appointmentID string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM appointments WHERE account_id = ? AND id = ?`, accountID, appointmentID)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return requireAffected(result)
}

// ListAppointments lists appointments starting in [from, to).
func (s *Store) ListAppointments(ctx context.Context, accountID string, from, to time.Time) ([]domain.Appointment, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.queryAppointments(ctx, `
SELECT `+appointmentColumns+` FROM appointments
WHERE account_id = ? AND start_at >= ? AND start_at < ?
ORDER BY start_at, id`, accountID, sqlitedb.ToMillis(from), sqlitedb.ToMillis(to))
}

// ListOverlappingAppointments lists appointments sharing any instant with
// [start, end), excluding excludeID.
func (s *Store) ListOverlappingAppointments(ctx context.Context, accountID string, start, end time.Time, excludeID string) ([]domain.Appointment, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.queryAppointments(ctx, `
SELECT `+appointmentColumns+` FROM appointments
WHERE account_id = ? AND start_at < ? AND end_at > ? AND id <> ?
ORDER BY start_at, id`, accountID, sqlitedb.ToMillis(end), sqlitedb.ToMillis(start), excludeID)
}

func (s *Store) queryAppointments(ctx context.Context, query string, args ...any) ([]domain.Appointment, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []domain.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan appointment row: %w", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointment rows: %w", err)
	}
	return appointments, nil
}

func scanAppointment(scan sqlitedb.Scanner) (domain.Appointment, error) {
	var (
		appointment domain.Appointment
		clientID    sql.NullString
		quoteID     sql.NullString
		startAt     int64
		endAt       int64
		createdAt   int64
		updatedAt   int64
	)
	if err := scan(
		&appointment.ID,
		&appointment.AccountID,
		&clientID,
		&quoteID,
		&appointment.Title,
		&appointment.Notes,
		&startAt,
		&endAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Appointment{}, err
	}
	appointment.ClientID = clientID.String
	appointment.QuoteID = quoteID.String
	appointment.StartAt = sqlitedb.FromMillis(startAt)
	appointment.EndAt = sqlitedb.FromMillis(endAt)
	appointment.CreatedAt = sqlitedb.FromMillis(createdAt)
	appointment.UpdatedAt = sqlitedb.FromMillis(updatedAt)
	return appointment, nil
}
