package domain

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/voice"
)

// DefaultAppointmentDuration applies when only a start time is known.
const DefaultAppointmentDuration = time.Hour

// Appointment is a scheduled visit.
type Appointment struct {
	ID        string
	AccountID string
	ClientID  string
	QuoteID   string
	Title     string
	Notes     string
	StartAt   time.Time
	EndAt     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Overlaps reports whether a and other share any instant.
func (a Appointment) Overlaps(other Appointment) bool {
	return a.StartAt.Before(other.EndAt) && other.StartAt.Before(a.EndAt)
}

// AppointmentInput carries appointment fields.
type AppointmentInput struct {
	ClientID string
	QuoteID  string
	Title    string
	Notes    string
	StartAt  time.Time
	EndAt    time.Time
}

// AppointmentFromCommand fills an appointment from a parsed voice command.
// The command must carry a date; the start defaults to 09:00 in loc.
func AppointmentFromCommand(cmd voice.Command, loc *time.Location) (AppointmentInput, error) {
	if cmd.Date == nil {
		return AppointmentInput{}, apperrors.New(apperrors.CodeAppointmentInvalidRange, "no date in voice command")
	}
	if loc == nil {
		loc = time.UTC
	}
	hour, minute := 9, 0
	if at, ok := cmd.At(); ok && cmd.Time != "" {
		hour, minute = at.Hour(), at.Minute()
	}
	day := *cmd.Date
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	title := cmd.Description
	if title == "" {
		title = cmd.Client
	}
	return AppointmentInput{
		Title:   title,
		StartAt: start,
		EndAt:   start.Add(DefaultAppointmentDuration),
	}, nil
}

// CreateAppointment stores an appointment that overlaps no other one.
func (s *Service) CreateAppointment(ctx context.Context, accountID string, input AppointmentInput) (Appointment, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Appointment{}, err
	}
	appointment := Appointment{
		AccountID: accountID,
		ClientID:  strings.TrimSpace(input.ClientID),
		QuoteID:   strings.TrimSpace(input.QuoteID),
		Title:     strings.TrimSpace(input.Title),
		Notes:     strings.TrimSpace(input.Notes),
		StartAt:   input.StartAt.UTC().Truncate(time.Millisecond),
		EndAt:     input.EndAt.UTC().Truncate(time.Millisecond),
	}
	if appointment.EndAt.IsZero() && !appointment.StartAt.IsZero() {
		appointment.EndAt = appointment.StartAt.Add(DefaultAppointmentDuration)
	}
	if appointment.StartAt.IsZero() || !appointment.EndAt.After(appointment.StartAt) {
		return Appointment{}, apperrors.New(apperrors.CodeAppointmentInvalidRange, "appointment must end after it starts")
	}
	if appointment.Title == "" {
		return Appointment{}, invalid("title is required")
	}
	if appointment.ClientID != "" {
		if _, err := s.store.GetClient(ctx, accountID, appointment.ClientID); err != nil {
			return Appointment{}, notFound(err, "client")
		}
	}
	if appointment.QuoteID != "" {
		if _, err := s.store.GetQuote(ctx, accountID, appointment.QuoteID); err != nil {
			return Appointment{}, notFound(err, "quote")
		}
	}

	overlapping, err := s.store.ListOverlappingAppointments(ctx, accountID, appointment.StartAt, appointment.EndAt, "")
	if err != nil {
		return Appointment{}, err
	}
	if len(overlapping) > 0 {
		return Appointment{}, apperrors.WithMetadata(apperrors.CodeAppointmentOverlap, "appointment overlaps another", map[string]string{"appointment_id": overlapping[0].ID})
	}

	appointment.ID, err = s.newID()
	if err != nil {
		return Appointment{}, err
	}
	now := s.nowUTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	if err := s.store.PutAppointment(ctx, appointment); err != nil {
		return Appointment{}, notFound(err, "appointment")
	}
	return appointment, nil
}

// GetAppointment returns one appointment of the account.
func (s *Service) GetAppointment(ctx context.Context, accountID, appointmentID string) (Appointment, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Appointment{}, err
	}
	appointment, err := s.store.GetAppointment(ctx, accountID, strings.TrimSpace(appointmentID))
	if err != nil {
		return Appointment{}, notFound(err, "appointment")
	}
	return appointment, nil
}

// DeleteAppointment removes an appointment.
func (s *Service) DeleteAppointment(ctx context.Context, accountID, appointmentID string) error {
	accountID, err := s.ready(accountID)
	if err != nil {
		return err
	}
	return notFound(s.store.DeleteAppointment(ctx, accountID, strings.TrimSpace(appointmentID)), "appointment")
}

// ListAppointments lists appointments starting in [from, to) by start time.
// A zero to means one week after from.
func (s *Service) ListAppointments(ctx context.Context, accountID string, from, to time.Time) ([]Appointment, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = s.nowUTC()
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, 7)
	}
	if !to.After(from) {
		return nil, apperrors.New(apperrors.CodeAppointmentInvalidRange, "range must end after it starts")
	}
	return s.store.ListAppointments(ctx, accountID, from.UTC(), to.UTC())
}
