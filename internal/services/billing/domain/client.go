package domain

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/platform/filter"
	"github.com/louisbranch/tradebook/internal/travel"
)

// Client is a customer of one account.
type Client struct {
	ID        string
	AccountID string
	Name      string
	Email     string
	Phone     string
	Address   string
	Location  *travel.Point
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClientInput carries client fields for create and update.
type ClientInput struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	Location *travel.Point
	Notes    string
}

// ClientFilter lists the fields clients can be filtered on.
var ClientFilter = filter.MustSchema(
	filter.Field{Name: "name", Column: "name", Type: filter.String},
	filter.Field{Name: "email", Column: "email", Type: filter.String},
	filter.Field{Name: "create_time", Column: "created_at", Type: filter.Timestamp},
)

func (in ClientInput) normalize() (ClientInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.Name == "" {
		return in, apperrors.New(apperrors.CodeClientNameEmpty, "client name is required")
	}
	if in.Email != "" {
		addr, err := mail.ParseAddress(in.Email)
		if err != nil || addr.Address != in.Email {
			return in, apperrors.WrapWithMetadata(apperrors.CodeClientInvalidEmail, "invalid client email", map[string]string{"email": in.Email}, err)
		}
	}
	if in.Location != nil {
		if err := in.Location.Validate(); err != nil {
			return in, apperrors.Wrap(apperrors.CodeClientInvalidLocation, "invalid client location", err)
		}
	}
	return in, nil
}

// CreateClient validates and stores a new client.
func (s *Service) CreateClient(ctx context.Context, accountID string, input ClientInput) (Client, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Client{}, err
	}
	input, err = input.normalize()
	if err != nil {
		return Client{}, err
	}
	clientID, err := s.newID()
	if err != nil {
		return Client{}, err
	}
	now := s.nowUTC()
	client := Client{
		ID:        clientID,
		AccountID: accountID,
		CreatedAt: now,
	}
	client = client.with(input, now)
	if err := s.store.PutClient(ctx, client); err != nil {
		return Client{}, notFound(err, "client")
	}
	return client, nil
}

// UpdateClient replaces the editable fields of a client.
func (s *Service) UpdateClient(ctx context.Context, accountID, clientID string, input ClientInput) (Client, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Client{}, err
	}
	input, err = input.normalize()
	if err != nil {
		return Client{}, err
	}
	client, err := s.store.GetClient(ctx, accountID, strings.TrimSpace(clientID))
	if err != nil {
		return Client{}, notFound(err, "client")
	}
	client = client.with(input, s.nowUTC())
	if err := s.store.PutClient(ctx, client); err != nil {
		return Client{}, err
	}
	return client, nil
}

func (c Client) with(input ClientInput, now time.Time) Client {
	c.Name = input.Name
	c.Email = input.Email
	c.Phone = input.Phone
	c.Address = input.Address
	c.Location = input.Location
	c.Notes = input.Notes
	c.UpdatedAt = now
	return c
}

// GetClient returns one client of the account.
func (s *Service) GetClient(ctx context.Context, accountID, clientID string) (Client, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return Client{}, err
	}
	client, err := s.store.GetClient(ctx, accountID, strings.TrimSpace(clientID))
	if err != nil {
		return Client{}, notFound(err, "client")
	}
	return client, nil
}

// DeleteClient removes a client without quotes or invoices.
func (s *Service) DeleteClient(ctx context.Context, accountID, clientID string) error {
	accountID, err := s.ready(accountID)
	if err != nil {
		return err
	}
	err = s.store.DeleteClient(ctx, accountID, strings.TrimSpace(clientID))
	if errors.Is(err, ErrConflict) {
		return invalid("client still has quotes, invoices or appointments")
	}
	return notFound(err, "client")
}

// ListClients lists clients ordered by name.
func (s *Service) ListClients(ctx context.Context, accountID string, input ListInput) ([]Client, string, error) {
	accountID, err := s.ready(accountID)
	if err != nil {
		return nil, "", err
	}
	page, err := pageFor(input, ClientFilter)
	if err != nil {
		return nil, "", err
	}
	return s.store.ListClients(ctx, accountID, page)
}
