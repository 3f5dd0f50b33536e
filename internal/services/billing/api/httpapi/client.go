package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/propagation"

	"github.com/louisbranch/tradebook/internal/followup"
	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
)

// StatusError is a non-2xx billing response.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("billing returned %d", e.Status)
	}
	return fmt.Sprintf("billing returned %d %s: %s", e.Status, e.Code, e.Message)
}

// IsStale reports whether err says the follow-up step was already handled.
func IsStale(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == string(apperrors.CodeFollowUpStale)
}

// Client calls the internal follow-up routes of the billing API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client for the billing API at baseURL.
func NewClient(baseURL, token string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   token,
		client:  client,
	}
}

// DueFollowUps lists at most limit follow-ups due now.
func (c *Client) DueFollowUps(ctx context.Context, limit int) ([]FollowUp, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp DueFollowUpsResponse
	if err := c.do(ctx, http.MethodGet, PathDueFollowUps+"?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.FollowUps, nil
}

// RecordFollowUpAction reports that step of the target was sent at at.
func (c *Client) RecordFollowUpAction(ctx context.Context, kind followup.Kind, targetID string, step int, at time.Time) (FollowUpActionResponse, error) {
	path := strings.NewReplacer("{kind}", url.PathEscape(string(kind)), "{id}", url.PathEscape(targetID)).Replace(PathFollowUpAction)
	var resp FollowUpActionResponse
	err := c.do(ctx, http.MethodPost, path, FollowUpActionRequest{Step: step, ActionTime: at.UTC()}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode billing request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build billing request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(InternalTokenHeader, c.token)
	}
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("billing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Status: resp.StatusCode}
		var envelope ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope) == nil {
			statusErr.Code = envelope.Error.Code
			statusErr.Message = envelope.Error.Message
		}
		return statusErr
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode billing response: %w", err)
	}
	return nil
}
