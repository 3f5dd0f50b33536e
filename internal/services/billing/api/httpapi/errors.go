package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/platform/httpx"
	"github.com/louisbranch/tradebook/internal/platform/i18n"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one failed request.
type ErrorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	domainErr, ok := apperrors.As(err)
	if !ok {
		if errors.Is(err, context.Canceled) {
			return
		}
		domainErr = apperrors.Wrap(apperrors.CodeUnknown, "internal error", err)
	}
	status := domainErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", r.Header.Get(httpx.RequestIDHeader)),
			zap.Error(err),
		)
	}

	tag := i18n.MatchAcceptLanguage(r.Header.Get("Accept-Language"))
	body := ErrorBody{
		Code:    string(domainErr.Code),
		Message: domainErr.UserMessage(tag.String()),
	}
	if status < http.StatusInternalServerError {
		body.Metadata = domainErr.Metadata
	}
	h.writeJSON(w, status, ErrorResponse{Error: body})
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpx.WriteJSON(w, status, payload); err != nil {
		h.logger.Debug("write response", zap.Error(err))
	}
}

func (h *handlers) rejectRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	h.metrics.RateLimited(h.route(r))
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	h.writeError(w, r, apperrors.New(apperrors.CodeRateLimited, "rate limited"))
}

func badRequest(err error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeInvalidRequest, "invalid request",
		map[string]string{"reason": err.Error()}, err)
}
