// Package httpapi exposes the billing service as a JSON HTTP API.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/platform/httpx"
	"github.com/louisbranch/tradebook/internal/platform/metrics"
	"github.com/louisbranch/tradebook/internal/platform/ratelimit"
	"github.com/louisbranch/tradebook/internal/platform/requestctx"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
	"github.com/louisbranch/tradebook/internal/trade"
)

const tracerName = "github.com/louisbranch/tradebook/internal/services/billing/api/httpapi"

// InternalTokenHeader carries the shared secret for /internal routes.
const InternalTokenHeader = "X-Tradebook-Internal-Token"

// Options configures NewHandler.
type Options struct {
	Service *domain.Service
	Logger  *zap.Logger
	// Location resolves spoken dates and wall-clock appointment times.
	Location *time.Location
	Clock    func() time.Time
	Trades   *trade.Catalog

	Metrics        *metrics.HTTP
	MetricsHandler http.Handler
	RateLimit      *ratelimit.Store
	RateStats      ratelimit.StatsRecorder
	// InternalToken guards /internal routes when set.
	InternalToken string
	// Health reports readiness for /healthz.
	Health func(context.Context) error
}

type handlers struct {
	svc           *domain.Service
	logger        *zap.Logger
	loc           *time.Location
	now           func() time.Time
	trades        *trade.Catalog
	metrics       *metrics.HTTP
	internalToken string
	health        func(context.Context) error
	route         func(*http.Request) string
}

// NewHandler builds the billing API with its middleware chain.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Service == nil {
		return nil, errors.New("billing service is required")
	}
	h := &handlers{
		svc:           opts.Service,
		logger:        opts.Logger,
		loc:           opts.Location,
		now:           opts.Clock,
		trades:        opts.Trades,
		metrics:       opts.Metrics,
		internalToken: strings.TrimSpace(opts.InternalToken),
		health:        opts.Health,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.trades == nil {
		h.trades = trade.Default()
	}

	mux := http.NewServeMux()
	registerRoutes(mux, h)
	if opts.MetricsHandler != nil {
		mux.Handle(http.MethodGet+" "+pathMetrics, opts.MetricsHandler)
	}
	h.route = func(r *http.Request) string {
		if _, pattern := mux.Handler(r); pattern != "" {
			return pattern
		}
		return "unmatched"
	}

	limiter := ratelimit.Middleware(ratelimit.Options{
		Store:     opts.RateLimit,
		Stats:     opts.RateStats,
		KeyHeader: requestctx.AccountHeader,
		RouteFn:   h.route,
		OnReject:  h.rejectRateLimited,
		Skip: func(r *http.Request) bool {
			return !strings.HasPrefix(r.URL.Path, prefixV1)
		},
		OnStatsError: func(err error) {
			h.logger.Warn("record rate limit stats", zap.Error(err))
		},
	})

	return httpx.Chain(mux,
		httpx.RequestID("billing"),
		httpx.RecoverPanic(h.logger),
		httpx.Trace(tracerName, h.route),
		httpx.AccessLog(h.logger),
		opts.Metrics.Middleware(h.route),
		limiter,
		h.requireAccount,
		h.requireInternalToken,
	), nil
}

// requireAccount rejects /v1 requests without an account header and stores
// the account in the request context.
func (h *handlers) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, prefixV1) {
			next.ServeHTTP(w, r)
			return
		}
		accountID := requestctx.AccountIDFromRequest(r)
		if accountID == "" {
			h.writeError(w, r, apperrors.New(apperrors.CodeAccountRequired, "account header is required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithAccountID(r.Context(), accountID)))
	})
}

func (h *handlers) requireInternalToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.internalToken == "" || !strings.HasPrefix(r.URL.Path, prefixInternal) {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get(InternalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.internalToken)) != 1 {
			h.writeError(w, r, apperrors.New(apperrors.CodeAccountRequired, "internal token is invalid"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accountID(r *http.Request) string {
	return requestctx.AccountIDFromContext(r.Context())
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
