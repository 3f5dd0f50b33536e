package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/louisbranch/tradebook/internal/money"
	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/platform/i18n"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
	"github.com/louisbranch/tradebook/internal/trade"
	"github.com/louisbranch/tradebook/internal/travel"
	"github.com/louisbranch/tradebook/internal/voice"
)

type voiceRequest struct {
	Transcript string     `json:"transcript"`
	Now        *time.Time `json:"now"`
}

type voiceResponse struct {
	Command   voice.Command `json:"command"`
	StartTime *time.Time    `json:"start_time,omitempty"`
}

func (h *handlers) handleVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	now := h.now()
	if req.Now != nil {
		now = *req.Now
	}
	cmd := voice.Parse(req.Transcript, now.In(h.loc))
	resp := voiceResponse{Command: cmd}
	if at, ok := cmd.At(); ok && cmd.Time != "" {
		resp.StartTime = &at
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// travelFeeRequest prices a site; base and policy default to the account's.
type travelFeeRequest struct {
	Site   travel.Point   `json:"site"`
	Base   *travel.Point  `json:"base"`
	Policy *travel.Policy `json:"policy"`
}

type travelFeeResponse struct {
	travel.Estimate
	FeeDisplay string `json:"fee_display"`
}

func (h *handlers) handleTravelFee(w http.ResponseWriter, r *http.Request) {
	var req travelFeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.svc.GetAccount(r.Context(), accountID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	base := account.Base
	if req.Base != nil {
		base = req.Base
	}
	if base == nil {
		h.writeError(w, r, apperrors.New(apperrors.CodeTravelInvalidCoordinates, "no base location"))
		return
	}
	policy := account.Travel
	if req.Policy != nil {
		policy = *req.Policy
	}
	estimate, err := domain.EstimateTravel(policy, *base, req.Site)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tag, ok := i18n.ParseTag(account.Locale)
	if !ok {
		tag = i18n.DefaultTag()
	}
	h.writeJSON(w, http.StatusOK, travelFeeResponse{
		Estimate:   estimate,
		FeeDisplay: money.Format(estimate.Fee, account.CurrencyUnit(), tag),
	})
}

// installmentsRequest splits a total in equal parts or by weights.
type installmentsRequest struct {
	Total   money.Cents `json:"total_cents"`
	Count   int         `json:"count"`
	Weights []int       `json:"weights"`
}

type installmentsResponse struct {
	Total money.Cents   `json:"total_cents"`
	Parts []money.Cents `json:"parts_cents"`
}

func (h *handlers) handleInstallments(w http.ResponseWriter, r *http.Request) {
	var req installmentsRequest
	if !h.decode(w, r, &req) {
		return
	}
	var (
		parts []money.Cents
		err   error
	)
	if len(req.Weights) > 0 {
		parts, err = money.SplitByWeights(req.Total, req.Weights)
	} else {
		parts, err = money.Split(req.Total, req.Count)
	}
	if err != nil {
		h.writeError(w, r, splitError(err))
		return
	}
	h.writeJSON(w, http.StatusOK, installmentsResponse{Total: req.Total, Parts: parts})
}

func splitError(err error) error {
	switch {
	case errors.Is(err, money.ErrInvalidParts), errors.Is(err, money.ErrInvalidWeights):
		return apperrors.WrapWithMetadata(apperrors.CodeInvoiceInvalidPlan, "invalid split",
			map[string]string{"reason": err.Error()}, err)
	default:
		return badRequest(err)
	}
}

type listTradesResponse struct {
	Trades []trade.Config `json:"trades"`
}

func (h *handlers) handleListTrades(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, listTradesResponse{Trades: h.trades.All()})
}

// tradeResponse reports whether the id was known; unknown ids resolve to
// the generic trade.
type tradeResponse struct {
	trade.Config
	Known bool `json:"known"`
}

func (h *handlers) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.trades.Lookup(r.PathValue("id"))
	h.writeJSON(w, http.StatusOK, tradeResponse{Config: cfg, Known: ok})
}
