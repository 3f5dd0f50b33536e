package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
	"github.com/louisbranch/tradebook/internal/services/billing/domain"
)

// FollowUp is one due follow-up as served to the reminders worker.
type FollowUp struct {
	Kind          followup.Kind `json:"kind"`
	TargetID      string        `json:"target_id"`
	AccountID     string        `json:"account_id"`
	BusinessName  string        `json:"business_name"`
	Locale        string        `json:"locale"`
	Currency      string        `json:"currency"`
	ClientID      string        `json:"client_id"`
	ClientName    string        `json:"client_name"`
	ClientEmail   string        `json:"client_email,omitempty"`
	Number        string        `json:"number"`
	Position      int           `json:"position,omitempty"`
	Amount        money.Cents   `json:"amount_cents"`
	DueTime       *time.Time    `json:"due_time,omitempty"`
	Step          int           `json:"step"`
	StepLabel     string        `json:"step_label"`
	DelayDays     int           `json:"delay_days"`
	DueSince      time.Time     `json:"due_since"`
	ReferenceTime time.Time     `json:"reference_time"`
}

// DueFollowUpsResponse lists due follow-ups, oldest first.
type DueFollowUpsResponse struct {
	FollowUps []FollowUp `json:"follow_ups"`
}

// FollowUpActionRequest records that step was acted on at ActionTime.
type FollowUpActionRequest struct {
	Step       int       `json:"step"`
	ActionTime time.Time `json:"action_time"`
}

// FollowUpActionResponse is the state after the action.
type FollowUpActionResponse struct {
	Index         int       `json:"index"`
	ReferenceTime time.Time `json:"reference_time"`
}

func followUpFromDomain(due domain.DueFollowUp) FollowUp {
	return FollowUp{
		Kind:          due.Kind,
		TargetID:      due.TargetID,
		AccountID:     due.AccountID,
		BusinessName:  due.BusinessName,
		Locale:        due.Locale,
		Currency:      due.Currency,
		ClientID:      due.ClientID,
		ClientName:    due.ClientName,
		ClientEmail:   due.ClientEmail,
		Number:        due.Number,
		Position:      due.Position,
		Amount:        due.Amount,
		DueTime:       due.DueAt,
		Step:          due.Step,
		StepLabel:     due.StepLabel,
		DelayDays:     due.DelayDays,
		DueSince:      due.DueSince,
		ReferenceTime: due.State.ReferenceAt,
	}
}

func (h *handlers) handleDueFollowUps(w http.ResponseWriter, r *http.Request) {
	now, err := queryTime(r, "now")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if now.IsZero() {
		now = h.now()
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeError(w, r, badRequest(fmt.Errorf("limit must be a non-negative integer")))
			return
		}
	}
	due, err := h.svc.DueFollowUps(r.Context(), now, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := DueFollowUpsResponse{FollowUps: make([]FollowUp, 0, len(due))}
	for _, d := range due {
		resp.FollowUps = append(resp.FollowUps, followUpFromDomain(d))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleFollowUpAction(w http.ResponseWriter, r *http.Request) {
	kind, err := followup.ParseKind(r.PathValue("kind"))
	if err != nil {
		h.writeError(w, r, apperrors.WrapWithMetadata(apperrors.CodeFollowUpInvalidKind, "invalid follow-up kind",
			map[string]string{"kind": r.PathValue("kind")}, err))
		return
	}
	var req FollowUpActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ActionTime.IsZero() {
		req.ActionTime = h.now()
	}
	state, err := h.svc.RecordFollowUpAction(r.Context(), kind, r.PathValue("id"), req.Step, req.ActionTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FollowUpActionResponse{Index: state.Index, ReferenceTime: state.ReferenceAt})
}
