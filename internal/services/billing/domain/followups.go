package domain

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
	apperrors "github.com/louisbranch/tradebook/internal/platform/errors"
)

const (
	defaultDueLimit = 100
	maxDueLimit     = 500
)

// FollowUpTarget is a quote or installment eligible for follow-up, joined
// with what a reminder needs to address the client.
type FollowUpTarget struct {
	Kind         followup.Kind
	TargetID     string
	AccountID    string
	BusinessName string
	Locale       string
	Currency     string
	ClientID     string
	ClientName   string
	ClientEmail  string
	Number       string
	// Position is the installment position for payment follow-ups.
	Position int
	// Amount is the quote gross total or the installment outstanding.
	Amount money.Cents
	// DueAt is the installment due date for payment follow-ups.
	DueAt *time.Time
	State followup.State
}

// DueFollowUp is a target whose current step is due.
type DueFollowUp struct {
	FollowUpTarget
	Step      int
	StepLabel string
	DelayDays int
	DueSince  time.Time
}

// DueFollowUps lists due quote and payment follow-ups across accounts,
// oldest first.
func (s *Service) DueFollowUps(ctx context.Context, now time.Time, limit int) ([]DueFollowUp, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	switch {
	case limit <= 0:
		limit = defaultDueLimit
	case limit > maxDueLimit:
		limit = maxDueLimit
	}
	now = now.UTC()

	var due []DueFollowUp
	for _, seq := range []followup.Sequence{followup.QuoteSequence, followup.PaymentSequence} {
		targets, err := s.store.ListFollowUpTargets(ctx, seq.Kind, now, len(seq.Steps))
		if err != nil {
			return nil, err
		}
		due = append(due, collectDue(seq, targets, now)...)
	}
	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].DueSince.Equal(due[j].DueSince) {
			return due[i].DueSince.Before(due[j].DueSince)
		}
		return due[i].TargetID < due[j].TargetID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func collectDue(seq followup.Sequence, targets []FollowUpTarget, now time.Time) []DueFollowUp {
	defaults := DefaultAccount("")
	var due []DueFollowUp
	for _, target := range targets {
		if target.Locale == "" {
			target.Locale = defaults.Locale
		}
		if target.Currency == "" {
			target.Currency = defaults.Currency
		}
		step, ok := seq.Due(target.State, now)
		if !ok {
			continue
		}
		since, _ := seq.NextAt(target.State)
		due = append(due, DueFollowUp{
			FollowUpTarget: target,
			Step:           target.State.Index,
			StepLabel:      step.Label,
			DelayDays:      step.DelayDays,
			DueSince:       since,
		})
	}
	return due
}

// RecordFollowUpAction advances the follow-up of one target after the step
// was acted on. A step other than the current one leaves the state
// unchanged and returns it with an error matching ErrStaleFollowUp.
func (s *Service) RecordFollowUpAction(ctx context.Context, kind followup.Kind, targetID string, step int, at time.Time) (followup.State, error) {
	if s == nil || s.store == nil {
		return followup.State{}, ErrStoreNotConfigured
	}
	seq, err := followup.ForKind(kind)
	if err != nil {
		return followup.State{}, apperrors.WrapWithMetadata(apperrors.CodeFollowUpInvalidKind, "unknown follow-up kind", map[string]string{"kind": string(kind)}, err)
	}
	targetID = strings.TrimSpace(targetID)
	state, err := s.store.GetFollowUpState(ctx, kind, targetID)
	if err != nil {
		return followup.State{}, notFound(err, "follow-up target")
	}
	if step != state.Index {
		return state, staleFollowUp(state)
	}
	if at.IsZero() {
		at = s.nowUTC()
	}
	at = at.UTC().Truncate(time.Millisecond)

	next, err := seq.Advance(state, at)
	switch {
	case errors.Is(err, followup.ErrExhausted):
		return state, staleFollowUp(state)
	case errors.Is(err, followup.ErrActionBeforeReference):
		return state, invalid("action time is before the follow-up reference")
	case err != nil:
		return state, err
	}

	updated, err := s.store.AdvanceFollowUp(ctx, kind, targetID, state.Index, next)
	if err != nil {
		return state, err
	}
	if !updated {
		current, err := s.store.GetFollowUpState(ctx, kind, targetID)
		if err != nil {
			return state, notFound(err, "follow-up target")
		}
		return current, staleFollowUp(current)
	}
	return next, nil
}

func staleFollowUp(state followup.State) error {
	return apperrors.WrapWithMetadata(apperrors.CodeFollowUpStale, "follow-up step is stale",
		map[string]string{"index": strconv.Itoa(state.Index)}, ErrStaleFollowUp)
}
