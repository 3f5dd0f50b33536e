// Package followup schedules relances: ordered delay steps measured from a
// reference time that moves forward each time an action is recorded.
package followup

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies what a sequence follows up on.
type Kind string

const (
	// KindQuote follows up on a sent quote awaiting an answer.
	KindQuote Kind = "quote"
	// KindPayment follows up on an unpaid installment.
	KindPayment Kind = "payment"
)

var (
	// ErrExhausted is returned when advancing past the last step.
	ErrExhausted = errors.New("follow-up sequence exhausted")
	// ErrActionBeforeReference is returned when an action predates the reference.
	ErrActionBeforeReference = errors.New("follow-up action precedes reference time")
	// ErrInvalidSequence is returned by Validate.
	ErrInvalidSequence = errors.New("invalid follow-up sequence")
	// ErrUnknownKind is returned by ParseKind.
	ErrUnknownKind = errors.New("unknown follow-up kind")
)

// Step is one relance: due DelayDays after the reference time.
type Step struct {
	DelayDays int    `json:"delay_days" yaml:"delay_days"`
	Label     string `json:"label" yaml:"label"`
}

// Sequence is an ordered list of steps for one kind.
type Sequence struct {
	Kind  Kind
	Steps []Step
}

// State is the position in a sequence. Index is the next step to fire.
type State struct {
	Index       int       `json:"index"`
	ReferenceAt time.Time `json:"reference_at"`
}

// Start returns the initial state referenced at at.
func Start(at time.Time) State {
	return State{Index: 0, ReferenceAt: at.UTC()}
}

// QuoteSequence follows up on sent quotes.
var QuoteSequence = Sequence{
	Kind: KindQuote,
	Steps: []Step{
		{DelayDays: 3, Label: "première relance"},
		{DelayDays: 7, Label: "deuxième relance"},
		{DelayDays: 14, Label: "dernière relance"},
	},
}

// PaymentSequence follows up on unpaid installments from their due date.
var PaymentSequence = Sequence{
	Kind: KindPayment,
	Steps: []Step{
		{DelayDays: 1, Label: "rappel amiable"},
		{DelayDays: 7, Label: "relance"},
		{DelayDays: 15, Label: "seconde relance"},
		{DelayDays: 30, Label: "mise en demeure"},
	},
}

// ParseKind validates a kind string.
func ParseKind(value string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(value))); kind {
	case KindQuote, KindPayment:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
}

// ForKind returns the preset sequence for kind.
func ForKind(kind Kind) (Sequence, error) {
	switch kind {
	case KindQuote:
		return QuoteSequence, nil
	case KindPayment:
		return PaymentSequence, nil
	default:
		return Sequence{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Validate checks that steps exist with non-negative delays and labels.
func (s Sequence) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidSequence)
	}
	for i, step := range s.Steps {
		if step.DelayDays < 0 {
			return fmt.Errorf("%w: step %d has negative delay", ErrInvalidSequence, i)
		}
		if strings.TrimSpace(step.Label) == "" {
			return fmt.Errorf("%w: step %d has no label", ErrInvalidSequence, i)
		}
	}
	return nil
}

// Exhausted reports whether every step has fired.
func (s Sequence) Exhausted(state State) bool {
	return state.Index < 0 || state.Index >= len(s.Steps)
}

// NextAt returns when the current step becomes due.
func (s Sequence) NextAt(state State) (time.Time, bool) {
	if s.Exhausted(state) {
		return time.Time{}, false
	}
	return state.ReferenceAt.AddDate(0, 0, s.Steps[state.Index].DelayDays), true
}

// Due returns the current step when ReferenceAt plus its delay is not after now.
func (s Sequence) Due(state State, now time.Time) (Step, bool) {
	at, ok := s.NextAt(state)
	if !ok || at.After(now) {
		return Step{}, false
	}
	return s.Steps[state.Index], true
}

// Advance records an action at actionAt: the index moves to the next step
// and the reference becomes actionAt.
func (s Sequence) Advance(state State, actionAt time.Time) (State, error) {
	if s.Exhausted(state) {
		return state, ErrExhausted
	}
	if actionAt.Before(state.ReferenceAt) {
		return state, ErrActionBeforeReference
	}
	return State{Index: state.Index + 1, ReferenceAt: actionAt.UTC()}, nil
}

// Remaining returns the number of steps still to fire.
func (s Sequence) Remaining(state State) int {
	if s.Exhausted(state) {
		return 0
	}
	return len(s.Steps) - state.Index
}
