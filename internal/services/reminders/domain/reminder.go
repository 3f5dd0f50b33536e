// Package domain renders follow-up reminders in the client's language.
package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/platform/i18n"
)

// Due is one follow-up step the billing service reports as due.
type Due struct {
	Kind         followup.Kind
	TargetID     string
	AccountID    string
	BusinessName string
	Locale       string
	Currency     string
	ClientName   string
	ClientEmail  string
	Number       string
	// Position is the installment position for payment follow-ups.
	Position  int
	Amount    money.Cents
	DueAt     *time.Time
	Step      int
	StepLabel string
}

// Reminder is the rendered message for one follow-up step.
type Reminder struct {
	DedupeKey     string        `json:"dedupe_key"`
	Kind          followup.Kind `json:"kind"`
	TargetID      string        `json:"target_id"`
	AccountID     string        `json:"account_id"`
	Step          int           `json:"step"`
	StepLabel     string        `json:"step_label"`
	Locale        string        `json:"locale"`
	Recipient     string        `json:"recipient,omitempty"`
	Subject       string        `json:"subject"`
	Body          string        `json:"body"`
	AmountDisplay string        `json:"amount_display"`
	CreatedAt     time.Time     `json:"created_time"`
}

// DedupeKey identifies one step of one follow-up target.
func DedupeKey(kind followup.Kind, targetID string, step int) string {
	return fmt.Sprintf("%s:%s:step:%d", kind, strings.TrimSpace(targetID), step)
}

// Subject returns the NATS subject reminders of kind are published on.
func Subject(kind followup.Kind) string {
	if kind == "" {
		return "tradebook.reminders.generic"
	}
	return "tradebook.reminders." + string(kind)
}

// Render builds the reminder for due in the account's language.
func Render(due Due, now time.Time) Reminder {
	tag, _ := i18n.ParseTag(due.Locale)
	amount := money.Format(due.Amount, currencyUnit(due.Currency), tag)
	subject, body := copyFor(due, tag, amount)
	return Reminder{
		DedupeKey:     DedupeKey(due.Kind, due.TargetID, due.Step),
		Kind:          due.Kind,
		TargetID:      strings.TrimSpace(due.TargetID),
		AccountID:     due.AccountID,
		Step:          due.Step,
		StepLabel:     due.StepLabel,
		Locale:        tag.String(),
		Recipient:     strings.TrimSpace(due.ClientEmail),
		Subject:       subject,
		Body:          body,
		AmountDisplay: amount,
		CreatedAt:     now.UTC(),
	}
}

func copyFor(due Due, tag language.Tag, amount string) (string, string) {
	p := i18n.Printer(tag)
	client := strings.TrimSpace(due.ClientName)
	seq, err := followup.ForKind(due.Kind)
	if err != nil || len(seq.Steps) == 0 {
		return p.Sprintf("reminder.generic.subject", due.BusinessName),
			p.Sprintf("reminder.generic.body", client, due.BusinessName)
	}
	step := min(max(due.Step, 0), len(seq.Steps)-1)
	bodyKey := fmt.Sprintf("reminder.%s.body.%d", due.Kind, step)

	switch due.Kind {
	case followup.KindPayment:
		dueDate := ""
		if due.DueAt != nil {
			dueDate = formatDate(*due.DueAt, tag)
		}
		return p.Sprintf("reminder.payment.subject", due.Number, due.Position),
			p.Sprintf(bodyKey, client, due.Position, due.Number, amount, dueDate)
	default:
		return p.Sprintf("reminder.quote.subject", due.Number),
			p.Sprintf(bodyKey, client, due.Number, amount)
	}
}

func currencyUnit(code string) currency.Unit {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return money.EUR
	}
	return unit
}

func formatDate(t time.Time, tag language.Tag) string {
	base, _ := tag.Base()
	english, _ := language.English.Base()
	if base == english {
		return t.Format("January 2, 2006")
	}
	return t.Format("02/01/2006")
}
