package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/money"
)

var renderNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func TestDedupeKey(t *testing.T) {
	assert.Equal(t, "quote:q-1:step:0", DedupeKey(followup.KindQuote, " q-1 ", 0))
	assert.Equal(t, "payment:inst-9:step:3", DedupeKey(followup.KindPayment, "inst-9", 3))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "tradebook.reminders.quote", Subject(followup.KindQuote))
	assert.Equal(t, "tradebook.reminders.payment", Subject(followup.KindPayment))
	assert.Equal(t, "tradebook.reminders.generic", Subject(""))
}

func TestRenderQuoteInFrench(t *testing.T) {
	reminder := Render(Due{
		Kind:         followup.KindQuote,
		TargetID:     "q-1",
		AccountID:    "acct-1",
		BusinessName: "Plomberie Martin",
		Locale:       "fr-FR",
		Currency:     "EUR",
		ClientName:   "Mme Leroy",
		ClientEmail:  " leroy@example.com ",
		Number:       "D-2026-0001",
		Amount:       money.Cents(117150),
		Step:         1,
		StepLabel:    "relance 2",
	}, renderNow)

	assert.Equal(t, "quote:q-1:step:1", reminder.DedupeKey)
	assert.Equal(t, "fr-FR", reminder.Locale)
	assert.Equal(t, "leroy@example.com", reminder.Recipient)
	assert.Equal(t, "Votre devis D-2026-0001", reminder.Subject)
	assert.Contains(t, reminder.Body, "Bonjour Mme Leroy")
	assert.Contains(t, reminder.Body, "D-2026-0001")
	assert.Contains(t, reminder.Body, reminder.AmountDisplay)
	assert.Contains(t, reminder.AmountDisplay, "€")
	assert.Equal(t, renderNow, reminder.CreatedAt)
}

func TestRenderPaymentInEnglish(t *testing.T) {
	dueAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reminder := Render(Due{
		Kind:       followup.KindPayment,
		TargetID:   "inst-2",
		Locale:     "en-US",
		Currency:   "EUR",
		ClientName: "Mrs Leroy",
		Number:     "F-2026-0001",
		Position:   2,
		Amount:     money.Cents(5000),
		DueAt:      &dueAt,
		Step:       0,
	}, renderNow)

	assert.Equal(t, "Invoice F-2026-0001: installment 2", reminder.Subject)
	assert.Equal(t, "€50.00", reminder.AmountDisplay)
	assert.Equal(t,
		"Hello Mrs Leroy, installment 2 of invoice F-2026-0001 (€50.00) was due on March 1, 2026. Please arrange payment.",
		reminder.Body)
}

func TestRenderClampsStepToLastBody(t *testing.T) {
	reminder := Render(Due{
		Kind:       followup.KindQuote,
		TargetID:   "q-1",
		Locale:     "en-US",
		ClientName: "Sam",
		Number:     "D-1",
		Step:       9,
	}, renderNow)
	assert.Contains(t, reminder.Body, "final follow-up")
}

func TestRenderUnknownLocaleFallsBackToFrench(t *testing.T) {
	reminder := Render(Due{Kind: followup.KindQuote, TargetID: "q-1", Locale: "xx", Number: "D-1", Currency: "???"}, renderNow)
	assert.Equal(t, "fr-FR", reminder.Locale)
	assert.Equal(t, "Votre devis D-1", reminder.Subject)
}

func TestRenderUnknownKindUsesGenericCopy(t *testing.T) {
	reminder := Render(Due{Kind: "visit", TargetID: "v-1", Locale: "en-US", BusinessName: "Martin", ClientName: "Sam"}, renderNow)
	assert.Equal(t, "Reminder from Martin", reminder.Subject)
	assert.Equal(t, "Hello Sam, this is a reminder from Martin.", reminder.Body)
}
