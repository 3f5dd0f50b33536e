package domain

import (
	"testing"
	"time"

	"github.com/louisbranch/tradebook/internal/followup"
)

func TestCollectDueKeepsOnlyDueTargets(t *testing.T) {
	t.Parallel()

	sent := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := sent.AddDate(0, 0, 3)
	targets := []FollowUpTarget{
		{Kind: followup.KindQuote, TargetID: "due", State: followup.Start(sent)},
		{Kind: followup.KindQuote, TargetID: "early", State: followup.Start(sent.Add(time.Hour))},
		{Kind: followup.KindQuote, TargetID: "second", State: followup.State{Index: 1, ReferenceAt: sent.AddDate(0, 0, -7)}},
		{Kind: followup.KindQuote, TargetID: "done", State: followup.State{Index: 3, ReferenceAt: sent.AddDate(0, -1, 0)}},
	}

	due := collectDue(followup.QuoteSequence, targets, now)
	if len(due) != 2 {
		t.Fatalf("due = %+v", due)
	}
	if due[0].TargetID != "due" || due[0].Step != 0 || due[0].DelayDays != 3 || !due[0].DueSince.Equal(now) {
		t.Fatalf("first due = %+v", due[0])
	}
	if due[1].TargetID != "second" || due[1].Step != 1 || due[1].StepLabel != followup.QuoteSequence.Steps[1].Label {
		t.Fatalf("second due = %+v", due[1])
	}
}
