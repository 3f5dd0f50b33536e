package tradebook

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/louisbranch/tradebook/internal/followup"
	"github.com/louisbranch/tradebook/internal/platform/timeouts"
	"github.com/louisbranch/tradebook/internal/services/billing/api/httpapi"
)

type followUpStatus struct {
	Kind      followup.Kind  `json:"kind"`
	Index     int            `json:"index"`
	Exhausted bool           `json:"exhausted"`
	Due       bool           `json:"due"`
	Step      *followup.Step `json:"step,omitempty"`
	NextTime  *time.Time     `json:"next_time,omitempty"`
	Remaining int            `json:"remaining"`
}

func newFollowUpCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "followup",
		Short: "Inspect follow-up sequences",
	}
	cmd.AddCommand(newFollowUpNextCommand(opts), newFollowUpDueCommand())
	return cmd
}

func newFollowUpNextCommand(opts *options) *cobra.Command {
	var (
		kind      string
		reference string
		index     int
		now       string
	)
	cmd := &cobra.Command{
		Use:     "next",
		Short:   "Show the next step of a sequence and whether it is due",
		Example: `  tradebook followup next --kind quote --reference 2026-03-02 --now 2026-03-06`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedKind, err := followup.ParseKind(kind)
			if err != nil {
				return err
			}
			seq, err := followup.ForKind(parsedKind)
			if err != nil {
				return err
			}
			loc, err := opts.location()
			if err != nil {
				return err
			}
			referenceAt, err := parseTime(reference, loc)
			if err != nil {
				return err
			}
			if referenceAt.IsZero() {
				return fmt.Errorf("--reference is required")
			}
			at, err := parseTime(now, loc)
			if err != nil {
				return err
			}
			if at.IsZero() {
				at = opts.now()
			}

			state := followup.State{Index: index, ReferenceAt: referenceAt.UTC()}
			status := followUpStatus{
				Kind:      parsedKind,
				Index:     index,
				Exhausted: seq.Exhausted(state),
				Remaining: seq.Remaining(state),
			}
			if next, ok := seq.NextAt(state); ok {
				status.NextTime = &next
				step := seq.Steps[index]
				status.Step = &step
			}
			_, status.Due = seq.Due(state, at)
			return writeJSON(cmd.OutOrStdout(), status)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(followup.KindQuote), "Sequence kind: quote or payment")
	cmd.Flags().StringVar(&reference, "reference", "", "Reference time of the sequence (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&index, "index", 0, "Index of the next step to fire")
	cmd.Flags().StringVar(&now, "now", "", "Evaluation time (defaults to now)")
	return cmd
}

func newFollowUpDueCommand() *cobra.Command {
	var (
		billingURL string
		token      string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List follow-ups a running billing service reports as due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := httpapi.NewClient(billingURL, token, &http.Client{Timeout: timeouts.HTTPRequest})
			due, err := client.DueFollowUps(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), httpapi.DueFollowUpsResponse{FollowUps: due})
		},
	}
	cmd.Flags().StringVar(&billingURL, "billing-url", "http://localhost:8080", "Base URL of the billing API")
	cmd.Flags().StringVar(&token, "token", os.Getenv("TRADEBOOK_INTERNAL_TOKEN"), "Internal token (defaults to TRADEBOOK_INTERNAL_TOKEN)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum follow-ups to list")
	return cmd
}
