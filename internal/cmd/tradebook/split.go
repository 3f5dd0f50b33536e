package tradebook

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/platform/i18n"
)

type splitPart struct {
	Position int         `json:"position"`
	Amount   money.Cents `json:"amount_cents"`
	Display  string      `json:"display"`
}

type splitResult struct {
	Total money.Cents `json:"total_cents"`
	Parts []splitPart `json:"parts"`
}

func newSplitCommand(_ *options) *cobra.Command {
	var (
		parts   int
		weights []int
		locale  string
	)
	cmd := &cobra.Command{
		Use:   "split <amount>",
		Short: "Split an amount into installments",
		Long: `Split an amount into installments whose sum is always the total.

With --parts the amount is divided evenly and the last installment absorbs
the remainder. With --weights each installment gets its share rounded down
and the last one absorbs the rest.`,
		Example: `  tradebook split 1171.50 --parts 3
  tradebook split 1171,50 --weights 30,70`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := money.ParseAmount(args[0])
			if err != nil {
				return fmt.Errorf("parse amount: %w", err)
			}
			var amounts []money.Cents
			if len(weights) > 0 {
				amounts, err = money.SplitByWeights(total, weights)
			} else {
				amounts, err = money.Split(total, parts)
			}
			if err != nil {
				return err
			}
			tag, _ := i18n.ParseTag(locale)
			result := splitResult{Total: total, Parts: make([]splitPart, 0, len(amounts))}
			for i, amount := range amounts {
				result.Parts = append(result.Parts, splitPart{
					Position: i + 1,
					Amount:   amount,
					Display:  money.Format(amount, money.EUR, tag),
				})
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVar(&parts, "parts", 1, "Number of equal installments")
	cmd.Flags().IntSliceVar(&weights, "weights", nil, "Relative installment weights, e.g. 30,70")
	cmd.Flags().StringVar(&locale, "locale", "fr-FR", "Display locale")
	cmd.MarkFlagsMutuallyExclusive("parts", "weights")
	return cmd
}
