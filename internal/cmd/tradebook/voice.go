package tradebook

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/louisbranch/tradebook/internal/voice"
)

type voiceResult struct {
	Command voice.Command `json:"command"`
	Start   *time.Time    `json:"start_time,omitempty"`
}

func newVoiceCommand(opts *options) *cobra.Command {
	var now string
	cmd := &cobra.Command{
		Use:     "voice <transcript>...",
		Short:   "Parse a spoken French command",
		Example: `  tradebook voice "rendez-vous chez madame Leroy demain à 14h30"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := opts.location()
			if err != nil {
				return err
			}
			at, err := parseTime(now, loc)
			if err != nil {
				return err
			}
			if at.IsZero() {
				at = opts.now()
			}
			parsed := voice.Parse(strings.Join(args, " "), at.In(loc))
			result := voiceResult{Command: parsed}
			if parsed.Time != "" {
				if start, ok := parsed.At(); ok {
					result.Start = &start
				}
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&now, "now", "", "Reference time for relative dates (RFC 3339 or YYYY-MM-DD)")
	return cmd
}
