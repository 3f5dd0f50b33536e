// Package tradebook implements the tradebook operator CLI: offline access to
// the calculators and a few calls against running services.
package tradebook

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	entrypoint "github.com/louisbranch/tradebook/internal/platform/cmd"
	"github.com/louisbranch/tradebook/internal/platform/logging"
)

// Version is stamped at build time.
var Version = "dev"

type options struct {
	logging  logging.Config
	timezone string
	now      func() time.Time
}

// NewRootCommand builds the tradebook command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &options{now: time.Now}
	if err := entrypoint.ParseConfig(&opts.logging); err != nil {
		opts.logging = logging.Config{Format: logging.FormatConsole, Level: "info"}
	}

	cmd := &cobra.Command{
		Use:           "tradebook",
		Short:         "Quotes, invoices and follow-ups for tradespeople",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.PersistentFlags().StringVar(&opts.timezone, "timezone", "Europe/Paris", "IANA timezone for dates")
	cmd.PersistentFlags().StringVar(&opts.logging.Level, "log-level", opts.logging.Level, "Log level")

	cmd.AddCommand(
		newSplitCommand(opts),
		newVoiceCommand(opts),
		newTravelCommand(opts),
		newFollowUpCommand(opts),
		newTradeCommand(),
		newHealthCommand(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "tradebook %s\n", Version)
			},
		},
	)
	return cmd
}

func (o *options) location() (*time.Location, error) {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", o.timezone, err)
	}
	return loc, nil
}

func (o *options) logger() (*zap.Logger, error) {
	cfg := o.logging
	cfg.Format = logging.FormatConsole
	return logging.New(entrypoint.ServiceCLI, cfg)
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func parseTime(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q must be RFC 3339 or YYYY-MM-DD", value)
	}
	return t, nil
}
