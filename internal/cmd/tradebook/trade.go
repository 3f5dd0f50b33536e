package tradebook

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/louisbranch/tradebook/internal/trade"
)

type tradeView struct {
	ID          string            `yaml:"id"`
	Label       string            `yaml:"label"`
	Known       bool              `yaml:"known"`
	Units       []string          `yaml:"units"`
	DefaultUnit string            `yaml:"default_unit"`
	DefaultVAT  string            `yaml:"default_vat"`
	HourlyRate  string            `yaml:"hourly_rate"`
	Terminology map[string]string `yaml:"terminology,omitempty"`
}

func newTradeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trade [id]",
		Short: "List trades or show one trade's configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()

			if len(args) == 0 {
				var views []tradeView
				for _, cfg := range trade.All() {
					views = append(views, viewTrade(cfg, true))
				}
				return enc.Encode(map[string][]tradeView{"trades": views})
			}
			cfg, known := trade.Lookup(args[0])
			if err := enc.Encode(viewTrade(cfg, known)); err != nil {
				return err
			}
			if !known {
				fmt.Fprintf(cmd.ErrOrStderr(), "unknown trade %q, showing %s\n", args[0], cfg.ID)
			}
			return nil
		},
	}
}

func viewTrade(cfg trade.Config, known bool) tradeView {
	return tradeView{
		ID:          cfg.ID,
		Label:       cfg.Label,
		Known:       known,
		Units:       cfg.Units,
		DefaultUnit: cfg.DefaultUnit,
		DefaultVAT:  cfg.DefaultVAT.String() + "%",
		HourlyRate:  cfg.HourlyRate.Decimal(),
		Terminology: cfg.Terminology,
	}
}
