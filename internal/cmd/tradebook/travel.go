package tradebook

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/louisbranch/tradebook/internal/money"
	"github.com/louisbranch/tradebook/internal/platform/i18n"
	"github.com/louisbranch/tradebook/internal/travel"
)

type travelResult struct {
	travel.Estimate
	Display string `json:"fee_display"`
}

func newTravelCommand(_ *options) *cobra.Command {
	var (
		from, to   string
		policyPath string
		locale     string
		flags      = travel.Policy{RoadFactor: travel.DefaultRoadFactor, RoundTrip: true}
		perKm      string
		minimum    string
	)
	cmd := &cobra.Command{
		Use:   "travel",
		Short: "Estimate the travel fee between two points",
		Example: `  tradebook travel --from 48.8566,2.3522 --to 48.9,2.4 --per-km 0.50
  tradebook travel --from 48.8566,2.3522 --to 48.9,2.4 --policy policy.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := parsePoint(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			site, err := parsePoint(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			policy := travel.Policy{RoadFactor: travel.DefaultRoadFactor, RoundTrip: true}
			if policyPath != "" {
				data, err := os.ReadFile(policyPath)
				if err != nil {
					return fmt.Errorf("read policy: %w", err)
				}
				if err := json.Unmarshal(data, &policy); err != nil {
					return fmt.Errorf("decode policy: %w", err)
				}
			}
			changed := cmd.Flags().Changed
			if changed("free-radius") {
				policy.FreeRadiusKm = flags.FreeRadiusKm
			}
			if changed("road-factor") {
				policy.RoadFactor = flags.RoadFactor
			}
			if changed("round-trip") {
				policy.RoundTrip = flags.RoundTrip
			}
			if changed("max-km") {
				policy.MaxKm = flags.MaxKm
			}
			if perKm != "" {
				if policy.PerKm, err = money.ParseAmount(perKm); err != nil {
					return fmt.Errorf("--per-km: %w", err)
				}
			}
			if minimum != "" {
				if policy.Minimum, err = money.ParseAmount(minimum); err != nil {
					return fmt.Errorf("--minimum: %w", err)
				}
			}
			estimate, err := travel.Quote(policy, base, site)
			if err != nil {
				return err
			}
			tag, _ := i18n.ParseTag(locale)
			return writeJSON(cmd.OutOrStdout(), travelResult{
				Estimate: estimate,
				Display:  money.Format(estimate.Fee, money.EUR, tag),
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Base coordinates as lat,lng")
	cmd.Flags().StringVar(&to, "to", "", "Site coordinates as lat,lng")
	cmd.Flags().StringVar(&policyPath, "policy", "", "JSON travel policy file; flags override it")
	cmd.Flags().StringVar(&perKm, "per-km", "", "Fee per billable km, e.g. 0.50")
	cmd.Flags().StringVar(&minimum, "minimum", "", "Minimum fee once travel is billable")
	cmd.Flags().Float64Var(&flags.FreeRadiusKm, "free-radius", 0, "Road km travelled for free")
	cmd.Flags().Float64Var(&flags.RoadFactor, "road-factor", flags.RoadFactor, "Straight-line to road distance factor")
	cmd.Flags().BoolVar(&flags.RoundTrip, "round-trip", flags.RoundTrip, "Bill the way back too")
	cmd.Flags().Float64Var(&flags.MaxKm, "max-km", 0, "Refuse sites farther than this (0 disables)")
	cmd.Flags().StringVar(&locale, "locale", "fr-FR", "Display locale")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func parsePoint(value string) (travel.Point, error) {
	lat, lng, ok := strings.Cut(value, ",")
	if !ok {
		return travel.Point{}, fmt.Errorf("coordinates %q must be lat,lng", value)
	}
	latF, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return travel.Point{}, fmt.Errorf("latitude %q: %w", lat, err)
	}
	lngF, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return travel.Point{}, fmt.Errorf("longitude %q: %w", lng, err)
	}
	point := travel.Point{Lat: latF, Lng: lngF}
	return point, point.Validate()
}
