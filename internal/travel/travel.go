// Package travel estimates travel fees from straight-line distance.
package travel

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/louisbranch/tradebook/internal/money"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// DefaultRoadFactor converts straight-line distance to an approximate road
// distance when a policy leaves RoadFactor unset.
const DefaultRoadFactor = 1.3

var (
	// ErrInvalidCoordinates is returned for latitudes or longitudes out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrOutOfRange is returned when the site lies beyond the policy's MaxKm.
	ErrOutOfRange = errors.New("site out of travel range")
	// ErrInvalidPolicy is returned by Policy.Validate.
	ErrInvalidPolicy = errors.New("invalid travel policy")
)

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks latitude and longitude ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinates, p.Lat, p.Lng)
	}
	return nil
}

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Zone is a flat fee applied up to MaxKm of road distance.
type Zone struct {
	MaxKm float64     `json:"max_km" yaml:"max_km"`
	Fee   money.Cents `json:"fee_cents" yaml:"fee_cents"`
	Label string      `json:"label" yaml:"label"`
}

// Policy describes how an account bills travel.
type Policy struct {
	FreeRadiusKm float64     `json:"free_radius_km"`
	PerKm        money.Cents `json:"per_km_cents"`
	Minimum      money.Cents `json:"minimum_cents"`
	RoadFactor   float64     `json:"road_factor"`
	RoundTrip    bool        `json:"round_trip"`
	Zones        []Zone      `json:"zones,omitempty"`
	// MaxKm rejects sites farther than this road distance. Zero disables it.
	MaxKm float64 `json:"max_km"`
}

// Validate rejects negative amounts and distances.
func (p Policy) Validate() error {
	if p.FreeRadiusKm < 0 || p.MaxKm < 0 || p.RoadFactor < 0 {
		return fmt.Errorf("%w: negative distance", ErrInvalidPolicy)
	}
	if p.PerKm < 0 || p.Minimum < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidPolicy)
	}
	for i, z := range p.Zones {
		if z.MaxKm <= 0 || z.Fee < 0 {
			return fmt.Errorf("%w: zone %d", ErrInvalidPolicy, i)
		}
	}
	return nil
}

// Estimate is the outcome of a travel fee computation.
type Estimate struct {
	StraightKm float64     `json:"straight_km"`
	RoadKm     float64     `json:"road_km"`
	BillableKm float64     `json:"billable_km"`
	Zone       string      `json:"zone,omitempty"`
	Fee        money.Cents `json:"fee_cents"`
	Free       bool        `json:"free"`
}

// Quote computes the travel fee from base to site under policy.
//
// Zones take precedence when the road distance falls within one. Otherwise
// the distance beyond the free radius is billed per km, doubled for a round
// trip, and raised to the minimum when anything is billed.
func Quote(policy Policy, base, site Point) (Estimate, error) {
	if err := base.Validate(); err != nil {
		return Estimate{}, err
	}
	if err := site.Validate(); err != nil {
		return Estimate{}, err
	}
	if err := policy.Validate(); err != nil {
		return Estimate{}, err
	}

	factor := policy.RoadFactor
	if factor == 0 {
		factor = DefaultRoadFactor
	}
	straight := Haversine(base, site)
	est := Estimate{
		StraightKm: round1(straight),
		RoadKm:     round1(straight * factor),
	}
	if policy.MaxKm > 0 && est.RoadKm > policy.MaxKm {
		return est, fmt.Errorf("%w: %.1f km > %.1f km", ErrOutOfRange, est.RoadKm, policy.MaxKm)
	}

	if zones := sortedZones(policy.Zones); len(zones) > 0 {
		for _, z := range zones {
			if est.RoadKm <= z.MaxKm {
				est.Zone = z.Label
				est.Fee = z.Fee
				est.Free = z.Fee == 0
				return est, nil
			}
		}
	}

	billable := math.Max(0, est.RoadKm-policy.FreeRadiusKm)
	if policy.RoundTrip {
		billable *= 2
	}
	est.BillableKm = round1(billable)
	if est.BillableKm == 0 {
		est.Free = true
		return est, nil
	}

	fee := money.Cents(math.Round(est.BillableKm * float64(policy.PerKm)))
	if policy.Minimum > 0 && fee < policy.Minimum {
		fee = policy.Minimum
	}
	est.Fee = fee
	est.Free = fee == 0
	return est, nil
}

func sortedZones(zones []Zone) []Zone {
	if len(zones) == 0 {
		return nil
	}
	out := slices.Clone(zones)
	slices.SortStableFunc(out, func(a, b Zone) int {
		switch {
		case a.MaxKm < b.MaxKm:
			return -1
		case a.MaxKm > b.MaxKm:
			return 1
		}
		return 0
	})
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
