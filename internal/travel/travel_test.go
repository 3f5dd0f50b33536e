package travel

import (
	"errors"
	"math"
	"testing"

	"github.com/louisbranch/tradebook/internal/money"
)

var (
	paris = Point{Lat: 48.8566, Lng: 2.3522}
	lyon  = Point{Lat: 45.7640, Lng: 4.8357}
)

func TestHaversine(t *testing.T) {
	got := Haversine(paris, lyon)
	if math.Abs(got-391.5) > 1.5 {
		t.Fatalf("paris-lyon = %.1f km, want ~391.5", got)
	}
	if Haversine(paris, paris) != 0 {
		t.Fatal("expected zero distance to self")
	}
	if math.Abs(Haversine(paris, lyon)-Haversine(lyon, paris)) > 1e-9 {
		t.Fatal("expected symmetric distance")
	}
}

// offsetKm returns a point roughly km kilometers north of p.
func offsetKm(p Point, km float64) Point {
	return Point{Lat: p.Lat + km/(EarthRadiusKm*math.Pi/180), Lng: p.Lng}
}

func TestQuotePerKm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		policy   Policy
		straight float64
		wantFee  money.Cents
		wantFree bool
	}{
		{
			name:     "inside free radius",
			policy:   Policy{FreeRadiusKm: 20, PerKm: 50, RoadFactor: 1},
			straight: 10,
			wantFree: true,
		},
		{
			name:     "beyond free radius",
			policy:   Policy{FreeRadiusKm: 10, PerKm: 50, RoadFactor: 1},
			straight: 30,
			wantFee:  1000,
		},
		{
			name:     "round trip doubles",
			policy:   Policy{FreeRadiusKm: 10, PerKm: 50, RoadFactor: 1, RoundTrip: true},
			straight: 30,
			wantFee:  2000,
		},
		{
			name:     "minimum applies",
			policy:   Policy{FreeRadiusKm: 10, PerKm: 50, RoadFactor: 1, Minimum: 1500},
			straight: 12,
			wantFee:  1500,
		},
		{
			name:     "default road factor",
			policy:   Policy{PerKm: 100},
			straight: 10,
			wantFee:  1300,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			est, err := Quote(tt.policy, paris, offsetKm(paris, tt.straight))
			if err != nil {
				t.Fatalf("quote: %v", err)
			}
			if est.Fee != tt.wantFee || est.Free != tt.wantFree {
				t.Fatalf("estimate = %+v, want fee %d free %v", est, tt.wantFee, tt.wantFree)
			}
		})
	}
}

func TestQuoteZonesTakePrecedence(t *testing.T) {
	policy := Policy{
		PerKm:      100,
		RoadFactor: 1,
		Zones: []Zone{
			{MaxKm: 30, Fee: 4000, Label: "zone 2"},
			{MaxKm: 10, Fee: 0, Label: "zone 1"},
		},
	}

	est, err := Quote(policy, paris, offsetKm(paris, 5))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if est.Zone != "zone 1" || !est.Free {
		t.Fatalf("near estimate = %+v", est)
	}

	est, err = Quote(policy, paris, offsetKm(paris, 20))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if est.Zone != "zone 2" || est.Fee != 4000 {
		t.Fatalf("mid estimate = %+v", est)
	}

	est, err = Quote(policy, paris, offsetKm(paris, 50))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if est.Zone != "" || est.Fee != 5000 {
		t.Fatalf("far estimate = %+v", est)
	}
}

func TestQuoteOutOfRange(t *testing.T) {
	_, err := Quote(Policy{PerKm: 50, MaxKm: 100}, paris, lyon)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("err = %v, want ErrOutOfRange", err)
	}
}

func TestQuoteValidates(t *testing.T) {
	if _, err := Quote(Policy{}, Point{Lat: 91}, paris); !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("bad base err = %v", err)
	}
	if _, err := Quote(Policy{}, paris, Point{Lng: -181}); !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("bad site err = %v", err)
	}
	if _, err := Quote(Policy{PerKm: -1}, paris, lyon); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("bad policy err = %v", err)
	}
	if _, err := Quote(Policy{Zones: []Zone{{MaxKm: 0}}}, paris, lyon); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("bad zone err = %v", err)
	}
}
