package money

import (
	"errors"
	"fmt"
	"strings"
)

// Rate is a percentage in basis points: 2000 is 20 %.
type Rate int64

// Standard French VAT rates.
const (
	VATStandard     Rate = 2000
	VATIntermediate Rate = 1000
	VATReduced      Rate = 550
	VATSuperReduced Rate = 210
	VATZero         Rate = 0
)

// ErrInvalidRate is returned when a rate string cannot be parsed.
var ErrInvalidRate = errors.New("invalid rate")

// ParseRate parses "20", "5,5", "5.5 %" into basis points.
func ParseRate(value string) (Rate, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	whole, frac, negative, err := parseDecimal(s, 2, false)
	if err != nil || negative {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRate, value)
	}
	r := Rate(whole*100 + frac)
	if r > 10000 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRate, value)
	}
	return r, nil
}

// Of applies the rate to amount, rounding half away from zero.
func (r Rate) Of(amount Cents) Cents {
	return Cents(roundDiv(int64(amount)*int64(r), 10000))
}

// Valid reports whether the rate lies within 0..100 %.
func (r Rate) Valid() bool {
	return r >= 0 && r <= 10000
}

// String renders the rate as a percentage number, e.g. "5.5".
func (r Rate) String() string {
	whole := int64(r) / 100
	frac := int64(r) % 100
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%02d", whole, frac), "0")
}
