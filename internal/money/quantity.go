package money

import (
	"errors"
	"fmt"
	"strings"
)

// Quantity is a line quantity in thousandths of a unit.
type Quantity int64

// QuantityScale is the number of Quantity units in one whole unit.
const QuantityScale = 1000

// ErrInvalidQuantity is returned when a quantity string cannot be parsed.
var ErrInvalidQuantity = errors.New("invalid quantity")

// Units builds a quantity from a whole number of units.
func Units(n int64) Quantity {
	return Quantity(n * QuantityScale)
}

// ParseQuantity parses "3", "2,5" or "0.125".
func ParseQuantity(value string) (Quantity, error) {
	whole, frac, negative, err := parseDecimal(value, 3, false)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuantity, value)
	}
	q := whole*QuantityScale + frac
	if negative {
		q = -q
	}
	return Quantity(q), nil
}

// Times prices q units at unit, rounding half away from zero.
func (q Quantity) Times(unit Cents) Cents {
	return Cents(roundDiv(int64(q)*int64(unit), QuantityScale))
}

// String renders the quantity without trailing zeros, e.g. "2.5".
func (q Quantity) String() string {
	sign := ""
	v := int64(q)
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / QuantityScale
	frac := v % QuantityScale
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	return strings.TrimRight(fmt.Sprintf("%s%d.%03d", sign, whole, frac), "0")
}
