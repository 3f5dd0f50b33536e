// Package money holds integer minor-unit amounts, quantities, rates and the
// installment split used across billing.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Cents is an amount in minor currency units.
type Cents int64

// ErrInvalidAmount is returned when an amount string cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// Decimal renders the amount with a dot and two decimals, e.g. "1234.56".
func (c Cents) Decimal() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Abs returns the absolute amount.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// ParseAmount parses a user-entered amount. It accepts a comma or dot
// decimal separator, space or dot grouping and an optional euro sign.
func ParseAmount(value string) (Cents, error) {
	whole, frac, negative, err := parseDecimal(value, 2, true)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	cents := whole*100 + frac
	if negative {
		cents = -cents
	}
	return Cents(cents), nil
}

// parseDecimal splits value into integer and fraction parts scaled to
// maxDecimals digits.
func parseDecimal(value string, maxDecimals int, allowCurrency bool) (int64, int64, bool, error) {
	s := strings.TrimSpace(value)
	if allowCurrency {
		s = strings.TrimSuffix(strings.TrimSpace(strings.TrimSuffix(s, "EUR")), "€")
		s = strings.TrimPrefix(strings.TrimSpace(s), "€")
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, s)

	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return 0, 0, false, errors.New("empty")
	}

	intPart, fracPart := splitSeparators(s)
	if intPart == "" && fracPart == "" {
		return 0, 0, false, errors.New("no digits")
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > maxDecimals {
		return 0, 0, false, errors.New("too many decimals")
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return 0, 0, false, errors.New("not a number")
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, 0, false, err
	}
	frac := int64(0)
	if fracPart != "" {
		frac, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, 0, false, err
		}
	}
	for i := len(fracPart); i < maxDecimals; i++ {
		frac *= 10
	}
	return whole, frac, negative, nil
}

// splitSeparators picks the right-most separator as the decimal mark when
// both a comma and a dot are present; repeated dots are grouping.
func splitSeparators(s string) (string, string) {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		decimal := max(lastComma, lastDot)
		intPart := strings.NewReplacer(",", "", ".", "").Replace(s[:decimal])
		return intPart, s[decimal+1:]
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", ""), ""
		}
		return s[:lastComma], s[lastComma+1:]
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", ""), ""
		}
		return s[:lastDot], s[lastDot+1:]
	default:
		return s, ""
	}
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// roundDiv divides num by den rounding half away from zero. den must be > 0.
func roundDiv(num, den int64) int64 {
	if num >= 0 {
		return (num + den/2) / den
	}
	return -((-num + den/2) / den)
}
