package money

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParts is returned when an installment count is not positive.
	ErrInvalidParts = errors.New("installment count must be positive")
	// ErrNegativeTotal is returned when splitting a negative amount.
	ErrNegativeTotal = errors.New("total must not be negative")
	// ErrInvalidWeights is returned when weights are empty or not positive.
	ErrInvalidWeights = errors.New("weights must be positive")
)

// Split divides total into n parts of total/n; the last part absorbs the
// remainder so the parts always sum to total.
func Split(total Cents, n int) ([]Cents, error) {
	if n <= 0 {
		return nil, ErrInvalidParts
	}
	if total < 0 {
		return nil, ErrNegativeTotal
	}
	base := total / Cents(n)
	parts := make([]Cents, n)
	for i := range parts {
		parts[i] = base
	}
	parts[n-1] = total - base*Cents(n-1)
	return parts, nil
}

// SplitByWeights divides total proportionally to weights, e.g. 30/40/30.
// Every part but the last is rounded down; the last absorbs the remainder.
func SplitByWeights(total Cents, weights []int) ([]Cents, error) {
	if len(weights) == 0 {
		return nil, ErrInvalidWeights
	}
	if total < 0 {
		return nil, ErrNegativeTotal
	}
	sum := int64(0)
	for i, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("%w: weight %d is %d", ErrInvalidWeights, i+1, w)
		}
		sum += int64(w)
	}

	parts := make([]Cents, len(weights))
	allocated := Cents(0)
	for i, w := range weights[:len(weights)-1] {
		parts[i] = Cents(int64(total) * int64(w) / sum)
		allocated += parts[i]
	}
	parts[len(parts)-1] = total - allocated
	return parts, nil
}

// Sum adds amounts.
func Sum(amounts ...Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}
