package money

import (
	"errors"
	"testing"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"3", 3000},
		{"2,5", 2500},
		{"0.125", 125},
		{"12", Units(12)},
	}
	for _, tt := range tests {
		got, err := ParseQuantity(tt.in)
		if err != nil {
			t.Fatalf("ParseQuantity(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseQuantity(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if _, err := ParseQuantity("1,2345"); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := ParseQuantity("3 €"); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected currency sign rejected, got %v", err)
	}
}

func TestQuantityTimes(t *testing.T) {
	tests := []struct {
		q    Quantity
		unit Cents
		want Cents
	}{
		{Units(3), 1250, 3750},
		{2500, 1999, 4998}, // 4997.5
		{333, 100, 33},
		{1500, 1, 2},
		{1500, -1, -2},
		{0, 123456, 0},
	}
	for _, tt := range tests {
		if got := tt.q.Times(tt.unit); got != tt.want {
			t.Fatalf("%d × %d = %d, want %d", tt.q, tt.unit, got, tt.want)
		}
	}
}

func TestQuantityString(t *testing.T) {
	tests := map[Quantity]string{
		3000: "3",
		2500: "2.5",
		125:  "0.125",
		-500: "-0.5",
	}
	for in, want := range tests {
		if got := in.String(); got != want {
			t.Fatalf("Quantity(%d).String() = %q, want %q", in, got, want)
		}
	}
}
