package money

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Cents
	}{
		{"1234", 123400},
		{"1234.5", 123450},
		{"1 234,56", 123456},
		{"1\u00a0234,56", 123456},
		{"12€", 1200},
		{"12,50 €", 1250},
		{"€ 12.50", 1250},
		{"-3.10", -310},
		{"1.234,56", 123456},
		{"1,234.56", 123456},
		{"1.234.567", 123456700},
		{",5", 50},
		{"0", 0},
		{"+7", 700},
		{"99 EUR", 9900},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseAmountRejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "abc", "12,345", "1.5.x", "-", ".", "12 euros", "1e3"} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q) err = %v, want ErrInvalidAmount", in, err)
		}
	}
}

func TestCentsDecimal(t *testing.T) {
	tests := map[Cents]string{
		123456: "1234.56",
		5:      "0.05",
		-310:   "-3.10",
		0:      "0.00",
	}
	for in, want := range tests {
		if got := in.Decimal(); got != want {
			t.Fatalf("Cents(%d).Decimal() = %q, want %q", in, got, want)
		}
	}
}

func TestRoundDivHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		num, den, want int64
	}{
		{5, 10, 1},
		{4, 10, 0},
		{-5, 10, -1},
		{-4, 10, 0},
		{15, 10, 2},
		{25, 10, 3},
	}
	for _, tt := range tests {
		if got := roundDiv(tt.num, tt.den); got != tt.want {
			t.Fatalf("roundDiv(%d, %d) = %d, want %d", tt.num, tt.den, got, tt.want)
		}
	}
}
