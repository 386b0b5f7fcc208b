package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound2(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"0.125", "0.13"},
		{"-0.005", "-0.01"},
		{"99.999", "100"},
	}
	for _, tc := range cases {
		got := Round2(decimal.RequireFromString(tc.in))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("Round2(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestMulQty(t *testing.T) {
	got := MulQty(decimal.RequireFromString("3.335"), 3)
	if !got.Equal(decimal.RequireFromString("10.01")) {
		t.Fatalf("expected 10.01, got %s", got)
	}
}

func TestSumLineTotals(t *testing.T) {
	lines := []PricedLine{
		{LineTotal: decimal.RequireFromString("10.01")},
		{LineTotal: decimal.RequireFromString("19.99")},
		{LineTotal: decimal.RequireFromString("0.00")},
	}
	if got := SumLineTotals(lines); !got.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected 30.00, got %s", got)
	}
}
