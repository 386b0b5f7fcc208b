package domain

import "github.com/shopspring/decimal"

// Round2 rounds a money amount to two decimal places. Every arithmetic step in
// the pricing pipeline rounds immediately so per-line totals never drift from
// the aggregated subtotal.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MulQty multiplies a unit amount by a line quantity and rounds.
func MulQty(unit decimal.Decimal, quantity int) decimal.Decimal {
	return Round2(unit.Mul(decimal.NewFromInt(int64(quantity))))
}

// Zero is the canonical zero money amount.
var Zero = decimal.Zero

// LineTotalOf recomputes the invariant lineTotal = round2(unitFinal x quantity).
func LineTotalOf(line PricedLine) decimal.Decimal {
	return MulQty(line.UnitFinalPrice, line.Quantity)
}

// SumLineTotals aggregates line totals with rounding applied at the end of the
// summation, matching how subtotals are reported.
func SumLineTotals(lines []PricedLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	return Round2(total)
}
