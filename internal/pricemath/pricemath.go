// Package pricemath does money arithmetic on exact decimals.
package pricemath

import "github.com/shopspring/decimal"

// LineTotal returns unitPrice × qty.
func LineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// Sum adds amounts; an empty call yields zero.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Format renders an amount with two fractional digits for display and storage.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Parse is the inverse of Format; empty input is zero.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
