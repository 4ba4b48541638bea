package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// amounts travel as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// NonNegative returns max(0, d).
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// SumAmounts adds up all `amounts`.
func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// FormatCOP formats `d` as Colombian pesos: $1.234.567 (cents only when present: $1.234,50).
func FormatCOP(d decimal.Decimal) string {
	neg := d.IsNegative()
	d = d.Abs().Round(2)

	intPart := d.Truncate(0)
	frac := d.Sub(intPart)

	digits := intPart.String()
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if !frac.IsZero() {
		cents := frac.Shift(2).IntPart()
		b.WriteByte(',')
		if cents < 10 {
			b.WriteByte('0')
		}
		b.WriteString(decimal.NewFromInt(cents).String())
	}
	return b.String()
}
