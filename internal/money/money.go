// Package money formats minor-unit (cent) amounts for display and export.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders cents the way the storefront shows prices, e.g. 123450 -> "$1,234.50".
func Format(cents int64) string {
	return FormatDecimal(decimal.New(cents, -2))
}

// FormatDecimal renders a dollar amount with a currency sign and thousands separators.
func FormatDecimal(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	s := d.StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	return sign + "$" + group(whole) + "." + frac
}

// Dollars converts a cent value to a plain two-decimal string ("2.50").
// Analytics endpoints return revenue as float cents, hence the float input.
func Dollars(cents float64) string {
	return decimal.NewFromFloat(cents).Shift(-2).StringFixed(2)
}

func group(whole string) string {
	if len(whole) <= 3 {
		return whole
	}
	var b strings.Builder
	head := len(whole) % 3
	if head > 0 {
		b.WriteString(whole[:head])
	}
	for i := head; i < len(whole); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(whole[i : i+3])
	}
	return b.String()
}
