package dto

import "github.com/shopspring/decimal"

// Money renders an amount with exactly two decimals.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Percent renders a rate with up to four decimals.
func Percent(d decimal.Decimal) string {
	return d.Round(4).String()
}
