// internal/finance/format.go
package finance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatINR renders an amount with the rupee sign and Indian digit grouping
// (₹12,34,567). Paise are shown only when the amount is fractional.
func FormatINR(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	neg := d.IsNegative()
	d = d.Abs()

	whole := d.Truncate(0)
	frac := d.Sub(whole)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("₹")
	b.WriteString(groupIndian(whole.String()))
	if !frac.IsZero() {
		b.WriteString(frac.StringFixed(2)[1:])
	}
	return b.String()
}

// FormatPercent renders a rate with two decimals, e.g. 10.50.
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// groupIndian groups the last three digits, then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(append(parts, tail), ",")
}
