package writer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// formatDecimal renders a nullable value exactly, or "" when absent.
func formatDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// floatOrNil is the spreadsheet cell value for a nullable decimal.
func floatOrNil(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}

// formatINR renders a rupee amount with Indian digit grouping, e.g.
// 914287.6 as "₹9,14,287.60".
func formatINR(d decimal.Decimal) string {
	s := groupIndian(d.Abs().StringFixed(2))
	if d.IsNegative() {
		return "-₹" + s
	}
	return "₹" + s
}

// groupIndian groups the integer part as 3 digits then pairs: 12,34,56,789.
func groupIndian(s string) string {
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return intPart + frac
	}

	head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append(groups, head[len(head)-2:])
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append(groups, head)
	}

	var sb strings.Builder
	for i := len(groups) - 1; i >= 0; i-- {
		sb.WriteString(groups[i])
		sb.WriteByte(',')
	}
	sb.WriteString(tail)
	sb.WriteString(frac)
	return sb.String()
}
