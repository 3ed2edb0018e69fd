// Package core provides amount and flag parsing for transaction rows.
//
// Amounts travel as text in the sheet and as JSON numbers on the wire.
// Aggregations go through shopspring/decimal so repeated sums of
// values like 0.1 do not drift.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses a decimal amount. Surrounding spaces are ignored and
// an empty string is zero. NaN and infinities are rejected.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidAmount
	}
	return f, nil
}

// amountOrZero is the read-side parse: malformed text counts as 0.
func amountOrZero(s string) float64 {
	f, err := ParseAmount(s)
	if err != nil {
		return 0
	}
	return f
}

// ParseRecurring accepts true/1/yes/y in any case.
func ParseRecurring(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	default:
		return false
	}
}

// AmountDecimal converts a wire amount for exact aggregation.
func AmountDecimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
