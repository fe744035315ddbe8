// Package talent holds the arithmetic rules for talent amounts: whole-number
// balances and deltas, plus the display average used by the admin summary.
package talent

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("amount must be an integer")

// ParseAmount parses a signed whole number. Decimal points, exponents and
// empty input are rejected.
func ParseAmount(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	digits := trimmed
	if digits[0] == '-' || digits[0] == '+' {
		digits = digits[1:]
	}
	if digits == "" || !isDigits(digits) {
		return 0, ErrInvalidAmount
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return value, nil
}

// FormatDelta renders a delta with an explicit sign, e.g. "+5" or "-3".
func FormatDelta(delta int64) string {
	if delta > 0 {
		return "+" + strconv.FormatInt(delta, 10)
	}
	return strconv.FormatInt(delta, 10)
}

// Average returns total/count rounded to two places; zero when count is zero.
func Average(total int64, count int) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(count))).Round(2)
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
