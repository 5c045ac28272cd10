package model

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ParsePrice strips a leading currency symbol ("$5", "€1.5") and parses the
// rest as a decimal.
func ParsePrice(price string) (decimal.Decimal, error) {
	s := strings.TrimSpace(price)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty price", ErrMalformedPrice)
	}
	if r, size := utf8.DecodeRuneInString(s); !isNumericStart(r) {
		s = s[size:]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedPrice, price)
	}
	return d, nil
}

func isNumericStart(r rune) bool {
	return (r >= '0' && r <= '9') || r == '-' || r == '+' || r == '.'
}

// FormatPrice renders an amount the way catalog prices are written.
func FormatPrice(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
