// Package core provides the domain model of the vault: entities, money and
// date handling, and the typed errors shared by every other package.
//
// Amounts are whole currency units. Raw input is rounded once, at the
// boundary, half away from zero.
package core

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MaxAmount bounds every stored amount and balance. Sums of many amounts stay
// far from int64 overflow, and every amount is exact as a float64.
const MaxAmount int64 = 1_000_000_000_000_000

var maxAmount = decimal.NewFromInt(MaxAmount)

// RoundAmount rounds a raw amount to whole currency units.
func RoundAmount(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return RoundDecimal(decimal.NewFromFloat(v))
}

// RoundDecimal rounds a decimal to whole currency units. Results beyond
// MaxAmount in either direction fail with ErrInvalidAmount.
func RoundDecimal(d decimal.Decimal) (int64, error) {
	r := d.Round(0)
	if r.Abs().GreaterThan(maxAmount) {
		return 0, ErrInvalidAmount
	}
	return r.IntPart(), nil
}

// ValidateAmount rejects zero, negative and oversized amounts.
func ValidateAmount(amount int64) error {
	if amount <= 0 || amount > MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateBalance rejects balances outside ±MaxAmount.
func ValidateBalance(value int64) error {
	if value > MaxAmount || value < -MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount converts user or parser text into whole currency units.
//
// Currency symbols and spaces are ignored. A comma followed by exactly three
// digits is a thousands separator (1,234 and 1,23,456 both work); any other
// comma is a decimal separator (12,50). Only positive results are accepted.
//
// Examples:
//
//	ParseAmount("1,499")     -> 1499, nil
//	ParseAmount("₹ 2,500.50") -> 2501, nil
//	ParseAmount("12,4")      -> 12, nil
func ParseAmount(s string) (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" || strings.HasPrefix(cleaned, "-") {
		return 0, ErrInvalidAmount
	}
	cleaned = normalizeSeparators(cleaned)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	amount, err := RoundDecimal(d)
	if err != nil {
		return 0, err
	}
	if err := ValidateAmount(amount); err != nil {
		return 0, err
	}
	return amount, nil
}

func normalizeSeparators(s string) string {
	if strings.Contains(s, ".") {
		return strings.ReplaceAll(s, ",", "")
	}
	parts := strings.Split(s, ",")
	if len(parts) == 1 {
		return s
	}
	thousands := true
	for _, p := range parts[1:] {
		if len(p) != 3 && !(len(p) == 2 && len(parts) > 2) {
			thousands = false
			break
		}
	}
	if len(parts[len(parts)-1]) != 3 {
		thousands = false
	}
	if thousands {
		return strings.Join(parts, "")
	}
	if len(parts) == 2 {
		return parts[0] + "." + parts[1]
	}
	return strings.Join(parts, "")
}
