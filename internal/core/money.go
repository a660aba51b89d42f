// Package core provides money parsing and handling utilities.
//
// Amounts are rupiah values held as decimals so that quantity * price is
// exact. Form input may use Indonesian grouping (1.500.000 or 1.500.000,50)
// or plain numbers (1500000 or 2.5).
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

func init() {
	// Emit amounts as JSON numbers for API and cache consumers
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount parses a non-negative numeric string as typed into a form.
//
// Examples:
//
//	ParseAmount("500000")       -> 500000
//	ParseAmount("1.500.000")    -> 1500000
//	ParseAmount("1.500.000,50") -> 1500000.5
//	ParseAmount("2,5")          -> 2.5
//	ParseAmount("2.5")          -> 2.5
//	ParseAmount("Rp 75.000")    -> 75000
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Rp"), "rp")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case commas > 1:
		return decimal.Zero, ErrInvalidAmount
	case commas == 1:
		// Comma is the decimal separator, dots group thousands
		intPart, frac, _ := strings.Cut(s, ",")
		if dots > 0 && !validGrouping(intPart) {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.ReplaceAll(intPart, ".", "") + "." + frac
	case dots > 1:
		if !validGrouping(s) {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.ReplaceAll(s, ".", "")
	case dots == 1 && validGrouping(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// validGrouping reports whether s is dot-grouped by thousands, as in 75.000
// or 1.500.000.
func validGrouping(s string) bool {
	groups := strings.Split(s, ".")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// FormatRupiah renders an amount with Indonesian thousands grouping, e.g.
// Rp 1.500.000. Fractions are rounded to whole rupiah.
func FormatRupiah(d decimal.Decimal) string {
	digits := d.Round(0).Abs().String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if d.Round(0).IsNegative() {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}
