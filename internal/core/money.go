// Package core holds the finance model and the pure computations over it.
//
// This file contains the numeric boundary: parsing raw form input into
// non-negative amounts and formatting amounts for pt-BR display.
package core

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DateLayout is the layout accepted for debt start and end dates.
const DateLayout = "2006-01-02"

// maxNumberLength bounds numeric input after whitespace and the currency
// symbol are removed.
const maxNumberLength = 32

// ParseAmount converts user input into a non-negative amount.
//
// Dot and comma decimal separators are both accepted, as are pt-BR grouped
// values and a leading currency symbol. Input that cannot be parsed, or that
// is negative, yields 0.
//
// Examples:
//
//	ParseAmount("1234.56")     -> 1234.56
//	ParseAmount("1.234,56")    -> 1234.56
//	ParseAmount("R$ 1.500,00") -> 1500
//	ParseAmount("-10")         -> 0
//	ParseAmount("abc")         -> 0
func ParseAmount(s string) float64 {
	d, ok := parseDecimal(s)
	if !ok || d.IsNegative() {
		return 0
	}
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ParseCount converts user input into a non-negative whole number, dropping
// any fractional part. Unparsable input yields 0.
func ParseCount(s string) int {
	d, ok := parseDecimal(s)
	if !ok || d.IsNegative() {
		return 0
	}
	d = d.Truncate(0)
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return math.MaxInt32
	}
	return int(d.IntPart())
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\t':
			return -1
		}
		return r
	}, s)
	// Exponent forms make later conversions cost grow with the exponent.
	if s == "" || len(s) > maxNumberLength || strings.ContainsAny(s, "eE") {
		return decimal.Zero, false
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		// The separator that comes last marks the decimals.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatBRL formats an amount as Brazilian reais, rounding half away from
// zero to cents: 1234.5 -> "R$ 1.234,50", -50 -> "-R$ 50,00".
func FormatBRL(v float64) string {
	d := decimal.NewFromFloat(sanitize(v)).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "R$ " + formatFixed(d, 2)
}

// FormatNumber formats a value with exactly digits fraction digits using
// pt-BR separators, e.g. FormatNumber(1.5, 2) -> "1,50".
func FormatNumber(v float64, digits int32) string {
	d := decimal.NewFromFloat(sanitize(v)).Round(digits)
	if d.IsNegative() {
		return "-" + formatFixed(d.Abs(), digits)
	}
	return formatFixed(d, digits)
}

func formatFixed(d decimal.Decimal, digits int32) string {
	n := number.Decimal(d.InexactFloat64(),
		number.MinFractionDigits(int(digits)),
		number.MaxFractionDigits(int(digits)),
	)
	return message.NewPrinter(language.BrazilianPortuguese).Sprintf("%v", n)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ValidDate reports whether s is empty or a calendar date in DateLayout.
func ValidDate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// FormatDate renders a DateLayout date as dd/mm/yyyy. Anything else is
// returned unchanged.
func FormatDate(s string) string {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}
