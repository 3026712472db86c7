// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between kobo and Naira representations.
package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is a Naira amount stored as kobo to avoid floating-point drift.
type Money struct {
	Kobo int64
}

var ErrInvalidAmount = errors.New("invalid amount")

// ParseDecimalToKobo converts a decimal string to kobo with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive kobo.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//   ParseDecimalToKobo("12.34") -> 1234, nil
//   ParseDecimalToKobo("12,34") -> 1234, nil
//   ParseDecimalToKobo("12.345") -> 1234, nil (rounds down)
//   ParseDecimalToKobo("12.346") -> 1235, nil (rounds up)
func ParseDecimalToKobo(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return 0, ErrInvalidAmount
	}
	// Split into integer and fractional part
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracKobo int64 = 0
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracKobo = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracKobo += d2
			if len(fracPart) > 2 {
				if fracPart[2] >= '5' {
					fracKobo++
				}
			}
		}
	}
	kobo := iv*100 + fracKobo
	if kobo <= 0 {
		return 0, ErrInvalidAmount
	}
	return kobo, nil
}

func (m Money) Validate() error {
	if m.Kobo <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsZero reports whether the amount is exactly zero kobo.
func (m Money) IsZero() bool {
	return m.Kobo == 0
}

// Sub returns m minus other. Callers guard against going negative.
func (m Money) Sub(other Money) Money {
	return Money{Kobo: m.Kobo - other.Kobo}
}

// String formats the amount as a plain decimal Naira value ("125" or "125.5").
func (m Money) String() string {
	kobo := m.Kobo
	neg := kobo < 0
	if neg {
		kobo = -kobo
	}
	naira := kobo / 100
	rem := kobo % 100
	var s string
	switch {
	case rem == 0:
		s = strconv.FormatInt(naira, 10)
	case rem%10 == 0:
		s = fmt.Sprintf("%d.%d", naira, rem/10)
	default:
		s = fmt.Sprintf("%d.%02d", naira, rem)
	}
	if neg {
		return "-" + s
	}
	return s
}

// FormatNaira formats kobo as a Naira currency string (e.g., "₦12,500.00").
func FormatNaira(kobo int64) string {
	neg := kobo < 0
	if neg {
		kobo = -kobo
	}
	naira := kobo / 100
	rem := kobo % 100
	s := groupThousands(naira) + "." + fmt.Sprintf("%02d", rem)
	if neg {
		return "-₦" + s
	}
	return "₦" + s
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// MarshalJSON encodes the amount as a plain Naira number, which is the wire
// format the Expense API uses (txn_amount: 10000).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a Naira number (or numeric string) and stores kobo.
// Unlike ParseDecimalToKobo this tolerates zero: a fully paid expense has
// balance 0 on the wire.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		m.Kobo = 0
		return nil
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	kobo, err := parseUnsignedKobo(s)
	if err != nil {
		return err
	}
	if neg {
		kobo = -kobo
	}
	m.Kobo = kobo
	return nil
}

// parseUnsignedKobo parses a non-negative decimal string into kobo,
// tolerating scientific notation emitted by some JSON encoders.
func parseUnsignedKobo(s string) (int64, error) {
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		return int64(f*100.0 + 0.5), nil
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	if intPart == "" {
		intPart = "0"
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	var fracKobo int64
	if len(parts) == 2 && len(parts[1]) > 0 {
		frac := parts[1]
		d1 := int64(frac[0] - '0')
		if d1 < 0 || d1 > 9 {
			return 0, ErrInvalidAmount
		}
		fracKobo = d1 * 10
		if len(frac) > 1 {
			d2 := int64(frac[1] - '0')
			if d2 < 0 || d2 > 9 {
				return 0, ErrInvalidAmount
			}
			fracKobo += d2
			if len(frac) > 2 && frac[2] >= '5' {
				fracKobo++
			}
		}
	}
	return iv*100 + fracKobo, nil
}
