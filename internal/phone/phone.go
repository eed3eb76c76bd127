// Package phone turns roster phone cells into international numbers.
package phone

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidNumber is wrapped by every Apply failure.
var ErrInvalidNumber = errors.New("invalid phone number")

// DefaultNationalLength is the subscriber number length used to recognise a
// bare number that already starts with the country code.
const DefaultNationalLength = 10

// Prefix applies a fixed country code to national numbers.
type Prefix struct {
	code           string // digits only, no "+"
	nationalLength int
}

// NewPrefix parses a country code such as "+91" or "91".
func NewPrefix(code string) (Prefix, error) {
	digits := strings.TrimPrefix(strings.TrimSpace(code), "+")
	if digits == "" || len(digits) > 4 || !allDigits(digits) {
		return Prefix{}, fmt.Errorf("invalid country code %q", code)
	}
	return Prefix{code: digits, nationalLength: DefaultNationalLength}, nil
}

// WithNationalLength returns a copy recognising n-digit subscriber numbers.
func (p Prefix) WithNationalLength(n int) Prefix {
	p.nationalLength = n
	return p
}

// String returns the code in "+NN" form.
func (p Prefix) String() string {
	return "+" + p.code
}

// Apply returns raw in "+<code><number>" form. The country code is added at
// most once: numbers already written as "+..." or "00..." are kept, and a bare
// number that starts with the code and has the full length is not prefixed
// again.
func (p Prefix) Apply(raw string) (string, error) {
	s := clean(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidNumber)
	}

	var digits string
	switch {
	case strings.HasPrefix(s, "+"):
		digits = s[1:]
	case strings.HasPrefix(s, "00"):
		digits = s[2:]
	default:
		if !allDigits(s) {
			return "", fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
		}
		national := strings.TrimLeft(s, "0")
		if p.nationalLength > 0 && len(national) == len(p.code)+p.nationalLength && strings.HasPrefix(national, p.code) {
			digits = national
		} else {
			digits = p.code + national
		}
	}

	if !allDigits(digits) || len(digits) < 8 || len(digits) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	return "+" + digits, nil
}

// clean strips formatting characters and spreadsheet artefacts such as a
// trailing ".0" or scientific notation on numeric cells.
func clean(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "eE") || strings.HasSuffix(s, ".0") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
			s = strconv.FormatFloat(f, 'f', 0, 64)
		}
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ', r == '-', r == '(', r == ')', r == '.':
		default:
			// keep so validation rejects it
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ChatID formats a number for providers addressing chats as "<digits>@c.us".
func ChatID(number string) string {
	return strings.TrimPrefix(number, "+") + "@c.us"
}
