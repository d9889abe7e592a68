package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// currencyMarkers are removed before parsing, longest first.
var currencyMarkers = []string{"us$", "u$s", "usd", "ars", "eur", "$", "€"}

// ParseAmount parses a locale formatted amount. A separator of "," or "."
// names the decimal separator and skips inference. Blank input is an error,
// never a silent zero.
func ParseAmount(raw, separator string) (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	for _, m := range currencyMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\u00a0':
			return -1
		}
		return r
	}, s)

	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	}

	if s == "" || strings.Trim(s, "0123456789.,") != "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(canonicalDecimal(s, separator))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ParseAmountOrZero treats a blank value as zero. Used for debit and credit
// columns where one of the pair is normally empty.
func ParseAmountOrZero(raw, separator string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return ParseAmount(raw, separator)
}

func canonicalDecimal(s, separator string) string {
	switch separator {
	case ",":
		return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	case ".":
		return strings.ReplaceAll(s, ",", "")
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		// the separator appearing last is the decimal one
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.ReplaceAll(s, ",", ".")
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		last := strings.LastIndex(s, ".")
		if len(s)-last-1 == 2 {
			return strings.ReplaceAll(s[:last], ".", "") + s[last:]
		}
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}
