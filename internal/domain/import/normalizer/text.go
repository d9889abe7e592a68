// Package normalizer converts raw cell and line text into canonical values:
// dates, signed decimal amounts, payment methods and currencies.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripMarks removes diacritics and turns non-breaking spaces into plain
// spaces, keeping case.
func StripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ReplaceAll(out, "\u00a0", " ")
}

// Fold lower-cases and trims StripMarks output, so "Débito" and "DEBITO"
// compare equal.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(StripMarks(s)))
}

// RowPredicate decides whether a row of cells is the header of a layout.
type RowPredicate func(folded []string) bool

// Contains matches when any cell contains the token.
func Contains(token string) RowPredicate {
	token = Fold(token)
	return func(cells []string) bool {
		for _, c := range cells {
			if strings.Contains(c, token) {
				return true
			}
		}
		return false
	}
}

// AllOf matches when every predicate matches.
func AllOf(preds ...RowPredicate) RowPredicate {
	return func(cells []string) bool {
		for _, p := range preds {
			if !p(cells) {
				return false
			}
		}
		return true
	}
}

// AnyOf matches when at least one predicate matches.
func AnyOf(preds ...RowPredicate) RowPredicate {
	return func(cells []string) bool {
		for _, p := range preds {
			if p(cells) {
				return true
			}
		}
		return false
	}
}

// MatchRow folds the raw cells and applies the predicate.
func MatchRow(p RowPredicate, raw []string) bool {
	folded := make([]string, len(raw))
	for i, c := range raw {
		folded[i] = Fold(c)
	}
	return p(folded)
}
