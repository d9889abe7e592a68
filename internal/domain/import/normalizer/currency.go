package normalizer

import (
	"strings"

	"github.com/FACorreiaa/movement-ingest/pkg/money"
)

var (
	usdTokens = []string{"usd", "u$s", "us$", "dolar", "dollar"}
	eurTokens = []string{"eur", "euro", "€"}
)

// CanonicalCurrency matches explicit currency text against the home
// currency, USD and EUR. Blank or unmatched text is the home currency; the
// amount is never consulted.
func CanonicalCurrency(raw, home string) string {
	home = strings.ToUpper(strings.TrimSpace(home))
	if !money.IsKnownCurrency(home) {
		home = money.DefaultHomeCurrency
	}

	text := Fold(raw)
	if text == "" {
		return home
	}
	for _, t := range usdTokens {
		if strings.Contains(text, t) {
			return money.USD
		}
	}
	for _, t := range eurTokens {
		if strings.Contains(text, t) {
			return money.EUR
		}
	}
	return home
}
