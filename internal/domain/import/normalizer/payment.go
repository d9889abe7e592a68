package normalizer

import (
	"regexp"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
)

type paymentRule struct {
	pattern *regexp.Regexp
	method  model.PaymentMethod
}

// Rules run against folded text, first match wins. Wallet providers are
// checked before cards so "mercado pago tarjeta" is attributed to the wallet.
var paymentRules = []paymentRule{
	{regexp.MustCompile(`mercado\s*pago|\bmp\b|\buala\b|billetera|wallet`), model.PaymentWalletProvider},
	{regexp.MustCompile(`efectivo|\bcash\b`), model.PaymentCash},
	{regexp.MustCompile(`transf|\bcbu\b|\bcvu\b|debin`), model.PaymentTransfer},
	{regexp.MustCompile(`\bcheque|\bcheck\b|echeq`), model.PaymentCheck},
	{regexp.MustCompile(`tarj|\bcard\b|\bvisa\b|mastercard|\bamex\b|\bdebito\b|\bcredito\b`), model.PaymentCard},
}

// CanonicalPaymentMethod maps free text onto the payment vocabulary.
// Unmatched or blank text is Other.
func CanonicalPaymentMethod(raw string) model.PaymentMethod {
	text := Fold(raw)
	if text == "" {
		return model.PaymentOther
	}
	for _, r := range paymentRules {
		if r.pattern.MatchString(text) {
			return r.method
		}
	}
	return model.PaymentOther
}
