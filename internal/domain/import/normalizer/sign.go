package normalizer

import (
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
)

// KindFromAmount infers the kind from the sign; zero counts as income.
func KindFromAmount(amount decimal.Decimal) model.Kind {
	if amount.IsNegative() {
		return model.KindExpense
	}
	return model.KindIncome
}

// NormalizeSign forces expenses negative and income non-negative.
func NormalizeSign(kind model.Kind, amount decimal.Decimal) decimal.Decimal {
	switch kind {
	case model.KindExpense:
		if amount.IsPositive() {
			return amount.Neg()
		}
	case model.KindIncome:
		if amount.IsNegative() {
			return amount.Neg()
		}
	}
	return amount
}
