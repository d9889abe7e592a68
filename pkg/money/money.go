// Package money converts between decimal amounts and integer minor units
// using the ISO-4217 currency table from go-money.
package money

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency codes used by the ingestion pipeline (ISO-4217)
const (
	ARS = "ARS" // Argentine Peso
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
)

// DefaultHomeCurrency is used when no valid home currency is configured.
const DefaultHomeCurrency = ARS

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a new Money value from minor units and currency code.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, currencyCode)}
}

// NewFromDecimal creates Money from a decimal, rounding to the currency's
// minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	return New(ToMinor(amount, currencyCode), currencyCode)
}

// IsKnownCurrency reports whether code is an ISO-4217 currency.
func IsKnownCurrency(code string) bool {
	if code == "" {
		return false
	}
	return money.GetCurrency(strings.ToUpper(code)) != nil
}

// Fraction returns the number of minor digits for a currency, 2 if unknown.
func Fraction(code string) int {
	c := money.GetCurrency(strings.ToUpper(code))
	if c == nil {
		return 2
	}
	return c.Fraction
}

// ToMinor converts a decimal amount into minor units.
func ToMinor(amount decimal.Decimal, currencyCode string) int64 {
	multiplier := decimal.New(1, int32(Fraction(currencyCode)))
	return amount.Mul(multiplier).Round(0).IntPart()
}

// FromMinor converts minor units back to a decimal amount.
func FromMinor(amountMinor int64, currencyCode string) decimal.Decimal {
	return decimal.New(amountMinor, -int32(Fraction(currencyCode)))
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// ToDecimal converts to decimal.Decimal
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return FromMinor(m.m.Amount(), m.Currency())
}

// String returns the amount with its currency code (e.g., "1234.56 ARS")
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(int32(Fraction(m.Currency()))), m.Currency())
}
