package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		raw  string
		want Kind
		ok   bool
	}{
		{"Income", KindIncome, true},
		{" egreso ", KindExpense, true},
		{"INGRESO", KindIncome, true},
		{"expense", KindExpense, true},
		{"transfer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseKind(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func validMovement() Movement {
	row := CandidateRow{
		SourceRow:     3,
		Kind:          KindExpense,
		Amount:        decimal.RequireFromString("-120.50"),
		EmittedAt:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Description:   "Pago Edenor",
		Origin:        "GALICIA",
		PaymentMethod: PaymentTransfer,
		Currency:      "ARS",
	}
	return *NewMovement(row, 7, "ana@example.com", time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
}

func TestMovementValidate(t *testing.T) {
	require.NoError(t, validMovement().Validate())

	tests := []struct {
		name   string
		mutate func(*Movement)
		field  string
	}{
		{"positive expense", func(m *Movement) { m.Amount = decimal.NewFromInt(5) }, "amount"},
		{"negative income", func(m *Movement) { m.Kind = KindIncome }, "amount"},
		{"no organization", func(m *Movement) { m.OrganizationID = 0 }, "organizationId"},
		{"no user", func(m *Movement) { m.UserID = "" }, "userId"},
		{"bad currency", func(m *Movement) { m.Currency = "PESO" }, "currency"},
		{"no date", func(m *Movement) { m.EmittedAt = time.Time{} }, "emittedAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMovement()
			tt.mutate(&m)
			assert.ErrorContains(t, m.Validate(), tt.field)
		})
	}
}

func TestMovementValidateZeroIncome(t *testing.T) {
	m := validMovement()
	m.Kind = KindIncome
	m.Amount = decimal.Zero
	assert.NoError(t, m.Validate())
}

func TestNewMovementEvent(t *testing.T) {
	m := validMovement()
	m.ID = 91

	ev := NewMovementEvent(&m)
	assert.Equal(t, "91", ev.RefID)
	assert.Equal(t, "ana@example.com", ev.UserID)
	assert.True(t, ev.Amount.Equal(decimal.RequireFromString("-120.50")))

	category := "Servicios"
	m.Category = &category
	assert.Equal(t, "Servicios", NewMovementEvent(&m).RefID)
}

func TestNewMovementRoundsToMinorUnit(t *testing.T) {
	row := CandidateRow{Kind: KindExpense, Amount: decimal.RequireFromString("-10.005"), Currency: "ARS"}
	m := NewMovement(row, 1, "ana", time.Now())
	assert.True(t, m.Amount.Equal(decimal.RequireFromString("-10.01")), m.Amount.String())
}
