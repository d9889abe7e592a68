package model

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/movement-ingest/pkg/money"
)

// Movement is the canonical persisted transaction.
type Movement struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organizationId"`
	UserID         string          `json:"userId"`
	Kind           Kind            `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	EmittedAt      time.Time       `json:"emittedAt"`
	Description    string          `json:"description"`
	Origin         string          `json:"origin"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	Category       *string         `json:"category,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

var errSignMismatch = errors.New("amount sign does not match kind")

// NewMovement converts a selected candidate row for the given tenant.
// The row's amount is taken as already sign-normalized and is rounded to the
// currency's minor unit.
func NewMovement(row CandidateRow, organizationID int64, userID string, now time.Time) *Movement {
	return &Movement{
		OrganizationID: organizationID,
		UserID:         userID,
		Kind:           row.Kind,
		Amount:         money.NewFromDecimal(row.Amount, row.Currency).ToDecimal(),
		Currency:       row.Currency,
		EmittedAt:      row.EmittedAt,
		Description:    row.Description,
		Origin:         row.Origin,
		PaymentMethod:  row.PaymentMethod,
		Category:       row.SuggestedCategory,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks required fields and the sign invariant.
func (m Movement) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.OrganizationID, validation.Required),
		validation.Field(&m.UserID, validation.Required),
		validation.Field(&m.Kind, validation.Required, validation.In(KindIncome, KindExpense)),
		validation.Field(&m.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&m.EmittedAt, validation.Required),
		validation.Field(&m.PaymentMethod, validation.Required),
		validation.Field(&m.Amount, validation.By(func(any) error {
			if m.Kind == KindExpense && m.Amount.IsPositive() {
				return errSignMismatch
			}
			if m.Kind == KindIncome && m.Amount.IsNegative() {
				return errSignMismatch
			}
			return nil
		})),
	)
}
