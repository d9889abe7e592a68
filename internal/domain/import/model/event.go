package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// MovementEvent announces one persisted movement.
type MovementEvent struct {
	UserID      string          `json:"userId"`
	RefID       string          `json:"refId"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Currency    string          `json:"currency"`
}

// NewMovementEvent describes m. The reference is the movement's category
// when it has one, its id otherwise.
func NewMovementEvent(m *Movement) MovementEvent {
	ref := strconv.FormatInt(m.ID, 10)
	if m.Category != nil && *m.Category != "" {
		ref = *m.Category
	}
	return MovementEvent{
		UserID:      m.UserID,
		RefID:       ref,
		Date:        m.EmittedAt,
		Amount:      m.Amount,
		Description: m.Description,
		Currency:    m.Currency,
	}
}

// ImportEvent announces a fully successful import.
type ImportEvent struct {
	UserID      string    `json:"userId"`
	ImportID    string    `json:"importId"`
	SourceName  string    `json:"sourceName"`
	AccountName string    `json:"accountName"`
	FileName    string    `json:"fileName"`
	TotalRows   int       `json:"totalRows"`
	ImportedAt  time.Time `json:"importedAt"`
}
