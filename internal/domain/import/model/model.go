// Package model holds the canonical types shared by every stage of the
// movement ingestion pipeline.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a movement.
type Kind string

const (
	KindIncome  Kind = "Income"
	KindExpense Kind = "Expense"
)

// ParseKind resolves a kind from source text. Both the English names and the
// Spanish labels found in provider exports are accepted.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "income", "ingreso":
		return KindIncome, true
	case "expense", "egreso":
		return KindExpense, true
	}
	return "", false
}

// PaymentMethod is the canonical payment vocabulary.
type PaymentMethod string

const (
	PaymentCash           PaymentMethod = "Cash"
	PaymentTransfer       PaymentMethod = "Transfer"
	PaymentCheck          PaymentMethod = "Check"
	PaymentCard           PaymentMethod = "Card"
	PaymentWalletProvider PaymentMethod = "WalletProvider"
	PaymentOther          PaymentMethod = "Other"
)

// SourceFormat is the declared layout of an uploaded file.
type SourceFormat string

const (
	FormatGeneric          SourceFormat = "generic"
	FormatWalletReport     SourceFormat = "wallet-report"
	FormatBankDebitCredit  SourceFormat = "bank-debit-credit"
	FormatBankMultiAccount SourceFormat = "bank-multi-account"
	FormatBankTimed        SourceFormat = "bank-timed"
	FormatWalletPDF        SourceFormat = "wallet-pdf"
	FormatFreeForm         SourceFormat = "free-form"
)

// Status summarises one commit attempt in the import ledger.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusPartial   Status = "PARTIAL"
	StatusError     Status = "ERROR"
)

// CandidateRow is a provisionally extracted movement. Enrichment stages
// return modified copies instead of touching a row in place.
type CandidateRow struct {
	SourceRow         int             `json:"sourceRow"`
	Kind              Kind            `json:"kind"`
	Amount            decimal.Decimal `json:"amount"`
	EmittedAt         time.Time       `json:"emittedAt"`
	Description       string          `json:"description"`
	Origin            string          `json:"origin"`
	PaymentMethod     PaymentMethod   `json:"paymentMethod"`
	Currency          string          `json:"currency"`
	Reference         string          `json:"reference,omitempty"`
	SuggestedCategory *string         `json:"suggestedCategory,omitempty"`
	Duplicate         bool            `json:"duplicate"`
	DuplicateReason   *string         `json:"duplicateReason,omitempty"`
	Format            SourceFormat    `json:"format"`
}

// WithSuggestedCategory returns a copy of the row carrying the category.
func (r CandidateRow) WithSuggestedCategory(category string) CandidateRow {
	r.SuggestedCategory = &category
	return r
}

// WithDuplicate returns a copy of the row flagged as a duplicate.
func (r CandidateRow) WithDuplicate(reason string) CandidateRow {
	r.Duplicate = true
	r.DuplicateReason = &reason
	return r
}

// ImportHistoryRecord is one append-only ledger entry per commit.
type ImportHistoryRecord struct {
	ID            int64        `json:"id" csv:"id"`
	FileName      string       `json:"fileName" csv:"file_name"`
	SourceFormat  SourceFormat `json:"sourceFormat" csv:"source_format"`
	TotalRows     int          `json:"totalRows" csv:"total_rows"`
	ParsedRows    int          `json:"parsedRows" csv:"parsed_rows"`
	PersistedRows int          `json:"persistedRows" csv:"persisted_rows"`
	Status        Status       `json:"status" csv:"status"`
	Notes         string       `json:"notes" csv:"notes"`
	UserID        string       `json:"userId" csv:"user_id"`
	CreatedAt     time.Time    `json:"createdAt" csv:"created_at"`
}

// RowError reports a problem with one source row. Row 0 is file level.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Row == 0 {
		return e.Message
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// FileLevelError aborts a whole extraction: the workbook could not be read
// or a required header or configuration key is missing.
type FileLevelError struct {
	Format  SourceFormat
	Message string
}

func (e *FileLevelError) Error() string {
	return fmt.Sprintf("%s: %s", e.Format, e.Message)
}

// AsRowError reports the failure at row 0.
func (e *FileLevelError) AsRowError() RowError {
	return RowError{Row: 0, Message: e.Message}
}
