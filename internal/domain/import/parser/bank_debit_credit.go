package parser

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
)

var debitCreditHeader = normalizer.AllOf(
	normalizer.Contains("fecha"),
	normalizer.Contains("movimiento"),
	normalizer.AnyOf(normalizer.Contains("debit"), normalizer.Contains("credito")),
)

// BankDebitCreditExtractor reads statements with separate debit and credit
// columns below a searched header row.
type BankDebitCreditExtractor struct{}

// NewBankDebitCreditExtractor creates the debit/credit statement extractor.
func NewBankDebitCreditExtractor() *BankDebitCreditExtractor {
	return &BankDebitCreditExtractor{}
}

func (e *BankDebitCreditExtractor) Format() model.SourceFormat {
	return model.FormatBankDebitCredit
}

type debitCreditColumns struct {
	date, description, debit, credit int
}

// mapDebitCreditColumns assigns each header cell to at most one column,
// checked in the order date, description, debit, credit.
func mapDebitCreditColumns(header []string) debitCreditColumns {
	cols := debitCreditColumns{-1, -1, -1, -1}
	for i, h := range header {
		folded := normalizer.Fold(h)
		switch {
		case folded == "":
		case cols.date < 0 && strings.Contains(folded, "fecha"):
			cols.date = i
		case cols.description < 0 && strings.Contains(folded, "movimiento"):
			cols.description = i
		case cols.debit < 0 && strings.Contains(folded, "debit"):
			cols.debit = i
		case cols.credit < 0 && strings.Contains(folded, "credito"):
			cols.credit = i
		}
	}
	return cols
}

func (e *BankDebitCreditExtractor) Extract(ctx context.Context, data []byte, opts Options) Result {
	sheet, err := LoadSheet(data)
	if err != nil {
		return failed(e.Format(), "could not read file: %v", err)
	}

	headerRow := sheet.FindHeader(debitCreditHeader)
	if headerRow < 0 {
		return failed(e.Format(), "header not found (fecha, movimiento, debito/credito)")
	}
	cols := mapDebitCreditColumns(sheet.Texts(headerRow))

	var res Result
	for i := headerRow + 1; i < sheet.Len(); i++ {
		if ctx.Err() != nil {
			break
		}
		if sheet.Blank(i, cols.date, cols.description, cols.debit, cols.credit) {
			continue
		}
		res.TotalSeen++
		rowNum := i + 1

		if sheet.Text(i, cols.date) == "" {
			res.rowError(rowNum, "missing date")
			continue
		}
		date, err := cellDate(sheet.Cell(i, cols.date), "dd/MM/yyyy", "dd-MM-yyyy")
		if err != nil {
			res.rowError(rowNum, "%v", err)
			continue
		}
		debit, err := cellAmountOrZero(sheet.Cell(i, cols.debit), ",")
		if err != nil {
			res.rowError(rowNum, "debit: %v", err)
			continue
		}
		credit, err := cellAmountOrZero(sheet.Cell(i, cols.credit), ",")
		if err != nil {
			res.rowError(rowNum, "credit: %v", err)
			continue
		}
		if debit.IsZero() && credit.IsZero() {
			res.rowError(rowNum, "missing debit/credit: one of them must be non-zero")
			continue
		}

		amount := netDebitCredit(debit, credit)
		res.add(model.CandidateRow{
			SourceRow:     rowNum,
			Kind:          normalizer.KindFromAmount(amount),
			Amount:        amount,
			EmittedAt:     date,
			Description:   sheet.Text(i, cols.description),
			Origin:        "GALICIA",
			PaymentMethod: model.PaymentTransfer,
			Currency:      normalizer.CanonicalCurrency("", opts.HomeCurrency),
			Format:        e.Format(),
		})
	}
	return res
}

// netDebitCredit is credito - |debito| when both are set, credito alone,
// or -|debito|.
func netDebitCredit(debit, credit decimal.Decimal) decimal.Decimal {
	switch {
	case !credit.IsZero() && !debit.IsZero():
		return credit.Sub(debit.Abs())
	case !credit.IsZero():
		return credit
	default:
		return debit.Abs().Neg()
	}
}
