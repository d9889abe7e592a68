package parser

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
)

var multiAccountHeader = normalizer.AllOf(
	normalizer.Contains("fecha"),
	normalizer.Contains("descripcion"),
	normalizer.Contains("caja de ahorro"),
)

// BankMultiAccountExtractor reads statements that show the same feed under
// two account columns (savings and checking). The first non-zero column wins
// and the trailing balance block ends the sheet.
type BankMultiAccountExtractor struct{}

// NewBankMultiAccountExtractor creates the multi-account statement extractor.
func NewBankMultiAccountExtractor() *BankMultiAccountExtractor {
	return &BankMultiAccountExtractor{}
}

func (e *BankMultiAccountExtractor) Format() model.SourceFormat {
	return model.FormatBankMultiAccount
}

func (e *BankMultiAccountExtractor) Extract(ctx context.Context, data []byte, opts Options) Result {
	sheet, err := LoadSheet(data)
	if err != nil {
		return failed(e.Format(), "could not read file: %v", err)
	}

	headerRow := sheet.FindHeader(multiAccountHeader)
	if headerRow < 0 {
		return failed(e.Format(), "header not found (fecha, descripcion, caja de ahorro)")
	}
	header := sheet.Texts(headerRow)
	dateCol := columnIndex(header, "fecha")
	descCol := columnIndex(header, "descripcion")
	refCol := columnIndex(header, "referencia", "comprobante")
	savingsCol := columnIndex(header, "caja de ahorro")
	checkingCol := columnIndex(header, "cuenta corriente", "cta cte", "cta. cte")

	var res Result
	for i := headerRow + 1; i < sheet.Len(); i++ {
		if ctx.Err() != nil {
			break
		}
		dateText := sheet.Text(i, dateCol)
		desc := sheet.Text(i, descCol)
		if dateText == "" || desc == "" {
			continue
		}
		if strings.Contains(normalizer.Fold(desc), "saldo") {
			break
		}
		rowNum := i + 1

		amount, err := firstNonZero(sheet.Cell(i, savingsCol), sheet.Cell(i, checkingCol))
		if err != nil {
			res.TotalSeen++
			res.rowError(rowNum, "%v", err)
			continue
		}
		if amount.IsZero() {
			continue
		}
		res.TotalSeen++

		date, err := cellDate(sheet.Cell(i, dateCol), "dd/MM/yyyy", "dd-MM-yyyy")
		if err != nil {
			res.rowError(rowNum, "%v", err)
			continue
		}

		ref := sheet.Text(i, refCol)
		row := model.CandidateRow{
			SourceRow:     rowNum,
			Kind:          normalizer.KindFromAmount(amount),
			Amount:        amount,
			EmittedAt:     date,
			Description:   desc,
			Origin:        "SANTANDER",
			PaymentMethod: model.PaymentTransfer,
			Currency:      normalizer.CanonicalCurrency("", opts.HomeCurrency),
			Reference:     ref,
			Format:        e.Format(),
		}
		// the bank reference is the row's category
		if ref != "" {
			row = row.WithSuggestedCategory(ref)
		}
		res.add(row)
	}
	return res
}

func firstNonZero(cells ...Cell) (decimal.Decimal, error) {
	for _, c := range cells {
		d, err := cellAmountOrZero(c, "")
		if err != nil {
			return decimal.Zero, err
		}
		if !d.IsZero() {
			return d, nil
		}
	}
	return decimal.Zero, nil
}
