package parser

import (
	"context"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
)

// Fixed layout of the generic template: column A is unused.
const (
	genericDataStart = 1
	genericDateCol   = 1
	genericDescCol   = 2
	genericAmountCol = 3
	genericMethodCol = 4
)

// GenericExtractor reads the downloadable template spreadsheet.
type GenericExtractor struct{}

// NewGenericExtractor creates the template extractor.
func NewGenericExtractor() *GenericExtractor {
	return &GenericExtractor{}
}

func (e *GenericExtractor) Format() model.SourceFormat {
	return model.FormatGeneric
}

func (e *GenericExtractor) Extract(ctx context.Context, data []byte, opts Options) Result {
	sheet, err := LoadSheet(data)
	if err != nil {
		return failed(e.Format(), "could not read file: %v", err)
	}

	var res Result
	for i := genericDataStart; i < sheet.Len(); i++ {
		if ctx.Err() != nil {
			break
		}
		if sheet.Blank(i, genericDateCol, genericDescCol, genericAmountCol, genericMethodCol) {
			continue
		}
		res.TotalSeen++
		rowNum := i + 1

		if sheet.Text(i, genericDateCol) == "" || sheet.Text(i, genericDescCol) == "" ||
			sheet.Text(i, genericAmountCol) == "" || sheet.Text(i, genericMethodCol) == "" {
			res.rowError(rowNum, "missing data: date, description, amount and payment method are required")
			continue
		}

		date, err := cellDate(sheet.Cell(i, genericDateCol))
		if err != nil {
			res.rowError(rowNum, "%v", err)
			continue
		}
		amount, err := cellAmount(sheet.Cell(i, genericAmountCol), "")
		if err != nil {
			res.rowError(rowNum, "%v", err)
			continue
		}

		res.add(model.CandidateRow{
			SourceRow:     rowNum,
			Kind:          normalizer.KindFromAmount(amount),
			Amount:        amount,
			EmittedAt:     date,
			Description:   sheet.Text(i, genericDescCol),
			Origin:        "GENERIC",
			PaymentMethod: normalizer.CanonicalPaymentMethod(sheet.Text(i, genericMethodCol)),
			Currency:      normalizer.CanonicalCurrency("", opts.HomeCurrency),
			Format:        e.Format(),
		})
	}
	return res
}
