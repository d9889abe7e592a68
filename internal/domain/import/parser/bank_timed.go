package parser

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
)

var timedHeader = normalizer.AllOf(
	normalizer.Contains("fecha"),
	normalizer.Contains("descripcion"),
)

// BankTimedExtractor reads statements with separate date and time columns
// and debit/credit amounts.
type BankTimedExtractor struct{}

// NewBankTimedExtractor creates the timed statement extractor.
func NewBankTimedExtractor() *BankTimedExtractor {
	return &BankTimedExtractor{}
}

func (e *BankTimedExtractor) Format() model.SourceFormat {
	return model.FormatBankTimed
}

func (e *BankTimedExtractor) Extract(ctx context.Context, data []byte, opts Options) Result {
	sheet, err := LoadSheet(data)
	if err != nil {
		return failed(e.Format(), "could not read file: %v", err)
	}

	headerRow := sheet.FindHeader(timedHeader)
	if headerRow < 0 {
		return failed(e.Format(), "header not found (fecha, descripcion, debito/credito)")
	}
	header := sheet.Texts(headerRow)
	dateCol := columnIndex(header, "fecha")
	timeCol := columnIndex(header, "hora")
	descCol := columnIndex(header, "descripcion")
	debitCol := columnIndex(header, "debito")
	creditCol := columnIndex(header, "credito")
	if debitCol < 0 && creditCol < 0 {
		return failed(e.Format(), "header not found (fecha, descripcion, debito/credito)")
	}

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
		if strings.Contains(normalizer.Fold(desc), "saldo final") {
			break
		}
		rowNum := i + 1

		debit, err := cellAmountOrZero(sheet.Cell(i, debitCol), "")
		if err != nil {
			res.TotalSeen++
			res.rowError(rowNum, "debit: %v", err)
			continue
		}
		credit, err := cellAmountOrZero(sheet.Cell(i, creditCol), "")
		if err != nil {
			res.TotalSeen++
			res.rowError(rowNum, "credit: %v", err)
			continue
		}
		if debit.IsZero() && credit.IsZero() {
			continue
		}
		res.TotalSeen++

		date, err := cellDate(sheet.Cell(i, dateCol), "dd/MM/yyyy", "dd/MM/yy")
		if err != nil {
			res.rowError(rowNum, "%v", err)
			continue
		}
		// an unreadable time keeps the row at midnight
		emitted, err := normalizer.WithClock(date, cellClock(sheet.Cell(i, timeCol)))
		if err != nil {
			emitted = date
		}

		amount := credit.Sub(debit.Abs())
		res.add(model.CandidateRow{
			SourceRow:     rowNum,
			Kind:          normalizer.KindFromAmount(amount),
			Amount:        amount,
			EmittedAt:     emitted,
			Description:   desc,
			Origin:        "NACION",
			PaymentMethod: model.PaymentTransfer,
			Currency:      normalizer.CanonicalCurrency("", opts.HomeCurrency),
			Format:        e.Format(),
		})
	}
	return res
}

// cellClock renders a time cell as HH:mm:ss. Numeric cells hold a fraction
// of a day.
func cellClock(c Cell) string {
	if !c.Numeric {
		return c.Text()
	}
	f, err := strconv.ParseFloat(c.Text(), 64)
	if err != nil {
		return c.Text()
	}
	_, frac := math.Modf(f)
	secs := int(math.Round(frac * 86400))
	return time.Date(0, 1, 1, 0, 0, secs, 0, time.UTC).Format("15:04:05")
}
