package parser

import (
	"context"
	"strings"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
)

// walletHeaderRow is the zero-based row of the release report header. The
// provider prepends account metadata, so the header is never searched.
const walletHeaderRow = 3

const (
	walletDateHeader   = "RELEASE_DATE"
	walletTypeHeader   = "TRANSACTION_TYPE"
	walletAmountHeader = "TRANSACTION_NET_AMOUNT"
)

// WalletReportExtractor reads a wallet provider's release report.
type WalletReportExtractor struct{}

// NewWalletReportExtractor creates the release report extractor.
func NewWalletReportExtractor() *WalletReportExtractor {
	return &WalletReportExtractor{}
}

func (e *WalletReportExtractor) Format() model.SourceFormat {
	return model.FormatWalletReport
}

func (e *WalletReportExtractor) Extract(ctx context.Context, data []byte, opts Options) Result {
	sheet, err := LoadSheet(data)
	if err != nil {
		return failed(e.Format(), "could not read file: %v", err)
	}
	if sheet.Len() <= walletHeaderRow {
		return failed(e.Format(), "header row %d not found", walletHeaderRow+1)
	}

	dateCol, typeCol, amountCol := -1, -1, -1
	for c, h := range sheet.Texts(walletHeaderRow) {
		switch strings.ToUpper(h) {
		case walletDateHeader:
			dateCol = c
		case walletTypeHeader:
			typeCol = c
		case walletAmountHeader:
			amountCol = c
		}
	}
	if dateCol < 0 || typeCol < 0 || amountCol < 0 {
		return failed(e.Format(), "missing expected columns (%s, %s, %s)", walletDateHeader, walletTypeHeader, walletAmountHeader)
	}

	var res Result
	for i := walletHeaderRow + 1; i < sheet.Len(); i++ {
		if ctx.Err() != nil {
			break
		}
		if sheet.Blank(i, dateCol, typeCol, amountCol) {
			continue
		}
		res.TotalSeen++
		rowNum := i + 1

		if sheet.Text(i, dateCol) == "" || sheet.Text(i, amountCol) == "" {
			res.rowError(rowNum, "missing required data (%s or %s)", walletDateHeader, walletAmountHeader)
			continue
		}

		date, err := cellDate(sheet.Cell(i, dateCol), "dd-MM-yyyy", "yyyy-MM-dd")
		if err != nil {
			res.rowError(rowNum, "%v", err)
			continue
		}
		amount, err := cellAmount(sheet.Cell(i, amountCol), ",")
		if err != nil {
			res.rowError(rowNum, "%v", err)
			continue
		}

		res.add(model.CandidateRow{
			SourceRow:     rowNum,
			Kind:          normalizer.KindFromAmount(amount),
			Amount:        amount,
			EmittedAt:     date,
			Description:   sheet.Text(i, typeCol),
			Origin:        "MERCADO_PAGO",
			PaymentMethod: model.PaymentWalletProvider,
			Currency:      normalizer.CanonicalCurrency("", opts.HomeCurrency),
			Format:        e.Format(),
		})
	}
	return res
}
