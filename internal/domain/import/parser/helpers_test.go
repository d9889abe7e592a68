package parser

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
)

// workbook builds an XLSX file with one row per slice, starting at A1.
func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func extract(t *testing.T, e Extractor, data []byte, opts Options) Result {
	t.Helper()
	if opts.HomeCurrency == "" {
		opts.HomeCurrency = "ARS"
	}
	return e.Extract(context.Background(), data, opts)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// assertSignInvariant checks every row against the kind/sign rule.
func assertSignInvariant(t *testing.T, rows []model.CandidateRow) {
	t.Helper()
	for _, r := range rows {
		switch r.Kind {
		case model.KindExpense:
			assert.False(t, r.Amount.IsPositive(), "row %d: expense with positive amount", r.SourceRow)
		case model.KindIncome:
			assert.False(t, r.Amount.IsNegative(), "row %d: income with negative amount", r.SourceRow)
		default:
			t.Errorf("row %d: unknown kind %q", r.SourceRow, r.Kind)
		}
	}
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}
