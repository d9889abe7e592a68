package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
)

var (
	xlsxMagic = []byte("PK\x03\x04")
	xlsMagic  = []byte{0xD0, 0xCF, 0x11, 0xE0}
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
)

// maxExcelSerial is 9999-12-31 in the 1900 date system.
const maxExcelSerial = 2958465

// Cell is one spreadsheet value. Numeric is set for cells stored as numbers
// (including date serials) as opposed to text.
type Cell struct {
	Value   string
	Numeric bool
}

// Text returns the trimmed cell value.
func (c Cell) Text() string {
	return strings.TrimSpace(c.Value)
}

// Sheet is the first worksheet of a workbook, or a CSV file, as rows of cells.
type Sheet struct {
	Rows [][]Cell
}

// LoadSheet reads XLSX or delimited text.
func LoadSheet(data []byte) (*Sheet, error) {
	switch {
	case len(data) == 0:
		return nil, errors.New("file is empty")
	case bytes.HasPrefix(data, xlsxMagic):
		return loadWorkbook(data)
	case bytes.HasPrefix(data, xlsMagic):
		return nil, errors.New("legacy .xls workbooks are not supported, save the file as .xlsx")
	default:
		return loadDelimited(data)
	}
}

func loadWorkbook(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	name := sheets[0]

	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
	}

	sheet := &Sheet{Rows: make([][]Cell, len(raw))}
	for r, row := range raw {
		cells := make([]Cell, len(row))
		for c, v := range row {
			cells[c] = Cell{Value: v}
			if strings.TrimSpace(v) == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			typ, err := f.GetCellType(name, axis)
			if err != nil {
				continue
			}
			if typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber {
				_, perr := strconv.ParseFloat(v, 64)
				cells[c].Numeric = perr == nil
			}
		}
		sheet.Rows[r] = cells
	}
	return sheet, nil
}

func loadDelimited(data []byte) (*Sheet, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader, ok := gocsv.LazyCSVReader(bytes.NewReader(data)).(*csv.Reader)
	if !ok {
		return nil, errors.New("unexpected csv reader")
	}
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read delimited file: %w", err)
	}

	sheet := &Sheet{Rows: make([][]Cell, len(records))}
	for r, rec := range records {
		cells := make([]Cell, len(rec))
		for c, v := range rec {
			cells[c] = Cell{Value: v}
		}
		sheet.Rows[r] = cells
	}
	return sheet, nil
}

// sniffDelimiter picks the most frequent candidate in the first non-empty line.
func sniffDelimiter(data []byte) rune {
	line := ""
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	best, bestCount := ',', 0
	for _, d := range []rune{';', ',', '\t', '|'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// Len returns the number of rows.
func (s *Sheet) Len() int {
	return len(s.Rows)
}

// Cell returns the cell at (row, col), or an empty cell when out of range.
func (s *Sheet) Cell(row, col int) Cell {
	if row < 0 || row >= len(s.Rows) || col < 0 || col >= len(s.Rows[row]) {
		return Cell{}
	}
	return s.Rows[row][col]
}

// Text returns the trimmed value at (row, col).
func (s *Sheet) Text(row, col int) string {
	return s.Cell(row, col).Text()
}

// Texts returns the trimmed values of a row.
func (s *Sheet) Texts(row int) []string {
	if row < 0 || row >= len(s.Rows) {
		return nil
	}
	out := make([]string, len(s.Rows[row]))
	for i, c := range s.Rows[row] {
		out[i] = c.Text()
	}
	return out
}

// Blank reports whether every listed column of the row is empty.
func (s *Sheet) Blank(row int, cols ...int) bool {
	for _, c := range cols {
		if s.Text(row, c) != "" {
			return false
		}
	}
	return true
}

// FindHeader returns the index of the first row matching the predicate, or -1.
func (s *Sheet) FindHeader(p normalizer.RowPredicate) int {
	for i := range s.Rows {
		if normalizer.MatchRow(p, s.Texts(i)) {
			return i
		}
	}
	return -1
}

// columnIndex returns the first header column whose folded text contains
// any of the tokens, or -1.
func columnIndex(header []string, tokens ...string) int {
	for i, h := range header {
		folded := normalizer.Fold(h)
		for _, t := range tokens {
			if strings.Contains(folded, t) {
				return i
			}
		}
	}
	return -1
}

// cellDate reads a date from a date serial cell or from text.
func cellDate(c Cell, patterns ...string) (time.Time, error) {
	if c.Numeric {
		serial, err := strconv.ParseFloat(c.Text(), 64)
		if err == nil && serial > 0 && serial <= maxExcelSerial {
			t, err := excelize.ExcelDateToTime(serial, false)
			if err == nil {
				return t.UTC(), nil
			}
		}
	}
	return normalizer.ParseDate(c.Text(), patterns...)
}

// cellAmount reads an amount. Numeric cells carry a plain dot decimal and
// skip locale inference.
func cellAmount(c Cell, separator string) (decimal.Decimal, error) {
	if c.Numeric {
		if d, err := decimal.NewFromString(c.Text()); err == nil {
			return d, nil
		}
	}
	return normalizer.ParseAmount(c.Text(), separator)
}

// cellAmountOrZero is cellAmount with blank cells read as zero.
func cellAmountOrZero(c Cell, separator string) (decimal.Decimal, error) {
	if c.Text() == "" {
		return decimal.Zero, nil
	}
	return cellAmount(c, separator)
}
