// Package sniffer inspects an unknown spreadsheet and suggests a free-form
// layout for it: header row, column map and number and date dialect.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/parser"
)

const (
	maxHeaderSearch = 20
	maxSampleRows   = 20
)

var ErrNoHeader = errors.New("could not find a header row")

// Common statement header keywords, folded (Spanish and English)
var headerKeywords = []string{
	"fecha", "descripcion", "detalle", "concepto", "importe", "monto", "debito", "credito",
	"saldo", "categoria", "tipo", "moneda", "medio", "origen",
	"date", "description", "amount", "debit", "credit", "balance", "category", "type", "currency",
}

// columnTokens maps free-form keys to header tokens, checked in this order.
// A header column is assigned to at most one key.
var columnTokens = []struct {
	key    string
	tokens []string
}{
	{parser.ColDate, []string{"fecha", "date"}},
	{parser.ColDescription, []string{"descripcion", "detalle", "concepto", "movimiento", "description", "merchant"}},
	{parser.ColAmount, []string{"importe", "monto", "amount", "valor"}},
	{parser.ColCategory, []string{"categoria", "category", "rubro"}},
	{parser.ColKind, []string{"tipo", "type"}},
	{parser.ColCurrency, []string{"moneda", "currency", "divisa"}},
	{parser.ColPaymentMethod, []string{"medio", "forma de pago", "payment"}},
	{parser.ColOrigin, []string{"origen", "cuenta", "banco", "account", "source"}},
}

var requiredKeys = []string{parser.ColDate, parser.ColDescription, parser.ColAmount}

// Dialect is the inferred regional formatting of the data rows.
type Dialect struct {
	DecimalSeparator string  `json:"decimalSeparator,omitempty"` // "," or "."; empty when undecided
	MonthFirst       bool    `json:"monthFirst"`
	Confidence       float64 `json:"confidence"` // share of amount samples agreeing
}

// Suggestion describes a detected layout.
type Suggestion struct {
	HeaderRow   int                   `json:"headerRow"` // one-based
	Headers     []string              `json:"headers"`
	Fingerprint string                `json:"fingerprint"`
	Layout      parser.FreeFormConfig `json:"layout"`
	Dialect     Dialect               `json:"dialect"`
	Missing     []string              `json:"missing,omitempty"`
	// Format names a built-in format the header already fits, if any.
	Format model.SourceFormat `json:"format,omitempty"`
}

// Complete reports whether the layout maps every required column.
func (s *Suggestion) Complete() bool {
	return len(s.Missing) == 0
}

// Suggest analyzes a CSV or XLSX file.
func Suggest(data []byte) (*Suggestion, error) {
	sheet, err := parser.LoadSheet(data)
	if err != nil {
		return nil, err
	}

	headerIdx := findHeaderRow(sheet)
	if headerIdx < 0 {
		return nil, ErrNoHeader
	}
	headers := sheet.Texts(headerIdx)

	columns := suggestColumns(headers)
	s := &Suggestion{
		HeaderRow:   headerIdx + 1,
		Headers:     headers,
		Fingerprint: fingerprint(headers),
	}
	for _, k := range requiredKeys {
		if _, ok := columns[k]; !ok {
			s.Missing = append(s.Missing, k)
		}
	}
	if _, ok := columns[parser.ColAmount]; !ok && hasDebitAndCredit(headers) {
		s.Format = model.FormatBankDebitCredit
	}

	s.Dialect = probeDialect(sheet, headerIdx+1, column(columns, parser.ColAmount), column(columns, parser.ColDate))

	start := headerIdx + 2
	s.Layout = parser.FreeFormConfig{
		ColumnMap:        columns,
		DataStartRow:     &start,
		DecimalSeparator: s.Dialect.DecimalSeparator,
	}
	if s.Dialect.MonthFirst {
		s.Layout.DateFormat = "MM/dd/yyyy"
	}
	return s, nil
}

// findHeaderRow prefers rows holding header keywords, then wider rows.
// Without any keyword the widest row of at least two cells wins.
func findHeaderRow(sheet *parser.Sheet) int {
	best, bestScore := -1, 0
	fallback, fallbackWidth := -1, 1

	for i := 0; i < sheet.Len() && i < maxHeaderSearch; i++ {
		cells := sheet.Texts(i)
		width, matches := 0, 0
		for _, c := range cells {
			if c == "" {
				continue
			}
			width++
			folded := normalizer.Fold(c)
			for _, kw := range headerKeywords {
				if strings.Contains(folded, kw) {
					matches++
					break
				}
			}
		}
		if matches >= 2 {
			if score := width*10 + matches; score > bestScore {
				best, bestScore = i, score
			}
		} else if width > fallbackWidth {
			fallback, fallbackWidth = i, width
		}
	}
	if best >= 0 {
		return best
	}
	return fallback
}

func suggestColumns(headers []string) map[string]int {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = normalizer.Fold(h)
	}

	taken := make(map[int]bool)
	columns := make(map[string]int)
	for _, ct := range columnTokens {
		for i, h := range folded {
			if taken[i] || h == "" || !containsAny(h, ct.tokens) {
				continue
			}
			columns[ct.key] = i
			taken[i] = true
			break
		}
	}
	return columns
}

func column(columns map[string]int, key string) int {
	if idx, ok := columns[key]; ok {
		return idx
	}
	return -1
}

func hasDebitAndCredit(headers []string) bool {
	var debit, credit bool
	for _, h := range headers {
		f := normalizer.Fold(h)
		debit = debit || containsAny(f, []string{"debito", "debit", "cargo"})
		credit = credit || containsAny(f, []string{"credito", "credit", "abono"})
	}
	return debit && credit
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// probeDialect votes on the decimal separator over sample amounts and on
// the date order over sample dates. A column of -1 casts no votes.
func probeDialect(sheet *parser.Sheet, from, amountCol, dateCol int) Dialect {
	var d Dialect
	comma, dot := 0, 0
	dayFirst, monthFirst := 0, 0

	for i := from; i < sheet.Len() && i < from+maxSampleRows; i++ {
		switch amountVote(sheet.Text(i, amountCol)) {
		case 1:
			comma++
		case -1:
			dot++
		}
		switch dateVote(sheet.Text(i, dateCol)) {
		case 1:
			dayFirst++
		case -1:
			monthFirst++
		}
	}

	switch {
	case comma > dot:
		d.DecimalSeparator = ","
		d.Confidence = float64(comma) / float64(comma+dot)
	case dot > comma:
		d.DecimalSeparator = "."
		d.Confidence = float64(dot) / float64(comma+dot)
	}
	d.MonthFirst = monthFirst > 0 && dayFirst == 0
	return d
}

// amountVote returns 1 for a decimal comma, -1 for a decimal point and 0
// when the value is ambiguous.
func amountVote(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)
	if cleaned == "" {
		return 0
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return 1
		}
		return -1
	case lastComma >= 0:
		// up to two digits after a single comma reads as a decimal
		if strings.Count(cleaned, ",") == 1 && len(cleaned)-lastComma-1 <= 2 {
			return 1
		}
		return -1
	case lastDot >= 0:
		if strings.Count(cleaned, ".") == 1 && len(cleaned)-lastDot-1 <= 2 {
			return -1
		}
		return 1
	}
	return 0
}

// dateVote returns 1 when the value can only be day first, -1 when it can
// only be month first and 0 otherwise.
func dateVote(val string) int {
	parts := strings.FieldsFunc(val, func(r rune) bool { return r == '/' || r == '-' || r == '.' })
	if len(parts) < 3 || len(parts[0]) > 2 {
		return 0
	}
	first, err1 := strconv.Atoi(parts[0])
	second, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0
	}
	switch {
	case first > 12 && second <= 12:
		return 1
	case second > 12 && first <= 12:
		return -1
	}
	return 0
}

// fingerprint hashes the normalized header names, so files exported by the
// same provider share it.
func fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, normalizer.StripMarks(h))
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}
	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}
