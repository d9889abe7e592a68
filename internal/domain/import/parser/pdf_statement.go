package parser

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
)

var (
	statementLine = regexp.MustCompile(`^(\d{1,2}\s+\w{3}\s+\d{4})\s+(.*)$`)
	moneyToken    = regexp.MustCompile(`-?\$?\s?[\d.]+,\d{2}`)
)

// TextExtractor returns the text of a PDF as lines in reading order.
type TextExtractor interface {
	Lines(data []byte) ([]string, error)
}

// PDFStatementExtractor reads a wallet's PDF account statement by matching
// dated lines. Lines that do not look like movements are skipped silently.
type PDFStatementExtractor struct {
	text TextExtractor
}

// NewPDFStatementExtractor creates the statement extractor. A nil text
// extractor uses the built-in PDF reader.
func NewPDFStatementExtractor(text TextExtractor) *PDFStatementExtractor {
	if text == nil {
		text = PDFText{}
	}
	return &PDFStatementExtractor{text: text}
}

func (e *PDFStatementExtractor) Format() model.SourceFormat {
	return model.FormatWalletPDF
}

func (e *PDFStatementExtractor) Extract(ctx context.Context, data []byte, opts Options) Result {
	lines, err := e.text.Lines(data)
	if err != nil {
		return failed(e.Format(), "could not read PDF: %v", err)
	}

	var res Result
	for n, line := range lines {
		if ctx.Err() != nil {
			break
		}
		row, ok := parseStatementLine(line)
		if !ok {
			continue
		}
		row.SourceRow = n + 1
		row.Origin = "UALA"
		row.PaymentMethod = model.PaymentTransfer
		row.Currency = normalizer.CanonicalCurrency("", opts.HomeCurrency)
		row.Format = e.Format()
		res.add(row)
	}
	res.TotalSeen = len(res.Rows)
	return res
}

// parseStatementLine reads "<d MMM yyyy> <description> <amount> [<balance>]".
// With two or more money tokens the last one is the running balance and the
// second to last is the movement amount.
func parseStatementLine(line string) (model.CandidateRow, bool) {
	clean := strings.TrimSpace(normalizer.StripMarks(line))
	m := statementLine.FindStringSubmatch(clean)
	if m == nil {
		return model.CandidateRow{}, false
	}

	rest := strings.TrimSpace(m[2])
	spans := moneyToken.FindAllStringIndex(rest, -1)
	if len(spans) == 0 {
		return model.CandidateRow{}, false
	}
	amountSpan := spans[0]
	if len(spans) >= 2 {
		amountSpan = spans[len(spans)-2]
	}
	amountText := rest[amountSpan[0]:amountSpan[1]]
	// the amount and the balance may read the same, so cut by position
	desc := strings.TrimSpace(rest[:amountSpan[0]])
	if strings.EqualFold(desc, "saldo inicial") {
		return model.CandidateRow{}, false
	}

	date, err := normalizer.ParseDate(m[1], normalizer.SpanishShortDate)
	if err != nil {
		return model.CandidateRow{}, false
	}
	amount, err := normalizer.ParseAmount(amountText, ",")
	if err != nil {
		return model.CandidateRow{}, false
	}

	return model.CandidateRow{
		Kind:        normalizer.KindFromAmount(amount),
		Amount:      amount,
		EmittedAt:   date,
		Description: desc,
	}, true
}

// PDFText extracts text with github.com/ledongthuc/pdf, one line per text
// row of each page.
type PDFText struct{}

func (PDFText) Lines(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		for _, row := range rows {
			lines = append(lines, joinWords(row.Content))
		}
	}
	return lines, nil
}

// joinWords rebuilds a line from positioned glyph runs, inserting a space
// where runs are visibly apart.
func joinWords(texts pdf.TextHorizontal) string {
	var b strings.Builder
	var prevEnd float64
	for i, t := range texts {
		if i > 0 && t.X-prevEnd > t.FontSize*0.2 {
			b.WriteByte(' ')
		}
		b.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	return strings.TrimSpace(b.String())
}
