package parser

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
)

// Column keys of the free-form layout.
const (
	ColDate          = "fecha"
	ColDescription   = "descripcion"
	ColAmount        = "monto"
	ColCategory      = "categoria"
	ColKind          = "tipo"
	ColCurrency      = "moneda"
	ColPaymentMethod = "mediopago"
	ColOrigin        = "origen"
)

const freeFormDefaultOrigin = "FREE_FORM"

// FreeFormConfig describes a user-defined spreadsheet layout.
type FreeFormConfig struct {
	// ColumnMap maps column keys to zero-based column indices.
	ColumnMap map[string]int `json:"columnMap"`
	// DataStartRow is the one-based first data row. Defaults to 2.
	DataStartRow *int `json:"dataStartRow,omitempty"`
	// DateFormat is tried before the default date patterns.
	DateFormat string `json:"dateFormat,omitempty"`
	// DecimalSeparator is "," or "."; empty infers it per value.
	DecimalSeparator string `json:"decimalSeparator,omitempty"`
}

// ParseFreeFormConfig decodes and validates a layout. Keys are matched
// case-insensitively, so "medioPago" and "mediopago" are the same column.
func ParseFreeFormConfig(raw []byte) (*FreeFormConfig, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, errors.New("configuration is required")
	}

	var cfg FreeFormConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.New("invalid configuration: " + err.Error())
	}

	cols := make(map[string]int, len(cfg.ColumnMap))
	for k, v := range cfg.ColumnMap {
		cols[strings.ToLower(strings.TrimSpace(k))] = v
	}
	cfg.ColumnMap = cols

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c FreeFormConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ColumnMap,
			validation.Required.Error("columnMap is required"),
			validation.By(requireColumns(ColDate, ColDescription, ColAmount)),
			validation.Each(validation.Min(0).Error("column indices must be zero or greater")),
		),
		validation.Field(&c.DataStartRow, validation.NilOrNotEmpty, validation.Min(1)),
		validation.Field(&c.DecimalSeparator, validation.In(",", ".")),
	)
}

func requireColumns(keys ...string) validation.RuleFunc {
	return func(value any) error {
		cols, _ := value.(map[string]int)
		var missing []string
		for _, k := range keys {
			if _, ok := cols[k]; !ok {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return errors.New("columnMap must include " + strings.Join(missing, ", "))
		}
		return nil
	}
}

func (c *FreeFormConfig) column(key string) int {
	if idx, ok := c.ColumnMap[key]; ok {
		return idx
	}
	return -1
}

func (c *FreeFormConfig) startRow() int {
	if c.DataStartRow == nil {
		return 1
	}
	return max(0, *c.DataStartRow-1)
}

// FreeFormExtractor reads any spreadsheet through a caller supplied
// column map.
type FreeFormExtractor struct{}

// NewFreeFormExtractor creates the configurable extractor.
func NewFreeFormExtractor() *FreeFormExtractor {
	return &FreeFormExtractor{}
}

func (e *FreeFormExtractor) Format() model.SourceFormat {
	return model.FormatFreeForm
}

func (e *FreeFormExtractor) Extract(ctx context.Context, data []byte, opts Options) Result {
	cfg, err := ParseFreeFormConfig(opts.Config)
	if err != nil {
		return failed(e.Format(), "invalid free-form configuration: %v", err)
	}

	sheet, err := LoadSheet(data)
	if err != nil {
		return failed(e.Format(), "could not read file: %v", err)
	}

	dateCol, descCol, amountCol := cfg.column(ColDate), cfg.column(ColDescription), cfg.column(ColAmount)

	var res Result
	for i := cfg.startRow(); i < sheet.Len(); i++ {
		if ctx.Err() != nil {
			break
		}
		if sheet.Blank(i, dateCol, descCol, amountCol) {
			continue
		}
		res.TotalSeen++
		rowNum := i + 1

		date, err := cellDate(sheet.Cell(i, dateCol), cfg.DateFormat)
		if err != nil {
			res.rowError(rowNum, "%v", err)
			continue
		}
		amount, err := cellAmount(sheet.Cell(i, amountCol), cfg.DecimalSeparator)
		if err != nil {
			res.rowError(rowNum, "%v", err)
			continue
		}

		// an unrecognised kind falls back to the amount's sign
		kind, ok := model.ParseKind(sheet.Text(i, cfg.column(ColKind)))
		if !ok {
			kind = normalizer.KindFromAmount(amount)
		}

		origin := sheet.Text(i, cfg.column(ColOrigin))
		if origin == "" {
			origin = freeFormDefaultOrigin
		}

		row := model.CandidateRow{
			SourceRow:     rowNum,
			Kind:          kind,
			Amount:        amount,
			EmittedAt:     date,
			Description:   sheet.Text(i, descCol),
			Origin:        origin,
			PaymentMethod: normalizer.CanonicalPaymentMethod(sheet.Text(i, cfg.column(ColPaymentMethod))),
			Currency:      normalizer.CanonicalCurrency(sheet.Text(i, cfg.column(ColCurrency)), opts.HomeCurrency),
			Format:        e.Format(),
		}
		if category := sheet.Text(i, cfg.column(ColCategory)); category != "" {
			row = row.WithSuggestedCategory(category)
		}
		res.add(row)
	}
	return res
}
