// Package parser turns uploaded statement files into candidate rows. Each
// supported layout is an Extractor registered under its format tag.
package parser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/normalizer"
)

// ErrUnsupportedFormat is returned for unknown format tags.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// Options carries per-request settings into an extractor.
type Options struct {
	// HomeCurrency is the tenant's primary currency.
	HomeCurrency string
	// Config is the raw JSON configuration of the free-form layout.
	Config []byte
}

// Result is the outcome of one extraction pass.
type Result struct {
	Rows      []model.CandidateRow
	Errors    []model.RowError
	TotalSeen int
	// FileError is set when the file as a whole could not be processed.
	FileError *model.FileLevelError
}

// Extractor reads one source layout.
type Extractor interface {
	Format() model.SourceFormat
	Extract(ctx context.Context, data []byte, opts Options) Result
}

func (r *Result) rowError(row int, msg string, args ...any) {
	r.Errors = append(r.Errors, model.RowError{Row: row, Message: fmt.Sprintf(msg, args...)})
}

// failed builds a file level failure: a single row 0 error and no rows.
func failed(source model.SourceFormat, msg string, args ...any) Result {
	fe := &model.FileLevelError{Format: source, Message: fmt.Sprintf(msg, args...)}
	return Result{
		Errors:    []model.RowError{fe.AsRowError()},
		FileError: fe,
	}
}

// add applies sign normalization and appends the row.
func (r *Result) add(row model.CandidateRow) {
	row.Amount = normalizer.NormalizeSign(row.Kind, row.Amount)
	r.Rows = append(r.Rows, row)
}

// Registry maps format tags and their aliases to extractors.
type Registry struct {
	extractors map[model.SourceFormat]Extractor
	aliases    map[string]model.SourceFormat
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[model.SourceFormat]Extractor),
		aliases:    make(map[string]model.SourceFormat),
	}
}

// Register adds an extractor under its format tag and optional aliases.
func (r *Registry) Register(e Extractor, aliases ...string) {
	r.extractors[e.Format()] = e
	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = e.Format()
	}
}

// Lookup resolves a declared tag, canonical or alias, to its extractor.
func (r *Registry) Lookup(tag string) (Extractor, error) {
	key := strings.ToLower(strings.TrimSpace(tag))
	if e, ok := r.extractors[model.SourceFormat(key)]; ok {
		return e, nil
	}
	if f, ok := r.aliases[key]; ok {
		return r.extractors[f], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, tag)
}

// Formats lists the registered canonical tags.
func (r *Registry) Formats() []model.SourceFormat {
	out := make([]model.SourceFormat, 0, len(r.extractors))
	for f := range r.extractors {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultRegistry registers every built-in layout. The aliases are the
// provider names the formats were first built for.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewGenericExtractor(), "mycfo")
	r.Register(NewWalletReportExtractor(), "mercado-pago")
	r.Register(NewBankDebitCreditExtractor(), "galicia")
	r.Register(NewBankMultiAccountExtractor(), "santander")
	r.Register(NewBankTimedExtractor(), "nacion")
	r.Register(NewPDFStatementExtractor(nil), "uala")
	r.Register(NewFreeFormExtractor(), "excel-libre")
	return r
}
