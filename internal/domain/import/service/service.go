// Package service provides the import orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/dedup"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/parser"
	"github.com/FACorreiaa/movement-ingest/internal/metrics"
	"github.com/FACorreiaa/movement-ingest/pkg/money"
)

const (
	defaultLookupTimeout = 5 * time.Second
	defaultHistoryLimit  = 50
)

// TenantResolver maps a user identity to its organization.
type TenantResolver interface {
	Resolve(ctx context.Context, userIdentity string) (int64, error)
}

// CategoryHinter suggests a category from a description and kind.
type CategoryHinter interface {
	SuggestCategory(ctx context.Context, description string, kind model.Kind) (*string, error)
}

// MovementStore persists one movement per call.
type MovementStore interface {
	Save(ctx context.Context, m *model.Movement) (int64, error)
}

// DuplicateFinder flags candidate rows matching movements already stored for
// the organization.
type DuplicateFinder interface {
	FindPotentialDuplicates(ctx context.Context, organizationID int64, rows []model.CandidateRow) ([]model.CandidateRow, error)
}

// HistoryStore is the append-only import ledger.
type HistoryStore interface {
	Append(ctx context.Context, rec *model.ImportHistoryRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.ImportHistoryRecord, error)
}

// Publisher delivers events. Implementations never block the caller for
// long and never report failures.
type Publisher interface {
	MovementCreated(ctx context.Context, ev model.MovementEvent)
	ImportCompleted(ctx context.Context, ev model.ImportEvent)
}

// PreviewRequest is an uploaded file and its declared format.
type PreviewRequest struct {
	UserIdentity string
	Format       string
	FileName     string
	Data         []byte
	Config       []byte // free-form layout, JSON
}

// PreviewResult contains the annotated candidate rows of a file
type PreviewResult struct {
	Format       model.SourceFormat   `json:"format"`
	Rows         []model.CandidateRow `json:"rows"`
	TotalSeen    int                  `json:"totalSeen"`
	NonDuplicate int                  `json:"nonDuplicate"`
	Errors       []model.RowError     `json:"errors"`
}

// CommitRequest carries the rows the user selected from a preview.
type CommitRequest struct {
	UserIdentity string
	FileName     string
	Format       model.SourceFormat
	TotalRows    int // rows seen in the file; defaults to len(Rows)
	Rows         []model.CandidateRow
}

// CommitResult contains the result of a commit
type CommitResult struct {
	Submitted int              `json:"submitted"`
	Persisted int              `json:"persisted"`
	Errors    []model.RowError `json:"errors"`
	Status    model.Status     `json:"status"`
	HistoryID int64            `json:"historyId,omitempty"`
}

// ImportService orchestrates extraction, enrichment, duplicate detection and
// persistence of uploaded movement files.
type ImportService struct {
	registry      *parser.Registry
	tenants       TenantResolver
	hinter        CategoryHinter  // Optional: nil skips category hints
	duplicates    DuplicateFinder // Optional: nil skips the history check
	store         MovementStore
	history       HistoryStore
	publisher     Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	tracer        trace.Tracer
	homeCurrency  string
	lookupTimeout time.Duration
	now           func() time.Time
}

// NewImportService creates a new import service
func NewImportService(
	registry *parser.Registry,
	tenants TenantResolver,
	store MovementStore,
	history HistoryStore,
	publisher Publisher,
	logger *slog.Logger,
) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		registry:      registry,
		tenants:       tenants,
		store:         store,
		history:       history,
		publisher:     publisher,
		logger:        logger,
		tracer:        otel.Tracer("github.com/FACorreiaa/movement-ingest/internal/domain/import/service"),
		homeCurrency:  money.DefaultHomeCurrency,
		lookupTimeout: defaultLookupTimeout,
		now:           time.Now,
	}
}

// WithCategoryHinter adds category suggestions to previews
func (s *ImportService) WithCategoryHinter(h CategoryHinter) *ImportService {
	s.hinter = h
	return s
}

// WithDuplicateFinder adds the against-history duplicate check to previews
func (s *ImportService) WithDuplicateFinder(f DuplicateFinder) *ImportService {
	s.duplicates = f
	return s
}

func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// WithHomeCurrency sets the currency of rows that do not state one.
func (s *ImportService) WithHomeCurrency(code string) *ImportService {
	if money.IsKnownCurrency(code) {
		s.homeCurrency = strings.ToUpper(code)
	}
	return s
}

// WithLookupTimeout bounds the against-history duplicate lookup.
func (s *ImportService) WithLookupTimeout(d time.Duration) *ImportService {
	if d > 0 {
		s.lookupTimeout = d
	}
	return s
}

func (s *ImportService) WithClock(now func() time.Time) *ImportService {
	s.now = now
	return s
}

// Preview extracts and annotates a file without persisting anything. A
// file-level failure returns the partial result together with a
// *model.FileLevelError.
func (s *ImportService) Preview(ctx context.Context, req PreviewRequest) (*PreviewResult, error) {
	ctx, span := s.tracer.Start(ctx, "ImportService.Preview", trace.WithAttributes(
		attribute.String("import.format", req.Format),
		attribute.String("import.file_name", req.FileName),
	))
	defer span.End()
	defer s.metrics.ObserveStage("preview", s.now())

	result, _, err := s.preview(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(
		attribute.Int("import.rows", len(result.Rows)),
		attribute.Int("import.row_errors", len(result.Errors)),
	)
	return result, nil
}

func (s *ImportService) preview(ctx context.Context, req PreviewRequest) (*PreviewResult, int64, error) {
	extractor, err := s.registry.Lookup(req.Format)
	if err != nil {
		return nil, 0, err
	}

	orgID, err := s.tenants.Resolve(ctx, req.UserIdentity)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve organization: %w", err)
	}

	res := extractor.Extract(ctx, req.Data, parser.Options{
		HomeCurrency: s.homeCurrency,
		Config:       req.Config,
	})
	s.metrics.Extracted(string(extractor.Format()), len(res.Rows), len(res.Errors))

	result := &PreviewResult{
		Format:    extractor.Format(),
		TotalSeen: res.TotalSeen,
		Errors:    res.Errors,
	}
	if res.FileError != nil {
		s.logger.Warn("file rejected",
			"format", extractor.Format(),
			"file_name", req.FileName,
			"error", res.FileError.Message,
		)
		result.Rows = []model.CandidateRow{}
		return result, orgID, res.FileError
	}

	rows := s.hint(ctx, res.Rows)

	rows = dedup.MarkIntraBatch(rows)
	batchDups := len(rows) - dedup.CountUnique(rows)
	s.metrics.Duplicates("batch", batchDups)

	rows = s.matchHistory(ctx, orgID, rows)
	s.metrics.Duplicates("history", len(rows)-dedup.CountUnique(rows)-batchDups)

	result.Rows = rows
	result.NonDuplicate = dedup.CountUnique(rows)

	s.logger.Info("preview ready",
		"format", result.Format,
		"file_name", req.FileName,
		"total_seen", result.TotalSeen,
		"rows", len(rows),
		"non_duplicate", result.NonDuplicate,
		"errors", len(result.Errors),
	)
	return result, orgID, nil
}

// hint suggests categories for rows that carry none. Hinter failures leave
// the row without a suggestion.
func (s *ImportService) hint(ctx context.Context, rows []model.CandidateRow) []model.CandidateRow {
	out := make([]model.CandidateRow, len(rows))
	copy(out, rows)
	if s.hinter == nil {
		return out
	}

	for i, r := range out {
		if r.SuggestedCategory != nil {
			continue
		}
		category, err := s.hinter.SuggestCategory(ctx, r.Description, r.Kind)
		if err != nil {
			s.logger.Warn("category hint failed", "row", r.SourceRow, "error", err)
			continue
		}
		if category != nil {
			out[i] = r.WithSuggestedCategory(*category)
		}
	}
	return out
}

// matchHistory runs the against-history lookup under a bounded timeout and
// falls back to the intra-batch result on failure.
func (s *ImportService) matchHistory(ctx context.Context, orgID int64, rows []model.CandidateRow) []model.CandidateRow {
	if s.duplicates == nil || len(rows) == 0 {
		return rows
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	flagged, err := s.duplicates.FindPotentialDuplicates(lookupCtx, orgID, rows)
	if err != nil {
		s.logger.Warn("duplicate lookup failed, keeping in-batch result",
			"organization_id", orgID,
			"error", err,
		)
		return rows
	}
	if len(flagged) != len(rows) {
		s.logger.Warn("duplicate lookup returned a different number of rows, ignoring it",
			"sent", len(rows),
			"received", len(flagged),
		)
		return rows
	}
	return flagged
}

// Commit persists the selected rows one by one and writes exactly one
// history record. A row that fails is reported and the rest are still
// attempted.
func (s *ImportService) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	ctx, span := s.tracer.Start(ctx, "ImportService.Commit", trace.WithAttributes(
		attribute.String("import.format", string(req.Format)),
		attribute.Int("import.rows", len(req.Rows)),
	))
	defer span.End()
	defer s.metrics.ObserveStage("commit", s.now())

	orgID, err := s.tenants.Resolve(ctx, req.UserIdentity)
	if err != nil {
		err = fmt.Errorf("failed to resolve organization: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := s.commit(ctx, orgID, req, nil, nil)
	span.SetAttributes(
		attribute.Int("import.persisted", result.Persisted),
		attribute.String("import.status", string(result.Status)),
	)
	return result, nil
}

// commit persists req.Rows. prior carries errors found before the commit
// (extraction errors of a direct import); they are reported and recorded but
// do not change the status.
func (s *ImportService) commit(ctx context.Context, orgID int64, req CommitRequest, notes []string, prior []model.RowError) *CommitResult {
	result := &CommitResult{
		Submitted: len(req.Rows),
		Errors:    append([]model.RowError{}, prior...),
	}

	for _, row := range req.Rows {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, model.RowError{Row: row.SourceRow, Message: "not attempted: " + err.Error()})
			continue
		}

		m := model.NewMovement(row, orgID, req.UserIdentity, s.now())
		if err := m.Validate(); err != nil {
			result.Errors = append(result.Errors, model.RowError{Row: row.SourceRow, Message: "invalid movement: " + err.Error()})
			continue
		}

		id, err := s.store.Save(ctx, m)
		if err != nil {
			s.logger.Warn("failed to persist movement", "row", row.SourceRow, "error", err)
			result.Errors = append(result.Errors, model.RowError{Row: row.SourceRow, Message: "could not persist: " + err.Error()})
			continue
		}
		m.ID = id
		result.Persisted++
		s.publisher.MovementCreated(ctx, model.NewMovementEvent(m))
	}

	result.Status = commitStatus(result.Persisted, result.Submitted)
	s.metrics.Committed(string(req.Format), string(result.Status), result.Persisted, len(result.Errors))

	totalRows := req.TotalRows
	if totalRows <= 0 {
		totalRows = len(req.Rows)
	}
	rec := &model.ImportHistoryRecord{
		FileName:      req.FileName,
		SourceFormat:  req.Format,
		TotalRows:     totalRows,
		ParsedRows:    len(req.Rows),
		PersistedRows: result.Persisted,
		Status:        result.Status,
		Notes:         buildNotes(notes, result.Errors),
		UserID:        req.UserIdentity,
	}
	if err := s.history.Append(ctx, rec); err != nil {
		// the commit outcome stands; only the audit entry is lost
		s.logger.Error("failed to append import history",
			"file_name", req.FileName,
			"status", rec.Status,
			"persisted", rec.PersistedRows,
			"error", err,
		)
	} else {
		result.HistoryID = rec.ID
	}

	if result.Persisted > 0 && len(result.Errors) == 0 {
		s.publisher.ImportCompleted(ctx, model.ImportEvent{
			UserID:      req.UserIdentity,
			ImportID:    strconv.FormatInt(rec.ID, 10),
			SourceName:  string(req.Format),
			AccountName: req.Rows[0].Origin,
			FileName:    req.FileName,
			TotalRows:   result.Persisted,
			ImportedAt:  s.now(),
		})
	}

	s.logger.Info("import committed",
		"file_name", req.FileName,
		"format", req.Format,
		"submitted", result.Submitted,
		"persisted", result.Persisted,
		"errors", len(result.Errors),
		"status", result.Status,
	)
	return result
}

// Import extracts a file and commits every row that is not flagged as a
// duplicate. Extraction errors are reported ahead of the commit errors and
// suppress the import completed event.
func (s *ImportService) Import(ctx context.Context, req PreviewRequest) (*CommitResult, error) {
	preview, orgID, err := s.preview(ctx, req)
	if err != nil {
		var fileErr *model.FileLevelError
		if errors.As(err, &fileErr) && preview != nil {
			return s.rejectFile(ctx, req, preview, fileErr), err
		}
		return nil, err
	}

	selected := make([]model.CandidateRow, 0, preview.NonDuplicate)
	var skipped []string
	for _, r := range preview.Rows {
		if r.Duplicate {
			skipped = append(skipped, strconv.Itoa(r.SourceRow))
			continue
		}
		selected = append(selected, r)
	}

	var notes []string
	if len(skipped) > 0 {
		notes = append(notes, fmt.Sprintf("skipped %d duplicate rows: %s", len(skipped), strings.Join(skipped, ", ")))
	}

	result := s.commit(ctx, orgID, CommitRequest{
		UserIdentity: req.UserIdentity,
		FileName:     req.FileName,
		Format:       preview.Format,
		TotalRows:    preview.TotalSeen,
		Rows:         selected,
	}, notes, preview.Errors)
	return result, nil
}

// rejectFile records a file that could not be read at all.
func (s *ImportService) rejectFile(ctx context.Context, req PreviewRequest, preview *PreviewResult, fileErr *model.FileLevelError) *CommitResult {
	rec := &model.ImportHistoryRecord{
		FileName:     req.FileName,
		SourceFormat: preview.Format,
		Status:       model.StatusError,
		Notes:        fileErr.AsRowError().Error(),
		UserID:       req.UserIdentity,
	}
	result := &CommitResult{Status: model.StatusError, Errors: preview.Errors}
	if err := s.history.Append(ctx, rec); err != nil {
		s.logger.Error("failed to append import history", "file_name", req.FileName, "error", err)
	} else {
		result.HistoryID = rec.ID
	}
	s.metrics.Committed(string(preview.Format), string(model.StatusError), 0, len(preview.Errors))
	return result
}

// History lists the user's import records, newest first.
func (s *ImportService) History(ctx context.Context, userIdentity string, limit int) ([]model.ImportHistoryRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := s.history.ListByUser(ctx, userIdentity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import history: %w", err)
	}
	return records, nil
}

func commitStatus(persisted, submitted int) model.Status {
	switch {
	case submitted > 0 && persisted == submitted:
		return model.StatusCompleted
	case persisted > 0:
		return model.StatusPartial
	default:
		return model.StatusError
	}
}

func buildNotes(notes []string, errs []model.RowError) string {
	parts := append([]string{}, notes...)
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}
