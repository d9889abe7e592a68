package repository

import (
	"context"
	"fmt"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
)

// HistoryStore is the append-only import ledger. Records are never updated
// or deleted.
type HistoryStore struct {
	db DB
}

// NewHistoryStore creates a history store.
func NewHistoryStore(db DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Append inserts a record and fills in its id and creation time.
func (s *HistoryStore) Append(ctx context.Context, rec *model.ImportHistoryRecord) error {
	query := `
		INSERT INTO import_history (
			file_name, source_format, total_rows, parsed_rows, persisted_rows,
			status, notes, user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := s.db.QueryRow(ctx, query,
		rec.FileName,
		rec.SourceFormat,
		rec.TotalRows,
		rec.ParsedRows,
		rec.PersistedRows,
		rec.Status,
		rec.Notes,
		rec.UserID,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append import history: %w", err)
	}
	return nil
}

// ListByUser returns the user's records, newest first. A limit of zero or
// less returns every record.
func (s *HistoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.ImportHistoryRecord, error) {
	query := `
		SELECT id, file_name, source_format, total_rows, parsed_rows, persisted_rows,
			status, notes, user_id, created_at
		FROM import_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.db.Query(ctx, query, userID, lim)
	if err != nil {
		return nil, fmt.Errorf("failed to query import history: %w", err)
	}
	defer rows.Close()

	var records []model.ImportHistoryRecord
	for rows.Next() {
		var r model.ImportHistoryRecord
		if err := rows.Scan(
			&r.ID, &r.FileName, &r.SourceFormat, &r.TotalRows, &r.ParsedRows, &r.PersistedRows,
			&r.Status, &r.Notes, &r.UserID, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan import history: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
