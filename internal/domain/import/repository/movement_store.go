package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/dedup"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
)

const insertMovementQuery = `
	INSERT INTO movements (
		organization_id, user_id, kind, amount, currency, emitted_at,
		description, origin, payment_method, category, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id
`

const movementsInWindowQuery = `
	SELECT id, organization_id, user_id, kind, amount, currency, emitted_at,
		description, origin, payment_method, category, created_at, updated_at
	FROM movements
	WHERE organization_id = $1 AND emitted_at >= $2 AND emitted_at < $3
	ORDER BY emitted_at, id
`

// MovementStore saves movements and looks up potential duplicates.
type MovementStore struct {
	db      DB
	retrier *Retrier
	logger  *slog.Logger
}

// NewMovementStore creates a movement store.
func NewMovementStore(db DB, logger *slog.Logger) *MovementStore {
	return &MovementStore{
		db:      db,
		retrier: NewRetrier(logger),
		logger:  logger,
	}
}

// Save inserts one movement in its own transaction and returns its id.
func (s *MovementStore) Save(ctx context.Context, m *model.Movement) (int64, error) {
	var id int64
	err := s.retrier.Retry(ctx, func() error {
		var err error
		id, err = s.insert(ctx, m)
		return err
	},
		"organization_id", m.OrganizationID,
		"emitted_at", m.EmittedAt.UTC().Format(time.DateOnly),
		"origin", m.Origin,
		"description", m.Description,
	)
	if err != nil {
		return 0, err
	}
	m.ID = id
	return id, nil
}

func (s *MovementStore) insert(ctx context.Context, m *model.Movement) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx, insertMovementQuery,
		m.OrganizationID,
		m.UserID,
		m.Kind,
		m.Amount,
		m.Currency,
		m.EmittedAt,
		m.Description,
		m.Origin,
		m.PaymentMethod,
		m.Category,
		m.CreatedAt,
		m.UpdatedAt,
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("failed to insert movement: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit movement: %w", err)
	}
	return id, nil
}

// FindPotentialDuplicates loads the organization's movements in the batch's
// date window and flags the rows that match one of them.
func (s *MovementStore) FindPotentialDuplicates(ctx context.Context, organizationID int64, rows []model.CandidateRow) ([]model.CandidateRow, error) {
	from, to, ok := dedup.Window(rows)
	if !ok {
		return rows, nil
	}

	existing, err := s.listWindow(ctx, organizationID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return dedup.MatchHistory(rows, existing), nil
}

func (s *MovementStore) listWindow(ctx context.Context, organizationID int64, from, until time.Time) ([]model.Movement, error) {
	rows, err := s.db.Query(ctx, movementsInWindowQuery, organizationID, from, until)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []model.Movement
	for rows.Next() {
		var m model.Movement
		if err := rows.Scan(
			&m.ID, &m.OrganizationID, &m.UserID, &m.Kind, &m.Amount, &m.Currency, &m.EmittedAt,
			&m.Description, &m.Origin, &m.PaymentMethod, &m.Category, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
