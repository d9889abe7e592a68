package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
)

type mockTenants struct {
	mock.Mock
}

func (m *mockTenants) Resolve(ctx context.Context, userIdentity string) (int64, error) {
	args := m.Called(ctx, userIdentity)
	return args.Get(0).(int64), args.Error(1)
}

type mockHinter struct {
	mock.Mock
}

func (m *mockHinter) SuggestCategory(ctx context.Context, description string, kind model.Kind) (*string, error) {
	args := m.Called(ctx, description, kind)
	category, _ := args.Get(0).(*string)
	return category, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, mv *model.Movement) (int64, error) {
	args := m.Called(ctx, mv)
	return args.Get(0).(int64), args.Error(1)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Append(ctx context.Context, rec *model.ImportHistoryRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockHistory) ListByUser(ctx context.Context, userID string, limit int) ([]model.ImportHistoryRecord, error) {
	args := m.Called(ctx, userID, limit)
	records, _ := args.Get(0).([]model.ImportHistoryRecord)
	return records, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) MovementCreated(ctx context.Context, ev model.MovementEvent) {
	m.Called(ctx, ev)
}

func (m *mockPublisher) ImportCompleted(ctx context.Context, ev model.ImportEvent) {
	m.Called(ctx, ev)
}

// finderFunc adapts a function to DuplicateFinder.
type finderFunc func(ctx context.Context, orgID int64, rows []model.CandidateRow) ([]model.CandidateRow, error)

func (f finderFunc) FindPotentialDuplicates(ctx context.Context, orgID int64, rows []model.CandidateRow) ([]model.CandidateRow, error) {
	return f(ctx, orgID, rows)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
