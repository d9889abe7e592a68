package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/parser"
)

const user = "ana@example.com"

var (
	errNotFound = errors.New("organization not found")
	fixedNow    = time.Date(2024, time.February, 1, 12, 0, 0, 0, time.UTC)
)

// genericCSV holds a duplicate pair (rows 2 and 3), a sale (row 4) and a
// bad date (row 5).
var genericCSV = []byte(";Fecha;Descripcion;Monto;Medio\n" +
	";15/01/2024;Edenor;-1.500,00;Transferencia\n" +
	";15/01/2024;Edenor;-1.500,00;Transferencia\n" +
	";16/01/2024;Venta;2.000,00;Efectivo\n" +
	";fecha mala;Otro;1,00;Efectivo\n")

type fixture struct {
	tenants   *mockTenants
	hinter    *mockHinter
	store     *mockStore
	history   *mockHistory
	publisher *mockPublisher
	svc       *ImportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tenants:   &mockTenants{},
		hinter:    &mockHinter{},
		store:     &mockStore{},
		history:   &mockHistory{},
		publisher: &mockPublisher{},
	}
	f.svc = NewImportService(parser.DefaultRegistry(), f.tenants, f.store, f.history, f.publisher, discardLogger()).
		WithCategoryHinter(f.hinter).
		WithClock(func() time.Time { return fixedNow })
	f.tenants.On("Resolve", mock.Anything, user).Return(int64(7), nil).Maybe()
	return f
}

func strPtr(s string) *string {
	return &s
}

func candidate(n int, kind model.Kind, amount, desc string) model.CandidateRow {
	return model.CandidateRow{
		SourceRow:     n,
		Kind:          kind,
		Amount:        decimal.RequireFromString(amount),
		EmittedAt:     time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		Description:   desc,
		Origin:        "GALICIA",
		PaymentMethod: model.PaymentTransfer,
		Currency:      "ARS",
		Format:        model.FormatBankDebitCredit,
	}
}

func describes(desc string) any {
	return mock.MatchedBy(func(m *model.Movement) bool { return m.Description == desc })
}

func TestPreview(t *testing.T) {
	ctx := context.Background()

	t.Run("annotates rows with hints and both duplicate tiers", func(t *testing.T) {
		f := newFixture(t)
		f.hinter.On("SuggestCategory", mock.Anything, "Edenor", model.KindExpense).Return(strPtr("Servicios"), nil)
		f.hinter.On("SuggestCategory", mock.Anything, "Venta", model.KindIncome).Return(nil, nil)

		var sent []model.CandidateRow
		f.svc.WithDuplicateFinder(finderFunc(func(_ context.Context, orgID int64, rows []model.CandidateRow) ([]model.CandidateRow, error) {
			assert.Equal(t, int64(7), orgID)
			sent = rows
			out := append([]model.CandidateRow{}, rows...)
			out[2] = out[2].WithDuplicate("matches an existing movement (id 900)")
			return out, nil
		}))

		res, err := f.svc.Preview(ctx, PreviewRequest{UserIdentity: user, Format: "mycfo", FileName: "enero.csv", Data: genericCSV})

		require.NoError(t, err)
		assert.Equal(t, model.FormatGeneric, res.Format)
		assert.Equal(t, 4, res.TotalSeen)
		require.Len(t, res.Rows, 3)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, 5, res.Errors[0].Row)

		assert.False(t, res.Rows[0].Duplicate)
		assert.Equal(t, "Servicios", *res.Rows[0].SuggestedCategory)
		require.True(t, res.Rows[1].Duplicate)
		assert.Equal(t, "duplicate of row 2", *res.Rows[1].DuplicateReason)
		require.True(t, res.Rows[2].Duplicate)
		assert.Nil(t, res.Rows[2].SuggestedCategory)
		assert.Equal(t, 1, res.NonDuplicate)

		require.Len(t, sent, 3)
		assert.True(t, sent[1].Duplicate, "history lookup sees the in-batch flags")
		f.hinter.AssertExpectations(t)
	})

	t.Run("history lookup failure keeps the in-batch result", func(t *testing.T) {
		f := newFixture(t)
		f.svc.WithCategoryHinter(nil).
			WithDuplicateFinder(finderFunc(func(context.Context, int64, []model.CandidateRow) ([]model.CandidateRow, error) {
				return nil, errors.New("connection refused")
			}))

		res, err := f.svc.Preview(ctx, PreviewRequest{UserIdentity: user, Format: "generic", Data: genericCSV})

		require.NoError(t, err)
		assert.Equal(t, 2, res.NonDuplicate)
		assert.True(t, res.Rows[1].Duplicate)
	})

	t.Run("history lookup is bounded by a timeout", func(t *testing.T) {
		f := newFixture(t)
		f.svc.WithCategoryHinter(nil).
			WithLookupTimeout(20 * time.Millisecond).
			WithDuplicateFinder(finderFunc(func(ctx context.Context, _ int64, _ []model.CandidateRow) ([]model.CandidateRow, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}))

		start := time.Now()
		res, err := f.svc.Preview(ctx, PreviewRequest{UserIdentity: user, Format: "generic", Data: genericCSV})

		require.NoError(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Equal(t, 2, res.NonDuplicate)
	})

	t.Run("explicit category is never replaced by a hint", func(t *testing.T) {
		f := newFixture(t)
		data := []byte("Fecha,Desc,Monto,Cat\n15/01/2024,Edenor,-100,Luz\n")
		config := []byte(`{"columnMap":{"fecha":0,"descripcion":1,"monto":2,"categoria":3}}`)

		res, err := f.svc.Preview(ctx, PreviewRequest{UserIdentity: user, Format: "excel-libre", Data: data, Config: config})

		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, "Luz", *res.Rows[0].SuggestedCategory)
		f.hinter.AssertNotCalled(t, "SuggestCategory", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("hinter failure leaves the row without a hint", func(t *testing.T) {
		f := newFixture(t)
		f.hinter.On("SuggestCategory", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		res, err := f.svc.Preview(ctx, PreviewRequest{UserIdentity: user, Format: "generic", Data: genericCSV})

		require.NoError(t, err)
		for _, r := range res.Rows {
			assert.Nil(t, r.SuggestedCategory)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Preview(ctx, PreviewRequest{UserIdentity: user, Format: "ofx", Data: genericCSV})

		assert.ErrorIs(t, err, parser.ErrUnsupportedFormat)
		f.tenants.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})

	t.Run("unknown tenant fails the request", func(t *testing.T) {
		f := newFixture(t)
		f.tenants.On("Resolve", mock.Anything, "ghost").Return(int64(0), errNotFound)

		_, err := f.svc.Preview(ctx, PreviewRequest{UserIdentity: "ghost", Format: "generic", Data: genericCSV})

		assert.ErrorIs(t, err, errNotFound)
	})

	t.Run("file level error", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.svc.Preview(ctx, PreviewRequest{UserIdentity: user, Format: "wallet-report", Data: []byte("a;b\n1;2\n")})

		var fileErr *model.FileLevelError
		require.ErrorAs(t, err, &fileErr)
		assert.Equal(t, model.FormatWalletReport, fileErr.Format)
		require.NotNil(t, res)
		assert.Empty(t, res.Rows)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, 0, res.Errors[0].Row)
	})
}

func TestCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("failure on one row yields a partial import", func(t *testing.T) {
		f := newFixture(t)
		rows := []model.CandidateRow{
			candidate(2, model.KindExpense, "-100", "a"),
			candidate(3, model.KindExpense, "-200", "b"),
			candidate(4, model.KindIncome, "300", "c"),
		}
		snapshot := append([]model.CandidateRow{}, rows...)

		f.store.On("Save", mock.Anything, describes("b")).Return(int64(0), errors.New("deadlock detected"))
		f.store.On("Save", mock.Anything, mock.Anything).Return(int64(10), nil)
		f.history.On("Append", mock.Anything, mock.MatchedBy(func(r *model.ImportHistoryRecord) bool {
			return r.Status == model.StatusPartial && r.PersistedRows == 2 && r.ParsedRows == 3 && r.TotalRows == 5
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*model.ImportHistoryRecord).ID = 99
		}).Return(nil).Once()
		f.publisher.On("MovementCreated", mock.Anything, mock.Anything).Return()

		res, err := f.svc.Commit(ctx, CommitRequest{
			UserIdentity: user,
			FileName:     "enero.xlsx",
			Format:       model.FormatBankDebitCredit,
			TotalRows:    5,
			Rows:         rows,
		})

		require.NoError(t, err)
		assert.Equal(t, 3, res.Submitted)
		assert.Equal(t, 2, res.Persisted)
		assert.Equal(t, model.StatusPartial, res.Status)
		assert.Equal(t, int64(99), res.HistoryID)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, 3, res.Errors[0].Row)
		assert.Contains(t, res.Errors[0].Message, "deadlock detected")

		f.store.AssertNumberOfCalls(t, "Save", 3)
		f.history.AssertExpectations(t)
		f.publisher.AssertNumberOfCalls(t, "MovementCreated", 2)
		f.publisher.AssertNotCalled(t, "ImportCompleted", mock.Anything, mock.Anything)
		assert.Equal(t, snapshot, rows, "committed rows are not modified")
	})

	t.Run("all rows persisted completes the import", func(t *testing.T) {
		f := newFixture(t)
		rows := []model.CandidateRow{
			candidate(2, model.KindExpense, "-100", "a").WithSuggestedCategory("Servicios"),
			candidate(3, model.KindIncome, "50", "b"),
		}

		f.store.On("Save", mock.Anything, mock.Anything).Return(int64(11), nil)
		f.history.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*model.ImportHistoryRecord).ID = 5
		}).Return(nil)
		f.publisher.On("MovementCreated", mock.Anything, mock.MatchedBy(func(ev model.MovementEvent) bool {
			return ev.RefID == "Servicios" && ev.UserID == user
		})).Return().Once()
		f.publisher.On("MovementCreated", mock.Anything, mock.MatchedBy(func(ev model.MovementEvent) bool {
			return ev.RefID == "11"
		})).Return().Once()
		f.publisher.On("ImportCompleted", mock.Anything, model.ImportEvent{
			UserID:      user,
			ImportID:    "5",
			SourceName:  string(model.FormatBankDebitCredit),
			AccountName: "GALICIA",
			FileName:    "enero.xlsx",
			TotalRows:   2,
			ImportedAt:  fixedNow,
		}).Return().Once()

		res, err := f.svc.Commit(ctx, CommitRequest{UserIdentity: user, FileName: "enero.xlsx", Format: model.FormatBankDebitCredit, Rows: rows})

		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, res.Status)
		assert.Empty(t, res.Errors)
		f.publisher.AssertExpectations(t)
	})

	t.Run("nothing persisted is an error", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("Save", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))
		f.history.On("Append", mock.Anything, mock.MatchedBy(func(r *model.ImportHistoryRecord) bool {
			return r.Status == model.StatusError && r.Notes == "row 2: could not persist: db down"
		})).Return(nil).Once()

		res, err := f.svc.Commit(ctx, CommitRequest{UserIdentity: user, Rows: []model.CandidateRow{candidate(2, model.KindExpense, "-1", "a")}})

		require.NoError(t, err)
		assert.Equal(t, model.StatusError, res.Status)
		f.history.AssertExpectations(t)
		f.publisher.AssertNotCalled(t, "MovementCreated", mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "ImportCompleted", mock.Anything, mock.Anything)
	})

	t.Run("empty submission is recorded as an error", func(t *testing.T) {
		f := newFixture(t)
		f.history.On("Append", mock.Anything, mock.Anything).Return(nil).Once()

		res, err := f.svc.Commit(ctx, CommitRequest{UserIdentity: user})

		require.NoError(t, err)
		assert.Equal(t, 0, res.Submitted)
		assert.Equal(t, model.StatusError, res.Status)
		f.history.AssertExpectations(t)
	})

	t.Run("rows breaking the sign rule are rejected before saving", func(t *testing.T) {
		f := newFixture(t)
		bad := candidate(2, model.KindExpense, "100", "a")
		f.history.On("Append", mock.Anything, mock.Anything).Return(nil)

		res, err := f.svc.Commit(ctx, CommitRequest{UserIdentity: user, Rows: []model.CandidateRow{bad}})

		require.NoError(t, err)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0].Message, "invalid movement")
		f.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("history failure does not change the outcome", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("Save", mock.Anything, mock.Anything).Return(int64(1), nil)
		f.history.On("Append", mock.Anything, mock.Anything).Return(errors.New("disk full"))
		f.publisher.On("MovementCreated", mock.Anything, mock.Anything).Return()
		f.publisher.On("ImportCompleted", mock.Anything, mock.Anything).Return()

		res, err := f.svc.Commit(ctx, CommitRequest{UserIdentity: user, Rows: []model.CandidateRow{candidate(2, model.KindIncome, "1", "a")}})

		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, res.Status)
		assert.Zero(t, res.HistoryID)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		f := newFixture(t)
		f.tenants.On("Resolve", mock.Anything, "ghost").Return(int64(0), errNotFound)

		_, err := f.svc.Commit(ctx, CommitRequest{UserIdentity: "ghost", Rows: []model.CandidateRow{candidate(2, model.KindIncome, "1", "a")}})

		assert.ErrorIs(t, err, errNotFound)
		f.history.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("skips duplicates and reports extraction errors", func(t *testing.T) {
		f := newFixture(t)
		f.svc.WithCategoryHinter(nil)
		f.store.On("Save", mock.Anything, mock.Anything).Return(int64(3), nil)
		f.publisher.On("MovementCreated", mock.Anything, mock.Anything).Return()
		var rec *model.ImportHistoryRecord
		f.history.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			rec = args.Get(1).(*model.ImportHistoryRecord)
		}).Return(nil).Once()

		res, err := f.svc.Import(ctx, PreviewRequest{UserIdentity: user, Format: "generic", FileName: "enero.csv", Data: genericCSV})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Submitted)
		assert.Equal(t, 2, res.Persisted)
		assert.Equal(t, model.StatusCompleted, res.Status)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, 5, res.Errors[0].Row)

		require.NotNil(t, rec)
		assert.Equal(t, 4, rec.TotalRows)
		assert.Equal(t, 2, rec.ParsedRows)
		assert.Contains(t, rec.Notes, "skipped 1 duplicate rows: 3")
		assert.Contains(t, rec.Notes, "row 5:")
		f.store.AssertNotCalled(t, "Save", mock.Anything, describes("Otro"))
		f.publisher.AssertNotCalled(t, "ImportCompleted", mock.Anything, mock.Anything)
	})

	t.Run("unreadable file is recorded and returned", func(t *testing.T) {
		f := newFixture(t)
		f.history.On("Append", mock.Anything, mock.MatchedBy(func(r *model.ImportHistoryRecord) bool {
			return r.Status == model.StatusError && r.SourceFormat == model.FormatBankTimed
		})).Return(nil).Once()

		res, err := f.svc.Import(ctx, PreviewRequest{UserIdentity: user, Format: "nacion", Data: []byte("nothing;here\n")})

		var fileErr *model.FileLevelError
		require.ErrorAs(t, err, &fileErr)
		require.NotNil(t, res)
		assert.Equal(t, model.StatusError, res.Status)
		f.history.AssertExpectations(t)
		f.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	records := []model.ImportHistoryRecord{{ID: 2, FileName: "feb.xlsx"}, {ID: 1, FileName: "enero.xlsx"}}
	f.history.On("ListByUser", mock.Anything, user, defaultHistoryLimit).Return(records, nil)
	f.history.On("ListByUser", mock.Anything, "broken", 10).Return(nil, errors.New("timeout"))

	got, err := f.svc.History(context.Background(), user, 0)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	_, err = f.svc.History(context.Background(), "broken", 10)
	assert.ErrorContains(t, err, "failed to list import history")
}

func TestCommitStatus(t *testing.T) {
	tests := []struct {
		persisted, submitted int
		want                 model.Status
	}{
		{3, 3, model.StatusCompleted},
		{2, 3, model.StatusPartial},
		{0, 3, model.StatusError},
		{0, 0, model.StatusError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commitStatus(tt.persisted, tt.submitted))
	}
}
