package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	orgID int64
	err   error
	calls int
}

func (c *countingResolver) Resolve(context.Context, string) (int64, error) {
	c.calls++
	return c.orgID, c.err
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestPostgresResolver(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(pgxmock.PgxPoolIface)
		want    int64
		wantErr error
	}{
		{
			name: "member",
			setup: func(m pgxmock.PgxPoolIface) {
				m.ExpectQuery("SELECT organization_id").
					WithArgs("ana@example.com").
					WillReturnRows(pgxmock.NewRows([]string{"organization_id"}).AddRow(int64(12)))
			},
			want: 12,
		},
		{
			name: "unknown user",
			setup: func(m pgxmock.PgxPoolIface) {
				m.ExpectQuery("SELECT organization_id").
					WithArgs("ana@example.com").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setup(mock)

			got, err := NewPostgresResolver(mock).Resolve(context.Background(), "ana@example.com")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCachedResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("second lookup is served from cache", func(t *testing.T) {
		client, mr := newTestRedis(t)
		next := &countingResolver{orgID: 12}
		r := NewCachedResolver(next, client, time.Minute, nil)

		for range 3 {
			got, err := r.Resolve(ctx, "ana")
			require.NoError(t, err)
			assert.Equal(t, int64(12), got)
		}
		assert.Equal(t, 1, next.calls)

		val, err := mr.Get("tenant:ana")
		require.NoError(t, err)
		assert.Equal(t, "12", val)
		assert.Equal(t, time.Minute, mr.TTL("tenant:ana"))
	})

	t.Run("expired entries are resolved again", func(t *testing.T) {
		client, mr := newTestRedis(t)
		next := &countingResolver{orgID: 12}
		r := NewCachedResolver(next, client, time.Minute, nil)

		_, err := r.Resolve(ctx, "ana")
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)
		_, err = r.Resolve(ctx, "ana")
		require.NoError(t, err)

		assert.Equal(t, 2, next.calls)
	})

	t.Run("not found is not cached", func(t *testing.T) {
		client, mr := newTestRedis(t)
		next := &countingResolver{err: ErrNotFound}
		r := NewCachedResolver(next, client, time.Minute, nil)

		_, err := r.Resolve(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, mr.Exists("tenant:ghost"))
	})

	t.Run("malformed entry is replaced", func(t *testing.T) {
		client, mr := newTestRedis(t)
		require.NoError(t, mr.Set("tenant:ana", "not-a-number"))
		next := &countingResolver{orgID: 3}

		got, err := NewCachedResolver(next, client, time.Minute, nil).Resolve(ctx, "ana")

		require.NoError(t, err)
		assert.Equal(t, int64(3), got)
		val, _ := mr.Get("tenant:ana")
		assert.Equal(t, "3", val)
	})

	t.Run("redis down falls through", func(t *testing.T) {
		client, mr := newTestRedis(t)
		mr.Close()
		next := &countingResolver{orgID: 9}

		got, err := NewCachedResolver(next, client, time.Minute, nil).Resolve(ctx, "ana")

		require.NoError(t, err)
		assert.Equal(t, int64(9), got)
	})

	t.Run("resolver errors propagate", func(t *testing.T) {
		client, _ := newTestRedis(t)
		boom := errors.New("db down")

		_, err := NewCachedResolver(&countingResolver{err: boom}, client, time.Minute, nil).Resolve(ctx, "ana")
		assert.ErrorIs(t, err, boom)
	})
}

func TestStaticResolver(t *testing.T) {
	got, err := StaticResolver(4).Resolve(context.Background(), "cli")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)

	_, err = StaticResolver(4).Resolve(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = StaticResolver(0).Resolve(context.Background(), "cli")
	assert.ErrorIs(t, err, ErrNotFound)
}
