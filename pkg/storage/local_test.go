package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLocalStoragePutOpen(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	info, err := s.Put(ctx, "ana@example.com", Upload{
		Name:   "../enero/extracto.xlsx",
		Format: "galicia",
		Config: []byte(`{"columnMap":{}}`),
	}, bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)
	assert.Equal(t, "../enero/extracto.xlsx", info.Name)
	assert.NotContains(t, info.Path, "/")

	rc, got, err := s.Open(ctx, "ana@example.com", info.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "galicia", got.Format)
	assert.JSONEq(t, `{"columnMap":{}}`, string(got.Config))
}

func TestLocalStorageIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	info, err := s.Put(ctx, "ana@example.com", Upload{Name: "a.csv"}, bytes.NewReader(nil))
	require.NoError(t, err)

	_, _, err = s.Open(ctx, "bob@example.com", info.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	files, err := s.List(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocalStorageListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := s.Put(ctx, "ana", Upload{Name: "first.csv"}, bytes.NewReader([]byte("1")))
	require.NoError(t, err)
	second, err := s.Put(ctx, "ana", Upload{Name: "second.csv"}, bytes.NewReader([]byte("2")))
	require.NoError(t, err)

	files, err := s.List(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, first.ID, files[0].ID)
	assert.Equal(t, second.ID, files[1].ID)

	require.NoError(t, s.Delete(ctx, "ana", first.ID))
	files, err = s.List(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, second.ID, files[0].ID)

	assert.ErrorIs(t, s.Delete(ctx, "ana", uuid.New()), ErrNotFound)
}

func TestOwnerIDIsStable(t *testing.T) {
	assert.Equal(t, OwnerID("ana@example.com"), OwnerID("ana@example.com"))
	assert.NotEqual(t, OwnerID("ana@example.com"), OwnerID("bob@example.com"))
}

func TestPutHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newLocal(t).Put(ctx, "ana", Upload{Name: "x"}, bytes.NewReader(nil))
	assert.ErrorIs(t, err, context.Canceled)
}
