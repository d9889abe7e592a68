package db

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	names, err := fs.Glob(Migrations(), "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"00001_create_movements.sql",
		"00002_create_import_history.sql",
		"00003_create_organization_members.sql",
	}, names)

	for _, name := range names {
		body, err := fs.ReadFile(Migrations(), name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}
}

func TestMigrationsCollect(t *testing.T) {
	goose.SetBaseFS(Migrations())
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	collected, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
	require.NoError(t, err)
	require.Len(t, collected, 3)
	assert.Equal(t, int64(1), collected[0].Version)
	assert.Equal(t, int64(3), collected[2].Version)
}

func TestNewRejectsBadDSN(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(context.Background(), Config{DSN: "postgres://%zz"}, logger)
	assert.ErrorContains(t, err, "failed to parse database DSN")
}
