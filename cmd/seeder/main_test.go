package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/lendingledger/internal/store"
	"github.com/punchamoorthee/lendingledger/internal/store/storetest"
)

func sqliteEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "library.db")
	t.Setenv("DB_DRIVER", store.DriverSQLite)
	t.Setenv("DB_SOURCE", path)
	return path
}

func openDB(t *testing.T, path string) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), store.Options{Driver: store.DriverSQLite, DSN: path})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func Test_Run_SkipsNonEmptyCatalog(t *testing.T) {
	// arrange
	path := sqliteEnv(t)
	db := openDB(t, path)
	storetest.AddBook(t, db, "Already Here", 1)

	// act
	err := run(context.Background(), slog.New(slog.DiscardHandler))

	// assert
	require.NoError(t, err)
	books, err := store.Count(context.Background(), db, "books")
	require.NoError(t, err)
	assert.Equal(t, 1, books)
}

func Test_Run_SeedsEmptyCatalogOnce(t *testing.T) {
	path := sqliteEnv(t)
	logger := slog.New(slog.DiscardHandler)

	require.NoError(t, run(context.Background(), logger))
	require.NoError(t, run(context.Background(), logger))

	db := openDB(t, path)
	books, err := store.Count(context.Background(), db, "books")
	require.NoError(t, err)
	assert.Equal(t, TotalBooks, books)
	members, err := store.Count(context.Background(), db, "members")
	require.NoError(t, err)
	assert.Equal(t, TotalMembers, members)
}
