// Package storetest opens throwaway sqlite3 stores for tests.
package storetest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/lendingledger/internal/domain"
	"github.com/punchamoorthee/lendingledger/internal/store"
)

var seq atomic.Int64

// New returns a migrated store in t.TempDir that is closed when the test ends.
func New(t testing.TB) *store.DB {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(ctx, store.Options{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "library.db"),
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	return db
}

// AddBook inserts a book with the given number of copies and returns its id.
func AddBook(t testing.TB, db *store.DB, title string, copies int) int64 {
	t.Helper()
	n := seq.Add(1)
	id, err := store.NewBookStore(db).Create(context.Background(), domain.BookInput{
		Title:    title,
		Author:   "Author " + title,
		ISBN:     fmt.Sprintf("978-%010d", n),
		Category: "Fiction",
		Copies:   &copies,
		Year:     2001,
	})
	require.NoError(t, err)
	return id
}

// AddMember registers an active member and returns its id.
func AddMember(t testing.TB, db *store.DB, name string) int64 {
	t.Helper()
	n := seq.Add(1)
	id, err := store.NewMemberStore(db).Create(context.Background(), domain.MemberInput{
		MemberCode: fmt.Sprintf("M%04d", n),
		Name:       name,
		Email:      fmt.Sprintf("member%d@example.com", n),
		JoinDate:   domain.NewDate(2024, 1, 1),
	})
	require.NoError(t, err)
	return id
}

// UpdateSettings applies p to the settings row.
func UpdateSettings(t testing.TB, db *store.DB, p domain.SettingsPatch) {
	t.Helper()
	_, err := store.NewSettingsStore(db).Update(context.Background(), p)
	require.NoError(t, err)
}
