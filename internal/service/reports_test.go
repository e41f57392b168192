package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/lendingledger/internal/domain"
	"github.com/punchamoorthee/lendingledger/internal/models"
	"github.com/punchamoorthee/lendingledger/internal/store"
	"github.com/punchamoorthee/lendingledger/internal/store/storetest"
)

// seedHistory leaves three loans: one returned in February, one open and overdue, one open and current.
func seedHistory(t *testing.T, f *fixture) (popular, quiet int64) {
	t.Helper()
	ctx := context.Background()
	popular = storetest.AddBook(t, f.db, "Popular", 3)
	quiet = storetest.AddBook(t, f.db, "Quiet", 3)
	ann := storetest.AddMember(t, f.db, "Ann")
	bob := storetest.AddMember(t, f.db, "Bob")

	f.today = domain.NewDate(2024, 2, 3)
	returned := f.borrow(t, ann, popular, domain.NewDate(2024, 1, 20), domain.NewDate(2024, 2, 3))
	_, err := f.ledger.RecordReturn(ctx, returned)
	require.NoError(t, err)

	f.borrow(t, bob, popular, domain.NewDate(2024, 3, 1), domain.NewDate(2024, 3, 10))
	f.borrow(t, ann, quiet, domain.NewDate(2024, 3, 5), domain.NewDate(2024, 3, 30))
	f.today = domain.NewDate(2024, 3, 15)
	return popular, quiet
}

func Test_ReportService_Statistics(t *testing.T) {
	f := newFixture(t)
	seedHistory(t, f)

	stats, err := f.reports.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &models.Statistics{ActiveBorrows: 1, ReturnedBooks: 1, OverdueBooks: 1, TotalRecords: 3}, stats)
}

func Test_ReportService_MonthlyTrend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedHistory(t, f)

	trend, err := f.reports.MonthlyTrend(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []models.MonthlyStat{
		{Month: "2024-03", Borrows: 2},
		{Month: "2024-02", Returns: 1},
		{Month: "2024-01", Borrows: 1},
	}, trend)

	trend, err = f.reports.MonthlyTrend(ctx, 2)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, "2024-02", trend[1].Month)
}

func Test_ReportService_TopBooks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	popular, quiet := seedHistory(t, f)
	unborrowed := storetest.AddBook(t, f.db, "Unborrowed", 1)

	top, err := f.reports.TopBooks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, models.TopBook{ID: popular, Title: "Popular", Author: "Author Popular", BorrowCount: 2}, top[0])
	assert.Equal(t, quiet, top[1].ID)

	// Equal counts fall back to book id order.
	carol := storetest.AddMember(t, f.db, "Carol")
	f.borrow(t, carol, unborrowed, domain.Date{}, domain.Date{})
	f.borrow(t, carol, quiet, domain.Date{}, domain.Date{})
	top, err = f.reports.TopBooks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, popular, top[0].ID)
	assert.Equal(t, 2, top[0].BorrowCount)
}

func Test_ReportService_Dashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedHistory(t, f)
	inactive := domain.MemberInactive
	idle := storetest.AddMember(t, f.db, "Idle")
	_, err := store.NewMemberStore(f.db).Update(ctx, idle, domain.MemberPatch{Status: &inactive})
	require.NoError(t, err)

	dash, err := f.reports.Dashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, &models.Dashboard{TotalBooks: 2, ActiveMembers: 2, BooksBorrowed: 2, OverdueBooks: 1}, dash)
}

func Test_ReportService_EmptyLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	stats, err := f.reports.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRecords)

	trend, err := f.reports.MonthlyTrend(ctx, 12)
	require.NoError(t, err)
	assert.NotNil(t, trend)
	assert.Empty(t, trend)

	top, err := f.reports.TopBooks(ctx, 5)
	require.NoError(t, err)
	assert.NotNil(t, top)
	assert.Empty(t, top)
}
