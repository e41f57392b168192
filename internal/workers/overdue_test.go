package workers

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/lendingledger/internal/domain"
	"github.com/punchamoorthee/lendingledger/internal/service"
	"github.com/punchamoorthee/lendingledger/internal/store"
	"github.com/punchamoorthee/lendingledger/internal/store/storetest"
)

func newSweeper(t *testing.T, today domain.Date) (*OverdueSweeper, *service.LendingService, *store.DB) {
	t.Helper()
	db := storetest.New(t)
	clock := service.WithClock(func() domain.Date { return today })
	ledger := service.NewLendingService(db, clock)
	return NewOverdueSweeper(ledger, service.NewReportService(db, clock), 10*time.Millisecond, nil), ledger, db
}

func Test_OverdueSweeper_Check(t *testing.T) {
	// arrange
	ctx := context.Background()
	sweeper, ledger, db := newSweeper(t, domain.NewDate(2024, 1, 20))
	bookID := storetest.AddBook(t, db, "Moby Dick", 3)
	late, err := ledger.Create(ctx, domain.LoanRequest{
		MemberID: storetest.AddMember(t, db, "Ishmael"), BookID: bookID,
		BorrowDate: domain.NewDate(2024, 1, 1), DueDate: domain.NewDate(2024, 1, 10),
	})
	require.NoError(t, err)
	_, err = ledger.Create(ctx, domain.LoanRequest{
		MemberID: storetest.AddMember(t, db, "Queequeg"), BookID: bookID,
		BorrowDate: domain.NewDate(2024, 1, 15), DueDate: domain.NewDate(2024, 1, 29),
	})
	require.NoError(t, err)

	// act
	marked, err := sweeper.Check(ctx)

	// assert
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)
	assert.Equal(t, float64(1), testutil.ToFloat64(overdueLoans))

	loan, err := ledger.Get(ctx, late)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanOverdue, loan.Status)

	marked, err = sweeper.Check(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func Test_OverdueSweeper_Run_StopsOnCancel(t *testing.T) {
	sweeper, _, _ := newSweeper(t, domain.NewDate(2024, 1, 20))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
