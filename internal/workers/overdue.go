// Package workers runs background maintenance against the lending ledger.
package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/lendingledger/internal/service"
)

var overdueLoans = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "library_overdue_loans",
	Help: "Open loans past their due date at the last sweep",
})

// OverdueSweeper periodically persists the overdue status of open loans. Reads derive
// overdue from the due date on their own, so the sweeper only keeps stored status fresh.
type OverdueSweeper struct {
	ledger   *service.LendingService
	reports  *service.ReportService
	interval time.Duration
	logger   *slog.Logger
}

func NewOverdueSweeper(ledger *service.LendingService, reports *service.ReportService, interval time.Duration, logger *slog.Logger) *OverdueSweeper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OverdueSweeper{ledger: ledger, reports: reports, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *OverdueSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *OverdueSweeper) sweep(ctx context.Context) {
	if _, err := s.Check(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "overdue sweep failed", "error", err.Error())
	}
}

// Check marks overdue loans and refreshes the overdue gauge. It returns the number of
// loans whose stored status changed.
func (s *OverdueSweeper) Check(ctx context.Context) (int64, error) {
	marked, err := s.ledger.RefreshOverdue(ctx)
	if err != nil {
		return 0, err
	}
	open, err := s.reports.OverdueCount(ctx)
	if err != nil {
		return marked, err
	}
	overdueLoans.Set(float64(open))
	s.logger.DebugContext(ctx, "overdue sweep", "marked", marked, "overdue", open)
	return marked, nil
}
