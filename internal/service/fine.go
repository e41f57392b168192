package service

import (
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

// Fine charges ratePerDay for every day returned falls after due, less graceDays.
// Early and on-time returns cost nothing. The result is rounded to cents.
func Fine(due, returned domain.Date, ratePerDay decimal.Decimal, graceDays int) decimal.Decimal {
	daysLate := returned.DaysSince(due) - max(graceDays, 0)
	if daysLate <= 0 || !ratePerDay.IsPositive() {
		return decimal.Zero
	}
	return ratePerDay.Mul(decimal.NewFromInt(int64(daysLate))).Round(2)
}
