package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

func Test_Fine(t *testing.T) {
	due := domain.NewDate(2024, 1, 1)
	rate := decimal.RequireFromString("0.50")

	tests := []struct {
		name     string
		returned domain.Date
		rate     decimal.Decimal
		grace    int
		want     string
	}{
		{"four days late", domain.NewDate(2024, 1, 5), rate, 0, "2.00"},
		{"same day", due, rate, 0, "0"},
		{"early", domain.NewDate(2023, 12, 28), rate, 0, "0"},
		{"inside grace", domain.NewDate(2024, 1, 3), rate, 2, "0"},
		{"past grace", domain.NewDate(2024, 1, 5), rate, 2, "1.00"},
		{"across month end", domain.NewDate(2024, 2, 1), rate, 0, "15.50"},
		{"rounds to cents", domain.NewDate(2024, 1, 4), decimal.RequireFromString("0.333"), 0, "1.00"},
		{"zero rate", domain.NewDate(2024, 3, 1), decimal.Zero, 0, "0"},
		{"negative grace is ignored", domain.NewDate(2024, 1, 2), rate, -5, "0.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fine(due, tt.returned, tt.rate, tt.grace)

			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}
