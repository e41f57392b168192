package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_StockStatus(t *testing.T) {
	tests := []struct {
		available, total int
		want             BookStatus
	}{
		{0, 5, BookOutOfStock},
		{1, 5, BookAvailable},
		{1, 6, BookLowStock},
		{1, 3, BookAvailable},
		{2, 9, BookLowStock},
		{3, 9, BookAvailable},
		{0, 0, BookOutOfStock},
		{5, 5, BookAvailable},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d of %d", tt.available, tt.total), func(t *testing.T) {
			assert.Equal(t, tt.want, StockStatus(tt.available, tt.total))
		})
	}
}
