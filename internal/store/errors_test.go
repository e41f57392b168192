package store

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

func Test_classify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"pgx unique", &pgconn.PgError{Code: "23505"}, domain.ErrConflict},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, domain.ErrReferential},
		{"pgx check", &pgconn.PgError{Code: "23514"}, domain.ErrValidation},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, domain.ErrConflict},
		{"pgx other", &pgconn.PgError{Code: "42P01"}, domain.ErrStore},
		{"pq unique", &pq.Error{Code: "23505"}, domain.ErrConflict},
		{"pq serialization", &pq.Error{Code: "40001"}, domain.ErrConflict},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, domain.ErrConflict},
		{"mysql parent row", &mysql.MySQLError{Number: 1451}, domain.ErrReferential},
		{"mysql check", &mysql.MySQLError{Number: 3819}, domain.ErrValidation},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, domain.ErrConflict},
		{"wrapped", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), domain.ErrConflict},
		{"plain", fmt.Errorf("connection reset"), domain.ErrStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)

			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func Test_classify_PassesThroughNoRows(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.Same(t, sql.ErrNoRows, classify(sql.ErrNoRows))
}

func Test_escapeLike(t *testing.T) {
	assert.Equal(t, "50!% off!!", escapeLike("50% off!"))
	assert.Equal(t, "snake!_case", escapeLike("snake_case"))
}
