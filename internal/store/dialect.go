package store

import (
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // mysql dialect
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // sqlite3 dialect
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

// Dialect builds prepared statements for the connected database.
type Dialect struct {
	name      string
	wrapper   goqu.DialectWrapper
	returning bool
}

func newDialect(driver string) Dialect {
	switch driver {
	case DriverMySQL:
		return Dialect{name: "mysql", wrapper: goqu.Dialect("mysql")}
	case DriverSQLite:
		return Dialect{name: "sqlite3", wrapper: goqu.Dialect("sqlite3")}
	default:
		return Dialect{name: "postgres", wrapper: goqu.Dialect("postgres"), returning: true}
	}
}

// Name is the goqu dialect name: postgres, mysql or sqlite3.
func (d Dialect) Name() string { return d.name }

func (d Dialect) From(table ...any) *goqu.SelectDataset {
	return d.wrapper.From(table...).Prepared(true)
}

func (d Dialect) Insert(table any) *goqu.InsertDataset {
	return d.wrapper.Insert(table).Prepared(true)
}

func (d Dialect) Update(table any) *goqu.UpdateDataset {
	return d.wrapper.Update(table).Prepared(true)
}

func (d Dialect) Delete(table any) *goqu.DeleteDataset {
	return d.wrapper.Delete(table).Prepared(true)
}

// Month formats a DATE column as its YYYY-MM bucket.
func (d Dialect) Month(col exp.IdentifierExpression) exp.LiteralExpression {
	switch d.name {
	case "mysql":
		return goqu.L("DATE_FORMAT(?, '%Y-%m')", col)
	case "sqlite3":
		return goqu.L("strftime('%Y-%m', ?)", col)
	default:
		return goqu.L("to_char(?, 'YYYY-MM')", col)
	}
}

// Contains matches col case-insensitively against text as a substring.
// LIKE wildcards in text match literally.
func (d Dialect) Contains(col exp.IdentifierExpression, text string) exp.LiteralExpression {
	return goqu.L("LOWER(?) LIKE ? ESCAPE '!'", col, "%"+escapeLike(strings.ToLower(text))+"%")
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// LockRow takes the row lock on table.id by rewriting column to itself, which works the same on
// every dialect. It reports ErrNotFound when the row is absent.
func LockRow(ctx context.Context, q Querier, table, column string, id int64) error {
	n, err := q.Exec(ctx, q.SQL().Update(table).
		Set(goqu.Record{column: goqu.I(column)}).
		Where(goqu.C("id").Eq(id)))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Errorf(domain.ErrNotFound, "%s row %d not found", table, id)
	}
	return nil
}

// Count returns the number of rows in table matching where.
func Count(ctx context.Context, q Querier, table string, where ...exp.Expression) (int, error) {
	var n int
	err := q.Get(ctx, &n, q.SQL().From(table).Select(goqu.COUNT("*")).Where(where...))
	return n, err
}

// Exists reports whether any row in table matches where.
func Exists(ctx context.Context, q Querier, table string, where ...exp.Expression) (bool, error) {
	n, err := Count(ctx, q, table, where...)
	return n > 0, err
}

// OpenLoans counts loans without a return date that match where.
func OpenLoans(ctx context.Context, q Querier, where ...exp.Expression) (int, error) {
	return Count(ctx, q, "borrow_records", append(where, goqu.C("return_date").IsNull())...)
}
