package service

import (
	"context"
	"sort"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/punchamoorthee/lendingledger/internal/domain"
	"github.com/punchamoorthee/lendingledger/internal/models"
	"github.com/punchamoorthee/lendingledger/internal/store"
)

const (
	DefaultMonthlyLimit  = 12
	DefaultTopBooksLimit = 5
)

// ReportService computes read-only projections over the catalog and the ledger.
type ReportService struct {
	db    *store.DB
	today func() domain.Date
}

func NewReportService(db *store.DB, opts ...Option) *ReportService {
	o := buildOptions(opts)
	return &ReportService{db: db, today: o.today}
}

func countWhen(cond exp.Expression) exp.LiteralExpression {
	return goqu.L("COUNT(CASE WHEN ? THEN 1 END)", cond)
}

// Statistics counts loans by effective status.
func (s *ReportService) Statistics(ctx context.Context) (*models.Statistics, error) {
	status := effectiveStatus(s.today())
	var stats models.Statistics
	err := s.db.Get(ctx, &stats, s.db.SQL().From(goqu.T("borrow_records").As("br")).Select(
		countWhen(goqu.L("? = ?", status, string(domain.LoanActive))).As("active_borrows"),
		countWhen(goqu.L("? = ?", status, string(domain.LoanReturned))).As("returned_books"),
		countWhen(goqu.L("? = ?", status, string(domain.LoanOverdue))).As("overdue_books"),
		goqu.COUNT("*").As("total_records"),
	))
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

type monthCount struct {
	Month string `db:"month"`
	Total int    `db:"total"`
}

// MonthlyTrend reports borrows per borrow month and returns per return month, most recent month
// first. limit <= 0 means DefaultMonthlyLimit.
func (s *ReportService) MonthlyTrend(ctx context.Context, limit int) ([]models.MonthlyStat, error) {
	if limit <= 0 {
		limit = DefaultMonthlyLimit
	}

	borrows, err := s.countByMonth(ctx, "borrow_date", limit)
	if err != nil {
		return nil, err
	}
	returns, err := s.countByMonth(ctx, "return_date", limit)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]*models.MonthlyStat)
	stat := func(month string) *models.MonthlyStat {
		if m, ok := byMonth[month]; ok {
			return m
		}
		m := &models.MonthlyStat{Month: month}
		byMonth[month] = m
		return m
	}
	for _, c := range borrows {
		stat(c.Month).Borrows = c.Total
	}
	for _, c := range returns {
		stat(c.Month).Returns = c.Total
	}

	out := make([]models.MonthlyStat, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ReportService) countByMonth(ctx context.Context, column string, limit int) ([]monthCount, error) {
	d := s.db.SQL()
	month := d.Month(goqu.I(column))
	counts := []monthCount{}
	err := s.db.Select(ctx, &counts, d.From("borrow_records").
		Select(month.As("month"), goqu.COUNT("*").As("total")).
		Where(goqu.C(column).IsNotNull()).
		GroupBy(month).
		Order(goqu.C("month").Desc()).
		Limit(uint(limit)))
	return counts, err
}

// TopBooks ranks books by number of loans. Equal counts are ordered by book id.
func (s *ReportService) TopBooks(ctx context.Context, limit int) ([]models.TopBook, error) {
	if limit <= 0 {
		limit = DefaultTopBooksLimit
	}
	top := []models.TopBook{}
	err := s.db.Select(ctx, &top, s.db.SQL().From(goqu.T("borrow_records").As("br")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("br.book_id").Eq(goqu.I("b.id")))).
		Select(goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author"), goqu.COUNT("*").As("borrow_count")).
		GroupBy(goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author")).
		Order(goqu.COUNT("*").Desc(), goqu.I("b.id").Asc()).
		Limit(uint(limit)))
	if err != nil {
		return nil, err
	}
	return top, nil
}

// Dashboard runs one count per figure.
func (s *ReportService) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	var (
		dash models.Dashboard
		err  error
	)
	if dash.TotalBooks, err = store.Count(ctx, s.db, "books"); err != nil {
		return nil, err
	}
	if dash.ActiveMembers, err = store.Count(ctx, s.db, "members", goqu.C("status").Eq(string(domain.MemberActive))); err != nil {
		return nil, err
	}
	if dash.BooksBorrowed, err = store.OpenLoans(ctx, s.db); err != nil {
		return nil, err
	}
	if dash.OverdueBooks, err = s.OverdueCount(ctx); err != nil {
		return nil, err
	}
	return &dash, nil
}

// OverdueCount is the number of open loans past due.
func (s *ReportService) OverdueCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.Get(ctx, &n, s.db.SQL().From(goqu.T("borrow_records").As("br")).
		Select(goqu.COUNT("*")).
		Where(overdue(s.today())))
	return n, err
}
