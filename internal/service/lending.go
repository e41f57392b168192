package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/lendingledger/internal/domain"
	"github.com/punchamoorthee/lendingledger/internal/store"
)

type options struct {
	today  func() domain.Date
	logger *slog.Logger
}

// Option configures a service.
type Option func(*options)

// WithClock replaces the source of "today" used for due dates, fines and overdue checks.
func WithClock(today func() domain.Date) Option {
	return func(o *options) { o.today = today }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := options{today: domain.Today, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LendingService is the lending ledger. It is the only writer of loan records and of the
// availability changes that loans cause.
type LendingService struct {
	db     *store.DB
	today  func() domain.Date
	logger *slog.Logger
}

func NewLendingService(db *store.DB, opts ...Option) *LendingService {
	o := buildOptions(opts)
	return &LendingService{db: db, today: o.today, logger: o.logger}
}

// overdue matches open loans whose due date has passed, whatever their stored status says.
func overdue(today domain.Date) exp.Expression {
	return goqu.And(
		goqu.I("br.return_date").IsNull(),
		goqu.I("br.status").In(string(domain.LoanActive), string(domain.LoanOverdue)),
		goqu.I("br.due_date").Lt(today),
	)
}

// effectiveStatus is the status reported on every read path. Overdue is derived from the due
// date alone: a stored overdue whose due date has not passed reads as active.
func effectiveStatus(today domain.Date) exp.LiteralExpression {
	return goqu.L("CASE WHEN ? THEN 'overdue' WHEN ? = 'overdue' THEN 'active' ELSE ? END",
		overdue(today), goqu.I("br.status"), goqu.I("br.status"))
}

func loanSelect(q store.Querier, today domain.Date) *goqu.SelectDataset {
	return q.SQL().From(goqu.T("borrow_records").As("br")).
		Join(goqu.T("members").As("m"), goqu.On(goqu.I("br.member_id").Eq(goqu.I("m.id")))).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("br.book_id").Eq(goqu.I("b.id")))).
		Select(
			goqu.I("br.id"),
			goqu.I("br.member_id"),
			goqu.I("br.book_id"),
			goqu.I("m.name").As("member_name"),
			goqu.I("b.title").As("book_title"),
			goqu.I("br.borrow_date"),
			goqu.I("br.due_date"),
			goqu.I("br.return_date"),
			effectiveStatus(today).As("status"),
			goqu.I("br.fine_amount"),
		)
}

func (s *LendingService) selectLoans(ctx context.Context, q store.Querier, build func(*goqu.SelectDataset) *goqu.SelectDataset) ([]domain.Loan, error) {
	today := s.today()
	loans := []domain.Loan{}
	if err := q.Select(ctx, &loans, build(loanSelect(q, today))); err != nil {
		return nil, err
	}
	for i := range loans {
		withDaysOverdue(&loans[i], today)
	}
	return loans, nil
}

func (s *LendingService) getLoan(ctx context.Context, q store.Querier, id int64) (*domain.Loan, error) {
	today := s.today()
	var loan domain.Loan
	err := q.Get(ctx, &loan, loanSelect(q, today).Where(goqu.I("br.id").Eq(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.ErrNotFound, "loan %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	withDaysOverdue(&loan, today)
	return &loan, nil
}

func withDaysOverdue(loan *domain.Loan, today domain.Date) {
	if loan.Status == domain.LoanOverdue && loan.ReturnDate == nil {
		loan.DaysOverdue = today.DaysSince(loan.DueDate)
	}
}

// Create opens a loan and takes one copy of the book, or fails without changing anything.
func (s *LendingService) Create(ctx context.Context, req domain.LoanRequest) (id int64, err error) {
	defer func() { s.observe(ctx, "create", err) }()

	if err := req.Validate(); err != nil {
		return 0, err
	}
	today := s.today()

	err = s.db.WithTx(ctx, func(q store.Querier) error {
		d := q.SQL()

		// 1. Member row lock: loan creation is serialized per member
		if err := lockRow(ctx, q, "members", "status", "member", req.MemberID); err != nil {
			return err
		}
		var status domain.MemberStatus
		if err := q.Get(ctx, &status, d.From("members").Select("status").Where(goqu.C("id").Eq(req.MemberID))); err != nil {
			return err
		}
		if status != domain.MemberActive {
			return domain.Errorf(domain.ErrValidation, "member %d is %s and cannot borrow", req.MemberID, status)
		}

		// 2. Lending policy
		policy, err := store.LoadSettings(ctx, q)
		if err != nil {
			return err
		}
		borrowDate, dueDate := req.BorrowDate, req.DueDate
		if borrowDate.IsZero() {
			borrowDate = today
		}
		if dueDate.IsZero() {
			dueDate = borrowDate.AddDays(policy.BorrowDurationDays)
		}
		if dueDate.Before(borrowDate) {
			return domain.Errorf(domain.ErrValidation, "due_date %s is before borrow_date %s", dueDate, borrowDate)
		}

		open, err := store.OpenLoans(ctx, q, goqu.C("member_id").Eq(req.MemberID))
		if err != nil {
			return err
		}
		if policy.BorrowLimit > 0 && open >= policy.BorrowLimit {
			return domain.Errorf(domain.ErrValidation, "member %d has reached the borrow limit of %d", req.MemberID, policy.BorrowLimit)
		}
		held, err := store.OpenLoans(ctx, q, goqu.C("member_id").Eq(req.MemberID), goqu.C("book_id").Eq(req.BookID))
		if err != nil {
			return err
		}
		if held > 0 {
			return domain.Errorf(domain.ErrValidation, "member %d already has book %d on loan", req.MemberID, req.BookID)
		}

		// 3. Conditional decrement: the book row lock is taken here
		n, err := q.Exec(ctx, d.Update("books").
			Set(goqu.Record{"available_copies": goqu.L("available_copies - 1")}).
			Where(goqu.C("id").Eq(req.BookID), goqu.C("available_copies").Gt(0)))
		if err != nil {
			return err
		}
		if n == 0 {
			found, err := store.Exists(ctx, q, "books", goqu.C("id").Eq(req.BookID))
			if err != nil {
				return err
			}
			if !found {
				return domain.Errorf(domain.ErrNotFound, "book %d not found", req.BookID)
			}
			return domain.Errorf(domain.ErrCapacity, "book %d has no available copies", req.BookID)
		}

		// 4. Loan record
		id, err = q.InsertID(ctx, d.Insert("borrow_records").Rows(goqu.Record{
			"member_id":   req.MemberID,
			"book_id":     req.BookID,
			"borrow_date": borrowDate,
			"due_date":    dueDate,
			"status":      string(domain.LoanActive),
			"fine_amount": decimal.Zero,
		}))
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "loan created", "loan_id", id, "member_id", req.MemberID, "book_id", req.BookID)
	return id, nil
}

// loanState is the part of a loan the write paths need before changing it.
type loanState struct {
	BookID     int64        `db:"book_id"`
	DueDate    domain.Date  `db:"due_date"`
	ReturnDate *domain.Date `db:"return_date"`
}

func lockLoan(ctx context.Context, q store.Querier, id int64) (loanState, error) {
	var cur loanState
	if err := lockRow(ctx, q, "borrow_records", "status", "loan", id); err != nil {
		return cur, err
	}
	err := q.Get(ctx, &cur, q.SQL().From("borrow_records").
		Select("book_id", "due_date", "return_date").
		Where(goqu.C("id").Eq(id)))
	return cur, err
}

// RecordReturn closes an open loan, charges any late fine and gives the copy back.
func (s *LendingService) RecordReturn(ctx context.Context, id int64) (loan *domain.Loan, err error) {
	defer func() { s.observe(ctx, "return", err) }()
	today := s.today()

	err = s.db.WithTx(ctx, func(q store.Querier) error {
		// 1. Loan row lock, then the returned check
		cur, err := lockLoan(ctx, q, id)
		if err != nil {
			return err
		}
		if cur.ReturnDate != nil {
			return domain.Errorf(domain.ErrAlreadyReturned, "loan %d was returned on %s", id, cur.ReturnDate)
		}

		// 2. Fine
		policy, err := store.LoadSettings(ctx, q)
		if err != nil {
			return err
		}
		fine := decimal.Zero
		if policy.EnableFine {
			fine = Fine(cur.DueDate, today, policy.LateFeePerDay, policy.GracePeriodDays)
		}

		// 3. Close the loan; the return_date guard makes a racing second return affect nothing
		n, err := q.Exec(ctx, q.SQL().Update("borrow_records").
			Set(goqu.Record{
				"return_date": today,
				"status":      string(domain.LoanReturned),
				"fine_amount": fine,
			}).
			Where(goqu.C("id").Eq(id), goqu.C("return_date").IsNull()))
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.Errorf(domain.ErrAlreadyReturned, "loan %d already returned", id)
		}

		// 4. Give the copy back
		if err := s.releaseCopy(ctx, q, cur.BookID); err != nil {
			return err
		}

		loan, err = s.getLoan(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan returned", "loan_id", id, "book_id", loan.BookID, "fine", loan.FineAmount.StringFixed(2))
	return loan, nil
}

// releaseCopy increments availability without letting it pass total_copies.
func (s *LendingService) releaseCopy(ctx context.Context, q store.Querier, bookID int64) error {
	n, err := q.Exec(ctx, q.SQL().Update("books").
		Set(goqu.Record{"available_copies": goqu.L("available_copies + 1")}).
		Where(goqu.C("id").Eq(bookID), goqu.C("available_copies").Lt(goqu.C("total_copies"))))
	if err != nil {
		return err
	}
	if n == 0 {
		// Only reachable after an administrative status correction reopened a loan.
		s.logger.WarnContext(ctx, "availability already at total copies", "book_id", bookID)
	}
	return nil
}

// Update applies an administrative correction to a loan. Availability counters are left alone;
// return_date follows the new status.
func (s *LendingService) Update(ctx context.Context, id int64, p domain.LoanPatch) (loan *domain.Loan, err error) {
	defer func() { s.observe(ctx, "update", err) }()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	today := s.today()

	err = s.db.WithTx(ctx, func(q store.Querier) error {
		cur, err := lockLoan(ctx, q, id)
		if err != nil {
			return err
		}

		rec := goqu.Record{}
		if p.Status != nil {
			if *p.Status == domain.LoanOverdue && !cur.DueDate.Before(today) {
				return domain.Errorf(domain.ErrValidation, "loan %d is not past its due date %s", id, cur.DueDate)
			}
			rec["status"] = string(*p.Status)
			switch {
			case *p.Status == domain.LoanReturned && cur.ReturnDate == nil:
				rec["return_date"] = today
			case *p.Status != domain.LoanReturned && cur.ReturnDate != nil:
				rec["return_date"] = nil
			}
		}
		if p.FineAmount != nil {
			rec["fine_amount"] = p.FineAmount.Round(2)
		}

		if _, err := q.Exec(ctx, q.SQL().Update("borrow_records").Set(rec).Where(goqu.C("id").Eq(id))); err != nil {
			return err
		}
		loan, err = s.getLoan(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Delete removes a loan. Deleting an open loan gives its copy back.
func (s *LendingService) Delete(ctx context.Context, id int64) (err error) {
	defer func() { s.observe(ctx, "delete", err) }()

	err = s.db.WithTx(ctx, func(q store.Querier) error {
		cur, err := lockLoan(ctx, q, id)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, q.SQL().Delete("borrow_records").Where(goqu.C("id").Eq(id))); err != nil {
			return err
		}
		if cur.ReturnDate == nil {
			return s.releaseCopy(ctx, q, cur.BookID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "loan deleted", "loan_id", id)
	return nil
}

func (s *LendingService) Get(ctx context.Context, id int64) (*domain.Loan, error) {
	return s.getLoan(ctx, s.db, id)
}

// List returns every loan, most recent borrow first.
func (s *LendingService) List(ctx context.Context) ([]domain.Loan, error) {
	return s.selectLoans(ctx, s.db, func(ds *goqu.SelectDataset) *goqu.SelectDataset {
		return ds.Order(goqu.I("br.borrow_date").Desc(), goqu.I("br.id").Desc())
	})
}

func (s *LendingService) ListByMember(ctx context.Context, memberID int64) ([]domain.Loan, error) {
	return s.selectLoans(ctx, s.db, func(ds *goqu.SelectDataset) *goqu.SelectDataset {
		return ds.Where(goqu.I("br.member_id").Eq(memberID)).
			Order(goqu.I("br.borrow_date").Desc(), goqu.I("br.id").Desc())
	})
}

// ListByStatus filters on the effective status, earliest due date first.
func (s *LendingService) ListByStatus(ctx context.Context, status domain.LoanStatus) ([]domain.Loan, error) {
	if !status.Valid() {
		return nil, domain.Errorf(domain.ErrValidation, "invalid loan status %q", status)
	}
	today := s.today()
	return s.selectLoans(ctx, s.db, func(ds *goqu.SelectDataset) *goqu.SelectDataset {
		return ds.Where(goqu.L("? = ?", effectiveStatus(today), string(status))).
			Order(goqu.I("br.due_date").Asc(), goqu.I("br.id").Asc())
	})
}

// ListOverdue returns open loans past their due date, stored status notwithstanding.
func (s *LendingService) ListOverdue(ctx context.Context) ([]domain.Loan, error) {
	today := s.today()
	return s.selectLoans(ctx, s.db, func(ds *goqu.SelectDataset) *goqu.SelectDataset {
		return ds.Where(overdue(today)).
			Order(goqu.I("br.due_date").Asc(), goqu.I("br.id").Asc())
	})
}

// RefreshOverdue persists the overdue classification for open loans past due and reports how
// many rows changed. Reads never depend on it.
func (s *LendingService) RefreshOverdue(ctx context.Context) (n int64, err error) {
	defer func() { s.observe(ctx, "refresh_overdue", err) }()

	n, err = s.db.Exec(ctx, s.db.SQL().Update("borrow_records").
		Set(goqu.Record{"status": string(domain.LoanOverdue)}).
		Where(
			goqu.C("status").Eq(string(domain.LoanActive)),
			goqu.C("return_date").IsNull(),
			goqu.C("due_date").Lt(s.today()),
		))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "loans marked overdue", "count", n)
	}
	return n, nil
}

func lockRow(ctx context.Context, q store.Querier, table, column, noun string, id int64) error {
	err := store.LockRow(ctx, q, table, column, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Errorf(domain.ErrNotFound, "%s %d not found", noun, id)
	}
	return err
}

func (s *LendingService) observe(ctx context.Context, op string, err error) {
	outcome := outcomeOf(err)
	ledgerOps.WithLabelValues(op, outcome).Inc()
	if err != nil {
		s.logger.DebugContext(ctx, "ledger operation rejected", "operation", op, "outcome", outcome, "error", err.Error())
	}
}
