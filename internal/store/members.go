package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/punchamoorthee/lendingledger/internal/domain"
	"github.com/punchamoorthee/lendingledger/internal/models"
)

var memberColumns = []any{
	"id", "member_code", "name", "email", "phone", "address", "status", "join_date",
}

type MemberStore struct {
	db *DB
}

func NewMemberStore(db *DB) *MemberStore {
	return &MemberStore{db: db}
}

// List returns every member ordered by name.
func (s *MemberStore) List(ctx context.Context) ([]domain.Member, error) {
	return s.list(ctx)
}

func (s *MemberStore) Get(ctx context.Context, id int64) (*domain.Member, error) {
	var m domain.Member
	err := s.db.Get(ctx, &m, s.db.SQL().From("members").Select(memberColumns...).Where(goqu.C("id").Eq(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.ErrNotFound, "member %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Search matches text against name, email or member code.
func (s *MemberStore) Search(ctx context.Context, text string) ([]domain.Member, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.list(ctx)
	}
	d := s.db.SQL()
	return s.list(ctx, goqu.Or(
		d.Contains(goqu.C("name"), text),
		d.Contains(goqu.C("email"), text),
		d.Contains(goqu.C("member_code"), text),
	))
}

func (s *MemberStore) FilterByStatus(ctx context.Context, status domain.MemberStatus) ([]domain.Member, error) {
	if !status.Valid() {
		return nil, domain.Errorf(domain.ErrValidation, "invalid member status %q", status)
	}
	return s.list(ctx, goqu.C("status").Eq(string(status)))
}

func (s *MemberStore) list(ctx context.Context, where ...exp.Expression) ([]domain.Member, error) {
	members := []domain.Member{}
	err := s.db.Select(ctx, &members, s.db.SQL().From("members").
		Select(memberColumns...).
		Where(where...).
		Order(goqu.C("name").Asc(), goqu.C("id").Asc()))
	if err != nil {
		return nil, err
	}
	return members, nil
}

// Create registers an active member. A zero join date means today.
func (s *MemberStore) Create(ctx context.Context, in domain.MemberInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	code := strings.TrimSpace(in.MemberCode)
	email := strings.TrimSpace(in.Email)
	joined := in.JoinDate
	if joined.IsZero() {
		joined = domain.Today()
	}

	var id int64
	err := s.db.WithTx(ctx, func(q Querier) error {
		taken, err := Exists(ctx, q, "members", goqu.C("member_code").Eq(code))
		if err != nil {
			return err
		}
		if taken {
			return domain.Errorf(domain.ErrValidation, "member id %q already exists", code)
		}
		taken, err = Exists(ctx, q, "members", goqu.C("email").Eq(email))
		if err != nil {
			return err
		}
		if taken {
			return domain.Errorf(domain.ErrValidation, "email %q already registered", email)
		}

		id, err = q.InsertID(ctx, q.SQL().Insert("members").Rows(goqu.Record{
			"member_code": code,
			"name":        strings.TrimSpace(in.Name),
			"email":       email,
			"phone":       strings.TrimSpace(in.Phone),
			"address":     strings.TrimSpace(in.Address),
			"status":      string(domain.MemberActive),
			"join_date":   joined,
		}))
		return err
	})
	return id, err
}

// Update applies the supplied fields and returns the stored member.
func (s *MemberStore) Update(ctx context.Context, id int64, p domain.MemberPatch) (*domain.Member, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	err := s.db.WithTx(ctx, func(q Querier) error {
		if err := lockMember(ctx, q, id); err != nil {
			return err
		}

		rec := goqu.Record{}
		if p.Name != nil {
			rec["name"] = strings.TrimSpace(*p.Name)
		}
		if p.Email != nil {
			email := strings.TrimSpace(*p.Email)
			taken, err := Exists(ctx, q, "members", goqu.C("email").Eq(email), goqu.C("id").Neq(id))
			if err != nil {
				return err
			}
			if taken {
				return domain.Errorf(domain.ErrValidation, "email %q already registered", email)
			}
			rec["email"] = email
		}
		if p.Phone != nil {
			rec["phone"] = strings.TrimSpace(*p.Phone)
		}
		if p.Address != nil {
			rec["address"] = strings.TrimSpace(*p.Address)
		}
		if p.Status != nil {
			rec["status"] = string(*p.Status)
		}

		_, err := q.Exec(ctx, q.SQL().Update("members").Set(rec).Where(goqu.C("id").Eq(id)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a member and their closed loan history. It fails while the member holds open loans.
func (s *MemberStore) Delete(ctx context.Context, id int64) error {
	return s.db.WithTx(ctx, func(q Querier) error {
		if err := lockMember(ctx, q, id); err != nil {
			return err
		}
		open, err := OpenLoans(ctx, q, goqu.C("member_id").Eq(id))
		if err != nil {
			return err
		}
		if open > 0 {
			return domain.Errorf(domain.ErrReferential, "member %d has %d open loans", id, open)
		}
		_, err = q.Exec(ctx, q.SQL().Delete("members").Where(goqu.C("id").Eq(id)))
		return err
	})
}

// Stats counts the member's open loans and lifetime loans.
func (s *MemberStore) Stats(ctx context.Context, id int64) (*models.MemberStats, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	var stats models.MemberStats
	err := s.db.Get(ctx, &stats, s.db.SQL().From("borrow_records").
		Select(
			goqu.L("COUNT(CASE WHEN return_date IS NULL THEN 1 END)").As("currently_borrowed"),
			goqu.COUNT("*").As("total_borrowed"),
		).
		Where(goqu.C("member_id").Eq(id)))
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func lockMember(ctx context.Context, q Querier, id int64) error {
	err := LockRow(ctx, q, "members", "status", id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Errorf(domain.ErrNotFound, "member %d not found", id)
	}
	return err
}
