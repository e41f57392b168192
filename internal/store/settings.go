package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/doug-martin/goqu/v9"

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

// settingsID is the key of the single settings row.
const settingsID = 1

var settingsColumns = []any{
	"id",
	"library_name", "email", "phone", "address",
	"borrow_limit", "borrow_duration_days", "late_fee_per_day", "grace_period_days",
	"enable_notifications", "enable_fine",
}

func settingsRecord(s domain.Settings) goqu.Record {
	return goqu.Record{
		"id":                   settingsID,
		"library_name":         s.LibraryName,
		"email":                s.Email,
		"phone":                s.Phone,
		"address":              s.Address,
		"borrow_limit":         s.BorrowLimit,
		"borrow_duration_days": s.BorrowDurationDays,
		"late_fee_per_day":     s.LateFeePerDay,
		"grace_period_days":    s.GracePeriodDays,
		"enable_notifications": s.EnableNotifications,
		"enable_fine":          s.EnableFine,
	}
}

// LoadSettings reads the lending policy through q, so a ledger transaction sees a consistent row.
func LoadSettings(ctx context.Context, q Querier) (domain.Settings, error) {
	var s domain.Settings
	err := q.Get(ctx, &s, q.SQL().From("settings").
		Select(settingsColumns...).
		Where(goqu.C("id").Eq(settingsID)))
	if errors.Is(err, sql.ErrNoRows) {
		return s, domain.Errorf(domain.ErrNotFound, "settings row missing, run migrate")
	}
	return s, err
}

// SettingsStore manages the library profile and lending policy.
type SettingsStore struct {
	db *DB
}

func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(ctx context.Context) (domain.Settings, error) {
	return LoadSettings(ctx, s.db)
}

// Update applies the present fields of p and returns the resulting settings.
func (s *SettingsStore) Update(ctx context.Context, p domain.SettingsPatch) (domain.Settings, error) {
	if err := p.Validate(); err != nil {
		return domain.Settings{}, err
	}

	var out domain.Settings
	err := s.db.WithTx(ctx, func(q Querier) error {
		cur, err := LoadSettings(ctx, q)
		if err != nil {
			return err
		}

		if p.LibraryName != nil {
			cur.LibraryName = strings.TrimSpace(*p.LibraryName)
		}
		if p.Email != nil {
			cur.Email = strings.TrimSpace(*p.Email)
		}
		if p.Phone != nil {
			cur.Phone = strings.TrimSpace(*p.Phone)
		}
		if p.Address != nil {
			cur.Address = strings.TrimSpace(*p.Address)
		}
		if p.BorrowLimit != nil {
			cur.BorrowLimit = *p.BorrowLimit
		}
		if p.BorrowDurationDays != nil {
			cur.BorrowDurationDays = *p.BorrowDurationDays
		}
		if p.LateFeePerDay != nil {
			cur.LateFeePerDay = *p.LateFeePerDay
		}
		if p.GracePeriodDays != nil {
			cur.GracePeriodDays = *p.GracePeriodDays
		}
		if p.EnableNotifications != nil {
			cur.EnableNotifications = *p.EnableNotifications
		}
		if p.EnableFine != nil {
			cur.EnableFine = *p.EnableFine
		}

		rec := settingsRecord(cur)
		delete(rec, "id")
		if _, err := q.Exec(ctx, q.SQL().Update("settings").Set(rec).Where(goqu.C("id").Eq(settingsID))); err != nil {
			return err
		}
		out = cur
		return nil
	})
	return out, err
}
