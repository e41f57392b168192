package domain

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// BookStatus is the stock classification derived from a book's copy counters.
type BookStatus string

const (
	BookAvailable  BookStatus = "available"
	BookLowStock   BookStatus = "low-stock"
	BookOutOfStock BookStatus = "out-of-stock"
)

// StockStatus classifies available against total copies.
func StockStatus(available, total int) BookStatus {
	switch {
	case available == 0:
		return BookOutOfStock
	case available < total/3:
		return BookLowStock
	default:
		return BookAvailable
	}
}

// Book is a catalog title and its copy counters.
// Invariant: 0 <= AvailableCopies <= TotalCopies.
type Book struct {
	ID              int64      `json:"id" db:"id"`
	ISBN            string     `json:"isbn" db:"isbn"`
	Title           string     `json:"title" db:"title"`
	Author          string     `json:"author" db:"author"`
	Category        string     `json:"category" db:"category"`
	PublicationYear int        `json:"publication_year" db:"publication_year"`
	TotalCopies     int        `json:"total_copies" db:"total_copies"`
	AvailableCopies int        `json:"available_copies" db:"available_copies"`
	Status          BookStatus `json:"status" db:"-"`
}

// OnLoan is the number of copies currently held by members.
func (b Book) OnLoan() int { return b.TotalCopies - b.AvailableCopies }

// BookInput is the payload accepted when adding a book to the catalog.
type BookInput struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	ISBN     string `json:"isbn"`
	Category string `json:"category"`
	Copies   *int   `json:"copies"`
	Year     int    `json:"year"`
}

func (in BookInput) Validate() error {
	var missing []string
	for field, v := range map[string]string{"title": in.Title, "author": in.Author, "isbn": in.ISBN, "category": in.Category} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if in.Copies == nil {
		missing = append(missing, "copies")
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return Errorf(ErrValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if *in.Copies < 0 {
		return Errorf(ErrValidation, "copies must be >= 0")
	}
	if in.Year < 0 {
		return Errorf(ErrValidation, "year must be >= 0")
	}
	return nil
}

// BookPatch lists the book fields an update may change. Nil fields are left untouched.
// A TotalCopies change shifts AvailableCopies by the same delta.
type BookPatch struct {
	Title           *string `json:"title,omitempty"`
	Author          *string `json:"author,omitempty"`
	ISBN            *string `json:"isbn,omitempty"`
	Category        *string `json:"category,omitempty"`
	TotalCopies     *int    `json:"total_copies,omitempty"`
	PublicationYear *int    `json:"publication_year,omitempty"`
}

func (p BookPatch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.ISBN == nil && p.Category == nil &&
		p.TotalCopies == nil && p.PublicationYear == nil
}

func (p BookPatch) Validate() error {
	if p.IsEmpty() {
		return Errorf(ErrValidation, "no fields to update")
	}
	for field, v := range map[string]*string{"title": p.Title, "author": p.Author, "isbn": p.ISBN, "category": p.Category} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return Errorf(ErrValidation, "%s must not be empty", field)
		}
	}
	if p.TotalCopies != nil && *p.TotalCopies < 0 {
		return Errorf(ErrValidation, "total_copies must be >= 0")
	}
	if p.PublicationYear != nil && *p.PublicationYear < 0 {
		return Errorf(ErrValidation, "publication_year must be >= 0")
	}
	return nil
}

// MemberStatus gates whether a member may open new loans.
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberSuspended MemberStatus = "suspended"
	MemberInactive  MemberStatus = "inactive"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberActive, MemberSuspended, MemberInactive:
		return true
	}
	return false
}

// Member is a registered library patron. MemberCode is the external card number.
type Member struct {
	ID         int64        `json:"id" db:"id"`
	MemberCode string       `json:"member_id" db:"member_code"`
	Name       string       `json:"name" db:"name"`
	Email      string       `json:"email" db:"email"`
	Phone      string       `json:"phone" db:"phone"`
	Address    string       `json:"address" db:"address"`
	Status     MemberStatus `json:"status" db:"status"`
	JoinDate   Date         `json:"join_date" db:"join_date"`
}

// MemberInput is the payload accepted when registering a member.
type MemberInput struct {
	MemberCode string `json:"member_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	JoinDate   Date   `json:"join_date"`
}

func (in MemberInput) Validate() error {
	var missing []string
	for field, v := range map[string]string{"member_id": in.MemberCode, "name": in.Name, "email": in.Email} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return Errorf(ErrValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if !strings.Contains(in.Email, "@") {
		return Errorf(ErrValidation, "invalid email %q", in.Email)
	}
	return nil
}

// MemberPatch lists the member fields an update may change. Nil fields are left untouched.
type MemberPatch struct {
	Name    *string       `json:"name,omitempty"`
	Email   *string       `json:"email,omitempty"`
	Phone   *string       `json:"phone,omitempty"`
	Address *string       `json:"address,omitempty"`
	Status  *MemberStatus `json:"status,omitempty"`
}

func (p MemberPatch) Validate() error {
	if p.Name == nil && p.Email == nil && p.Phone == nil && p.Address == nil && p.Status == nil {
		return Errorf(ErrValidation, "no fields to update")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return Errorf(ErrValidation, "name must not be empty")
	}
	if p.Email != nil && !strings.Contains(*p.Email, "@") {
		return Errorf(ErrValidation, "invalid email %q", *p.Email)
	}
	if p.Status != nil && !p.Status.Valid() {
		return Errorf(ErrValidation, "invalid member status %q", *p.Status)
	}
	return nil
}

// LoanStatus is the lending state of a loan. Overdue is derived from the due date on read.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
	LoanOverdue  LoanStatus = "overdue"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanActive, LoanReturned, LoanOverdue:
		return true
	}
	return false
}

// Open reports whether the loan still holds a copy.
func (s LoanStatus) Open() bool { return s == LoanActive || s == LoanOverdue }

// Loan is one copy of a book held by one member.
// ReturnDate is set if and only if Status is LoanReturned.
type Loan struct {
	ID          int64           `json:"id" db:"id"`
	MemberID    int64           `json:"member_id" db:"member_id"`
	BookID      int64           `json:"book_id" db:"book_id"`
	MemberName  string          `json:"member_name" db:"member_name"`
	BookTitle   string          `json:"book_title" db:"book_title"`
	BorrowDate  Date            `json:"borrow_date" db:"borrow_date"`
	DueDate     Date            `json:"due_date" db:"due_date"`
	ReturnDate  *Date           `json:"return_date" db:"return_date"`
	Status      LoanStatus      `json:"status" db:"status"`
	FineAmount  decimal.Decimal `json:"fine_amount" db:"fine_amount"`
	DaysOverdue int             `json:"days_overdue,omitempty" db:"-"`
}

// LoanRequest opens a loan. Zero dates default to today and today plus the configured duration.
type LoanRequest struct {
	MemberID   int64 `json:"member_id"`
	BookID     int64 `json:"book_id"`
	BorrowDate Date  `json:"borrow_date"`
	DueDate    Date  `json:"due_date"`
}

func (r LoanRequest) Validate() error {
	if r.MemberID <= 0 {
		return Errorf(ErrValidation, "member_id is required")
	}
	if r.BookID <= 0 {
		return Errorf(ErrValidation, "book_id is required")
	}
	if !r.BorrowDate.IsZero() && !r.DueDate.IsZero() && r.DueDate.Before(r.BorrowDate) {
		return Errorf(ErrValidation, "due_date %s is before borrow_date %s", r.DueDate, r.BorrowDate)
	}
	return nil
}

// LoanPatch is an administrative correction. It never touches availability counters.
type LoanPatch struct {
	Status     *LoanStatus      `json:"status,omitempty"`
	FineAmount *decimal.Decimal `json:"fine_amount,omitempty"`
}

func (p LoanPatch) Validate() error {
	if p.Status == nil && p.FineAmount == nil {
		return Errorf(ErrValidation, "no fields to update")
	}
	if p.Status != nil && !p.Status.Valid() {
		return Errorf(ErrValidation, "invalid loan status %q", *p.Status)
	}
	if p.FineAmount != nil && p.FineAmount.IsNegative() {
		return Errorf(ErrValidation, "fine_amount must be >= 0")
	}
	return nil
}

// Settings is the library-wide lending policy, a singleton row.
type Settings struct {
	ID                  int64           `json:"id" db:"id"`
	LibraryName         string          `json:"library_name" db:"library_name"`
	Email               string          `json:"email" db:"email"`
	Phone               string          `json:"phone" db:"phone"`
	Address             string          `json:"address" db:"address"`
	BorrowLimit         int             `json:"borrow_limit" db:"borrow_limit"`
	BorrowDurationDays  int             `json:"borrow_duration_days" db:"borrow_duration_days"`
	LateFeePerDay       decimal.Decimal `json:"late_fee_per_day" db:"late_fee_per_day"`
	GracePeriodDays     int             `json:"grace_period_days" db:"grace_period_days"`
	EnableNotifications bool            `json:"enable_notifications" db:"enable_notifications"`
	EnableFine          bool            `json:"enable_fine" db:"enable_fine"`
}

// DefaultSettings is the policy row written by the first migration.
func DefaultSettings() Settings {
	return Settings{
		ID:                  1,
		LibraryName:         "Library",
		BorrowLimit:         5,
		BorrowDurationDays:  14,
		LateFeePerDay:       decimal.RequireFromString("0.50"),
		EnableNotifications: true,
		EnableFine:          true,
	}
}

// SettingsPatch lists the policy fields an update may change.
type SettingsPatch struct {
	LibraryName         *string          `json:"library_name,omitempty"`
	Email               *string          `json:"email,omitempty"`
	Phone               *string          `json:"phone,omitempty"`
	Address             *string          `json:"address,omitempty"`
	BorrowLimit         *int             `json:"borrow_limit,omitempty"`
	BorrowDurationDays  *int             `json:"borrow_duration_days,omitempty"`
	LateFeePerDay       *decimal.Decimal `json:"late_fee_per_day,omitempty"`
	GracePeriodDays     *int             `json:"grace_period_days,omitempty"`
	EnableNotifications *bool            `json:"enable_notifications,omitempty"`
	EnableFine          *bool            `json:"enable_fine,omitempty"`
}

func (p SettingsPatch) Validate() error {
	if p == (SettingsPatch{}) {
		return Errorf(ErrValidation, "no fields to update")
	}
	if p.BorrowLimit != nil && *p.BorrowLimit < 0 {
		return Errorf(ErrValidation, "borrow_limit must be >= 0")
	}
	if p.BorrowDurationDays != nil && *p.BorrowDurationDays <= 0 {
		return Errorf(ErrValidation, "borrow_duration_days must be > 0")
	}
	if p.GracePeriodDays != nil && *p.GracePeriodDays < 0 {
		return Errorf(ErrValidation, "grace_period_days must be >= 0")
	}
	if p.LateFeePerDay != nil && p.LateFeePerDay.IsNegative() {
		return Errorf(ErrValidation, "late_fee_per_day must be >= 0")
	}
	return nil
}
