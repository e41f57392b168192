// Package models holds the read-only projections served by the reporting endpoints.
package models

// Statistics counts loans by effective status.
type Statistics struct {
	ActiveBorrows int `json:"active_borrows" db:"active_borrows"`
	ReturnedBooks int `json:"returned_books" db:"returned_books"`
	OverdueBooks  int `json:"overdue_books" db:"overdue_books"`
	TotalRecords  int `json:"total_records" db:"total_records"`
}

// MonthlyStat is one YYYY-MM bucket of lending activity.
type MonthlyStat struct {
	Month   string `json:"month"`
	Borrows int    `json:"borrows"`
	Returns int    `json:"returns"`
}

type TopBook struct {
	ID          int64  `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Author      string `json:"author" db:"author"`
	BorrowCount int    `json:"borrow_count" db:"borrow_count"`
}

// Dashboard is the landing-page summary. BooksBorrowed counts open loans.
type Dashboard struct {
	TotalBooks    int `json:"total_books"`
	ActiveMembers int `json:"active_members"`
	BooksBorrowed int `json:"books_borrowed"`
	OverdueBooks  int `json:"overdue_books"`
}

type MemberStats struct {
	CurrentlyBorrowed int `json:"currently_borrowed" db:"currently_borrowed"`
	TotalBorrowed     int `json:"total_borrowed" db:"total_borrowed"`
}
