package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/doug-martin/goqu/v9"

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

var bookColumns = []any{
	"id", "isbn", "title", "author", "category",
	"publication_year", "total_copies", "available_copies",
}

// BookStore owns the catalog. Loans change available_copies through the lending service only.
type BookStore struct {
	db *DB
}

func NewBookStore(db *DB) *BookStore {
	return &BookStore{db: db}
}

// List returns every book ordered by title.
func (s *BookStore) List(ctx context.Context) ([]domain.Book, error) {
	books := []domain.Book{}
	err := s.db.Select(ctx, &books, s.db.SQL().From("books").
		Select(bookColumns...).
		Order(goqu.C("title").Asc(), goqu.C("id").Asc()))
	if err != nil {
		return nil, err
	}
	withStockStatus(books)
	return books, nil
}

// Get retrieves a single book by ID.
func (s *BookStore) Get(ctx context.Context, id int64) (*domain.Book, error) {
	return getBook(ctx, s.db, id)
}

// Search matches text against title or author, optionally narrowed to one category.
// An empty category or "all" disables the category filter.
func (s *BookStore) Search(ctx context.Context, text, category string) ([]domain.Book, error) {
	d := s.db.SQL()
	ds := d.From("books").Select(bookColumns...)
	if text = strings.TrimSpace(text); text != "" {
		ds = ds.Where(goqu.Or(d.Contains(goqu.C("title"), text), d.Contains(goqu.C("author"), text)))
	}
	if category = strings.TrimSpace(category); category != "" && !strings.EqualFold(category, "all") {
		ds = ds.Where(goqu.C("category").Eq(category))
	}

	books := []domain.Book{}
	if err := s.db.Select(ctx, &books, ds.Order(goqu.C("title").Asc(), goqu.C("id").Asc())); err != nil {
		return nil, err
	}
	withStockStatus(books)
	return books, nil
}

// Create adds a book with all of its copies available.
func (s *BookStore) Create(ctx context.Context, in domain.BookInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	isbn := strings.TrimSpace(in.ISBN)

	var id int64
	err := s.db.WithTx(ctx, func(q Querier) error {
		taken, err := Exists(ctx, q, "books", goqu.C("isbn").Eq(isbn))
		if err != nil {
			return err
		}
		if taken {
			return domain.Errorf(domain.ErrValidation, "isbn %q already exists", isbn)
		}

		id, err = q.InsertID(ctx, q.SQL().Insert("books").Rows(goqu.Record{
			"isbn":             isbn,
			"title":            strings.TrimSpace(in.Title),
			"author":           strings.TrimSpace(in.Author),
			"category":         strings.TrimSpace(in.Category),
			"publication_year": in.Year,
			"total_copies":     *in.Copies,
			"available_copies": *in.Copies,
		}))
		return err
	})
	return id, err
}

// Update applies the supplied fields. Changing total_copies moves available_copies by the same
// delta; it fails when more copies are on loan than the new total.
func (s *BookStore) Update(ctx context.Context, id int64, p domain.BookPatch) (*domain.Book, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var out *domain.Book
	err := s.db.WithTx(ctx, func(q Querier) error {
		if err := lockBook(ctx, q, id); err != nil {
			return err
		}
		book, err := getBook(ctx, q, id)
		if err != nil {
			return err
		}

		rec := goqu.Record{}
		if p.Title != nil {
			rec["title"] = strings.TrimSpace(*p.Title)
		}
		if p.Author != nil {
			rec["author"] = strings.TrimSpace(*p.Author)
		}
		if p.Category != nil {
			rec["category"] = strings.TrimSpace(*p.Category)
		}
		if p.PublicationYear != nil {
			rec["publication_year"] = *p.PublicationYear
		}
		if p.ISBN != nil {
			isbn := strings.TrimSpace(*p.ISBN)
			if isbn != book.ISBN {
				taken, err := Exists(ctx, q, "books", goqu.C("isbn").Eq(isbn), goqu.C("id").Neq(id))
				if err != nil {
					return err
				}
				if taken {
					return domain.Errorf(domain.ErrValidation, "isbn %q already exists", isbn)
				}
			}
			rec["isbn"] = isbn
		}
		if p.TotalCopies != nil {
			onLoan := book.OnLoan()
			if *p.TotalCopies < onLoan {
				return domain.Errorf(domain.ErrValidation,
					"total_copies %d is below the %d copies on loan", *p.TotalCopies, onLoan)
			}
			rec["total_copies"] = *p.TotalCopies
			rec["available_copies"] = *p.TotalCopies - onLoan
		}

		if _, err := q.Exec(ctx, q.SQL().Update("books").Set(rec).Where(goqu.C("id").Eq(id))); err != nil {
			return err
		}
		out, err = getBook(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a book and its closed loan history. It fails while any loan of the book is open.
func (s *BookStore) Delete(ctx context.Context, id int64) error {
	return s.db.WithTx(ctx, func(q Querier) error {
		if err := lockBook(ctx, q, id); err != nil {
			return err
		}
		open, err := OpenLoans(ctx, q, goqu.C("book_id").Eq(id))
		if err != nil {
			return err
		}
		if open > 0 {
			return domain.Errorf(domain.ErrReferential, "book %d has %d open loans", id, open)
		}
		_, err = q.Exec(ctx, q.SQL().Delete("books").Where(goqu.C("id").Eq(id)))
		return err
	})
}

func lockBook(ctx context.Context, q Querier, id int64) error {
	err := LockRow(ctx, q, "books", "available_copies", id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Errorf(domain.ErrNotFound, "book %d not found", id)
	}
	return err
}

func getBook(ctx context.Context, q Querier, id int64) (*domain.Book, error) {
	var book domain.Book
	err := q.Get(ctx, &book, q.SQL().From("books").Select(bookColumns...).Where(goqu.C("id").Eq(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.ErrNotFound, "book %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	book.Status = domain.StockStatus(book.AvailableCopies, book.TotalCopies)
	return &book, nil
}

func withStockStatus(books []domain.Book) {
	for i := range books {
		books[i].Status = domain.StockStatus(books[i].AvailableCopies, books[i].TotalCopies)
	}
}
