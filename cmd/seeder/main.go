package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/lendingledger/internal/config"
	"github.com/punchamoorthee/lendingledger/internal/domain"
	"github.com/punchamoorthee/lendingledger/internal/store"
)

const (
	TotalBooks    = 100
	TotalMembers  = 1000
	CopiesPerBook = 5
)

var categories = []string{"Fiction", "Science", "History", "Technology", "Art"}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), logger); err != nil {
		logger.Error("seeding failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, store.Options{Driver: cfg.DBDriver, DSN: cfg.DBSource, MaxConns: cfg.DBMaxConns, Logger: logger})
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer db.Close()

	logger.Info("--- Seeding Database ---")
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	count, err := store.Count(ctx, db, "books")
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("catalog not empty, skipping", "books", count)
		return nil
	}

	if cfg.DBDriver == store.DriverPGX {
		return copyRows(ctx, cfg.DBSource, logger)
	}
	return createRows(ctx, db, logger)
}

func bookInput(i int) domain.BookInput {
	copies := CopiesPerBook
	return domain.BookInput{
		Title:    fmt.Sprintf("Seed Book %03d", i),
		Author:   fmt.Sprintf("Author %02d", i%37),
		ISBN:     fmt.Sprintf("978-%010d", i),
		Category: categories[i%len(categories)],
		Copies:   &copies,
		Year:     1950 + i%70,
	}
}

func memberInput(i int, joined domain.Date) domain.MemberInput {
	return domain.MemberInput{
		MemberCode: fmt.Sprintf("M%05d", i),
		Name:       fmt.Sprintf("Member %d", i),
		Email:      fmt.Sprintf("member%d@example.com", i),
		JoinDate:   joined,
	}
}

// copyRows bulk loads through the postgres COPY protocol.
func copyRows(ctx context.Context, dsn string, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	books := make([][]any, 0, TotalBooks)
	for i := 1; i <= TotalBooks; i++ {
		in := bookInput(i)
		books = append(books, []any{in.ISBN, in.Title, in.Author, in.Category, in.Year, *in.Copies, *in.Copies})
	}
	n, err := conn.CopyFrom(ctx,
		pgx.Identifier{"books"},
		[]string{"isbn", "title", "author", "category", "publication_year", "total_copies", "available_copies"},
		pgx.CopyFromRows(books),
	)
	if err != nil {
		return fmt.Errorf("bulk insert books failed: %w", err)
	}
	logger.Info("seeded books", "count", n)

	joined := time.Now().UTC().Truncate(24 * time.Hour)
	members := make([][]any, 0, TotalMembers)
	for i := 1; i <= TotalMembers; i++ {
		in := memberInput(i, domain.Date{})
		members = append(members, []any{in.MemberCode, in.Name, in.Email, string(domain.MemberActive), joined})
	}
	n, err = conn.CopyFrom(ctx,
		pgx.Identifier{"members"},
		[]string{"member_code", "name", "email", "status", "join_date"},
		pgx.CopyFromRows(members),
	)
	if err != nil {
		return fmt.Errorf("bulk insert members failed: %w", err)
	}
	logger.Info("seeded members", "count", n)
	return nil
}

// createRows goes through the stores for drivers without a bulk path.
func createRows(ctx context.Context, db *store.DB, logger *slog.Logger) error {
	books, members := store.NewBookStore(db), store.NewMemberStore(db)
	for i := 1; i <= TotalBooks; i++ {
		if _, err := books.Create(ctx, bookInput(i)); err != nil {
			return fmt.Errorf("book %d: %w", i, err)
		}
	}
	logger.Info("seeded books", "count", TotalBooks)

	today := domain.Today()
	for i := 1; i <= TotalMembers; i++ {
		if _, err := members.Create(ctx, memberInput(i, today)); err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
	}
	logger.Info("seeded members", "count", TotalMembers)
	return nil
}
