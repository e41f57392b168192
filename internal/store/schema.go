package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

const schemaVersion = 1

var metaDDL = `CREATE TABLE IF NOT EXISTS schema_meta (
	name VARCHAR(64) PRIMARY KEY,
	value INTEGER NOT NULL
)`

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id BIGSERIAL PRIMARY KEY,
		isbn VARCHAR(32) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		author VARCHAR(255) NOT NULL,
		category VARCHAR(100) NOT NULL,
		publication_year INTEGER NOT NULL DEFAULT 0,
		total_copies INTEGER NOT NULL DEFAULT 0,
		available_copies INTEGER NOT NULL DEFAULT 0,
		CONSTRAINT books_copies_check CHECK (available_copies >= 0 AND available_copies <= total_copies)
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		id BIGSERIAL PRIMARY KEY,
		member_code VARCHAR(64) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		phone VARCHAR(64) NOT NULL DEFAULT '',
		address VARCHAR(512) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		join_date DATE NOT NULL,
		CONSTRAINT members_status_check CHECK (status IN ('active', 'suspended', 'inactive'))
	)`,
	`CREATE TABLE IF NOT EXISTS borrow_records (
		id BIGSERIAL PRIMARY KEY,
		member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		book_id BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		borrow_date DATE NOT NULL,
		due_date DATE NOT NULL,
		return_date DATE NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		fine_amount NUMERIC(10,2) NOT NULL DEFAULT 0,
		CONSTRAINT borrow_records_status_check CHECK (status IN ('active', 'returned', 'overdue')),
		CONSTRAINT borrow_records_returned_check CHECK ((status = 'returned') = (return_date IS NOT NULL)),
		CONSTRAINT borrow_records_fine_check CHECK (fine_amount >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_member ON borrow_records(member_id)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_book ON borrow_records(book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_due ON borrow_records(due_date)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_borrow_records_open ON borrow_records(member_id, book_id) WHERE return_date IS NULL`,
	`CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY,
		library_name VARCHAR(255) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(64) NOT NULL DEFAULT '',
		address VARCHAR(512) NOT NULL DEFAULT '',
		borrow_limit INTEGER NOT NULL DEFAULT 5,
		borrow_duration_days INTEGER NOT NULL DEFAULT 14,
		late_fee_per_day NUMERIC(10,2) NOT NULL DEFAULT 0.50,
		grace_period_days INTEGER NOT NULL DEFAULT 0,
		enable_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		enable_fine BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		isbn VARCHAR(32) NOT NULL,
		title VARCHAR(255) NOT NULL,
		author VARCHAR(255) NOT NULL,
		category VARCHAR(100) NOT NULL,
		publication_year INT NOT NULL DEFAULT 0,
		total_copies INT NOT NULL DEFAULT 0,
		available_copies INT NOT NULL DEFAULT 0,
		UNIQUE KEY uq_books_isbn (isbn),
		CONSTRAINT books_copies_check CHECK (available_copies >= 0 AND available_copies <= total_copies)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS members (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		member_code VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(64) NOT NULL DEFAULT '',
		address VARCHAR(512) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		join_date DATE NOT NULL,
		UNIQUE KEY uq_members_code (member_code),
		UNIQUE KEY uq_members_email (email),
		CONSTRAINT members_status_check CHECK (status IN ('active', 'suspended', 'inactive'))
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS borrow_records (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		member_id BIGINT NOT NULL,
		book_id BIGINT NOT NULL,
		borrow_date DATE NOT NULL,
		due_date DATE NOT NULL,
		return_date DATE NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		fine_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
		INDEX idx_borrow_records_member (member_id),
		INDEX idx_borrow_records_book (book_id),
		INDEX idx_borrow_records_due (due_date),
		CONSTRAINT fk_borrow_records_member FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE,
		CONSTRAINT fk_borrow_records_book FOREIGN KEY (book_id) REFERENCES books(id) ON DELETE CASCADE,
		CONSTRAINT borrow_records_status_check CHECK (status IN ('active', 'returned', 'overdue')),
		CONSTRAINT borrow_records_returned_check CHECK ((status = 'returned') = (return_date IS NOT NULL)),
		CONSTRAINT borrow_records_fine_check CHECK (fine_amount >= 0)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS settings (
		id INT PRIMARY KEY,
		library_name VARCHAR(255) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(64) NOT NULL DEFAULT '',
		address VARCHAR(512) NOT NULL DEFAULT '',
		borrow_limit INT NOT NULL DEFAULT 5,
		borrow_duration_days INT NOT NULL DEFAULT 14,
		late_fee_per_day DECIMAL(10,2) NOT NULL DEFAULT 0.50,
		grace_period_days INT NOT NULL DEFAULT 0,
		enable_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		enable_fine BOOLEAN NOT NULL DEFAULT TRUE
	) ENGINE=InnoDB`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		isbn TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		category TEXT NOT NULL,
		publication_year INTEGER NOT NULL DEFAULT 0,
		total_copies INTEGER NOT NULL DEFAULT 0,
		available_copies INTEGER NOT NULL DEFAULT 0,
		CHECK (available_copies >= 0 AND available_copies <= total_copies)
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		member_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'suspended', 'inactive')),
		join_date TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS borrow_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		member_id INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		borrow_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		return_date TEXT NULL,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'returned', 'overdue')),
		fine_amount TEXT NOT NULL DEFAULT '0',
		CHECK ((status = 'returned') = (return_date IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_member ON borrow_records(member_id)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_book ON borrow_records(book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_due ON borrow_records(due_date)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_borrow_records_open ON borrow_records(member_id, book_id) WHERE return_date IS NULL`,
	`CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY,
		library_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		borrow_limit INTEGER NOT NULL DEFAULT 5,
		borrow_duration_days INTEGER NOT NULL DEFAULT 14,
		late_fee_per_day TEXT NOT NULL DEFAULT '0.50',
		grace_period_days INTEGER NOT NULL DEFAULT 0,
		enable_notifications INTEGER NOT NULL DEFAULT 1,
		enable_fine INTEGER NOT NULL DEFAULT 1
	)`,
}

func (db *DB) schema() []string {
	switch db.dialect.name {
	case "mysql":
		return mysqlSchema
	case "sqlite3":
		return sqliteSchema
	default:
		return postgresSchema
	}
}

// SchemaVersion reports the applied schema version, 0 on a fresh database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	if _, err := db.db.ExecContext(ctx, metaDDL); err != nil {
		return 0, fmt.Errorf("%w: create schema_meta: %w", domain.ErrStore, err)
	}
	var version int
	err := db.Get(ctx, &version, db.dialect.From("schema_meta").
		Select("value").
		Where(goqu.C("name").Eq("schema_version")))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

// Migrate creates the tables and seeds the settings row. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	err = db.WithTx(ctx, func(q Querier) error {
		tx := q.(*querier)
		for _, stmt := range db.schema() {
			if _, err := tx.ext.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%w: migrate: %w", domain.ErrStore, err)
			}
		}

		n, err := Count(ctx, q, "settings")
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := q.Exec(ctx, q.SQL().Insert("settings").Rows(settingsRecord(domain.DefaultSettings()))); err != nil {
				return err
			}
		}

		if current == 0 {
			_, err = q.Exec(ctx, q.SQL().Insert("schema_meta").
				Rows(goqu.Record{"name": "schema_version", "value": schemaVersion}))
		} else {
			_, err = q.Exec(ctx, q.SQL().Update("schema_meta").
				Set(goqu.Record{"value": schemaVersion}).
				Where(goqu.C("name").Eq("schema_version")))
		}
		return err
	})
	if err != nil {
		return err
	}

	db.logger.InfoContext(ctx, "schema migrated", "dialect", db.dialect.name, "from", current, "to", schemaVersion)
	return nil
}
