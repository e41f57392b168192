package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/punchamoorthee/lendingledger/internal/domain"
)

// Supported values for Options.Driver.
const (
	DriverPGX    = "pgx"
	DriverPQ     = "postgres"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

const (
	defaultMaxConns    = 10
	defaultConnMaxIdle = 5 * time.Minute
	defaultConnMaxLife = time.Hour
)

// Builder is satisfied by every goqu dataset.
type Builder interface {
	ToSQL() (string, []interface{}, error)
}

// Querier runs statements built with goqu against the store, either directly or inside a transaction.
// Every value reaches the driver as a bound parameter.
type Querier interface {
	// Select scans all result rows into dest, a pointer to a slice.
	Select(ctx context.Context, dest any, b Builder) error
	// Get scans a single row into dest. A missing row surfaces as sql.ErrNoRows.
	Get(ctx context.Context, dest any, b Builder) error
	// Exec runs a write statement and reports the number of affected rows.
	Exec(ctx context.Context, b Builder) (int64, error)
	// InsertID runs an insert and returns the generated id.
	InsertID(ctx context.Context, ins *goqu.InsertDataset) (int64, error)
	// SQL returns the statement builder for the store's dialect.
	SQL() Dialect
}

// Options configures Open.
type Options struct {
	Driver   string
	DSN      string
	MaxConns int
	Logger   *slog.Logger
}

// DB owns the connection pool. It is safe for concurrent use.
type DB struct {
	querier

	db        *sqlx.DB
	pool      *pgxpool.Pool
	txOptions *sql.TxOptions
}

// Open connects to the store described by opts and verifies the connection.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.DSN == "" {
		return nil, domain.Errorf(domain.ErrStore, "database source is required")
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db := &DB{txOptions: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}

	var err error
	switch opts.Driver {
	case DriverPGX, "":
		opts.Driver = DriverPGX
		db.db, db.pool, err = openPGX(ctx, opts)
	case DriverPQ:
		db.db, err = sqlx.Open(DriverPQ, opts.DSN)
	case DriverMySQL:
		db.db, err = openMySQL(opts.DSN)
	case DriverSQLite:
		db.db, err = openSQLite(opts.DSN)
		// BEGIN IMMEDIATE on a single connection; sqlite has no isolation levels to pick from.
		db.txOptions = nil
	default:
		return nil, domain.Errorf(domain.ErrStore, "unsupported database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open %s database: %w", domain.ErrStore, opts.Driver, err)
	}

	if opts.Driver != DriverSQLite {
		db.db.SetMaxOpenConns(opts.MaxConns)
		db.db.SetMaxIdleConns(opts.MaxConns)
		db.db.SetConnMaxIdleTime(defaultConnMaxIdle)
		db.db.SetConnMaxLifetime(defaultConnMaxLife)
	}

	if err := db.db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: unable to ping database: %w", domain.ErrStore, err)
	}

	db.querier = querier{ext: db.db, dialect: newDialect(opts.Driver), logger: logger}
	return db, nil
}

func openPGX(ctx context.Context, opts Options) (*sqlx.DB, *pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	config.MaxConns = int32(opts.MaxConns)
	config.MaxConnIdleTime = defaultConnMaxIdle
	config.MaxConnLifetime = defaultConnMaxLife

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return sqlx.NewDb(stdlib.OpenDBFromPool(pool), DriverPGX), pool, nil
}

func openMySQL(dsn string) (*sqlx.DB, error) {
	config, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	// DATE columns as time.Time, and matched (not changed) rows as the affected count,
	// which the row-lock and conditional-update checks rely on.
	config.ParseTime = true
	config.ClientFoundRows = true
	return sqlx.Open(DriverMySQL, config.FormatDSN())
}

func openSQLite(dsn string) (*sqlx.DB, error) {
	if !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", dsn)
	}
	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; concurrent requests queue for the connection.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Close releases the pool.
func (db *DB) Close() {
	if db.db != nil {
		db.db.Close()
	}
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return nil
}

// WithTx runs fn inside a single transaction. The transaction is committed when fn returns nil
// and rolled back on any error or panic.
func (db *DB) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := db.db.BeginTxx(ctx, db.txOptions)
	if err != nil {
		return fmt.Errorf("%w: tx begin failed: %w", domain.ErrStore, err)
	}
	defer tx.Rollback()

	if err := fn(&querier{ext: tx, dialect: db.dialect, logger: db.logger}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("tx commit failed: %w", err))
	}
	return nil
}

type querier struct {
	ext     sqlx.ExtContext
	dialect Dialect
	logger  *slog.Logger
}

func (q *querier) SQL() Dialect { return q.dialect }

func (q *querier) Select(ctx context.Context, dest any, b Builder) error {
	query, args, err := q.build(b)
	if err != nil {
		return err
	}
	start := time.Now()
	err = sqlx.SelectContext(ctx, q.ext, dest, query, args...)
	q.logQuery(ctx, query, start, err)
	return classify(err)
}

func (q *querier) Get(ctx context.Context, dest any, b Builder) error {
	query, args, err := q.build(b)
	if err != nil {
		return err
	}
	start := time.Now()
	err = sqlx.GetContext(ctx, q.ext, dest, query, args...)
	q.logQuery(ctx, query, start, err)
	return classify(err)
}

func (q *querier) Exec(ctx context.Context, b Builder) (int64, error) {
	query, args, err := q.build(b)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	res, err := q.ext.ExecContext(ctx, query, args...)
	q.logQuery(ctx, query, start, err)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %w", domain.ErrStore, err)
	}
	return n, nil
}

func (q *querier) InsertID(ctx context.Context, ins *goqu.InsertDataset) (int64, error) {
	if q.dialect.returning {
		var id int64
		if err := q.Get(ctx, &id, ins.Returning("id")); err != nil {
			return 0, err
		}
		return id, nil
	}

	query, args, err := q.build(ins)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	res, err := q.ext.ExecContext(ctx, query, args...)
	q.logQuery(ctx, query, start, err)
	if err != nil {
		return 0, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %w", domain.ErrStore, err)
	}
	return id, nil
}

func (q *querier) build(b Builder) (string, []interface{}, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("%w: build query: %w", domain.ErrStore, err)
	}
	return query, args, nil
}

func (q *querier) logQuery(ctx context.Context, query string, start time.Time, err error) {
	if err != nil {
		q.logger.DebugContext(ctx, "sql failed", "query", query, "error", err.Error())
		return
	}
	q.logger.DebugContext(ctx, "sql executed", "query", query, "duration_ms", time.Since(start).Milliseconds())
}
