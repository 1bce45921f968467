package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/tahcohcat/pizzeria-ops/internal/logger"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

type DB struct {
	*sqlx.DB
	Driver string
}

// Handle is satisfied by *DB, *sqlx.DB and *sqlx.Tx so services can run the
// same queries inside or outside a transaction.
type Handle interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// NewDB opens the database and creates the schema. An empty dsn opens the
// default sqlite file.
func NewDB(driver, dsn string) (*DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *sqlx.DB
		err error
	)

	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "pizzeria.db" // Default SQLite file
		}
		db, err = sqlx.Connect(driver, dsn+"?_foreign_keys=on&_busy_timeout=5000")
		if err == nil {
			// One connection serializes writers and keeps :memory: databases whole.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sqlx.Connect(driver, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	dbWrapper := &DB{DB: db, Driver: driver}

	if err := dbWrapper.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.New().Info("database connection established and tables initialized", "driver", driver)
	return dbWrapper, nil
}

func (db *DB) dialect() *strings.Replacer {
	if db.Driver == DriverPostgres {
		return strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{ts}}", "TIMESTAMPTZ",
			"{{real}}", "DOUBLE PRECISION",
		)
	}
	return strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "DATETIME",
		"{{real}}", "REAL",
	)
}

// createTables creates the necessary database tables
func (db *DB) createTables() error {
	d := db.dialect()

	for _, query := range tables {
		if _, err := db.Exec(d.Replace(query)); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (db *DB) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Get, Select and Exec rebind '?' placeholders for the handle's driver.

func Get(ctx context.Context, h Handle, dest interface{}, query string, args ...interface{}) error {
	return h.GetContext(ctx, dest, h.Rebind(query), args...)
}

func Select(ctx context.Context, h Handle, dest interface{}, query string, args ...interface{}) error {
	return h.SelectContext(ctx, dest, h.Rebind(query), args...)
}

func Exec(ctx context.Context, h Handle, query string, args ...interface{}) (sql.Result, error) {
	return h.ExecContext(ctx, h.Rebind(query), args...)
}

// InsertID runs an INSERT ... RETURNING id statement.
func InsertID(ctx context.Context, h Handle, query string, args ...interface{}) (int, error) {
	var id int
	if err := h.GetContext(ctx, &id, h.Rebind(query), args...); err != nil {
		return 0, err
	}
	return id, nil
}

// IsUniqueViolation reports whether err is a unique or primary key constraint
// failure from either driver.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
