package shared

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Dialect identifies the SQL flavour spoken by a [DB].
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Rebind rewrites `?` placeholders into the dialect's positional form.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DB is a [sql.DB] that knows which dialect it talks to.
//
// Repositories write queries with `?` placeholders and pass them through [DB.Rebind].
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Rebind rewrites query placeholders for this database.
func (db *DB) Rebind(query string) string {
	return db.Dialect.Rebind(query)
}

// NewDatabase opens a connection using the given driver ("sqlite3" or "pgx").
//
// For SQLite the source is a file path and may be ":memory:". Foreign keys are
// enabled, and in-memory databases are pinned to a single connection since every
// new connection would otherwise see a fresh, empty database.
func NewDatabase(driver, source string) (*DB, error) {
	var dialect Dialect
	switch driver {
	case DriverSQLite:
		dialect = DialectSQLite
		if !strings.Contains(source, "?") {
			source += "?_foreign_keys=on"
		}
	case DriverPostgres:
		dialect = DialectPostgres
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, driver)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite && strings.HasPrefix(source, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// OpenDatabase opens and configures the database described by cfg.
func OpenDatabase(cfg DatabaseConfig) (*DB, error) {
	db, err := NewDatabase(cfg.Driver, cfg.Source())
	if err != nil {
		return nil, err
	}
	if db.Dialect == DialectPostgres || !strings.HasPrefix(cfg.Path, ":memory:") {
		ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
func ConfigureDatabase(db *DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
