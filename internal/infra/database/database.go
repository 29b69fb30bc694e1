package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"tmplhub/internal/infra/database/migrations"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// ParseDriver validates a configured driver name.
func ParseDriver(s string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(s))) {
	case DriverPostgres, "pgx", "postgresql":
		return DriverPostgres, nil
	case DriverSQLite, "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unknown database driver %q", s)
	}
}

// Options configures Open.
type Options struct {
	Driver       Driver
	DSN          string
	MaxOpenConns int
	Migrate      bool
}

// DB is a *sql.DB that knows its dialect.
type DB struct {
	*sql.DB
	Driver Driver
}

// New wraps an existing connection pool.
func New(db *sql.DB, driver Driver) *DB {
	return &DB{DB: db, Driver: driver}
}

// Open connects to the database, verifies the connection and applies the
// embedded schema migrations when opts.Migrate is set.
func Open(ctx context.Context, opts Options) (*DB, error) {
	var (
		driverName string
		dsn        = opts.DSN
	)
	switch opts.Driver {
	case DriverPostgres:
		driverName = "pgx"
	case DriverSQLite:
		driverName = "sqlite3"
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if opts.Driver == DriverSQLite {
		// one writer at a time; busy_timeout covers the rest
		sqlDB.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := New(sqlDB, opts.Driver)
	if opts.Migrate {
		if err := db.migrate(ctx); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	var err error
	if db.Driver == DriverPostgres {
		err = migrations.RunPostgresUp(db.DB)
	} else {
		err = migrations.RunSQLiteUp(ctx, db.DB)
	}
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Rebind rewrites ? placeholders into the dialect's form.
func (db *DB) Rebind(query string) string {
	if db.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "file:tmplhub.db"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
}
