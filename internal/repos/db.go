package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	applog "shopforge/internal/log"
	"shopforge/internal/migrations"
)

var reSchema = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// OpenDB connects, applies pending migrations and returns the shared handle.
// The caller owns the handle and closes it on shutdown.
func OpenDB(driver, dsn, schema string) (*sqlx.DB, error) {
	db, err := Connect(driver, dsn, schema)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Connect opens and pings the database without touching its schema version.
func Connect(driver, dsn, schema string) (*sqlx.DB, error) {
	attrs := otelsql.WithAttributes(semconv.DBSystemSqlite)
	if driver == "pgx" {
		attrs = otelsql.WithAttributes(semconv.DBSystemPostgreSQL)
		if schema != "" {
			if !reSchema.MatchString(schema) {
				return nil, fmt.Errorf("invalid schema name %q", schema)
			}
			dsn = withSearchPath(dsn, schema)
		}
	}

	raw, err := otelsql.Open(driver, dsn, attrs)
	if err != nil {
		return nil, err
	}
	db := sqlx.NewDb(raw, driver)
	if driver == "sqlite" {
		// a single connection keeps :memory: databases coherent and serialises writers
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if driver == "pgx" && schema != "" {
		if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS ` + schema); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Migrate runs "up", "down" (one step) or "version" against db.
func Migrate(db *sqlx.DB, command string) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	// m.Close is not called: the database driver would close the shared *sql.DB.

	log := applog.L().WithField("driver", db.DriverName())
	switch command {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("migrate.up.nochange")
			return nil
		}
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		log.Info("migrate.up")
	case "down":
		err = m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("migrate.down.nochange")
			return nil
		}
		if err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		log.Info("migrate.down")
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("migrate.version.none")
			return nil
		}
		if err != nil {
			return fmt.Errorf("migrate version: %w", err)
		}
		log.WithField("version", version).WithField("dirty", dirty).Info("migrate.version")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
	return nil
}

func newMigrator(db *sqlx.DB) (*migrate.Migrate, error) {
	files, err := migrations.FS(db.DriverName())
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(files, ".")
	if err != nil {
		return nil, err
	}

	var (
		drv  database.Driver
		name string
	)
	switch db.DriverName() {
	case "sqlite":
		name = "sqlite"
		drv, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	case "pgx":
		name = "pgx5"
		drv, err = migratepgx.WithInstance(db.DB, &migratepgx.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", db.DriverName())
	}
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", src, name, drv)
}

func withSearchPath(dsn, schema string) string {
	if u, err := url.Parse(dsn); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return strings.TrimSpace(dsn) + " search_path=" + schema
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx so repos can run inside a transaction.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// InTx runs fn inside a transaction, rolling back on error.
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// IsNoRows reports whether err means "no matching row".
func IsNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// IsUniqueViolation reports a unique-index conflict from either driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
