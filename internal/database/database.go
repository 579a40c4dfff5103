package database

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"strings"
	"time"

	"github.com/isdelr/ender-accounts-be/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	pingBaseDelay  = 200 * time.Millisecond
	pingMaxRetries = 5
)

// New opens a connection pool for the dialect and waits until the database answers.
func New(ctx context.Context, dialect store.Dialect, dsn string) (*sql.DB, error) {
	if dialect == store.SQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, oops.Code("DB_OPEN_FAILED").With("driver", dialect.String()).Wrap(err)
	}

	// SQLite allows a single writer; serialising connections avoids SQLITE_BUSY under load.
	if dialect == store.SQLite {
		db.SetMaxOpenConns(1)
	}

	backoff := retry.WithMaxRetries(pingMaxRetries, retry.NewExponential(pingBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			log.Warn().Err(err).Str("driver", dialect.String()).Msg("Database not reachable yet")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", dialect.String()).Wrap(err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB, dialect store.Dialect) error {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}

	gooseDialect := goose.DialectSQLite3
	if dialect == store.Postgres {
		gooseDialect = goose.DialectPostgres
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create provider").Wrap(err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	for _, res := range results {
		log.Info().Str("migration", res.Source.Path).Dur("took", res.Duration).Msg("Applied migration")
	}
	return nil
}

// sqliteDSN adds the pragmas every SQLite connection needs.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "./accounts.db"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
