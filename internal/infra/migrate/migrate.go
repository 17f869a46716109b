package migrate

import (
	"context"
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"storefront/internal/pkg/config"
	"storefront/internal/pkg/errs"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Apply runs all pending migrations against the configured database.
// Migration files are embedded, so the binary is self-contained.
func Apply(ctx context.Context, cfg config.DBConfig) error {
	srcDriver, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return errs.Wrap(err, "failed to init migration source")
	}

	sqlDB, err := sql.Open("pgx", cfg.BuildDSN())
	if err != nil {
		return errs.Wrap(err, "failed to open database")
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return errs.Wrap(err, "failed to ping database")
	}

	dbDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return errs.Wrap(err, "failed to init database driver")
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "pgx", dbDriver)
	if err != nil {
		return errs.Wrap(err, "failed to init migrator")
	}
	defer m.Close()

	done := make(chan error, 1)
	go func() { done <- m.Up() }()

	select {
	case err := <-done:
		if err != nil && err != migrate.ErrNoChange {
			return errs.Wrap(err, "failed to apply migrations")
		}
		return nil
	case <-ctx.Done():
		// Stops at the next safe break point so the schema version
		// stays consistent.
		m.GracefulStop <- true
		<-done
		return errs.Wrap(ctx.Err(), "migrations canceled")
	}
}
