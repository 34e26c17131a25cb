package postgres

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationURL points golang-migrate at its pgx v5 driver.
func migrationURL(databaseURL string) (string, error) {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return "pgx5://" + rest, nil
		}
	}
	return "", fmt.Errorf("unsupported database URL scheme in %q", redactURL(databaseURL))
}

// Migrate applies pending migrations and returns the schema version. A dirty
// schema is reported, not repaired.
func Migrate(databaseURL string) (uint, error) {
	target, err := migrationURL(databaseURL)
	if err != nil {
		return 0, err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, target)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	switch v, dirty, err := m.Version(); {
	case err == nil && dirty:
		return v, fmt.Errorf("postgres schema is dirty at version %d", v)
	case err != nil && !errors.Is(err, migrate.ErrNilVersion):
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	v, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// redactURL hides everything after the scheme so credentials stay out of
// error messages.
func redactURL(raw string) string {
	if scheme, _, ok := strings.Cut(raw, "://"); ok {
		return scheme + "://..."
	}
	return "..."
}
