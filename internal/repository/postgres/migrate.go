package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
)

// Released migration files are never edited; add a new numbered file instead.
//
//go:embed migrations/*.sql
var embedMigrations embed.FS

// migrationFS returns the migration files rooted at their directory.
func migrationFS() (fs.FS, error) {
	return fs.Sub(embedMigrations, "migrations")
}

// Migrate brings the schema up to the latest version.
// A session advisory lock serializes instances starting together; each
// version runs in its own transaction together with its bookkeeping row.
func Migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := migrationFS()
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return fmt.Errorf("create migration lock: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys, goose.WithSessionLocker(locker))
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		log.Printf("applied migration %d: %s (%s)", r.Source.Version, r.Source.Path, r.Duration)
	}
	return nil
}
