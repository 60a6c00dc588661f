package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpq" // Registers "nrpostgres" driver
	"github.com/newrelic/go-agent/v3/newrelic"

	"dispatch/internal/config"
)

const connectRetryInterval = 2 * time.Second

// NewDatabase opens the PostgreSQL record store and waits until it answers.
// With nrApp set, the New Relic instrumented driver traces every query.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig, nrApp *newrelic.Application) (*sql.DB, error) {
	driver := "postgres"
	if nrApp != nil {
		driver = "nrpostgres"
	}

	db, err := sql.Open(driver, dataSourceName(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database with %s: %w", driver, err)
	}

	// The dispatch office is a handful of concurrent users; a small pool is plenty.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := pingWithRetry(ctx, db, cfg.ConnectAttempts); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func dataSourceName(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
}

// pingWithRetry covers the database container starting after the service.
func pingWithRetry(ctx context.Context, db *sql.DB, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		log.Printf("database not reachable (attempt %d/%d): %v", i, attempts, err)
		if i == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to ping database: %w", ctx.Err())
		case <-time.After(connectRetryInterval):
		}
	}
	return fmt.Errorf("failed to ping database after %d attempts: %w", attempts, err)
}
