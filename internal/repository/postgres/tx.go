package postgres

import (
	"context"
	"database/sql"
	"time"

	"dispatch/internal/repository"
)

// Transactor is a PostgreSQL implementation of repository.Transactor.
type Transactor struct {
	db  *sql.DB
	loc *time.Location
}

// NewTransactor creates a Transactor whose repositories read dates in loc.
func NewTransactor(db *sql.DB, loc *time.Location) *Transactor {
	return &Transactor{db: db, loc: loc}
}

// WithinTx runs fn with repositories bound to one transaction.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Create transaction-scoped repositories.
	repos := repository.Repositories{
		Rides:   NewRideRepositoryWithTx(tx, t.loc),
		Users:   NewUserRepositoryWithTx(tx),
		Clients: NewClientRepositoryWithTx(tx),
	}

	if err = fn(ctx, repos); err != nil {
		return err
	}

	return tx.Commit()
}
