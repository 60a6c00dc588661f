package repository

import "context"

// Repositories groups repositories bound to the same transaction.
type Repositories struct {
	Rides   RideRepository
	Users   UserRepository
	Clients ClientRepository
}

// Transactor runs a unit of work in a single store transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
