package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// RideFilter narrows a ride listing. Zero values mean "no constraint".
type RideFilter struct {
	DriverID string
	From     time.Time // inclusive scheduled date
	To       time.Time // exclusive scheduled date
	Status   domain.RideStatus
}

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByIDForUpdate retrieves a ride and locks its row until the transaction ends.
	// Outside a transaction it behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error)

	// List retrieves rides matching the filter, ordered by scheduled date then creation.
	List(ctx context.Context, filter RideFilter) ([]*domain.Ride, error)

	// Update overwrites the editable fields of a ride.
	// Status, status timestamps and driver are left untouched.
	Update(ctx context.Context, ride *domain.Ride) error

	// AdvanceStatus moves a ride from one status to the next and stamps the
	// entry time of the new status if not already set.
	// Returns false if the ride was no longer in status from.
	AdvanceStatus(ctx context.Context, id string, from, to domain.RideStatus, at time.Time) (bool, error)

	// SetStatus overwrites status and all three timestamps. Used for administrative corrections.
	SetStatus(ctx context.Context, ride *domain.Ride) error

	// UpdateDriver changes the driver a ride is assigned to.
	UpdateDriver(ctx context.Context, id, driverID string) error

	// Delete removes a ride.
	Delete(ctx context.Context, id string) error

	// CountByDriver returns the number of rides assigned to a driver.
	CountByDriver(ctx context.Context, driverID string) (int, error)
}
