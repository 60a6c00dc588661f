package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const rideColumns = `id, driver_id, client_name, client_phone, pickup_address, dropoff_address,
	scheduled_date, pickup_time, ride_type, estimated_fare, estimated_distance_km,
	dispatcher_comment, driver_comment, status, created_at, confirmed_at, picked_up_at,
	dropped_off_at, created_by, regular_client_id`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q   Querier
	loc *time.Location
}

// NewRideRepository creates a new PostgreSQL ride repository.
// Scheduled dates are returned as midnight in loc.
func NewRideRepository(db *sql.DB, loc *time.Location) *RideRepository {
	return &RideRepository{q: db, loc: loc}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx, loc *time.Location) *RideRepository {
	return &RideRepository{q: tx, loc: loc}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.DriverID,
		ride.ClientName,
		ride.ClientPhone,
		ride.PickupAddress,
		ride.DropoffAddress,
		ride.ScheduledDate.Format("2006-01-02"),
		pickupTimeValue(ride.PickupTime),
		ride.Type,
		ride.EstimatedFare,
		ride.EstimatedDistanceKm,
		ride.DispatcherComment,
		ride.DriverComment,
		ride.Status,
		ride.CreatedAt,
		nullTime(ride.ConfirmedAt),
		nullTime(ride.PickedUpAt),
		nullTime(ride.DroppedOffAt),
		ride.CreatedBy,
		nullStringPtr(ride.RegularClientID),
	)
	return translateError(err)
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return r.scanRide(r.q.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves a ride and locks its row for the rest of the transaction.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 FOR UPDATE`
	return r.scanRide(r.q.QueryRowContext(ctx, query, id))
}

// List retrieves rides matching the filter.
func (r *RideRepository) List(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.DriverID != "" {
		add("driver_id = $%d", filter.DriverID)
	}
	if !filter.From.IsZero() {
		add("scheduled_date >= $%d", filter.From.Format("2006-01-02"))
	}
	if !filter.To.IsZero() {
		add("scheduled_date < $%d", filter.To.Format("2006-01-02"))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	query := `SELECT ` + rideColumns + ` FROM rides`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY scheduled_date, created_at, id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := r.scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Update overwrites the editable fields of a ride.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET client_name = $1, client_phone = $2, pickup_address = $3, dropoff_address = $4,
		    scheduled_date = $5, pickup_time = $6, ride_type = $7, estimated_fare = $8,
		    estimated_distance_km = $9, dispatcher_comment = $10, driver_comment = $11,
		    regular_client_id = $12
		WHERE id = $13
	`

	result, err := r.q.ExecContext(ctx, query,
		ride.ClientName,
		ride.ClientPhone,
		ride.PickupAddress,
		ride.DropoffAddress,
		ride.ScheduledDate.Format("2006-01-02"),
		pickupTimeValue(ride.PickupTime),
		ride.Type,
		ride.EstimatedFare,
		ride.EstimatedDistanceKm,
		ride.DispatcherComment,
		ride.DriverComment,
		nullStringPtr(ride.RegularClientID),
		ride.ID,
	)
	if err != nil {
		return translateError(err)
	}
	return expectOneRow(result)
}

// AdvanceStatus moves a ride from one status to the next in a single statement.
// COALESCE keeps a timestamp that was already set.
func (r *RideRepository) AdvanceStatus(ctx context.Context, id string, from, to domain.RideStatus, at time.Time) (bool, error) {
	query := `
		UPDATE rides
		SET status = $1,
		    confirmed_at = CASE WHEN $1 = 'confirmed' THEN COALESCE(confirmed_at, $2) ELSE confirmed_at END,
		    picked_up_at = CASE WHEN $1 = 'picked-up' THEN COALESCE(picked_up_at, $2) ELSE picked_up_at END,
		    dropped_off_at = CASE WHEN $1 = 'dropped-off' THEN COALESCE(dropped_off_at, $2) ELSE dropped_off_at END
		WHERE id = $3 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query, string(to), at, id, string(from))
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// SetStatus overwrites status and timestamps.
func (r *RideRepository) SetStatus(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET status = $1, confirmed_at = $2, picked_up_at = $3, dropped_off_at = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		ride.Status,
		nullTime(ride.ConfirmedAt),
		nullTime(ride.PickedUpAt),
		nullTime(ride.DroppedOffAt),
		ride.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// UpdateDriver changes the driver a ride is assigned to.
func (r *RideRepository) UpdateDriver(ctx context.Context, id, driverID string) error {
	result, err := r.q.ExecContext(ctx, `UPDATE rides SET driver_id = $1 WHERE id = $2`, driverID, id)
	if err != nil {
		return translateError(err)
	}
	return expectOneRow(result)
}

// Delete removes a ride.
func (r *RideRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM rides WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// CountByDriver returns the number of rides assigned to a driver.
func (r *RideRepository) CountByDriver(ctx context.Context, driverID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rides WHERE driver_id = $1`, driverID).Scan(&n)
	return n, err
}

func (r *RideRepository) scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var scheduled time.Time
	var pickupTime sql.NullString
	var confirmedAt, pickedUpAt, droppedOffAt sql.NullTime
	var regularClientID sql.NullString

	err := row.Scan(
		&ride.ID,
		&ride.DriverID,
		&ride.ClientName,
		&ride.ClientPhone,
		&ride.PickupAddress,
		&ride.DropoffAddress,
		&scheduled,
		&pickupTime,
		&ride.Type,
		&ride.EstimatedFare,
		&ride.EstimatedDistanceKm,
		&ride.DispatcherComment,
		&ride.DriverComment,
		&ride.Status,
		&ride.CreatedAt,
		&confirmedAt,
		&pickedUpAt,
		&droppedOffAt,
		&ride.CreatedBy,
		&regularClientID,
	)
	if err != nil {
		return nil, translateError(err)
	}

	// DATE columns come back as UTC midnight; rebuild the same calendar day locally.
	y, m, d := scheduled.Date()
	ride.ScheduledDate = time.Date(y, m, d, 0, 0, 0, 0, r.loc)

	if pickupTime.Valid {
		tod, err := domain.ParseTimeOfDay(pickupTime.String)
		if err != nil {
			return nil, fmt.Errorf("ride %s: stored pickup time %q: %w", ride.ID, pickupTime.String, err)
		}
		ride.PickupTime = &tod
	}
	if !ride.Status.Valid() {
		return nil, fmt.Errorf("ride %s: %w: %q", ride.ID, domain.ErrUnknownRideStatus, ride.Status)
	}
	ride.ConfirmedAt = timePtr(confirmedAt, r.loc)
	ride.PickedUpAt = timePtr(pickedUpAt, r.loc)
	ride.DroppedOffAt = timePtr(droppedOffAt, r.loc)
	ride.CreatedAt = ride.CreatedAt.In(r.loc)
	if regularClientID.Valid {
		id := regularClientID.String
		ride.RegularClientID = &id
	}

	return &ride, nil
}

func pickupTimeValue(t *domain.TimeOfDay) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(v sql.NullTime, loc *time.Location) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.In(loc)
	return &t
}
