package postgres

import (
	"context"
	"database/sql"
	"strings"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const clientColumns = `id, full_name, phone, pickup_address, dropoff_address, ride_type,
	fare, distance_km, notes, active, created_at`

// ClientRepository is a PostgreSQL implementation of repository.ClientRepository.
type ClientRepository struct {
	q Querier
}

// NewClientRepository creates a new PostgreSQL regular client repository.
func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{q: db}
}

// NewClientRepositoryWithTx creates a client repository using a transaction.
func NewClientRepositoryWithTx(tx *sql.Tx) *ClientRepository {
	return &ClientRepository{q: tx}
}

// Create persists a new regular client.
func (r *ClientRepository) Create(ctx context.Context, c *domain.RegularClient) error {
	query := `INSERT INTO regular_clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.ExecContext(ctx, query,
		c.ID, c.FullName, nullString(c.Phone), c.PickupAddress, c.DropoffAddress, c.RideType,
		c.Fare, c.DistanceKm, c.Notes, c.Active, c.CreatedAt)
	return translateError(err)
}

// GetByID retrieves a regular client by ID, active or not.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*domain.RegularClient, error) {
	query := `SELECT ` + clientColumns + ` FROM regular_clients WHERE id = $1`
	return scanClient(r.q.QueryRowContext(ctx, query, id))
}

// List retrieves regular clients ordered by name.
func (r *ClientRepository) List(ctx context.Context, filter repository.ClientFilter) ([]*domain.RegularClient, error) {
	query := `SELECT ` + clientColumns + ` FROM regular_clients
		WHERE ($1 = FALSE OR active)
		  AND ($2 = '' OR full_name ILIKE $3 ESCAPE '\')
		ORDER BY full_name, id`

	rows, err := r.q.QueryContext(ctx, query, filter.ActiveOnly, filter.Query, containsPattern(filter.Query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*domain.RegularClient
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// Update overwrites a regular client's profile.
func (r *ClientRepository) Update(ctx context.Context, c *domain.RegularClient) error {
	query := `
		UPDATE regular_clients
		SET full_name = $1, phone = $2, pickup_address = $3, dropoff_address = $4, ride_type = $5,
		    fare = $6, distance_km = $7, notes = $8, active = $9
		WHERE id = $10
	`
	result, err := r.q.ExecContext(ctx, query,
		c.FullName, nullString(c.Phone), c.PickupAddress, c.DropoffAddress, c.RideType,
		c.Fare, c.DistanceKm, c.Notes, c.Active, c.ID)
	if err != nil {
		return translateError(err)
	}
	return expectOneRow(result)
}

// Deactivate clears the active flag of a regular client.
func (r *ClientRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `UPDATE regular_clients SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func scanClient(row rowScanner) (*domain.RegularClient, error) {
	var c domain.RegularClient
	var phone sql.NullString
	err := row.Scan(
		&c.ID,
		&c.FullName,
		&phone,
		&c.PickupAddress,
		&c.DropoffAddress,
		&c.RideType,
		&c.Fare,
		&c.DistanceKm,
		&c.Notes,
		&c.Active,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	c.Phone = phone.String
	return &c, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
