package postgres

import (
	"context"
	"database/sql"

	"dispatch/internal/domain"
)

const userColumns = `id, login, display_name, role, password_hash, created_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

// NewUserRepositoryWithTx creates a user repository using a transaction.
func NewUserRepositoryWithTx(tx *sql.Tx) *UserRepository {
	return &UserRepository{q: tx}
}

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query,
		user.ID, user.Login, user.DisplayName, user.Role, user.PasswordHash, user.CreatedAt)
	return translateError(err)
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.q.QueryRowContext(ctx, query, id))
}

// GetByLogin retrieves a user by login name.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1`
	return scanUser(r.q.QueryRowContext(ctx, query, login))
}

// List retrieves users in creation order, optionally restricted to one role.
func (r *UserRepository) List(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ($1 = '' OR role = $1) ORDER BY created_at, id`
	rows, err := r.q.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CountByRole returns the number of users holding a role.
// Inside a transaction the counted rows stay locked until it ends, so two
// concurrent deletions cannot both see a count of two.
func (r *UserRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	query := `SELECT COUNT(*) FROM (SELECT id FROM users WHERE role = $1 FOR UPDATE) AS locked`

	var n int
	err := r.q.QueryRowContext(ctx, query, role).Scan(&n)
	return n, err
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return expectOneRow(result)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Login, &user.DisplayName, &user.Role, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}
