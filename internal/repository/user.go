package repository

import (
	"context"

	"dispatch/internal/domain"
)

// UserRepository defines the persistence operations for user accounts, drivers included.
type UserRepository interface {
	// Create adds a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByLogin retrieves a user by login name.
	GetByLogin(ctx context.Context, login string) (*domain.User, error)

	// List retrieves users, optionally restricted to one role, in creation order.
	List(ctx context.Context, role domain.Role) ([]*domain.User, error)

	// CountByRole returns the number of users holding a role.
	CountByRole(ctx context.Context, role domain.Role) (int, error)

	// Delete removes a user.
	Delete(ctx context.Context, id string) error
}
