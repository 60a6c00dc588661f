package repository

import (
	"context"

	"dispatch/internal/domain"
)

// ClientFilter narrows a regular client listing.
type ClientFilter struct {
	ActiveOnly bool
	Query      string // case-insensitive match on the client name
}

// ClientRepository defines the persistence operations for regular clients.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.RegularClient) error
	GetByID(ctx context.Context, id string) (*domain.RegularClient, error)
	List(ctx context.Context, filter ClientFilter) ([]*domain.RegularClient, error)
	Update(ctx context.Context, client *domain.RegularClient) error

	// Deactivate clears the active flag. Clients are never physically deleted.
	Deactivate(ctx context.Context, id string) error
}
