package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique key (such as a login) is already taken.
	ErrDuplicate = errors.New("entity already exists")

	// ErrReferenced is returned when an entity cannot be removed because other rows point to it.
	ErrReferenced = errors.New("entity is still referenced")
)
