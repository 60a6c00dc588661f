package domain

import (
	"errors"
	"time"
)

// Role is the permission level of a user account.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDispatcher Role = "dispatcher"
	RoleDriver     Role = "driver"
)

// ErrUnknownRole is returned when a role string is not recognized.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts a raw value into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleDispatcher, RoleDriver:
		return Role(s), nil
	default:
		return "", ErrUnknownRole
	}
}

// User is an account of the dispatch office. Drivers are users with RoleDriver.
type User struct {
	ID           string
	Login        string
	DisplayName  string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// IsDriver reports whether the user can be assigned rides.
func (u *User) IsDriver() bool {
	return u.Role == RoleDriver
}

// Actor identifies who performs the current request.
// It is built per request from the bearer token and passed explicitly to services.
type Actor struct {
	UserID string
	Role   Role
}

// CanDispatch reports whether the actor may create, edit and reassign rides.
func (a Actor) CanDispatch() bool {
	return a.Role == RoleDispatcher || a.Role == RoleAdmin
}

// IsAdmin reports whether the actor has administrative rights.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
