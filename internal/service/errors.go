package service

import (
	"errors"

	"dispatch/internal/repository"
)

// Error categories. Every service error wraps exactly one of them (or
// repository.ErrNotFound) so callers can classify with errors.Is.
var (
	// ErrValidation marks malformed or missing input, rejected before any store mutation.
	ErrValidation = errors.New("validation failed")

	// ErrConstraint marks a request that is well formed but would break a business rule.
	ErrConstraint = errors.New("constraint violation")

	// ErrConflict marks a request that raced with another change of the same ride.
	ErrConflict = errors.New("conflict")

	// ErrForbidden marks an action the current actor's role does not allow.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated marks missing, expired or unknown credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
)

type categorizedError struct {
	msg      string
	category error
}

func (e *categorizedError) Error() string { return e.msg }
func (e *categorizedError) Unwrap() error { return e.category }

func newError(msg string, category error) error {
	return &categorizedError{msg: msg, category: category}
}

var (
	// ErrRideNotFound is returned when a ride ID is unknown.
	ErrRideNotFound = newError("ride not found", repository.ErrNotFound)

	// ErrUserNotFound is returned when a user ID is unknown.
	ErrUserNotFound = newError("user not found", repository.ErrNotFound)

	// ErrClientNotFound is returned when a regular client ID is unknown.
	ErrClientNotFound = newError("regular client not found", repository.ErrNotFound)

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = newError("invalid ride id", ErrValidation)

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = newError("invalid driver id", ErrValidation)

	// ErrInvalidUserID is returned when user ID is empty.
	ErrInvalidUserID = newError("invalid user id", ErrValidation)

	// ErrInvalidPickupTime is returned when a planned pickup time is not HH:MM.
	ErrInvalidPickupTime = newError("invalid pickup time, expected HH:MM", ErrValidation)

	// ErrInvalidTimeString is returned by NormalizeTime for non-numeric hour or minute parts.
	ErrInvalidTimeString = newError("invalid time string", ErrValidation)

	// ErrInvalidDate is returned when a date is not YYYY-MM-DD.
	ErrInvalidDate = newError("invalid date, expected YYYY-MM-DD", ErrValidation)

	// ErrInvalidDateRange is returned when a listing range ends before it starts.
	ErrInvalidDateRange = newError("invalid date range", ErrValidation)

	// ErrInvalidRideType is returned when ride type is not reimbursable or private.
	ErrInvalidRideType = newError("invalid ride type", ErrValidation)

	// ErrInvalidStatus is returned when a status is not one of the four ride states.
	ErrInvalidStatus = newError("invalid ride status", ErrValidation)

	// ErrInvalidRole is returned when a role is not admin, dispatcher or driver.
	ErrInvalidRole = newError("invalid role", ErrValidation)

	// ErrInvalidAmount is returned when a fare or distance is negative.
	ErrInvalidAmount = newError("fare and distance must not be negative", ErrValidation)

	// ErrMissingClientName is returned when a ride or client has no client name.
	ErrMissingClientName = newError("client name is required", ErrValidation)

	// ErrMissingAddress is returned when a ride lacks its pickup or dropoff address.
	ErrMissingAddress = newError("pickup and dropoff addresses are required", ErrValidation)

	// ErrMissingLogin is returned when a user has no login or display name.
	ErrMissingLogin = newError("login and display name are required", ErrValidation)

	// ErrWeakPassword is returned when a password is too short.
	ErrWeakPassword = newError("password must be at least 8 characters", ErrValidation)

	// ErrNoRidesSelected is returned when a batch reassignment names no ride.
	ErrNoRidesSelected = newError("no rides selected", ErrValidation)

	// ErrDriverNotFound is returned when a ride would reference a user that is not an existing driver.
	ErrDriverNotFound = newError("driver does not exist", ErrConstraint)

	// ErrClientInactive is returned when booking from a deactivated regular client.
	ErrClientInactive = newError("regular client is deactivated", ErrConstraint)

	// ErrLastAdmin is returned when deleting a user would leave no admin.
	ErrLastAdmin = newError("cannot delete the last admin", ErrConstraint)

	// ErrDriverHasRides is returned when deleting a driver that still has rides.
	ErrDriverHasRides = newError("driver still has rides assigned", ErrConstraint)

	// ErrLoginTaken is returned when a login is already in use.
	ErrLoginTaken = newError("login already taken", ErrConstraint)

	// ErrSeedWithoutAdmin is returned when a bootstrap seed would create no admin.
	ErrSeedWithoutAdmin = newError("seed must contain at least one admin", ErrConstraint)

	// ErrStatusConflict is returned when the ride status changed under the caller.
	ErrStatusConflict = newError("ride status changed concurrently", ErrConflict)

	// ErrRideBusy is returned when another request is modifying the same ride.
	ErrRideBusy = newError("ride is being modified by another request", ErrConflict)

	// ErrNotRideDriver is returned when a driver acts on a ride assigned to someone else.
	ErrNotRideDriver = newError("ride is assigned to another driver", ErrForbidden)

	// ErrNotPermitted is returned when the actor's role does not allow the action.
	ErrNotPermitted = newError("action not permitted for this role", ErrForbidden)

	// ErrInvalidCredentials is returned when login or password do not match.
	ErrInvalidCredentials = newError("invalid login or password", ErrUnauthenticated)

	// ErrInvalidToken is returned when a bearer token cannot be verified.
	ErrInvalidToken = newError("invalid or expired token", ErrUnauthenticated)
)

// IsNotFound reports whether err means an unknown id.
func IsNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }

// IsValidation reports whether err means malformed input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConstraint reports whether err means a business rule would be broken.
func IsConstraint(err error) bool { return errors.Is(err, ErrConstraint) }
