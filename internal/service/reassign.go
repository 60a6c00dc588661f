package service

import (
	"context"
	"errors"
	"fmt"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// ReassignService moves rides from one driver to another.
type ReassignService struct {
	transactor          repository.Transactor
	lockStore           redis.LockStoreInterface
	notificationService *NotificationService
}

// NewReassignService creates a new ReassignService. lockStore may be nil.
func NewReassignService(
	transactor repository.Transactor,
	lockStore redis.LockStoreInterface,
	notificationService *NotificationService,
) *ReassignService {
	return &ReassignService{
		transactor:          transactor,
		lockStore:           lockStore,
		notificationService: notificationService,
	}
}

// ReassignRequest contains the parameters for reassigning one ride.
type ReassignRequest struct {
	Actor       domain.Actor
	RideID      string
	NewDriverID string
}

// ReassignResult reports the outcome for one ride.
// Failure is nil on success; the ride is untouched otherwise.
type ReassignResult struct {
	RideID        string
	ClientName    string
	OldDriverID   string
	OldDriverName string
	NewDriverID   string
	NewDriverName string
	Failure       error
}

// Succeeded reports whether the ride now belongs to the new driver.
func (r ReassignResult) Succeeded() bool {
	return r.Failure == nil
}

// Reassign assigns a ride to another driver in one transaction.
// Business failures (unknown ride, unknown driver, busy ride) are reported in
// ReassignResult.Failure; the error return is kept for forbidden actors and
// infrastructure failures. Reassigning a ride to its current driver succeeds
// without notifying anyone.
func (s *ReassignService) Reassign(ctx context.Context, req ReassignRequest) (ReassignResult, error) {
	if !req.Actor.CanDispatch() {
		return ReassignResult{}, ErrNotPermitted
	}

	result, err := s.reassign(ctx, req.RideID, req.NewDriverID)
	if err != nil {
		return result, err
	}
	if result.Succeeded() && result.OldDriverID != result.NewDriverID && s.notificationService != nil {
		s.notificationService.NotifyReassigned(ctx, result)
	}
	return result, nil
}

// BatchReassignRequest contains the parameters for reassigning several rides at once.
type BatchReassignRequest struct {
	Actor       domain.Actor
	RideIDs     []string
	NewDriverID string
}

// BatchReassignResult summarizes a batch reassignment.
type BatchReassignResult struct {
	Requested int
	Succeeded int
	Results   []ReassignResult
}

// ReassignBatch reassigns rides one by one, each in its own transaction.
// A failing ride does not stop the batch. Duplicate ids are processed as given.
// On an infrastructure failure the results gathered so far are returned with the error.
func (s *ReassignService) ReassignBatch(ctx context.Context, req BatchReassignRequest) (*BatchReassignResult, error) {
	if !req.Actor.CanDispatch() {
		return nil, ErrNotPermitted
	}
	if len(req.RideIDs) == 0 {
		return nil, ErrNoRidesSelected
	}

	batch := &BatchReassignResult{
		Requested: len(req.RideIDs),
		Results:   make([]ReassignResult, 0, len(req.RideIDs)),
	}
	for _, rideID := range req.RideIDs {
		result, err := s.Reassign(ctx, ReassignRequest{
			Actor:       req.Actor,
			RideID:      rideID,
			NewDriverID: req.NewDriverID,
		})
		if err != nil {
			return batch, fmt.Errorf("reassign ride %s: %w", rideID, err)
		}
		if result.Succeeded() {
			batch.Succeeded++
		}
		batch.Results = append(batch.Results, result)
	}
	return batch, nil
}

func (s *ReassignService) reassign(ctx context.Context, rideID, newDriverID string) (ReassignResult, error) {
	result := ReassignResult{RideID: rideID, NewDriverID: newDriverID}

	if rideID == "" {
		result.Failure = ErrInvalidRideID
		return result, nil
	}
	if newDriverID == "" {
		result.Failure = ErrInvalidDriverID
		return result, nil
	}

	release, err := acquireRideLock(ctx, s.lockStore, rideID)
	if err != nil {
		result.Failure = err
		return result, nil
	}
	defer release()

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ride, err := repos.Rides.GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return rideLookupError(err)
		}
		result.ClientName = ride.ClientName
		result.OldDriverID = ride.DriverID

		newDriver, err := lookupDriver(ctx, repos.Users, newDriverID)
		if err != nil {
			return err
		}
		result.NewDriverName = newDriver.DisplayName

		oldDriver, err := repos.Users.GetByID(ctx, ride.DriverID)
		switch {
		case err == nil:
			result.OldDriverName = oldDriver.DisplayName
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		if ride.DriverID == newDriverID {
			return nil
		}
		err = repos.Rides.UpdateDriver(ctx, rideID, newDriverID)
		if errors.Is(err, repository.ErrReferenced) {
			// The driver was deleted after the lookup above.
			return ErrDriverNotFound
		}
		return rideLookupError(err)
	})
	if err != nil {
		if isBusinessFailure(err) {
			result.Failure = err
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// lookupDriver loads a user and checks it can be assigned rides.
func lookupDriver(ctx context.Context, users repository.UserRepository, id string) (*domain.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}
	if !user.IsDriver() {
		return nil, ErrDriverNotFound
	}
	return user, nil
}

// isBusinessFailure reports whether err is an expected per-request failure
// rather than an infrastructure problem.
func isBusinessFailure(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConstraint) ||
		errors.Is(err, ErrConflict)
}
