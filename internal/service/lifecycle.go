package service

import (
	"context"
	"errors"
	"log"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// rideLockTTL bounds how long a crashed request can keep a ride locked.
const rideLockTTL = 10 * time.Second

// LifecycleService moves rides through new -> confirmed -> picked-up -> dropped-off.
type LifecycleService struct {
	rideRepo            repository.RideRepository
	transactor          repository.Transactor
	lockStore           redis.LockStoreInterface
	notificationService *NotificationService
	loc                 *time.Location
	now                 func() time.Time
}

// NewLifecycleService creates a new LifecycleService.
// lockStore may be nil, in which case only the conditional update guards concurrent advances.
func NewLifecycleService(
	rideRepo repository.RideRepository,
	transactor repository.Transactor,
	lockStore redis.LockStoreInterface,
	notificationService *NotificationService,
	loc *time.Location,
) *LifecycleService {
	return &LifecycleService{
		rideRepo:            rideRepo,
		transactor:          transactor,
		lockStore:           lockStore,
		notificationService: notificationService,
		loc:                 loc,
		now:                 time.Now,
	}
}

// AdvanceRequest contains the parameters for advancing a ride.
type AdvanceRequest struct {
	Actor  domain.Actor
	RideID string
	// ExpectedStatus is the status the caller last saw. Optional.
	ExpectedStatus domain.RideStatus
}

// AdvanceResult describes the outcome of an advance.
type AdvanceResult struct {
	Ride    *domain.Ride
	From    domain.RideStatus
	To      domain.RideStatus
	Changed bool
}

// Advance moves a ride one step forward and stamps the time it entered the new status.
// Advancing a dropped-off ride changes nothing and is not an error.
func (s *LifecycleService) Advance(ctx context.Context, req AdvanceRequest) (*AdvanceResult, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.ExpectedStatus != "" && !req.ExpectedStatus.Valid() {
		return nil, ErrInvalidStatus
	}

	release, err := s.lockRide(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	defer release()

	ride, err := s.rideRepo.GetByID(ctx, req.RideID)
	if err != nil {
		return nil, rideLookupError(err)
	}

	if err := authorizeRideActor(req.Actor, ride); err != nil {
		return nil, err
	}

	if req.ExpectedStatus != "" && req.ExpectedStatus != ride.Status {
		return nil, ErrStatusConflict
	}

	from := ride.Status
	to, ok := from.Next()
	if !ok {
		return &AdvanceResult{Ride: ride, From: from, To: from, Changed: false}, nil
	}

	changed, err := s.rideRepo.AdvanceStatus(ctx, ride.ID, from, to, s.now().In(s.loc))
	if err != nil {
		return nil, rideLookupError(err)
	}
	if !changed {
		return nil, ErrStatusConflict
	}

	updated, err := s.rideRepo.GetByID(ctx, ride.ID)
	if err != nil {
		return nil, rideLookupError(err)
	}

	if s.notificationService != nil {
		s.notificationService.NotifyStatusChanged(ctx, updated, from)
	}

	return &AdvanceResult{Ride: updated, From: from, To: to, Changed: true}, nil
}

// CorrectRequest contains the parameters for an administrative status correction.
type CorrectRequest struct {
	Actor  domain.Actor
	RideID string
	Status domain.RideStatus
}

// Correct sets a ride to any status, outside the forward-only lifecycle.
// Timestamps of statuses up to the target are kept, or stamped now if missing.
// Timestamps of later statuses are cleared. Admin only.
func (s *LifecycleService) Correct(ctx context.Context, req CorrectRequest) (*domain.Ride, error) {
	if !req.Actor.IsAdmin() {
		return nil, ErrNotPermitted
	}
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	release, err := s.lockRide(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		ride *domain.Ride
		from domain.RideStatus
	)
	err = s.transactor.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ride, err = repos.Rides.GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			return rideLookupError(err)
		}

		from = ride.Status
		at := s.now().In(s.loc)
		for _, st := range []domain.RideStatus{
			domain.RideStatusConfirmed,
			domain.RideStatusPickedUp,
			domain.RideStatusDroppedOff,
		} {
			stamp := ride.StampFor(st)
			switch {
			case !req.Status.Reached(st):
				*stamp = nil
			case *stamp == nil:
				t := at
				*stamp = &t
			}
		}
		ride.Status = req.Status

		return repos.Rides.SetStatus(ctx, ride)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[LIFECYCLE] ride %s corrected from %s to %s by %s", ride.ID, from, ride.Status, req.Actor.UserID)
	return ride, nil
}

// lockRide takes the per-ride mutation lock when a lock store is configured.
// A lock store outage does not block the request: the store's conditional
// updates still reject lost races.
func (s *LifecycleService) lockRide(ctx context.Context, rideID string) (func(), error) {
	return acquireRideLock(ctx, s.lockStore, rideID)
}

func acquireRideLock(ctx context.Context, locks redis.LockStoreInterface, rideID string) (func(), error) {
	noop := func() {}
	if locks == nil {
		return noop, nil
	}

	release, ok, err := locks.AcquireRideLock(ctx, rideID, rideLockTTL)
	if err != nil {
		log.Printf("ride lock %s unavailable, continuing without it: %v", rideID, err)
		return noop, nil
	}
	if !ok {
		return nil, ErrRideBusy
	}
	return release, nil
}

// authorizeRideActor checks that the actor may act on the ride's progress.
// Drivers are limited to their own rides.
func authorizeRideActor(actor domain.Actor, ride *domain.Ride) error {
	switch {
	case actor.CanDispatch():
		return nil
	case actor.Role == domain.RoleDriver:
		if ride.DriverID != actor.UserID {
			return ErrNotRideDriver
		}
		return nil
	default:
		return ErrNotPermitted
	}
}

func rideLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRideNotFound
	}
	return err
}
