package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// RideService handles ride bookings and their details.
// Status changes live in LifecycleService, driver changes in ReassignService.
type RideService struct {
	rideRepo            repository.RideRepository
	clientRepo          repository.ClientRepository
	transactor          repository.Transactor
	notificationService *NotificationService
	loc                 *time.Location
	now                 func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(
	rideRepo repository.RideRepository,
	clientRepo repository.ClientRepository,
	transactor repository.Transactor,
	notificationService *NotificationService,
	loc *time.Location,
) *RideService {
	return &RideService{
		rideRepo:            rideRepo,
		clientRepo:          clientRepo,
		transactor:          transactor,
		notificationService: notificationService,
		loc:                 loc,
		now:                 time.Now,
	}
}

// CreateRideRequest contains the parameters for booking a ride.
// Dates are YYYY-MM-DD, pickup times HH:MM.
type CreateRideRequest struct {
	Actor               domain.Actor
	DriverID            string
	ClientName          string
	ClientPhone         string
	PickupAddress       string
	DropoffAddress      string
	ScheduledDate       string
	PickupTime          string // optional
	Type                string // defaults to private
	EstimatedFare       float64
	EstimatedDistanceKm float64
	DispatcherComment   string

	// RegularClientID fills blank fields from a saved client profile.
	RegularClientID string
	// SaveAsRegular stores the client as a regular client along with the ride.
	SaveAsRegular bool
}

// Create books a new ride in status new.
func (s *RideService) Create(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if !req.Actor.CanDispatch() {
		return nil, ErrNotPermitted
	}

	var regularClientID *string
	if req.RegularClientID != "" {
		client, err := s.clientRepo.GetByID(ctx, req.RegularClientID)
		if err != nil {
			return nil, clientLookupError(err)
		}
		if !client.Active {
			return nil, ErrClientInactive
		}
		prefillFromClient(&req, client)
		regularClientID = &client.ID
	}

	ride, err := s.buildRide(req)
	if err != nil {
		return nil, err
	}
	ride.RegularClientID = regularClientID

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := lookupDriver(ctx, repos.Users, ride.DriverID); err != nil {
			return err
		}

		if req.SaveAsRegular && ride.RegularClientID == nil {
			client := &domain.RegularClient{
				ID:             uuid.New().String(),
				FullName:       ride.ClientName,
				Phone:          ride.ClientPhone,
				PickupAddress:  ride.PickupAddress,
				DropoffAddress: ride.DropoffAddress,
				RideType:       ride.Type,
				Fare:           ride.EstimatedFare,
				DistanceKm:     ride.EstimatedDistanceKm,
				Active:         true,
				CreatedAt:      ride.CreatedAt,
			}
			if err := repos.Clients.Create(ctx, client); err != nil {
				return err
			}
			ride.RegularClientID = &client.ID
		}

		return repos.Rides.Create(ctx, ride)
	})
	if err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		s.notificationService.NotifyRideCreated(ctx, ride)
	}
	return ride, nil
}

func (s *RideService) buildRide(req CreateRideRequest) (*domain.Ride, error) {
	ride := &domain.Ride{
		ID:                  uuid.New().String(),
		DriverID:            strings.TrimSpace(req.DriverID),
		ClientName:          strings.TrimSpace(req.ClientName),
		ClientPhone:         strings.TrimSpace(req.ClientPhone),
		PickupAddress:       strings.TrimSpace(req.PickupAddress),
		DropoffAddress:      strings.TrimSpace(req.DropoffAddress),
		EstimatedFare:       req.EstimatedFare,
		EstimatedDistanceKm: req.EstimatedDistanceKm,
		DispatcherComment:   strings.TrimSpace(req.DispatcherComment),
		Status:              domain.RideStatusNew,
		CreatedAt:           s.now().In(s.loc),
		CreatedBy:           req.Actor.UserID,
	}

	if ride.ClientName == "" {
		return nil, ErrMissingClientName
	}
	if ride.PickupAddress == "" || ride.DropoffAddress == "" {
		return nil, ErrMissingAddress
	}
	if ride.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if ride.EstimatedFare < 0 || ride.EstimatedDistanceKm < 0 {
		return nil, ErrInvalidAmount
	}

	date, err := domain.ParseDate(strings.TrimSpace(req.ScheduledDate), s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}
	ride.ScheduledDate = date

	if ride.PickupTime, err = parsePickupTime(req.PickupTime); err != nil {
		return nil, err
	}
	if ride.Type, err = parseRideType(req.Type); err != nil {
		return nil, err
	}
	return ride, nil
}

func prefillFromClient(req *CreateRideRequest, client *domain.RegularClient) {
	if strings.TrimSpace(req.ClientName) == "" {
		req.ClientName = client.FullName
	}
	if strings.TrimSpace(req.ClientPhone) == "" {
		req.ClientPhone = client.Phone
	}
	if strings.TrimSpace(req.PickupAddress) == "" {
		req.PickupAddress = client.PickupAddress
	}
	if strings.TrimSpace(req.DropoffAddress) == "" {
		req.DropoffAddress = client.DropoffAddress
	}
	if req.Type == "" {
		req.Type = string(client.RideType)
	}
	if req.EstimatedFare == 0 {
		req.EstimatedFare = client.Fare
	}
	if req.EstimatedDistanceKm == 0 {
		req.EstimatedDistanceKm = client.DistanceKm
	}
}

// Get retrieves a ride. Drivers can only read their own rides.
func (s *RideService) Get(ctx context.Context, actor domain.Actor, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, rideLookupError(err)
	}
	if err := authorizeRideActor(actor, ride); err != nil {
		return nil, err
	}
	return ride, nil
}

// ListRidesRequest narrows a ride listing. Every field is optional.
type ListRidesRequest struct {
	Actor    domain.Actor
	DriverID string
	From     string // inclusive YYYY-MM-DD
	To       string // inclusive YYYY-MM-DD
	Status   string
}

// List returns rides ordered by scheduled date, then effective time.
// Drivers only ever see their own rides.
func (s *RideService) List(ctx context.Context, req ListRidesRequest) ([]*domain.Ride, error) {
	filter := repository.RideFilter{DriverID: req.DriverID}

	switch {
	case req.Actor.CanDispatch():
	case req.Actor.Role == domain.RoleDriver:
		if filter.DriverID != "" && filter.DriverID != req.Actor.UserID {
			return nil, ErrNotRideDriver
		}
		filter.DriverID = req.Actor.UserID
	default:
		return nil, ErrNotPermitted
	}

	if req.From != "" {
		from, err := domain.ParseDate(req.From, s.loc)
		if err != nil {
			return nil, ErrInvalidDate
		}
		filter.From = from
	}
	if req.To != "" {
		to, err := domain.ParseDate(req.To, s.loc)
		if err != nil {
			return nil, ErrInvalidDate
		}
		filter.To = to.AddDate(0, 0, 1)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, ErrInvalidDateRange
	}

	if req.Status != "" {
		status, err := domain.ParseRideStatus(req.Status)
		if err != nil {
			return nil, ErrInvalidStatus
		}
		filter.Status = status
	}

	rides, err := s.rideRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if rides == nil {
		rides = []*domain.Ride{}
	}

	sort.SliceStable(rides, func(i, j int) bool {
		di, dj := rides[i].ScheduledDate, rides[j].ScheduledDate
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return effectiveTimeOfDay(rides[i], s.loc).Minutes() < effectiveTimeOfDay(rides[j], s.loc).Minutes()
	})
	return rides, nil
}

// UpdateRideRequest lists the detail changes to apply. Nil fields are left as they are.
// An empty PickupTime clears the planned time.
type UpdateRideRequest struct {
	Actor               domain.Actor
	RideID              string
	ClientName          *string
	ClientPhone         *string
	PickupAddress       *string
	DropoffAddress      *string
	ScheduledDate       *string
	PickupTime          *string
	Type                *string
	EstimatedFare       *float64
	EstimatedDistanceKm *float64
	DispatcherComment   *string
}

// UpdateDetails edits a ride's booking details. Every field is validated
// before the store is touched. Status and driver are not editable here.
func (s *RideService) UpdateDetails(ctx context.Context, req UpdateRideRequest) (*domain.Ride, error) {
	if !req.Actor.CanDispatch() {
		return nil, ErrNotPermitted
	}
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}

	apply, err := s.validateUpdate(req)
	if err != nil {
		return nil, err
	}

	var ride *domain.Ride
	err = s.transactor.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ride, err = repos.Rides.GetByIDForUpdate(ctx, req.RideID)
		if err != nil {
			return rideLookupError(err)
		}
		apply(ride)
		return rideLookupError(repos.Rides.Update(ctx, ride))
	})
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// validateUpdate checks every requested change and returns a func applying them.
func (s *RideService) validateUpdate(req UpdateRideRequest) (func(*domain.Ride), error) {
	var edits []func(*domain.Ride)

	if req.ClientName != nil {
		name := strings.TrimSpace(*req.ClientName)
		if name == "" {
			return nil, ErrMissingClientName
		}
		edits = append(edits, func(r *domain.Ride) { r.ClientName = name })
	}
	if req.ClientPhone != nil {
		phone := strings.TrimSpace(*req.ClientPhone)
		edits = append(edits, func(r *domain.Ride) { r.ClientPhone = phone })
	}
	if req.PickupAddress != nil {
		addr := strings.TrimSpace(*req.PickupAddress)
		if addr == "" {
			return nil, ErrMissingAddress
		}
		edits = append(edits, func(r *domain.Ride) { r.PickupAddress = addr })
	}
	if req.DropoffAddress != nil {
		addr := strings.TrimSpace(*req.DropoffAddress)
		if addr == "" {
			return nil, ErrMissingAddress
		}
		edits = append(edits, func(r *domain.Ride) { r.DropoffAddress = addr })
	}
	if req.ScheduledDate != nil {
		date, err := domain.ParseDate(strings.TrimSpace(*req.ScheduledDate), s.loc)
		if err != nil {
			return nil, ErrInvalidDate
		}
		edits = append(edits, func(r *domain.Ride) { r.ScheduledDate = date })
	}
	if req.PickupTime != nil {
		pickup, err := parsePickupTime(*req.PickupTime)
		if err != nil {
			return nil, err
		}
		edits = append(edits, func(r *domain.Ride) { r.PickupTime = pickup })
	}
	if req.Type != nil {
		if *req.Type == "" {
			return nil, ErrInvalidRideType
		}
		rideType, err := parseRideType(*req.Type)
		if err != nil {
			return nil, err
		}
		edits = append(edits, func(r *domain.Ride) { r.Type = rideType })
	}
	if req.EstimatedFare != nil {
		fare := *req.EstimatedFare
		if fare < 0 {
			return nil, ErrInvalidAmount
		}
		edits = append(edits, func(r *domain.Ride) { r.EstimatedFare = fare })
	}
	if req.EstimatedDistanceKm != nil {
		distance := *req.EstimatedDistanceKm
		if distance < 0 {
			return nil, ErrInvalidAmount
		}
		edits = append(edits, func(r *domain.Ride) { r.EstimatedDistanceKm = distance })
	}
	if req.DispatcherComment != nil {
		comment := strings.TrimSpace(*req.DispatcherComment)
		edits = append(edits, func(r *domain.Ride) { r.DispatcherComment = comment })
	}

	return func(r *domain.Ride) {
		for _, edit := range edits {
			edit(r)
		}
	}, nil
}

// UpdateDriverComment sets the driver's note on a ride.
func (s *RideService) UpdateDriverComment(ctx context.Context, actor domain.Actor, rideID, comment string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	var ride *domain.Ride
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		ride, err = repos.Rides.GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return rideLookupError(err)
		}
		if err := authorizeRideActor(actor, ride); err != nil {
			return err
		}
		ride.DriverComment = strings.TrimSpace(comment)
		return rideLookupError(repos.Rides.Update(ctx, ride))
	})
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// Delete removes a ride.
func (s *RideService) Delete(ctx context.Context, actor domain.Actor, rideID string) error {
	if !actor.CanDispatch() {
		return ErrNotPermitted
	}
	if rideID == "" {
		return ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return rideLookupError(err)
	}
	if err := s.rideRepo.Delete(ctx, rideID); err != nil {
		return rideLookupError(err)
	}

	if s.notificationService != nil {
		s.notificationService.NotifyRideDeleted(ctx, ride)
	}
	return nil
}

// parsePickupTime accepts an empty string as "no planned time".
func parsePickupTime(s string) (*domain.TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := domain.ParseTimeOfDay(s)
	if err != nil {
		return nil, ErrInvalidPickupTime
	}
	return &t, nil
}

func parseRideType(s string) (domain.RideType, error) {
	if s == "" {
		return domain.RideTypePrivate, nil
	}
	t, err := domain.ParseRideType(s)
	if err != nil {
		return "", ErrInvalidRideType
	}
	return t, nil
}

func clientLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrClientNotFound
	}
	return err
}
