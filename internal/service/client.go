package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// ClientService manages regular client profiles.
type ClientService struct {
	clientRepo repository.ClientRepository
	now        func() time.Time
}

// NewClientService creates a new ClientService.
func NewClientService(clientRepo repository.ClientRepository) *ClientService {
	return &ClientService{clientRepo: clientRepo, now: time.Now}
}

// ClientInput holds the editable fields of a regular client.
type ClientInput struct {
	FullName       string
	Phone          string
	PickupAddress  string
	DropoffAddress string
	RideType       string
	Fare           float64
	DistanceKm     float64
	Notes          string
}

func (in ClientInput) validate() (ClientInput, domain.RideType, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.PickupAddress = strings.TrimSpace(in.PickupAddress)
	in.DropoffAddress = strings.TrimSpace(in.DropoffAddress)
	in.Notes = strings.TrimSpace(in.Notes)

	if in.FullName == "" {
		return in, "", ErrMissingClientName
	}
	if in.Fare < 0 || in.DistanceKm < 0 {
		return in, "", ErrInvalidAmount
	}
	rideType, err := parseRideType(in.RideType)
	if err != nil {
		return in, "", err
	}
	return in, rideType, nil
}

// Create saves a new active regular client.
func (s *ClientService) Create(ctx context.Context, actor domain.Actor, in ClientInput) (*domain.RegularClient, error) {
	if !actor.CanDispatch() {
		return nil, ErrNotPermitted
	}

	in, rideType, err := in.validate()
	if err != nil {
		return nil, err
	}

	client := &domain.RegularClient{
		ID:             uuid.New().String(),
		FullName:       in.FullName,
		Phone:          in.Phone,
		PickupAddress:  in.PickupAddress,
		DropoffAddress: in.DropoffAddress,
		RideType:       rideType,
		Fare:           in.Fare,
		DistanceKm:     in.DistanceKm,
		Notes:          in.Notes,
		Active:         true,
		CreatedAt:      s.now(),
	}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// Get retrieves a regular client, active or not.
func (s *ClientService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.RegularClient, error) {
	if !actor.CanDispatch() {
		return nil, ErrNotPermitted
	}

	client, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, clientLookupError(err)
	}
	return client, nil
}

// List returns regular clients ordered by name.
func (s *ClientService) List(ctx context.Context, actor domain.Actor, filter repository.ClientFilter) ([]*domain.RegularClient, error) {
	if !actor.CanDispatch() {
		return nil, ErrNotPermitted
	}

	filter.Query = strings.TrimSpace(filter.Query)
	clients, err := s.clientRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []*domain.RegularClient{}
	}
	return clients, nil
}

// Update replaces a client's profile. The active flag is kept.
func (s *ClientService) Update(ctx context.Context, actor domain.Actor, id string, in ClientInput) (*domain.RegularClient, error) {
	if !actor.CanDispatch() {
		return nil, ErrNotPermitted
	}

	in, rideType, err := in.validate()
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, clientLookupError(err)
	}

	client.FullName = in.FullName
	client.Phone = in.Phone
	client.PickupAddress = in.PickupAddress
	client.DropoffAddress = in.DropoffAddress
	client.RideType = rideType
	client.Fare = in.Fare
	client.DistanceKm = in.DistanceKm
	client.Notes = in.Notes

	if err := s.clientRepo.Update(ctx, client); err != nil {
		return nil, clientLookupError(err)
	}
	return client, nil
}

// Deactivate hides a client from active listings. Rides keep their reference.
func (s *ClientService) Deactivate(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.CanDispatch() {
		return ErrNotPermitted
	}
	return clientLookupError(s.clientRepo.Deactivate(ctx, id))
}
