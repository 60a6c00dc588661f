package handler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// IN-MEMORY STORE
// ──────────────────────────────────────────────

// memStore backs the ride, user and client repositories of handler tests.
type memStore struct {
	mu      sync.Mutex
	rides   map[string]domain.Ride
	users   []*domain.User
	clients map[string]domain.RegularClient
}

func newMemStore() *memStore {
	return &memStore{
		rides:   make(map[string]domain.Ride),
		clients: make(map[string]domain.RegularClient),
	}
}

func (s *memStore) addRide(r *domain.Ride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides[r.ID] = *r
}

func (s *memStore) addUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

func (s *memStore) ride(id string) domain.Ride {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rides[id]
}

func (s *memStore) repositories() repository.Repositories {
	return repository.Repositories{Rides: memRides{s}, Users: memUsers{s}, Clients: memClients{s}}
}

// WithinTx implements repository.Transactor without rollback.
func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return fn(ctx, s.repositories())
}

// Drivers implements service.DriverDirectory in insertion order.
func (s *memStore) Drivers(ctx context.Context) ([]*domain.User, error) {
	return memUsers{s}.List(ctx, domain.RoleDriver)
}

type memRides struct{ s *memStore }

func (r memRides) Create(ctx context.Context, ride *domain.Ride) error {
	r.s.addRide(ride)
	return nil
}

func (r memRides) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ride, ok := r.s.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ride, nil
}

func (r memRides) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return r.GetByID(ctx, id)
}

func (r memRides) List(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Ride
	for _, ride := range r.s.rides {
		if filter.DriverID != "" && ride.DriverID != filter.DriverID {
			continue
		}
		if !filter.From.IsZero() && ride.ScheduledDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !ride.ScheduledDate.Before(filter.To) {
			continue
		}
		ride := ride
		out = append(out, &ride)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memRides) Update(ctx context.Context, ride *domain.Ride) error {
	r.s.addRide(ride)
	return nil
}

func (r memRides) AdvanceStatus(ctx context.Context, id string, from, to domain.RideStatus, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ride, ok := r.s.rides[id]
	if !ok || ride.Status != from {
		return false, nil
	}
	ride.Status = to
	if stamp := ride.StampFor(to); stamp != nil && *stamp == nil {
		*stamp = &at
	}
	r.s.rides[id] = ride
	return true, nil
}

func (r memRides) SetStatus(ctx context.Context, ride *domain.Ride) error {
	r.s.addRide(ride)
	return nil
}

func (r memRides) UpdateDriver(ctx context.Context, id, driverID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ride, ok := r.s.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	ride.DriverID = driverID
	r.s.rides[id] = ride
	return nil
}

func (r memRides) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.rides, id)
	return nil
}

func (r memRides) CountByDriver(ctx context.Context, driverID string) (int, error) {
	rides, err := r.List(ctx, repository.RideFilter{DriverID: driverID})
	return len(rides), err
}

type memUsers struct{ s *memStore }

func (u memUsers) Create(ctx context.Context, user *domain.User) error {
	u.s.addUser(user)
	return nil
}

func (u memUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (u memUsers) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.Login == login {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (u memUsers) List(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var out []*domain.User
	for _, user := range u.s.users {
		if role == "" || user.Role == role {
			out = append(out, user)
		}
	}
	return out, nil
}

func (u memUsers) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	users, err := u.List(ctx, role)
	return len(users), err
}

func (u memUsers) Delete(ctx context.Context, id string) error {
	return errors.New("not supported")
}

type memClients struct{ s *memStore }

func (c memClients) Create(ctx context.Context, client *domain.RegularClient) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.clients[client.ID] = *client
	return nil
}

func (c memClients) GetByID(ctx context.Context, id string) (*domain.RegularClient, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	client, ok := c.s.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &client, nil
}

func (c memClients) List(ctx context.Context, filter repository.ClientFilter) ([]*domain.RegularClient, error) {
	return nil, nil
}

func (c memClients) Update(ctx context.Context, client *domain.RegularClient) error {
	return c.Create(ctx, client)
}

func (c memClients) Deactivate(ctx context.Context, id string) error {
	return nil
}

// ──────────────────────────────────────────────
// ROUTER
// ──────────────────────────────────────────────

// tokenActors authenticates a fixed set of bearer tokens.
type tokenActors map[string]domain.Actor

func (t tokenActors) Authenticate(ctx context.Context, token string) (domain.Actor, error) {
	a, ok := t[token]
	if !ok {
		return domain.Actor{}, service.ErrInvalidToken
	}
	return a, nil
}

var testActors = tokenActors{
	"dispatcher": {UserID: "disp-1", Role: domain.RoleDispatcher},
	"alice":      {UserID: "driver-1", Role: domain.RoleDriver},
}

var paris = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		panic(err)
	}
	return loc
}()

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, paris)

// newTestStore returns a store with two drivers and one new ride for the first.
func newTestStore() *memStore {
	s := newMemStore()
	s.addUser(&domain.User{ID: "driver-1", Login: "alice", DisplayName: "Alice", Role: domain.RoleDriver})
	s.addUser(&domain.User{ID: "driver-2", Login: "bruno", DisplayName: "Bruno", Role: domain.RoleDriver})

	pickup, err := domain.ParseTimeOfDay("09:30")
	if err != nil {
		panic(err)
	}
	s.addRide(&domain.Ride{
		ID:             "ride-1",
		DriverID:       "driver-1",
		ClientName:     "Mme Durand",
		PickupAddress:  "12 rue Victor Hugo",
		DropoffAddress: "CHU",
		ScheduledDate:  monday,
		PickupTime:     &pickup,
		Type:           domain.RideTypePrivate,
		Status:         domain.RideStatusNew,
		CreatedAt:      time.Date(2024, 3, 1, 7, 0, 0, 0, paris),
		CreatedBy:      "disp-1",
	})
	return s
}

// newTestRouter wires the ride and planning handlers over store.
func newTestRouter(store *memStore) *gin.Engine {
	notifications := service.NewNotificationService(service.LogPublisher{})
	rides := NewRideHandler(
		service.NewRideService(memRides{store}, memClients{store}, store, notifications, paris),
		service.NewLifecycleService(memRides{store}, store, nil, notifications, paris),
		service.NewReassignService(store, nil, notifications),
		paris,
	)
	planning := NewPlanningHandler(service.NewPlanningService(memRides{store}, store, paris, 4), paris)

	router := gin.New()
	authed := router.Group("/v1", middleware.AuthMiddleware(testActors))
	authed.POST("/rides/:id/advance", rides.AdvanceRide)
	authed.POST("/rides/:id/reassign", rides.ReassignRide)
	authed.POST("/rides/reassign", rides.ReassignBatch)
	authed.GET("/planning/week", planning.Week)
	authed.GET("/planning/day", planning.Day)
	return router
}
