package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount       int32
	UpdateCallCount       int32
	AdvanceCallCount      int32
	UpdateDriverCallCount int32
	DeleteCallCount       int32
	SetStatusCallCount    int32
	ListCallCount         int32
	LastFilter            repository.RideFilter

	// Error injection
	CreateError       error
	ListError         error
	AdvanceError      error
	UpdateDriverError error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

// GetRide returns a copy of the stored ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil
	}
	copy := *ride
	return &copy
}

// CountRides returns the number of stored rides.
func (m *MockRideRepository) CountRides() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rides)
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	return m.GetByID(ctx, id)
}

func (m *MockRideRepository) List(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	atomic.AddInt32(&m.ListCallCount, 1)
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	m.LastFilter = filter
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*domain.Ride
	for _, r := range m.rides {
		if filter.DriverID != "" && r.DriverID != filter.DriverID {
			continue
		}
		if !filter.From.IsZero() && r.ScheduledDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !r.ScheduledDate.Before(filter.To) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		copy := *r
		result = append(result, &copy)
	}

	// Same order as the store: scheduled date, creation time, id.
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			return a.ScheduledDate.Before(b.ScheduledDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return result, nil
}

func (m *MockRideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[ride.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := *ride
	// Status, stamps and driver are not editable through Update.
	updated.Status = stored.Status
	updated.ConfirmedAt = stored.ConfirmedAt
	updated.PickedUpAt = stored.PickedUpAt
	updated.DroppedOffAt = stored.DroppedOffAt
	updated.DriverID = stored.DriverID
	m.rides[ride.ID] = &updated
	return nil
}

func (m *MockRideRepository) AdvanceStatus(ctx context.Context, id string, from, to domain.RideStatus, at time.Time) (bool, error) {
	atomic.AddInt32(&m.AdvanceCallCount, 1)
	if m.AdvanceError != nil {
		return false, m.AdvanceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok || ride.Status != from {
		return false, nil
	}
	updated := *ride
	updated.Status = to
	if stamp := updated.StampFor(to); stamp != nil && *stamp == nil {
		t := at
		*stamp = &t
	}
	m.rides[id] = &updated
	return true, nil
}

func (m *MockRideRepository) SetStatus(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.SetStatusCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[ride.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := *stored
	updated.Status = ride.Status
	updated.ConfirmedAt = ride.ConfirmedAt
	updated.PickedUpAt = ride.PickedUpAt
	updated.DroppedOffAt = ride.DroppedOffAt
	m.rides[ride.ID] = &updated
	return nil
}

func (m *MockRideRepository) UpdateDriver(ctx context.Context, id, driverID string) error {
	atomic.AddInt32(&m.UpdateDriverCallCount, 1)
	if m.UpdateDriverError != nil {
		return m.UpdateDriverError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	updated := *ride
	updated.DriverID = driverID
	m.rides[id] = &updated
	return nil
}

func (m *MockRideRepository) Delete(ctx context.Context, id string) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rides, id)
	return nil
}

func (m *MockRideRepository) CountByDriver(ctx context.Context, driverID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.rides {
		if r.DriverID == driverID {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	order []string

	// Counters for verification
	CreateCallCount int32
	DeleteCallCount int32
	ListCallCount   int32

	// Error injection
	GetByIDError error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.ID]; !exists {
		m.order = append(m.order, user.ID)
	}
	m.users[user.ID] = user
}

// HasUser reports whether a user is stored.
func (m *MockUserRepository) HasUser(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[id]
	return ok
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Login == user.Login {
			return repository.ErrDuplicate
		}
	}
	copy := *user
	m.users[user.ID] = &copy
	m.order = append(m.order, user.ID)
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (m *MockUserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Login == login {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	atomic.AddInt32(&m.ListCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.User
	for _, id := range m.order {
		u, ok := m.users[id]
		if !ok || (role != "" && u.Role != role) {
			continue
		}
		copy := *u
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockUserRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// ──────────────────────────────────────────────
// MOCK CLIENT REPOSITORY
// ──────────────────────────────────────────────

// MockClientRepository is a mock implementation of ClientRepository.
type MockClientRepository struct {
	mu      sync.RWMutex
	clients map[string]*domain.RegularClient

	CreateCallCount int32
}

// NewMockClientRepository creates a new mock client repository.
func NewMockClientRepository() *MockClientRepository {
	return &MockClientRepository{
		clients: make(map[string]*domain.RegularClient),
	}
}

// AddClient adds a regular client to the mock repository.
func (m *MockClientRepository) AddClient(client *domain.RegularClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ID] = client
}

// CountClients returns the number of stored clients.
func (m *MockClientRepository) CountClients() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *MockClientRepository) Create(ctx context.Context, client *domain.RegularClient) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *client
	m.clients[client.ID] = &copy
	return nil
}

func (m *MockClientRepository) GetByID(ctx context.Context, id string) (*domain.RegularClient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, ok := m.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *client
	return &copy, nil
}

func (m *MockClientRepository) List(ctx context.Context, filter repository.ClientFilter) ([]*domain.RegularClient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.RegularClient
	for _, c := range m.clients {
		if filter.ActiveOnly && !c.Active {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(c.FullName), strings.ToLower(filter.Query)) {
			continue
		}
		copy := *c
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	return result, nil
}

func (m *MockClientRepository) Update(ctx context.Context, client *domain.RegularClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *client
	m.clients[client.ID] = &copy
	return nil
}

func (m *MockClientRepository) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	client.Active = false
	return nil
}

// ──────────────────────────────────────────────
// MOCK TRANSACTOR
// ──────────────────────────────────────────────

// MockTransactor runs units of work one at a time against the mock repositories.
// It does not roll back; services under test must fail before mutating.
type MockTransactor struct {
	mu      sync.Mutex
	rides   *MockRideRepository
	users   *MockUserRepository
	clients *MockClientRepository

	TxCount int32
}

// NewMockTransactor creates a new mock transactor over the given repositories.
func NewMockTransactor(rides *MockRideRepository, users *MockUserRepository, clients *MockClientRepository) *MockTransactor {
	return &MockTransactor{rides: rides, users: users, clients: clients}
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	atomic.AddInt32(&m.TxCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.Repositories{Rides: m.rides, Users: m.users, Clients: m.clients})
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (func(), bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return nil, false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:ride:" + rideID
	if expiry, exists := m.locks[key]; exists && time.Now().Before(expiry) {
		return nil, false, nil // Lock still held.
	}
	m.locks[key] = time.Now().Add(ttl)

	release := func() {
		atomic.AddInt32(&m.ReleaseCallCount, 1)
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.locks, key)
	}
	return release, true, nil
}

// Hold takes the lock of a ride as another request would.
func (m *MockLockStore) Hold(rideID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks["lock:ride:"+rideID] = time.Now().Add(time.Minute)
}

// IsLocked checks if a ride is locked (for test assertions).
func (m *MockLockStore) IsLocked(rideID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:ride:"+rideID]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// MOCK ROSTER CACHE
// ──────────────────────────────────────────────

// MockRosterCache is a mock implementation of RosterCacheInterface.
type MockRosterCache struct {
	mu      sync.Mutex
	roster  []redis.CachedDriver
	present bool

	GetCallCount        int32
	SetCallCount        int32
	InvalidateCallCount int32

	GetError error
}

// NewMockRosterCache creates an empty roster cache.
func NewMockRosterCache() *MockRosterCache {
	return &MockRosterCache{}
}

func (m *MockRosterCache) GetDriverRoster(ctx context.Context) ([]redis.CachedDriver, bool, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, false, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		return nil, false, nil
	}
	return append([]redis.CachedDriver(nil), m.roster...), true, nil
}

func (m *MockRosterCache) SetDriverRoster(ctx context.Context, drivers []redis.CachedDriver) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster = append([]redis.CachedDriver(nil), drivers...)
	m.present = true
	return nil
}

func (m *MockRosterCache) InvalidateDriverRoster(ctx context.Context) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster = nil
	m.present = false
	return nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published notifications.
type MockPublisher struct {
	mu       sync.Mutex
	messages []Notification

	PublishError error
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := payload.(Notification); ok {
		m.messages = append(m.messages, n)
	}
	return m.PublishError
}

// Messages returns the notifications published so far.
func (m *MockPublisher) Messages() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.messages...)
}

// ──────────────────────────────────────────────
// FIXTURES
// ──────────────────────────────────────────────

var (
	testAdmin      = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	testDispatcher = domain.Actor{UserID: "disp-1", Role: domain.RoleDispatcher}
)

func driverActor(id string) domain.Actor {
	return domain.Actor{UserID: id, Role: domain.RoleDriver}
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

var paris = mustLoadLocation("Europe/Paris")

// fixedClock returns a clock stuck at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newDriver(id, name string) *domain.User {
	return &domain.User{ID: id, Login: strings.ToLower(name), DisplayName: name, Role: domain.RoleDriver}
}

func newTestRide(id, driverID string, date time.Time, pickup string) *domain.Ride {
	ride := &domain.Ride{
		ID:             id,
		DriverID:       driverID,
		ClientName:     "Client " + id,
		PickupAddress:  "1 rue de la Gare",
		DropoffAddress: "CHU",
		ScheduledDate:  domain.DateOnly(date, paris),
		Type:           domain.RideTypePrivate,
		Status:         domain.RideStatusNew,
		CreatedAt:      time.Date(2024, 3, 1, 7, 0, 0, 0, paris),
		CreatedBy:      testDispatcher.UserID,
	}
	if pickup != "" {
		t, err := domain.ParseTimeOfDay(pickup)
		if err != nil {
			panic(err)
		}
		ride.PickupTime = &t
	}
	return ride
}
