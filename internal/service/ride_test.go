package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
)

// ──────────────────────────────────────────────
// RIDE BOOKING
// ──────────────────────────────────────────────

type rideFixture struct {
	rides     *MockRideRepository
	users     *MockUserRepository
	clients   *MockClientRepository
	publisher *MockPublisher
	svc       *RideService
}

func newRideFixture() *rideFixture {
	f := &rideFixture{
		rides:     NewMockRideRepository(),
		users:     NewMockUserRepository(),
		clients:   NewMockClientRepository(),
		publisher: &MockPublisher{},
	}
	f.users.AddUser(newDriver("driver-1", "Alice"))
	f.users.AddUser(newDriver("driver-2", "Bruno"))

	transactor := NewMockTransactor(f.rides, f.users, f.clients)
	f.svc = NewRideService(f.rides, f.clients, transactor, NewNotificationService(f.publisher), paris)
	f.svc.now = fixedClock(time.Date(2024, 3, 1, 10, 0, 0, 0, paris))
	return f
}

func validCreateRequest() CreateRideRequest {
	return CreateRideRequest{
		Actor:          testDispatcher,
		DriverID:       "driver-1",
		ClientName:     "Mme Durand",
		ClientPhone:    "06 12 34 56 78",
		PickupAddress:  "12 rue Victor Hugo",
		DropoffAddress: "Hôpital Nord",
		ScheduledDate:  "2024-03-04",
		PickupTime:     "08:30",
		Type:           "reimbursable",
		EstimatedFare:  42.5,
	}
}

func TestCreateRide_Success(t *testing.T) {
	t.Parallel()

	f := newRideFixture()

	ride, err := f.svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ride.ID == "" {
		t.Error("expected an id")
	}
	if ride.Status != domain.RideStatusNew {
		t.Errorf("expected status new, got %s", ride.Status)
	}
	if ride.ConfirmedAt != nil || ride.PickedUpAt != nil || ride.DroppedOffAt != nil {
		t.Error("expected no status stamps on a new ride")
	}
	if ride.PickupTime == nil || ride.PickupTime.String() != "08:30" {
		t.Errorf("expected pickup 08:30, got %v", ride.PickupTime)
	}
	if !ride.ScheduledDate.Equal(monday) {
		t.Errorf("expected scheduled on %s, got %s", monday, ride.ScheduledDate)
	}
	if ride.CreatedBy != testDispatcher.UserID {
		t.Errorf("expected created by %s, got %s", testDispatcher.UserID, ride.CreatedBy)
	}
	if f.rides.CountRides() != 1 {
		t.Errorf("expected 1 stored ride, got %d", f.rides.CountRides())
	}

	messages := f.publisher.Messages()
	if len(messages) != 1 || messages[0].Type != NotificationRideCreated || messages[0].RecipientID != "driver-1" {
		t.Errorf("expected a created notice for driver-1, got %v", messages)
	}
}

func TestCreateRide_DefaultsToPrivate(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	req := validCreateRequest()
	req.Type = ""
	req.PickupTime = ""

	ride, err := f.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ride.Type != domain.RideTypePrivate {
		t.Errorf("expected private, got %s", ride.Type)
	}
	if ride.PickupTime != nil {
		t.Error("expected no pickup time")
	}
}

func TestCreateRide_ValidationRejectedBeforeStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*CreateRideRequest)
		want   error
	}{
		{"missing client", func(r *CreateRideRequest) { r.ClientName = "  " }, ErrMissingClientName},
		{"missing pickup", func(r *CreateRideRequest) { r.PickupAddress = "" }, ErrMissingAddress},
		{"missing dropoff", func(r *CreateRideRequest) { r.DropoffAddress = "" }, ErrMissingAddress},
		{"missing driver", func(r *CreateRideRequest) { r.DriverID = "" }, ErrInvalidDriverID},
		{"negative fare", func(r *CreateRideRequest) { r.EstimatedFare = -1 }, ErrInvalidAmount},
		{"bad date", func(r *CreateRideRequest) { r.ScheduledDate = "04/03/2024" }, ErrInvalidDate},
		{"unpadded pickup", func(r *CreateRideRequest) { r.PickupTime = "9:05" }, ErrInvalidPickupTime},
		{"pickup past midnight", func(r *CreateRideRequest) { r.PickupTime = "24:00" }, ErrInvalidPickupTime},
		{"unknown type", func(r *CreateRideRequest) { r.Type = "taxi" }, ErrInvalidRideType},
		// Client name is checked first.
		{"several problems", func(r *CreateRideRequest) { r.ClientName = ""; r.PickupTime = "bad" }, ErrMissingClientName},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newRideFixture()
			req := validCreateRequest()
			tt.modify(&req)

			_, err := f.svc.Create(context.Background(), req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !IsValidation(err) {
				t.Error("expected a validation error")
			}
			if f.rides.CreateCallCount != 0 {
				t.Error("expected the store untouched")
			}
		})
	}
}

func TestCreateRide_UnknownDriver(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	req := validCreateRequest()
	req.DriverID = "ghost"

	_, err := f.svc.Create(context.Background(), req)
	if !errors.Is(err, ErrDriverNotFound) {
		t.Fatalf("expected ErrDriverNotFound, got %v", err)
	}
	if f.rides.CountRides() != 0 {
		t.Error("expected no ride stored")
	}
}

func TestCreateRide_ForbiddenForDrivers(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	req := validCreateRequest()
	req.Actor = driverActor("driver-1")

	_, err := f.svc.Create(context.Background(), req)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("expected ErrNotPermitted, got %v", err)
	}
}

func TestCreateRide_PrefillsFromRegularClient(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	f.clients.AddClient(&domain.RegularClient{
		ID:             "client-1",
		FullName:       "M. Martin",
		Phone:          "06 00 00 00 00",
		PickupAddress:  "3 place de la Mairie",
		DropoffAddress: "Centre de dialyse",
		RideType:       domain.RideTypeReimbursable,
		Fare:           35,
		Active:         true,
	})

	ride, err := f.svc.Create(context.Background(), CreateRideRequest{
		Actor:           testDispatcher,
		DriverID:        "driver-2",
		ScheduledDate:   "2024-03-05",
		RegularClientID: "client-1",
		PickupAddress:   "Gare SNCF", // overrides the saved address
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ride.ClientName != "M. Martin" || ride.DropoffAddress != "Centre de dialyse" {
		t.Errorf("expected client details prefilled, got %q / %q", ride.ClientName, ride.DropoffAddress)
	}
	if ride.PickupAddress != "Gare SNCF" {
		t.Errorf("expected explicit pickup kept, got %q", ride.PickupAddress)
	}
	if ride.Type != domain.RideTypeReimbursable || ride.EstimatedFare != 35 {
		t.Errorf("expected reimbursable at 35, got %s at %v", ride.Type, ride.EstimatedFare)
	}
	if ride.RegularClientID == nil || *ride.RegularClientID != "client-1" {
		t.Error("expected the ride linked to client-1")
	}
}

func TestCreateRide_UnknownRegularClient(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	req := validCreateRequest()
	req.RegularClientID = "nope"

	_, err := f.svc.Create(context.Background(), req)
	if !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestCreateRide_SaveAsRegular(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	req := validCreateRequest()
	req.SaveAsRegular = true

	ride, err := f.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.clients.CountClients() != 1 {
		t.Fatalf("expected 1 regular client, got %d", f.clients.CountClients())
	}
	if ride.RegularClientID == nil {
		t.Fatal("expected the ride linked to the new client")
	}
	client, err := f.clients.GetByID(context.Background(), *ride.RegularClientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.FullName != "Mme Durand" || !client.Active {
		t.Errorf("unexpected client %+v", client)
	}
}

func TestListRides_DriverSeesOwnRidesOnly(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	f.rides.AddRide(newTestRide("mine", "driver-1", monday, "09:00"))
	f.rides.AddRide(newTestRide("theirs", "driver-2", monday, "10:00"))
	ctx := context.Background()

	rides, err := f.svc.List(ctx, ListRidesRequest{Actor: driverActor("driver-1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rides) != 1 || rides[0].ID != "mine" {
		t.Errorf("expected only [mine], got %v", rides)
	}

	_, err = f.svc.List(ctx, ListRidesRequest{Actor: driverActor("driver-1"), DriverID: "driver-2"})
	if !errors.Is(err, ErrNotRideDriver) {
		t.Errorf("expected ErrNotRideDriver, got %v", err)
	}
}

func TestListRides_FiltersAndOrder(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	tuesday := monday.AddDate(0, 0, 1)
	f.rides.AddRide(newTestRide("tue", "driver-1", tuesday, "07:00"))
	f.rides.AddRide(newTestRide("mon-late", "driver-1", monday, "18:00"))
	f.rides.AddRide(newTestRide("mon-early", "driver-2", monday, "06:30"))
	confirmed := newTestRide("mon-confirmed", "driver-2", monday, "12:00")
	confirmed.Status = domain.RideStatusConfirmed
	f.rides.AddRide(confirmed)
	ctx := context.Background()

	rides, err := f.svc.List(ctx, ListRidesRequest{Actor: testDispatcher, From: "2024-03-04", To: "2024-03-05"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"mon-early", "mon-confirmed", "mon-late", "tue"}
	if len(rides) != len(want) {
		t.Fatalf("expected %d rides, got %d", len(want), len(rides))
	}
	for i, id := range want {
		if rides[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, rides[i].ID)
		}
	}

	rides, err = f.svc.List(ctx, ListRidesRequest{Actor: testDispatcher, Status: "confirmed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rides) != 1 || rides[0].ID != "mon-confirmed" {
		t.Errorf("expected only the confirmed ride, got %v", rides)
	}

	if _, err := f.svc.List(ctx, ListRidesRequest{Actor: testDispatcher, Status: "Confirmed"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := f.svc.List(ctx, ListRidesRequest{Actor: testDispatcher, From: "2024-03-05", To: "2024-03-01"}); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestListRides_EmptyIsNotNil(t *testing.T) {
	t.Parallel()

	f := newRideFixture()

	rides, err := f.svc.List(context.Background(), ListRidesRequest{Actor: testDispatcher})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rides == nil {
		t.Error("expected an empty, non-nil list")
	}
}

func TestUpdateDetails_ValidatesEverythingFirst(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	f.rides.AddRide(newTestRide("ride-1", "driver-1", monday, "09:00"))

	name := "Nouveau nom"
	badTime := "9h"
	_, err := f.svc.UpdateDetails(context.Background(), UpdateRideRequest{
		Actor:      testDispatcher,
		RideID:     "ride-1",
		ClientName: &name,
		PickupTime: &badTime,
	})
	if !errors.Is(err, ErrInvalidPickupTime) {
		t.Fatalf("expected ErrInvalidPickupTime, got %v", err)
	}
	if f.rides.UpdateCallCount != 0 {
		t.Error("expected no store write")
	}
	if got := f.rides.GetRide("ride-1").ClientName; got == name {
		t.Error("expected client name unchanged")
	}
}

func TestUpdateDetails_AppliesChanges(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	ride := newTestRide("ride-1", "driver-1", monday, "09:00")
	ride.Status = domain.RideStatusConfirmed
	f.rides.AddRide(ride)

	date := "2024-03-06"
	noTime := ""
	fare := 50.0
	updated, err := f.svc.UpdateDetails(context.Background(), UpdateRideRequest{
		Actor:         testDispatcher,
		RideID:        "ride-1",
		ScheduledDate: &date,
		PickupTime:    &noTime,
		EstimatedFare: &fare,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.ScheduledDate.Equal(monday.AddDate(0, 0, 2)) {
		t.Errorf("expected Wednesday, got %s", updated.ScheduledDate)
	}
	if updated.PickupTime != nil {
		t.Error("expected pickup time cleared")
	}

	stored := f.rides.GetRide("ride-1")
	if stored.EstimatedFare != 50 || stored.Status != domain.RideStatusConfirmed {
		t.Errorf("unexpected stored ride: fare %v status %s", stored.EstimatedFare, stored.Status)
	}
}

func TestUpdateDriverComment_OwnRideOnly(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	f.rides.AddRide(newTestRide("ride-1", "driver-1", monday, "09:00"))
	ctx := context.Background()

	if _, err := f.svc.UpdateDriverComment(ctx, driverActor("driver-2"), "ride-1", "hello"); !errors.Is(err, ErrNotRideDriver) {
		t.Errorf("expected ErrNotRideDriver, got %v", err)
	}

	ride, err := f.svc.UpdateDriverComment(ctx, driverActor("driver-1"), "ride-1", "  client en fauteuil  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ride.DriverComment != "client en fauteuil" {
		t.Errorf("unexpected comment %q", ride.DriverComment)
	}
	if f.rides.GetRide("ride-1").DriverComment != "client en fauteuil" {
		t.Error("expected the comment stored")
	}
}

func TestDeleteRide(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	f.rides.AddRide(newTestRide("ride-1", "driver-1", monday, "09:00"))
	ctx := context.Background()

	if err := f.svc.Delete(ctx, driverActor("driver-1"), "ride-1"); !errors.Is(err, ErrNotPermitted) {
		t.Errorf("expected ErrNotPermitted, got %v", err)
	}
	if err := f.svc.Delete(ctx, testDispatcher, "ride-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.rides.CountRides() != 0 {
		t.Error("expected the ride removed")
	}
	if err := f.svc.Delete(ctx, testDispatcher, "ride-1"); !errors.Is(err, ErrRideNotFound) {
		t.Errorf("expected ErrRideNotFound, got %v", err)
	}

	messages := f.publisher.Messages()
	if len(messages) != 1 || messages[0].Type != NotificationRideDeleted {
		t.Errorf("expected one deleted notice, got %v", messages)
	}
}

func TestCreateRide_PublishFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	f.publisher.PublishError = errors.New("broker down")

	ride, err := f.svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.rides.GetRide(ride.ID) == nil {
		t.Error("expected the ride stored")
	}
}

func TestCreateRide_InactiveRegularClientRejected(t *testing.T) {
	t.Parallel()

	f := newRideFixture()
	f.clients.AddClient(&domain.RegularClient{
		ID:             "client-1",
		FullName:       "M. Martin",
		PickupAddress:  "3 place de la Mairie",
		DropoffAddress: "Centre de dialyse",
		RideType:       domain.RideTypePrivate,
		Active:         false,
	})

	req := validCreateRequest()
	req.RegularClientID = "client-1"

	_, err := f.svc.Create(context.Background(), req)
	if !errors.Is(err, ErrClientInactive) {
		t.Fatalf("expected ErrClientInactive, got %v", err)
	}
	if !IsConstraint(err) {
		t.Error("expected a constraint violation")
	}
	if f.rides.CountRides() != 0 {
		t.Error("expected no ride stored")
	}
}
