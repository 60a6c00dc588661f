package handler

import (
	"time"

	"dispatch/internal/domain"
)

const dateLayout = "2006-01-02"

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                  string     `json:"id"`
	DriverID            string     `json:"driver_id"`
	ClientName          string     `json:"client_name"`
	ClientPhone         string     `json:"client_phone,omitempty"`
	PickupAddress       string     `json:"pickup_address"`
	DropoffAddress      string     `json:"dropoff_address"`
	ScheduledDate       string     `json:"scheduled_date"`
	PickupTime          string     `json:"pickup_time,omitempty"`
	EffectiveTime       string     `json:"effective_time"`
	Type                string     `json:"type"`
	EstimatedFare       float64    `json:"estimated_fare"`
	EstimatedDistanceKm float64    `json:"estimated_distance_km"`
	DispatcherComment   string     `json:"dispatcher_comment,omitempty"`
	DriverComment       string     `json:"driver_comment,omitempty"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	ConfirmedAt         *time.Time `json:"confirmed_at,omitempty"`
	PickedUpAt          *time.Time `json:"picked_up_at,omitempty"`
	DroppedOffAt        *time.Time `json:"dropped_off_at,omitempty"`
	CreatedBy           string     `json:"created_by"`
	RegularClientID     *string    `json:"regular_client_id,omitempty"`
}

// rideView converts rides to their HTTP form. effectiveTime renders the
// display time in the dispatch timezone.
type rideView struct {
	effectiveTime func(*domain.Ride) string
}

func (v rideView) ride(r *domain.Ride) RideResponse {
	resp := RideResponse{
		ID:                  r.ID,
		DriverID:            r.DriverID,
		ClientName:          r.ClientName,
		ClientPhone:         r.ClientPhone,
		PickupAddress:       r.PickupAddress,
		DropoffAddress:      r.DropoffAddress,
		ScheduledDate:       r.ScheduledDate.Format(dateLayout),
		EffectiveTime:       v.effectiveTime(r),
		Type:                string(r.Type),
		EstimatedFare:       r.EstimatedFare,
		EstimatedDistanceKm: r.EstimatedDistanceKm,
		DispatcherComment:   r.DispatcherComment,
		DriverComment:       r.DriverComment,
		Status:              string(r.Status),
		CreatedAt:           r.CreatedAt,
		ConfirmedAt:         r.ConfirmedAt,
		PickedUpAt:          r.PickedUpAt,
		DroppedOffAt:        r.DroppedOffAt,
		CreatedBy:           r.CreatedBy,
		RegularClientID:     r.RegularClientID,
	}
	if r.PickupTime != nil {
		resp.PickupTime = r.PickupTime.String()
	}
	return resp
}

func (v rideView) rides(rides []*domain.Ride) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, v.ride(r))
	}
	return out
}

// UserResponse is the HTTP representation of an account. The password hash is never exposed.
type UserResponse struct {
	ID          string    `json:"id"`
	Login       string    `json:"login"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

func userResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Login:       u.Login,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
	}
}

func userResponses(users []*domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse(u))
	}
	return out
}

// ClientResponse is the HTTP representation of a regular client.
type ClientResponse struct {
	ID             string    `json:"id"`
	FullName       string    `json:"full_name"`
	Phone          string    `json:"phone,omitempty"`
	PickupAddress  string    `json:"pickup_address"`
	DropoffAddress string    `json:"dropoff_address"`
	RideType       string    `json:"ride_type"`
	Fare           float64   `json:"fare"`
	DistanceKm     float64   `json:"distance_km"`
	Notes          string    `json:"notes,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

func clientResponse(c *domain.RegularClient) ClientResponse {
	return ClientResponse{
		ID:             c.ID,
		FullName:       c.FullName,
		Phone:          c.Phone,
		PickupAddress:  c.PickupAddress,
		DropoffAddress: c.DropoffAddress,
		RideType:       string(c.RideType),
		Fare:           c.Fare,
		DistanceKm:     c.DistanceKm,
		Notes:          c.Notes,
		Active:         c.Active,
		CreatedAt:      c.CreatedAt,
	}
}
