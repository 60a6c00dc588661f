package domain

import (
	"errors"
	"time"
)

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusNew        RideStatus = "new"
	RideStatusConfirmed  RideStatus = "confirmed"
	RideStatusPickedUp   RideStatus = "picked-up"
	RideStatusDroppedOff RideStatus = "dropped-off"
)

// RideType distinguishes rides billed to a health insurer from private fares.
type RideType string

const (
	RideTypeReimbursable RideType = "reimbursable"
	RideTypePrivate      RideType = "private"
)

var (
	// ErrUnknownRideStatus is returned when a status string is not one of the four ride states.
	ErrUnknownRideStatus = errors.New("unknown ride status")

	// ErrUnknownRideType is returned when a ride type string is not recognized.
	ErrUnknownRideType = errors.New("unknown ride type")
)

// rideFlow is the linear ride lifecycle. Order matters.
var rideFlow = []RideStatus{
	RideStatusNew,
	RideStatusConfirmed,
	RideStatusPickedUp,
	RideStatusDroppedOff,
}

// ParseRideStatus converts a raw value into a RideStatus.
// Matching is exact: "Confirmed" or "CONFIRMED" are rejected.
func ParseRideStatus(s string) (RideStatus, error) {
	for _, st := range rideFlow {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrUnknownRideStatus
}

// ParseRideType converts a raw value into a RideType.
func ParseRideType(s string) (RideType, error) {
	switch RideType(s) {
	case RideTypeReimbursable, RideTypePrivate:
		return RideType(s), nil
	default:
		return "", ErrUnknownRideType
	}
}

// Valid reports whether s is one of the four ride states.
func (s RideStatus) Valid() bool {
	_, err := ParseRideStatus(string(s))
	return err == nil
}

// Next returns the single status reachable from s.
// The second value is false for dropped-off and for unknown statuses.
func (s RideStatus) Next() (RideStatus, bool) {
	for i, st := range rideFlow {
		if st == s && i+1 < len(rideFlow) {
			return rideFlow[i+1], true
		}
	}
	return "", false
}

// Terminal reports whether no transition leaves s.
func (s RideStatus) Terminal() bool {
	return s == RideStatusDroppedOff
}

// rank is the position of s in the lifecycle, or -1.
func (s RideStatus) rank() int {
	for i, st := range rideFlow {
		if st == s {
			return i
		}
	}
	return -1
}

// Reached reports whether a ride in status s has reached or passed target.
func (s RideStatus) Reached(target RideStatus) bool {
	r, t := s.rank(), target.rank()
	return r >= 0 && t >= 0 && r >= t
}

// CanTransition reports whether from -> to is the one forward step of the lifecycle.
func CanTransition(from, to RideStatus) bool {
	next, ok := from.Next()
	return ok && next == to
}

// Ride represents a transport job ("course") from pickup to dropoff.
type Ride struct {
	ID                  string
	DriverID            string
	ClientName          string
	ClientPhone         string
	PickupAddress       string
	DropoffAddress      string
	ScheduledDate       time.Time  // calendar day the ride belongs to, at local midnight
	PickupTime          *TimeOfDay // planned pickup time-of-day, optional
	Type                RideType
	EstimatedFare       float64
	EstimatedDistanceKm float64
	DispatcherComment   string
	DriverComment       string
	Status              RideStatus
	CreatedAt           time.Time
	ConfirmedAt         *time.Time
	PickedUpAt          *time.Time
	DroppedOffAt        *time.Time
	CreatedBy           string
	RegularClientID     *string
}

// StampFor returns the timestamp field recording entry into status.
// It returns nil for the initial status, which has no dedicated stamp.
func (r *Ride) StampFor(status RideStatus) **time.Time {
	switch status {
	case RideStatusConfirmed:
		return &r.ConfirmedAt
	case RideStatusPickedUp:
		return &r.PickedUpAt
	case RideStatusDroppedOff:
		return &r.DroppedOffAt
	default:
		return nil
	}
}

// SameDay reports whether the ride is scheduled on the calendar day of t in loc.
func (r *Ride) SameDay(t time.Time, loc *time.Location) bool {
	y1, m1, d1 := r.ScheduledDate.In(loc).Date()
	y2, m2, d2 := t.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DateOnly truncates t to midnight of its calendar day in loc.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, loc)
}
