package domain

import "time"

// RegularClient is a saved customer profile reused when booking new rides.
// Clients are never physically deleted so that past rides keep a valid reference.
type RegularClient struct {
	ID             string
	FullName       string
	Phone          string
	PickupAddress  string
	DropoffAddress string
	RideType       RideType
	Fare           float64
	DistanceKm     float64
	Notes          string
	Active         bool
	CreatedAt      time.Time
}
