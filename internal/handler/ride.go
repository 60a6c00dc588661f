package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService      *service.RideService
	lifecycleService *service.LifecycleService
	reassignService  *service.ReassignService
	view             rideView
}

// NewRideHandler creates a new RideHandler. Display times are rendered in loc.
func NewRideHandler(
	rideService *service.RideService,
	lifecycleService *service.LifecycleService,
	reassignService *service.ReassignService,
	loc *time.Location,
) *RideHandler {
	return &RideHandler{
		rideService:      rideService,
		lifecycleService: lifecycleService,
		reassignService:  reassignService,
		view: rideView{effectiveTime: func(r *domain.Ride) string {
			return service.EffectiveTime(r, loc)
		}},
	}
}

// CreateRideRequest is the HTTP request body for booking a ride.
type CreateRideRequest struct {
	DriverID            string  `json:"driver_id"`
	ClientName          string  `json:"client_name"`
	ClientPhone         string  `json:"client_phone"`
	PickupAddress       string  `json:"pickup_address"`
	DropoffAddress      string  `json:"dropoff_address"`
	ScheduledDate       string  `json:"scheduled_date"` // YYYY-MM-DD
	PickupTime          string  `json:"pickup_time"`    // HH:MM, optional
	Type                string  `json:"type"`           // reimbursable, private
	EstimatedFare       float64 `json:"estimated_fare"`
	EstimatedDistanceKm float64 `json:"estimated_distance_km"`
	DispatcherComment   string  `json:"dispatcher_comment"`
	RegularClientID     string  `json:"regular_client_id"`
	SaveAsRegular       bool    `json:"save_as_regular"`
}

// UpdateRideRequest is the HTTP request body for editing a ride. Absent fields are kept.
type UpdateRideRequest struct {
	ClientName          *string  `json:"client_name"`
	ClientPhone         *string  `json:"client_phone"`
	PickupAddress       *string  `json:"pickup_address"`
	DropoffAddress      *string  `json:"dropoff_address"`
	ScheduledDate       *string  `json:"scheduled_date"`
	PickupTime          *string  `json:"pickup_time"`
	Type                *string  `json:"type"`
	EstimatedFare       *float64 `json:"estimated_fare"`
	EstimatedDistanceKm *float64 `json:"estimated_distance_km"`
	DispatcherComment   *string  `json:"dispatcher_comment"`
}

// AdvanceRideRequest is the optional HTTP request body for advancing a ride.
type AdvanceRideRequest struct {
	ExpectedStatus string `json:"expected_status"`
}

// AdvanceRideResponse is the HTTP response for advancing a ride.
type AdvanceRideResponse struct {
	Ride    RideResponse `json:"ride"`
	From    string       `json:"from"`
	To      string       `json:"to"`
	Changed bool         `json:"changed"`
}

// CorrectRideRequest is the HTTP request body for an administrative status correction.
type CorrectRideRequest struct {
	Status string `json:"status"`
}

// DriverCommentRequest is the HTTP request body for the driver's note.
type DriverCommentRequest struct {
	Comment string `json:"comment"`
}

// ReassignRideRequest is the HTTP request body for reassigning one ride.
type ReassignRideRequest struct {
	DriverID string `json:"driver_id"`
}

// BatchReassignRequest is the HTTP request body for reassigning several rides.
type BatchReassignRequest struct {
	RideIDs  []string `json:"ride_ids"`
	DriverID string   `json:"driver_id"`
}

// ReassignResponse reports the outcome for one ride.
type ReassignResponse struct {
	RideID        string `json:"ride_id"`
	ClientName    string `json:"client_name,omitempty"`
	OldDriverID   string `json:"old_driver_id,omitempty"`
	OldDriverName string `json:"old_driver_name,omitempty"`
	NewDriverID   string `json:"new_driver_id"`
	NewDriverName string `json:"new_driver_name,omitempty"`
	Succeeded     bool   `json:"succeeded"`
	Error         string `json:"error,omitempty"`
}

// BatchReassignResponse summarizes a batch reassignment.
type BatchReassignResponse struct {
	Requested int                `json:"requested"`
	Succeeded int                `json:"succeeded"`
	Results   []ReassignResponse `json:"results"`
}

func reassignResponse(r service.ReassignResult) ReassignResponse {
	resp := ReassignResponse{
		RideID:        r.RideID,
		ClientName:    r.ClientName,
		OldDriverID:   r.OldDriverID,
		OldDriverName: r.OldDriverName,
		NewDriverID:   r.NewDriverID,
		NewDriverName: r.NewDriverName,
		Succeeded:     r.Succeeded(),
	}
	if r.Failure != nil {
		resp.Error = r.Failure.Error()
	}
	return resp
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.Create(c.Request.Context(), service.CreateRideRequest{
		Actor:               actor(c),
		DriverID:            req.DriverID,
		ClientName:          req.ClientName,
		ClientPhone:         req.ClientPhone,
		PickupAddress:       req.PickupAddress,
		DropoffAddress:      req.DropoffAddress,
		ScheduledDate:       req.ScheduledDate,
		PickupTime:          req.PickupTime,
		Type:                req.Type,
		EstimatedFare:       req.EstimatedFare,
		EstimatedDistanceKm: req.EstimatedDistanceKm,
		DispatcherComment:   req.DispatcherComment,
		RegularClientID:     req.RegularClientID,
		SaveAsRegular:       req.SaveAsRegular,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, h.view.ride(ride))
}

// GetAll handles GET /v1/rides?driver_id=&from=&to=&status=
func (h *RideHandler) GetAll(c *gin.Context) {
	rides, err := h.rideService.List(c.Request.Context(), service.ListRidesRequest{
		Actor:    actor(c),
		DriverID: c.Query("driver_id"),
		From:     c.Query("from"),
		To:       c.Query("to"),
		Status:   c.Query("status"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, h.view.rides(rides))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, h.view.ride(ride))
}

// UpdateRide handles PATCH /v1/rides/:id
func (h *RideHandler) UpdateRide(c *gin.Context) {
	var req UpdateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.UpdateDetails(c.Request.Context(), service.UpdateRideRequest{
		Actor:               actor(c),
		RideID:              c.Param("id"),
		ClientName:          req.ClientName,
		ClientPhone:         req.ClientPhone,
		PickupAddress:       req.PickupAddress,
		DropoffAddress:      req.DropoffAddress,
		ScheduledDate:       req.ScheduledDate,
		PickupTime:          req.PickupTime,
		Type:                req.Type,
		EstimatedFare:       req.EstimatedFare,
		EstimatedDistanceKm: req.EstimatedDistanceKm,
		DispatcherComment:   req.DispatcherComment,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, h.view.ride(ride))
}

// DeleteRide handles DELETE /v1/rides/:id
func (h *RideHandler) DeleteRide(c *gin.Context) {
	if err := h.rideService.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AdvanceRide handles POST /v1/rides/:id/advance
func (h *RideHandler) AdvanceRide(c *gin.Context) {
	// The body is optional, chunked or not.
	var req AdvanceRideRequest
	if c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, "invalid request body")
			return
		}
	}

	var expected domain.RideStatus
	if req.ExpectedStatus != "" {
		status, err := domain.ParseRideStatus(req.ExpectedStatus)
		if err != nil {
			respondError(c, service.ErrInvalidStatus)
			return
		}
		expected = status
	}

	result, err := h.lifecycleService.Advance(c.Request.Context(), service.AdvanceRequest{
		Actor:          actor(c),
		RideID:         c.Param("id"),
		ExpectedStatus: expected,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AdvanceRideResponse{
		Ride:    h.view.ride(result.Ride),
		From:    string(result.From),
		To:      string(result.To),
		Changed: result.Changed,
	})
}

// CorrectRide handles POST /v1/rides/:id/correct
func (h *RideHandler) CorrectRide(c *gin.Context) {
	var req CorrectRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	status, err := domain.ParseRideStatus(req.Status)
	if err != nil {
		respondError(c, service.ErrInvalidStatus)
		return
	}

	ride, err := h.lifecycleService.Correct(c.Request.Context(), service.CorrectRequest{
		Actor:  actor(c),
		RideID: c.Param("id"),
		Status: status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, h.view.ride(ride))
}

// UpdateDriverComment handles PUT /v1/rides/:id/driver-comment
func (h *RideHandler) UpdateDriverComment(c *gin.Context) {
	var req DriverCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.UpdateDriverComment(c.Request.Context(), actor(c), c.Param("id"), req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, h.view.ride(ride))
}

// ReassignRide handles POST /v1/rides/:id/reassign
// A rejected reassignment is answered with the error status and the result body.
func (h *RideHandler) ReassignRide(c *gin.Context) {
	var req ReassignRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.reassignService.Reassign(c.Request.Context(), service.ReassignRequest{
		Actor:       actor(c),
		RideID:      c.Param("id"),
		NewDriverID: req.DriverID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	code := http.StatusOK
	if !result.Succeeded() {
		code = mapErrorToHTTPStatus(result.Failure)
	}
	respondJSON(c, code, reassignResponse(result))
}

// ReassignBatch handles POST /v1/rides/reassign
func (h *RideHandler) ReassignBatch(c *gin.Context) {
	var req BatchReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	batch, err := h.reassignService.ReassignBatch(c.Request.Context(), service.BatchReassignRequest{
		Actor:       actor(c),
		RideIDs:     req.RideIDs,
		NewDriverID: req.DriverID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := BatchReassignResponse{
		Requested: batch.Requested,
		Succeeded: batch.Succeeded,
		Results:   make([]ReassignResponse, 0, len(batch.Results)),
	}
	for _, r := range batch.Results {
		response.Results = append(response.Results, reassignResponse(r))
	}
	respondJSON(c, http.StatusOK, response)
}
