package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ClientHandler handles HTTP requests for regular clients.
type ClientHandler struct {
	clientService *service.ClientService
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(clientService *service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// ClientRequest is the HTTP request body for creating or updating a regular client.
type ClientRequest struct {
	FullName       string  `json:"full_name"`
	Phone          string  `json:"phone"`
	PickupAddress  string  `json:"pickup_address"`
	DropoffAddress string  `json:"dropoff_address"`
	RideType       string  `json:"ride_type"`
	Fare           float64 `json:"fare"`
	DistanceKm     float64 `json:"distance_km"`
	Notes          string  `json:"notes"`
}

func (r ClientRequest) input() service.ClientInput {
	return service.ClientInput{
		FullName:       r.FullName,
		Phone:          r.Phone,
		PickupAddress:  r.PickupAddress,
		DropoffAddress: r.DropoffAddress,
		RideType:       r.RideType,
		Fare:           r.Fare,
		DistanceKm:     r.DistanceKm,
		Notes:          r.Notes,
	}
}

// Create handles POST /v1/clients
func (h *ClientHandler) Create(c *gin.Context) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	client, err := h.clientService.Create(c.Request.Context(), actor(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, clientResponse(client))
}

// GetAll handles GET /v1/clients?active=true&q=
func (h *ClientHandler) GetAll(c *gin.Context) {
	filter := repository.ClientFilter{Query: c.Query("q")}
	if v := c.Query("active"); v != "" {
		activeOnly, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "active must be a boolean")
			return
		}
		filter.ActiveOnly = activeOnly
	}

	clients, err := h.clientService.List(c.Request.Context(), actor(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]ClientResponse, 0, len(clients))
	for _, cl := range clients {
		response = append(response, clientResponse(cl))
	}
	respondJSON(c, http.StatusOK, response)
}

// Get handles GET /v1/clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.clientService.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, clientResponse(client))
}

// Update handles PUT /v1/clients/:id
func (h *ClientHandler) Update(c *gin.Context) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	client, err := h.clientService.Update(c.Request.Context(), actor(c), c.Param("id"), req.input())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, clientResponse(client))
}

// Deactivate handles DELETE /v1/clients/:id
func (h *ClientHandler) Deactivate(c *gin.Context) {
	if err := h.clientService.Deactivate(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
