package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/service"
)

// DriverHandler handles HTTP requests for the driver roster.
type DriverHandler struct {
	drivers service.DriverDirectory
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(drivers service.DriverDirectory) *DriverHandler {
	return &DriverHandler{drivers: drivers}
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	drivers, err := h.drivers.Drivers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, userResponses(drivers))
}
