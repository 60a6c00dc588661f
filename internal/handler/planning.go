package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// PlanningHandler handles HTTP requests for the weekly and daily plannings.
type PlanningHandler struct {
	planningService *service.PlanningService
	view            rideView
}

// NewPlanningHandler creates a new PlanningHandler. Display times are rendered in loc.
func NewPlanningHandler(planningService *service.PlanningService, loc *time.Location) *PlanningHandler {
	return &PlanningHandler{
		planningService: planningService,
		view: rideView{effectiveTime: func(r *domain.Ride) string {
			return service.EffectiveTime(r, loc)
		}},
	}
}

// SlotResponse is one hour of a planning day.
type SlotResponse struct {
	Hour  int            `json:"hour"`
	Rides []RideResponse `json:"rides"`
}

// WeekDayResponse is one day of the weekly planning.
type WeekDayResponse struct {
	Date     string                    `json:"date"`
	Slots    []SlotResponse            `json:"slots"`
	ByDriver map[string][]RideResponse `json:"by_driver"`
}

// WeekResponse is the weekly planning.
type WeekResponse struct {
	Start string            `json:"start"`
	Days  []WeekDayResponse `json:"days"`
}

// ColumnResponse is one driver column of the daily planning.
type ColumnResponse struct {
	Driver      *UserResponse  `json:"driver,omitempty"`
	Placeholder bool           `json:"placeholder"`
	Rides       []RideResponse `json:"rides"`
}

// DayResponse is the daily planning.
type DayResponse struct {
	Date       string           `json:"date"`
	Columns    []ColumnResponse `json:"columns"`
	Unassigned []RideResponse   `json:"unassigned"`
}

// Week handles GET /v1/planning/week?start=YYYY-MM-DD
func (h *PlanningHandler) Week(c *gin.Context) {
	grid, err := h.planningService.Week(c.Request.Context(), actor(c), c.Query("start"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := WeekResponse{
		Start: grid.Start.Format(dateLayout),
		Days:  make([]WeekDayResponse, 0, len(grid.Days)),
	}
	for _, day := range grid.Days {
		dr := WeekDayResponse{
			Date:     day.Date.Format(dateLayout),
			Slots:    make([]SlotResponse, 0, len(day.Slots)),
			ByDriver: make(map[string][]RideResponse, len(day.ByDriver)),
		}
		for _, slot := range day.Slots {
			dr.Slots = append(dr.Slots, SlotResponse{Hour: slot.Hour, Rides: h.view.rides(slot.Rides)})
		}
		for driverID, rides := range day.ByDriver {
			dr.ByDriver[driverID] = h.view.rides(rides)
		}
		response.Days = append(response.Days, dr)
	}
	respondJSON(c, http.StatusOK, response)
}

// Day handles GET /v1/planning/day?date=YYYY-MM-DD
func (h *PlanningHandler) Day(c *gin.Context) {
	grid, err := h.planningService.Day(c.Request.Context(), actor(c), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := DayResponse{
		Date:       grid.Date.Format(dateLayout),
		Columns:    make([]ColumnResponse, 0, len(grid.Columns)),
		Unassigned: h.view.rides(grid.Unassigned),
	}
	for _, col := range grid.Columns {
		cr := ColumnResponse{Placeholder: col.Placeholder, Rides: h.view.rides(col.Rides)}
		if col.Driver != nil {
			u := userResponse(col.Driver)
			cr.Driver = &u
		}
		response.Columns = append(response.Columns, cr)
	}
	respondJSON(c, http.StatusOK, response)
}

// DriverDay handles GET /v1/planning/drivers/:id/day?date=YYYY-MM-DD
func (h *PlanningHandler) DriverDay(c *gin.Context) {
	rides, err := h.planningService.DriverDay(c.Request.Context(), actor(c), c.Param("id"), c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, h.view.rides(rides))
}
