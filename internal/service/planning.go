package service

import (
	"context"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// DaysPerWeek is the span of the weekly planning.
const DaysPerWeek = 7

// Slot is one hour of one planning day.
type Slot struct {
	Hour  int
	Rides []*domain.Ride
}

// WeekDay is one column of the weekly planning.
type WeekDay struct {
	Date  time.Time
	Slots []Slot
	// ByDriver holds every ride of the day per driver id, sorted by effective
	// time, including rides outside the slot hours.
	ByDriver map[string][]*domain.Ride
}

// WeekGrid is the weekly planning: DaysPerWeek days of SlotCount hourly buckets.
type WeekGrid struct {
	Start time.Time
	Days  []WeekDay
}

// DriverColumn is one column of the daily planning.
// Placeholder columns pad the grid to its fixed width and carry no driver.
type DriverColumn struct {
	Driver      *domain.User
	Placeholder bool
	Rides       []*domain.Ride
}

// DayGrid is the daily planning: one column per driver.
type DayGrid struct {
	Date    time.Time
	Columns []DriverColumn
	// Unassigned holds rides of the day whose driver is not in the roster.
	Unassigned []*domain.Ride
}

// StartOfWeek shifts t back to midnight of the Monday of its week in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := domain.DateOnly(t, loc)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// BuildWeekGrid lays rides out over the seven days starting at start.
// start is taken literally as day 0; callers align it to a Monday if they want a calendar week.
func BuildWeekGrid(start time.Time, rides []*domain.Ride, loc *time.Location) WeekGrid {
	first := domain.DateOnly(start, loc)
	grid := WeekGrid{
		Start: first,
		Days:  make([]WeekDay, DaysPerWeek),
	}

	for d := 0; d < DaysPerWeek; d++ {
		date := first.AddDate(0, 0, d)
		dayRides := ridesOn(rides, date, loc)

		day := WeekDay{
			Date:     date,
			Slots:    make([]Slot, 0, SlotCount),
			ByDriver: make(map[string][]*domain.Ride),
		}
		for _, ride := range dayRides {
			day.ByDriver[ride.DriverID] = append(day.ByDriver[ride.DriverID], ride)
		}
		for _, hour := range SlotHours() {
			slot := Slot{Hour: hour, Rides: []*domain.Ride{}}
			for _, ride := range dayRides {
				if InSlot(ride, hour, loc) {
					slot.Rides = append(slot.Rides, ride)
				}
			}
			day.Slots = append(day.Slots, slot)
		}
		grid.Days[d] = day
	}
	return grid
}

// BuildDayGrid lays the rides of one day out in driver columns.
// drivers gives the column order. The grid has max(columns, len(drivers)) columns,
// fixed when it is built; columns after the last driver are placeholders.
func BuildDayGrid(date time.Time, rides []*domain.Ride, drivers []*domain.User, columns int, loc *time.Location) DayGrid {
	day := domain.DateOnly(date, loc)
	width := columns
	if len(drivers) > width {
		width = len(drivers)
	}

	grid := DayGrid{
		Date:       day,
		Columns:    make([]DriverColumn, width),
		Unassigned: []*domain.Ride{},
	}

	index := make(map[string]int, len(drivers))
	for i, driver := range drivers {
		grid.Columns[i] = DriverColumn{Driver: driver, Rides: []*domain.Ride{}}
		index[driver.ID] = i
	}
	for i := len(drivers); i < width; i++ {
		grid.Columns[i] = DriverColumn{Placeholder: true, Rides: []*domain.Ride{}}
	}

	for _, ride := range ridesOn(rides, day, loc) {
		i, ok := index[ride.DriverID]
		if !ok {
			grid.Unassigned = append(grid.Unassigned, ride)
			continue
		}
		grid.Columns[i].Rides = append(grid.Columns[i].Rides, ride)
	}
	return grid
}

// ridesOn returns the rides scheduled on date, sorted by effective time.
func ridesOn(rides []*domain.Ride, date time.Time, loc *time.Location) []*domain.Ride {
	var out []*domain.Ride
	for _, ride := range rides {
		if ride.SameDay(date, loc) {
			out = append(out, ride)
		}
	}
	SortByEffectiveTime(out, loc)
	return out
}

// DriverDirectory provides the ordered roster of drivers.
type DriverDirectory interface {
	Drivers(ctx context.Context) ([]*domain.User, error)
}

// PlanningService builds planning views from the record store.
type PlanningService struct {
	rideRepo   repository.RideRepository
	drivers    DriverDirectory
	loc        *time.Location
	dayColumns int
	now        func() time.Time
}

// NewPlanningService creates a new PlanningService.
func NewPlanningService(
	rideRepo repository.RideRepository,
	drivers DriverDirectory,
	loc *time.Location,
	dayColumns int,
) *PlanningService {
	return &PlanningService{
		rideRepo:   rideRepo,
		drivers:    drivers,
		loc:        loc,
		dayColumns: dayColumns,
		now:        time.Now,
	}
}

// Week returns the weekly planning starting on the given YYYY-MM-DD date.
// An empty start means the current week's Monday.
func (s *PlanningService) Week(ctx context.Context, actor domain.Actor, start string) (*WeekGrid, error) {
	if !actor.CanDispatch() {
		return nil, ErrNotPermitted
	}

	first := StartOfWeek(s.now(), s.loc)
	if start != "" {
		d, err := domain.ParseDate(start, s.loc)
		if err != nil {
			return nil, ErrInvalidDate
		}
		first = d
	}

	rides, err := s.rideRepo.List(ctx, repository.RideFilter{
		From: first,
		To:   first.AddDate(0, 0, DaysPerWeek),
	})
	if err != nil {
		return nil, err
	}

	grid := BuildWeekGrid(first, rides, s.loc)
	return &grid, nil
}

// Day returns the daily planning, one column per driver.
func (s *PlanningService) Day(ctx context.Context, actor domain.Actor, date string) (*DayGrid, error) {
	if !actor.CanDispatch() {
		return nil, ErrNotPermitted
	}

	day, err := s.parseDay(date)
	if err != nil {
		return nil, err
	}

	rides, err := s.rideRepo.List(ctx, repository.RideFilter{From: day, To: day.AddDate(0, 0, 1)})
	if err != nil {
		return nil, err
	}

	drivers, err := s.drivers.Drivers(ctx)
	if err != nil {
		return nil, err
	}

	grid := BuildDayGrid(day, rides, drivers, s.dayColumns, s.loc)
	return &grid, nil
}

// DriverDay returns one driver's rides of a day, sorted by effective time.
// Drivers may only read their own day.
func (s *PlanningService) DriverDay(ctx context.Context, actor domain.Actor, driverID, date string) ([]*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if !actor.CanDispatch() && !(actor.Role == domain.RoleDriver && actor.UserID == driverID) {
		return nil, ErrNotPermitted
	}

	day, err := s.parseDay(date)
	if err != nil {
		return nil, err
	}

	rides, err := s.rideRepo.List(ctx, repository.RideFilter{
		DriverID: driverID,
		From:     day,
		To:       day.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, err
	}
	return ridesOn(rides, day, s.loc), nil
}

func (s *PlanningService) parseDay(date string) (time.Time, error) {
	if date == "" {
		return domain.DateOnly(s.now(), s.loc), nil
	}
	d, err := domain.ParseDate(date, s.loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}
