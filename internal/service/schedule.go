package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"dispatch/internal/domain"
)

// Planning grid hours, both inclusive. Rides outside are not displayed in the grid.
const (
	FirstSlotHour = 6
	LastSlotHour  = 22
)

// SlotCount is the number of one-hour buckets of a planning day.
const SlotCount = LastSlotHour - FirstSlotHour + 1

// effectiveTimeOfDay is the planned pickup time if set, otherwise the creation time in loc.
func effectiveTimeOfDay(ride *domain.Ride, loc *time.Location) domain.TimeOfDay {
	if ride.PickupTime != nil {
		return *ride.PickupTime
	}
	return domain.TimeOfDayOf(ride.CreatedAt, loc)
}

// EffectiveTime returns the single display time of a ride as HH:MM, used for
// sorting and slotting. An explicit pickup time wins over the creation time.
func EffectiveTime(ride *domain.Ride, loc *time.Location) string {
	return effectiveTimeOfDay(ride, loc).String()
}

// NormalizeTime zero-pads the hour of an "H:M" string to two digits.
// The minute part is checked to be numeric but kept exactly as given, so
// "9:5" becomes "09:5", not "09:05". Slot matching only looks at the hour.
func NormalizeTime(s string) (string, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeString, s)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeString, s)
	}
	if _, err := strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeString, s)
	}
	return fmt.Sprintf("%02d:%s", hour, parts[1]), nil
}

// InSlot reports whether a ride belongs to the one-hour bucket starting at hour.
func InSlot(ride *domain.Ride, hour int, loc *time.Location) bool {
	normalized, err := NormalizeTime(EffectiveTime(ride, loc))
	if err != nil {
		return false
	}
	return strings.HasPrefix(normalized, fmt.Sprintf("%02d:", hour))
}

// SlotHours lists the starting hour of every planning bucket.
func SlotHours() []int {
	hours := make([]int, 0, SlotCount)
	for h := FirstSlotHour; h <= LastSlotHour; h++ {
		hours = append(hours, h)
	}
	return hours
}

// SortByEffectiveTime orders rides by effective time, earliest first.
// The sort is stable: rides at the same time keep their input order.
func SortByEffectiveTime(rides []*domain.Ride, loc *time.Location) {
	sort.SliceStable(rides, func(i, j int) bool {
		return effectiveTimeOfDay(rides[i], loc).Minutes() < effectiveTimeOfDay(rides[j], loc).Minutes()
	})
}
