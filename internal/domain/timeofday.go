package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeOfDay is returned when a planned pickup time is not a valid HH:MM value.
var ErrInvalidTimeOfDay = errors.New("invalid time of day, expected HH:MM")

// TimeOfDay is a wall-clock time without a date, e.g. a planned pickup at 08:30.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a zero-padded "HH:MM" string.
// Anything else ("9:05", "24:00", "08:60", "8h30") is rejected.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 || strings.ContainsAny(s[:2], "+-") {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil || m < 0 || m > 59 || strings.ContainsAny(s[3:], "+-") {
		return TimeOfDay{}, ErrInvalidTimeOfDay
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// TimeOfDayOf returns the wall-clock part of t in loc.
func TimeOfDayOf(t time.Time, loc *time.Location) TimeOfDay {
	local := t.In(loc)
	return TimeOfDay{Hour: local.Hour(), Minute: local.Minute()}
}

// String renders the zero-padded HH:MM form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}
