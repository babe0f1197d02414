package calendar

import (
	"sort"
	"time"

	"bookcal/internal/model"
)

// Placement is one bar of a lane: the booking and the day columns it spans
// inside a single week.
type Placement struct {
	Booking  model.Booking
	StartDay int
	EndDay   int
}

// Width is the number of day columns the bar covers.
func (p Placement) Width() int {
	return p.EndDay - p.StartDay + 1
}

// Overlaps reports whether two placements share at least one day column.
func (p Placement) Overlaps(o Placement) bool {
	return !(p.EndDay < o.StartDay || p.StartDay > o.EndDay)
}

// Lane is one rendering row of a week. Placements in a lane never overlap.
type Lane []Placement

func (l Lane) fits(p Placement) bool {
	for _, existing := range l {
		if existing.Overlaps(p) {
			return false
		}
	}
	return true
}

// AssignLanes lays out the bookings touching the week starting on weekStart.
// Bookings are taken in input order and each goes into the lowest lane that
// has room for its clipped span; a new lane is opened otherwise. Bookings
// outside the week are ignored. The result depends only on the inputs and
// their order.
func AssignLanes(bookings []model.Booking, weekStart time.Time) []Lane {
	weekEnd := StartOfDay(weekStart).AddDate(0, 0, DaysPerWeek-1)

	var lanes []Lane
	for _, b := range bookings {
		if !WeekOverlaps(b, weekStart, weekEnd) {
			continue
		}
		startDay, endDay := Clip(b, weekStart)
		p := Placement{Booking: b, StartDay: startDay, EndDay: endDay}

		placed := false
		for i := range lanes {
			if lanes[i].fits(p) {
				lanes[i] = append(lanes[i], p)
				placed = true
				break
			}
		}
		if !placed {
			lanes = append(lanes, Lane{p})
		}
	}
	return lanes
}

// SortBookings returns a copy of bookings ordered by start time, then ID,
// which is the order the layout pass feeds to AssignLanes.
func SortBookings(bookings []model.Booking) []model.Booking {
	out := make([]model.Booking, len(bookings))
	copy(out, bookings)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
