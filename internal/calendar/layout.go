package calendar

import (
	"time"

	"bookcal/internal/model"
)

// WeekLayout is one week row of the month view with its lanes.
type WeekLayout struct {
	Start time.Time
	End   time.Time
	Days  Week
	Lanes []Lane
}

// MonthLayout is everything the rendering side needs for one month.
type MonthLayout struct {
	Year  int
	Month time.Month
	Days  []CalendarDay
	Weeks []WeekLayout
}

// BuildLayout runs a full pass over a booking snapshot: grid, weeks and
// per-week lanes. The snapshot is not modified; bookings are ordered by
// start time then ID before lane assignment so repeated passes agree.
func BuildLayout(bookings []model.Booking, view ViewState) MonthLayout {
	sorted := SortBookings(bookings)

	days := BuildMonthGrid(sorted, view)
	weeks := PartitionWeeks(days)

	out := MonthLayout{
		Year:  view.Year,
		Month: view.Month,
		Days:  days,
		Weeks: make([]WeekLayout, 0, len(weeks)),
	}
	for _, w := range weeks {
		out.Weeks = append(out.Weeks, WeekLayout{
			Start: w.Start(),
			End:   w.End(),
			Days:  w,
			Lanes: AssignLanes(sorted, w.Start()),
		})
	}
	return out
}
