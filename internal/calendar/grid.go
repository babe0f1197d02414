package calendar

import (
	"time"

	"bookcal/internal/model"
)

// CalendarDay is one cell of the month grid.
type CalendarDay struct {
	Date           time.Time
	IsCurrentMonth bool
	Bookings       []model.Booking
}

// BuildMonthGrid returns every day shown for the viewed month, padded with
// days of the adjacent months so the grid starts on the view's first weekday
// and ends on the day before it. The result length is a multiple of seven.
// A booking touching any displayed day is attached to it, fill days
// included.
func BuildMonthGrid(bookings []model.Booking, view ViewState) []CalendarDay {
	first := view.FirstOfMonth()
	last := view.LastOfMonth()

	gridStart := first.AddDate(0, 0, -leadingDays(first.Weekday(), view.WeekStart))
	gridEnd := last.AddDate(0, 0, DaysPerWeek-1-leadingDays(last.Weekday(), view.WeekStart))

	days := make([]CalendarDay, 0, daysBetween(gridStart, gridEnd)+1)
	for d := gridStart; !d.After(gridEnd); d = d.AddDate(0, 0, 1) {
		days = append(days, CalendarDay{
			Date:           d,
			IsCurrentMonth: d.Year() == view.Year && d.Month() == view.Month,
			Bookings:       BookingsForDate(bookings, d),
		})
	}
	return days
}

// BookingsForDate returns the bookings covering day, in input order.
func BookingsForDate(bookings []model.Booking, day time.Time) []model.Booking {
	out := make([]model.Booking, 0)
	for _, b := range bookings {
		if CoversDay(b, day) {
			out = append(out, b)
		}
	}
	return out
}

// leadingDays is the column of weekday wd in a week starting on ws.
func leadingDays(wd, ws time.Weekday) int {
	return (int(wd) - int(ws) + DaysPerWeek) % DaysPerWeek
}
