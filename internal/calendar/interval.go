// Package calendar holds the month view layout engine: which bookings touch
// which day, how days group into weeks, and how the bookings of one week
// stack into non-colliding lanes. Everything here is a pure function of a
// booking snapshot and a ViewState.
package calendar

import (
	"time"

	"bookcal/internal/model"
)

// DaysPerWeek is the fixed width of a week row.
const DaysPerWeek = 7

// StartOfDay returns midnight of t's calendar date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar date in
// t's location.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// daysBetween counts calendar days from a to b using their wall-clock dates,
// so a 23h or 25h DST day still counts as one.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// span returns the booking interval expressed in loc, with the end clamped
// to the start for inverted ranges.
func span(b model.Booking, loc *time.Location) (time.Time, time.Time) {
	start, end := b.Span()
	return start.In(loc), end.In(loc)
}

// CoversDay reports whether the booking is visible on day. The day is taken
// as [00:00, 23:59:59.999...] and the booking's end is extended to the end
// of its end date: an event ending at 09:00 still occupies its whole last
// day. The start is used literally.
func CoversDay(b model.Booking, day time.Time) bool {
	loc := day.Location()
	start, end := span(b, loc)
	end = EndOfDay(end)

	return !StartOfDay(day).After(end) && !EndOfDay(day).Before(start)
}

// WeekOverlaps reports whether the booking touches any part of the week
// running from weekStart's date through weekEnd's date inclusive.
func WeekOverlaps(b model.Booking, weekStart, weekEnd time.Time) bool {
	lo := StartOfDay(weekStart)
	hi := EndOfDay(weekEnd.In(lo.Location()))
	start, end := span(b, lo.Location())

	return !start.After(hi) && !end.Before(lo)
}

// Clip returns the booking's day-index range inside the week starting on
// weekStart, both ends in [0, 6] and end >= start.
func Clip(b model.Booking, weekStart time.Time) (startDay, endDay int) {
	lo := StartOfDay(weekStart)
	hi := EndOfDay(lo.AddDate(0, 0, DaysPerWeek-1))
	start, end := span(b, lo.Location())

	if start.Before(lo) {
		start = lo
	}
	if end.After(hi) {
		end = hi
	}

	startDay = clampIndex(daysBetween(lo, start))
	endDay = clampIndex(daysBetween(lo, end))
	if endDay < startDay {
		endDay = startDay
	}
	return startDay, endDay
}

func clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i > DaysPerWeek-1 {
		return DaysPerWeek - 1
	}
	return i
}
