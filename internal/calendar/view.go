package calendar

import "time"

// ViewState is the navigation state of a month view. It is a plain value:
// navigation returns a new ViewState instead of mutating the receiver.
type ViewState struct {
	Year  int
	Month time.Month

	// Selected is the day the user picked, zero when none.
	Selected time.Time

	// Location is the display timezone. Nil means time.Local.
	Location *time.Location

	// WeekStart is the first column of every week row. The zero value is
	// time.Sunday.
	WeekStart time.Weekday
}

// NewViewState returns the view of the month containing now, in loc.
func NewViewState(now time.Time, loc *time.Location) ViewState {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	return ViewState{
		Year:     now.Year(),
		Month:    now.Month(),
		Location: loc,
	}
}

// WithWeekStart returns a copy of v using ws as first day of week.
func (v ViewState) WithWeekStart(ws time.Weekday) ViewState {
	v.WeekStart = ws
	return v
}

func (v ViewState) location() *time.Location {
	if v.Location == nil {
		return time.Local
	}
	return v.Location
}

// FirstOfMonth is midnight of the first day of the viewed month.
func (v ViewState) FirstOfMonth() time.Time {
	return time.Date(v.Year, v.Month, 1, 0, 0, 0, 0, v.location())
}

// LastOfMonth is midnight of the last day of the viewed month.
func (v ViewState) LastOfMonth() time.Time {
	return v.FirstOfMonth().AddDate(0, 1, -1)
}

// Next moves to the following month and clears the selection.
func (v ViewState) Next() ViewState {
	return v.shift(1)
}

// Prev moves to the preceding month and clears the selection.
func (v ViewState) Prev() ViewState {
	return v.shift(-1)
}

func (v ViewState) shift(months int) ViewState {
	first := v.FirstOfMonth().AddDate(0, months, 0)
	v.Year = first.Year()
	v.Month = first.Month()
	v.Selected = time.Time{}
	return v
}

// Today jumps to the month containing now and selects today.
func (v ViewState) Today(now time.Time) ViewState {
	now = now.In(v.location())
	v.Year = now.Year()
	v.Month = now.Month()
	v.Selected = StartOfDay(now)
	return v
}

// Select marks day as selected without changing the viewed month.
func (v ViewState) Select(day time.Time) ViewState {
	v.Selected = StartOfDay(day.In(v.location()))
	return v
}

// Contains reports whether t falls in the viewed month.
func (v ViewState) Contains(t time.Time) bool {
	t = t.In(v.location())
	return t.Year() == v.Year && t.Month() == v.Month
}
