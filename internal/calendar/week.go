package calendar

import "time"

// Week is seven consecutive grid days.
type Week []CalendarDay

// Start is the date of the first column.
func (w Week) Start() time.Time {
	if len(w) == 0 {
		return time.Time{}
	}
	return w[0].Date
}

// End is the date of the last column.
func (w Week) End() time.Time {
	if len(w) == 0 {
		return time.Time{}
	}
	return w[len(w)-1].Date
}

// PartitionWeeks chunks the grid into weeks of seven days, keeping order.
// A trailing partial chunk, which BuildMonthGrid never produces, is dropped.
func PartitionWeeks(days []CalendarDay) []Week {
	weeks := make([]Week, 0, len(days)/DaysPerWeek)
	for i := 0; i+DaysPerWeek <= len(days); i += DaysPerWeek {
		weeks = append(weeks, Week(days[i:i+DaysPerWeek]))
	}
	return weeks
}
