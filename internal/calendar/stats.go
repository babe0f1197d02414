package calendar

import (
	"fmt"
	"math"
	"time"

	"bookcal/internal/model"
)

// Stats are the summary cards shown above the month grid.
type Stats struct {
	MonthCount          int `json:"month_count"`
	TodayCount          int `json:"today_count"`
	UpcomingCount       int `json:"upcoming_count"`
	YearToDateCount     int `json:"year_to_date_count"`
	YearToDateConfirmed int `json:"year_to_date_confirmed"`
	PendingCount        int `json:"pending_count"`
	MonthParticipants   int `json:"month_participants"`
}

// ComputeStats derives the summary counts from the snapshot:
//   - MonthCount / PendingCount / MonthParticipants: bookings starting in the viewed month
//   - TodayCount: bookings covering now's date
//   - UpcomingCount: bookings starting strictly after now
//   - YearToDateCount: bookings starting between Jan 1 of now's year and now
//   - YearToDateConfirmed: the confirmed subset of YearToDateCount
func ComputeStats(bookings []model.Booking, view ViewState, now time.Time) Stats {
	loc := view.location()
	now = now.In(loc)
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)

	var s Stats
	for _, b := range bookings {
		start := b.Start.In(loc)

		if view.Contains(start) {
			s.MonthCount++
			s.MonthParticipants += b.Participants
			if b.Status == model.StatusPending {
				s.PendingCount++
			}
		}
		if CoversDay(b, now) {
			s.TodayCount++
		}
		if start.After(now) {
			s.UpcomingCount++
		}
		if !start.Before(yearStart) && !start.After(now) {
			s.YearToDateCount++
			if b.Status == model.StatusConfirmed {
				s.YearToDateConfirmed++
			}
		}
	}
	return s
}

// AccountUsage is the yearly usage of one account.
type AccountUsage struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Hours float64 `json:"hours"`
}

// Usage is the yearly usage report of the dashboard.
type Usage struct {
	Year        int                     `json:"year"`
	TotalEvents int                     `json:"total_events"`
	TotalHours  float64                 `json:"total_hours"`
	ByAccount   map[string]AccountUsage `json:"by_account"`
}

// ComputeUsage totals bookings starting in year, per account. Every known
// account is listed even when unused; bookings referencing an unknown account
// are listed under their own denormalized name. Only positive durations add
// hours.
func ComputeUsage(bookings []model.Booking, accounts []model.Account, year int, loc *time.Location) Usage {
	if loc == nil {
		loc = time.Local
	}
	u := Usage{
		Year:      year,
		ByAccount: make(map[string]AccountUsage, len(accounts)),
	}
	for _, a := range accounts {
		u.ByAccount[a.ID] = AccountUsage{Name: a.Name}
	}

	for _, b := range bookings {
		if b.Start.In(loc).Year() != year {
			continue
		}
		hours := b.Duration().Hours()

		u.TotalEvents++
		u.TotalHours += hours

		acc, ok := u.ByAccount[b.AccountID]
		if !ok {
			acc = AccountUsage{Name: b.AccountName}
		}
		acc.Count++
		acc.Hours += hours
		u.ByAccount[b.AccountID] = acc
	}
	return u
}

// MonthlyCounts returns how many bookings start in each month of year,
// index 0 being January.
func MonthlyCounts(bookings []model.Booking, year int, loc *time.Location) [12]int {
	if loc == nil {
		loc = time.Local
	}
	var counts [12]int
	for _, b := range bookings {
		start := b.Start.In(loc)
		if start.Year() == year {
			counts[start.Month()-1]++
		}
	}
	return counts
}

// HoursMinutes splits fractional hours into whole hours and rounded
// minutes. A rounding result of 60 minutes carries into the hour.
func HoursMinutes(hours float64) (int, int) {
	if hours < 0 || math.IsNaN(hours) {
		return 0, 0
	}
	h := math.Floor(hours)
	m := math.Round((hours - h) * 60)
	if m >= 60 {
		h++
		m = 0
	}
	return int(h), int(m)
}

// FormatHoursToHM renders fractional hours the way the dashboard labels
// them, e.g. 3.5 -> "3 ชม. 30 นาที".
func FormatHoursToHM(hours float64) string {
	h, m := HoursMinutes(hours)
	return fmt.Sprintf("%d ชม. %d นาที", h, m)
}
