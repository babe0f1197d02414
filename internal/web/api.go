package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bookcal/internal/calendar"
	appLog "bookcal/internal/log"
	"bookcal/internal/model"
	"bookcal/internal/snapshot"
)

const dateLayout = "2006-01-02"

type dayJSON struct {
	Date           string   `json:"date"`
	IsCurrentMonth bool     `json:"is_current_month"`
	BookingIDs     []string `json:"booking_ids"`
}

type placementJSON struct {
	Booking  model.Booking `json:"booking"`
	StartDay int           `json:"start_day"`
	EndDay   int           `json:"end_day"`
}

type weekJSON struct {
	Start string            `json:"start"`
	End   string            `json:"end"`
	Lanes [][]placementJSON `json:"lanes"`
}

// LayoutJSON is the wire form of a month layout.
type LayoutJSON struct {
	Year    int        `json:"year"`
	Month   int        `json:"month"`
	Version uint64     `json:"version"`
	Days    []dayJSON  `json:"days"`
	Weeks   []weekJSON `json:"weeks"`
}

// NewLayoutJSON converts a layout computed from the snapshot at version.
func NewLayoutJSON(l calendar.MonthLayout, version uint64) LayoutJSON {
	out := LayoutJSON{
		Year:    l.Year,
		Month:   int(l.Month),
		Version: version,
		Days:    make([]dayJSON, 0, len(l.Days)),
		Weeks:   make([]weekJSON, 0, len(l.Weeks)),
	}
	for _, d := range l.Days {
		ids := make([]string, 0, len(d.Bookings))
		for _, b := range d.Bookings {
			ids = append(ids, b.ID)
		}
		out.Days = append(out.Days, dayJSON{
			Date:           d.Date.Format(dateLayout),
			IsCurrentMonth: d.IsCurrentMonth,
			BookingIDs:     ids,
		})
	}
	for _, w := range l.Weeks {
		wj := weekJSON{
			Start: w.Start.Format(dateLayout),
			End:   w.End.Format(dateLayout),
			Lanes: make([][]placementJSON, 0, len(w.Lanes)),
		}
		for _, lane := range w.Lanes {
			row := make([]placementJSON, 0, len(lane))
			for _, p := range lane {
				row = append(row, placementJSON{Booking: p.Booking, StartDay: p.StartDay, EndDay: p.EndDay})
			}
			wj.Lanes = append(wj.Lanes, row)
		}
		out.Weeks = append(out.Weeks, wj)
	}
	return out
}

type statsJSON struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Today   string `json:"today"`
	Version uint64 `json:"version"`
	calendar.Stats
}

type accountUsageJSON struct {
	calendar.AccountUsage
	HoursHM string `json:"hours_hm"`
}

type usageJSON struct {
	Year         int                         `json:"year"`
	Version      uint64                      `json:"version"`
	TotalEvents  int                         `json:"total_events"`
	TotalHours   float64                     `json:"total_hours"`
	TotalHoursHM string                      `json:"total_hours_hm"`
	ByAccount    map[string]accountUsageJSON `json:"by_account"`
	Monthly      [12]int                     `json:"monthly"`
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := s.store.Current()
	key := fmt.Sprintf("calendar:%s:%s:%04d-%02d", snap.Key(), v.WeekStart, v.Year, v.Month)
	s.cached(w, r, key, func() any {
		return NewLayoutJSON(calendar.BuildLayout(snap.Bookings, v), snap.Version)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	v, err := s.view(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := s.now().In(s.loc)
	snap := s.store.Current()
	// today and upcoming depend on now; the key carries the date and the
	// cache TTL bounds the rest
	key := fmt.Sprintf("stats:%s:%04d-%02d:%s", snap.Key(), v.Year, v.Month, now.Format(dateLayout))
	s.cached(w, r, key, func() any {
		return statsJSON{
			Year:    v.Year,
			Month:   int(v.Month),
			Today:   now.Format(dateLayout),
			Version: snap.Version,
			Stats:   calendar.ComputeStats(snap.Bookings, v, now),
		}
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	year, err := parseIntDefault(r.URL.Query().Get("year"), s.now().In(s.loc).Year())
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	snap := s.store.Current()
	key := fmt.Sprintf("usage:%s:%04d", snap.Key(), year)
	s.cached(w, r, key, func() any {
		return newUsageJSON(snap, year, s.loc)
	})
}

func newUsageJSON(snap snapshot.Snapshot, year int, loc *time.Location) usageJSON {
	u := calendar.ComputeUsage(snap.Bookings, snap.Accounts, year, loc)
	out := usageJSON{
		Year:         u.Year,
		Version:      snap.Version,
		TotalEvents:  u.TotalEvents,
		TotalHours:   u.TotalHours,
		TotalHoursHM: calendar.FormatHoursToHM(u.TotalHours),
		ByAccount:    make(map[string]accountUsageJSON, len(u.ByAccount)),
		Monthly:      calendar.MonthlyCounts(snap.Bookings, year, loc),
	}
	for id, a := range u.ByAccount {
		out.ByAccount[id] = accountUsageJSON{AccountUsage: a, HoursHM: calendar.FormatHoursToHM(a.Hours)}
	}
	return out
}

func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	bookings := calendar.SortBookings(snap.Bookings)

	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := time.ParseInLocation(dateLayout, raw, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		bookings = calendar.BookingsForDate(bookings, day)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	accounts := s.store.Current().Accounts
	if accounts == nil {
		accounts = []model.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

type refreshJSON struct {
	Version  uint64 `json:"version"`
	Bookings int    `json:"bookings"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}

	before := s.store.Current().Version
	snap, err := s.refresher.Refresh(r.Context())
	resp := refreshJSON{Version: snap.Version, Bookings: len(snap.Bookings)}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, snapshot.ErrStale):
		// a concurrent refresh won; its result is current
		writeJSON(w, http.StatusAccepted, resp)
	case snap.Version > before:
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
	default:
		appLog.Error("manual refresh failed", err)
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
	}
}

// parseYearMonth reads year and month query values, defaulting to y and m.
func parseYearMonth(q url.Values, y int, m time.Month) (int, time.Month, error) {
	year, err := parseIntDefault(q.Get("year"), y)
	if err != nil || year < 1 || year > 9999 {
		return 0, 0, errors.New("invalid year")
	}
	month, err := parseIntDefault(q.Get("month"), int(m))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, errors.New("invalid month")
	}
	return year, time.Month(month), nil
}

func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
