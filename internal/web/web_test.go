package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcal/internal/cache"
	"bookcal/internal/config"
	"bookcal/internal/model"
	"bookcal/internal/snapshot"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

type stubRefresher struct {
	store *snapshot.Store
	next  []model.Booking
	err   error
}

func (r *stubRefresher) Refresh(context.Context) (snapshot.Snapshot, error) {
	if r.err != nil && r.next == nil {
		return r.store.Current(), r.err
	}
	snap, err := r.store.Commit(r.store.Begin(), r.next, nil)
	if err != nil {
		return snap, err
	}
	return snap, r.err
}

func fixture(t *testing.T, auth *config.BasicAuthConfig) (*Server, *snapshot.Store, *stubRefresher) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.BasicAuth = auth

	store := snapshot.New()
	_, err := store.Commit(store.Begin(), []model.Booking{
		{ID: "A", AccountID: "r1", AccountName: "Room 1", Start: at(2025, 6, 3, 9, 0), End: at(2025, 6, 5, 17, 0), Participants: 4, Status: model.StatusConfirmed},
		{ID: "B", AccountID: "r1", AccountName: "Room 1", Start: at(2025, 6, 4, 10, 0), End: at(2025, 6, 4, 11, 30), Participants: 2, Status: model.StatusConfirmed},
		{ID: "C", AccountID: "r2", AccountName: "Room 2", Start: at(2025, 6, 20, 10, 0), End: at(2025, 6, 20, 11, 0), Status: model.StatusPending},
	}, []model.Account{{ID: "r1", Name: "Room 1"}, {ID: "r2", Name: "Room 2"}})
	require.NoError(t, err)

	ref := &stubRefresher{store: store}
	s := NewServer(cfg, store, ref, cache.NewMemory(0))
	s.now = func() time.Time { return at(2025, 6, 4, 12, 0) }
	return s, store, ref
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := fixture(t, &config.BasicAuthConfig{Username: "u", Password: "p"})
	rec := do(t, s.Handler(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	s, _, _ := fixture(t, &config.BasicAuthConfig{Username: "u", Password: "p"})
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/accounts")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.SetBasicAuth("u", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.SetBasicAuth("u", "p")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCalendar(t *testing.T) {
	s, _, _ := fixture(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/calendar?year=2025&month=6")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var got LayoutJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, 6, got.Month)
	assert.Equal(t, uint64(1), got.Version)
	require.Len(t, got.Days, 35)
	assert.Equal(t, "2025-06-01", got.Days[0].Date)
	assert.Equal(t, []string{"A", "B"}, got.Days[3].BookingIDs)
	require.Len(t, got.Weeks, 5)

	first := got.Weeks[0]
	assert.Equal(t, "2025-06-01", first.Start)
	assert.Equal(t, "2025-06-07", first.End)
	require.Len(t, first.Lanes, 2)
	assert.Equal(t, "A", first.Lanes[0][0].Booking.ID)
	assert.Equal(t, 2, first.Lanes[0][0].StartDay)
	assert.Equal(t, 4, first.Lanes[0][0].EndDay)
	assert.Equal(t, "B", first.Lanes[1][0].Booking.ID)
	assert.Equal(t, 3, first.Lanes[1][0].StartDay)

	rec = do(t, h, http.MethodGet, "/api/calendar?year=2025&month=6")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestCalendarDefaultsToCurrentMonth(t *testing.T) {
	s, _, _ := fixture(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/calendar")
	require.Equal(t, http.StatusOK, rec.Code)

	var got LayoutJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, 6, got.Month)
}

func TestCalendarRejectsBadQuery(t *testing.T) {
	s, _, _ := fixture(t, nil)
	for _, q := range []string{"?month=13", "?month=0", "?year=abc", "?year=0"} {
		rec := do(t, s.Handler(), http.MethodGet, "/api/calendar"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestStats(t *testing.T) {
	s, _, _ := fixture(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/stats?year=2025&month=6")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2025-06-04", got["today"])
	assert.EqualValues(t, 3, got["month_count"])
	assert.EqualValues(t, 2, got["today_count"])
	assert.EqualValues(t, 1, got["upcoming_count"])
	assert.EqualValues(t, 2, got["year_to_date_count"])
	assert.EqualValues(t, 2, got["year_to_date_confirmed"])
	assert.EqualValues(t, 1, got["pending_count"])
	assert.EqualValues(t, 6, got["month_participants"])
}

func TestUsage(t *testing.T) {
	s, _, _ := fixture(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/usage?year=2025")
	require.Equal(t, http.StatusOK, rec.Code)

	var got usageJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.TotalEvents)
	assert.Equal(t, 3, got.Monthly[5])
	assert.Equal(t, "1 ชม. 0 นาที", got.ByAccount["r2"].HoursHM)
	assert.Equal(t, "57 ชม. 30 นาที", got.ByAccount["r1"].HoursHM)
	assert.Equal(t, "58 ชม. 30 นาที", got.TotalHoursHM)
	assert.Equal(t, 2, got.ByAccount["r1"].Count)
}

func TestBookings(t *testing.T) {
	s, _, _ := fixture(t, nil)
	h := s.Handler()

	var all []model.Booking
	rec := do(t, h, http.MethodGet, "/api/bookings")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	var day []model.Booking
	rec = do(t, h, http.MethodGet, "/api/bookings?date=2025-06-05")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	require.Len(t, day, 1)
	assert.Equal(t, "A", day[0].ID)

	rec = do(t, h, http.MethodGet, "/api/bookings?date=2025-07-01")
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/bookings?date=June")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccounts(t *testing.T) {
	s, _, _ := fixture(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/accounts")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []model.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestRefreshInvalidatesCachedCalendar(t *testing.T) {
	s, _, ref := fixture(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/calendar?year=2025&month=6")
	require.Equal(t, http.StatusOK, rec.Code)

	ref.next = []model.Booking{{ID: "Z", Start: at(2025, 6, 10, 9, 0), End: at(2025, 6, 10, 10, 0)}}
	rec = do(t, h, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":2,"bookings":1}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/calendar?year=2025&month=6")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var got LayoutJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(2), got.Version)
	assert.Equal(t, []string{"Z"}, got.Days[9].BookingIDs)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	s, store, ref := fixture(t, nil)
	ref.err = errors.New("db down")

	rec := do(t, s.Handler(), http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
	assert.Equal(t, uint64(1), store.Current().Version)
}

func TestRefreshPartialFailureReportsError(t *testing.T) {
	s, _, ref := fixture(t, nil)
	ref.next = []model.Booking{{ID: "Z"}}
	ref.err = errors.New("one feed down")

	rec := do(t, s.Handler(), http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":2,"bookings":1,"error":"one feed down"}`, rec.Body.String())
}

func TestRefreshRequiresPost(t *testing.T) {
	s, _, _ := fixture(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSharedCacheSeparatesServers(t *testing.T) {
	shared := cache.NewMemory(0)
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"

	serve := func(id string) http.Handler {
		store := snapshot.New()
		_, err := store.Commit(store.Begin(), []model.Booking{
			{ID: id, Start: at(2025, 6, 10, 9, 0), End: at(2025, 6, 10, 10, 0)},
		}, nil)
		require.NoError(t, err)
		return NewServer(cfg, store, nil, shared).Handler()
	}
	oldSrv, newSrv := serve("OLD"), serve("NEW")

	rec := do(t, oldSrv, http.MethodGet, "/api/calendar?year=2025&month=6")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"OLD"`)

	rec = do(t, newSrv, http.MethodGet, "/api/calendar?year=2025&month=6")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), `"NEW"`)
	assert.NotContains(t, rec.Body.String(), `"OLD"`)
}
