package calendar

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcal/internal/model"
)

func TestAssignLanesOverlapScenario(t *testing.T) {
	weekStart := at(2025, 6, 1, 0, 0)
	a := booking("A", at(2025, 6, 2, 9, 0), at(2025, 6, 2, 10, 0))
	b := booking("B", at(2025, 6, 2, 9, 30), at(2025, 6, 2, 11, 0))
	c := booking("C", at(2025, 6, 3, 9, 0), at(2025, 6, 3, 10, 0))

	lanes := AssignLanes([]model.Booking{a, b, c}, weekStart)

	require.Len(t, lanes, 2)
	require.Len(t, lanes[0], 2)
	assert.Equal(t, "A", lanes[0][0].Booking.ID)
	assert.Equal(t, "C", lanes[0][1].Booking.ID)
	require.Len(t, lanes[1], 1)
	assert.Equal(t, "B", lanes[1][0].Booking.ID)
}

func TestAssignLanesSingleDay(t *testing.T) {
	weekStart := at(2025, 6, 29, 0, 0)
	lanes := AssignLanes([]model.Booking{booking("1", at(2025, 6, 30, 9, 0), at(2025, 6, 30, 10, 30))}, weekStart)

	require.Len(t, lanes, 1)
	require.Len(t, lanes[0], 1)
	p := lanes[0][0]
	assert.Equal(t, 1, p.StartDay)
	assert.Equal(t, p.StartDay, p.EndDay)
	assert.Equal(t, 1, p.Width())
}

func TestAssignLanesEmpty(t *testing.T) {
	assert.Empty(t, AssignLanes(nil, at(2025, 6, 1, 0, 0)))
	outside := booking("x", at(2025, 5, 1, 9, 0), at(2025, 5, 1, 10, 0))
	assert.Empty(t, AssignLanes([]model.Booking{outside}, at(2025, 6, 1, 0, 0)))
}

func TestMultiWeekBookingSplitsPerWeek(t *testing.T) {
	// Wednesday July 2 through Tuesday July 8, 2025.
	b := booking("long", at(2025, 7, 2, 10, 0), at(2025, 7, 8, 12, 0))
	layout := BuildLayout([]model.Booking{b}, view(2025, time.July))

	require.Len(t, layout.Weeks, 5)

	w1 := layout.Weeks[0]
	require.Equal(t, at(2025, 6, 29, 0, 0), w1.Start)
	require.Len(t, w1.Lanes, 1)
	assert.Equal(t, 3, w1.Lanes[0][0].StartDay)
	assert.Equal(t, 6, w1.Lanes[0][0].EndDay)

	w2 := layout.Weeks[1]
	require.Len(t, w2.Lanes, 1)
	assert.Equal(t, 0, w2.Lanes[0][0].StartDay)
	assert.Equal(t, 2, w2.Lanes[0][0].EndDay)

	for _, w := range layout.Weeks[2:] {
		assert.Empty(t, w.Lanes)
	}
}

func randomBookings(rnd *rand.Rand, n int, base time.Time) []model.Booking {
	out := make([]model.Booking, 0, n)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(rnd.Intn(40*24)) * time.Hour)
		end := start.Add(time.Duration(rnd.Intn(9*24)) * time.Hour)
		out = append(out, booking(fmt.Sprintf("b%03d", i), start, end))
	}
	return out
}

func TestAssignLanesNeverOverlapsAndIsComplete(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		bookings := randomBookings(rnd, 1+rnd.Intn(30), at(2025, 5, 25, 0, 0))
		layout := BuildLayout(bookings, view(2025, time.June))

		for _, w := range layout.Weeks {
			seen := make(map[string]int)
			for _, lane := range w.Lanes {
				for i := range lane {
					seen[lane[i].Booking.ID]++
					require.True(t, lane[i].StartDay >= 0 && lane[i].EndDay <= 6 && lane[i].StartDay <= lane[i].EndDay)
					for j := i + 1; j < len(lane); j++ {
						require.False(t, lane[i].Overlaps(lane[j]),
							"%s and %s share a lane in week %v", lane[i].Booking.ID, lane[j].Booking.ID, w.Start)
					}
				}
			}
			for _, b := range bookings {
				want := 0
				if WeekOverlaps(b, w.Start, w.End) {
					want = 1
				}
				require.Equal(t, want, seen[b.ID], "booking %s week %v", b.ID, w.Start)
			}
		}
	}
}

func TestAssignLanesFirstFit(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	weekStart := at(2025, 6, 1, 0, 0)
	bookings := SortBookings(randomBookings(rnd, 25, at(2025, 5, 28, 0, 0)))
	lanes := AssignLanes(bookings, weekStart)

	// every placement in lane k>0 must collide with something in each lower lane
	for k := 1; k < len(lanes); k++ {
		for _, p := range lanes[k] {
			for lower := 0; lower < k; lower++ {
				collides := false
				for _, q := range lanes[lower] {
					if q.Overlaps(p) {
						collides = true
						break
					}
				}
				require.True(t, collides, "%s could have gone to lane %d", p.Booking.ID, lower)
			}
		}
	}
}

func TestBuildLayoutDeterministic(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	bookings := randomBookings(rnd, 40, at(2025, 5, 20, 0, 0))

	first := BuildLayout(bookings, view(2025, time.June))
	second := BuildLayout(bookings, view(2025, time.June))
	assert.Equal(t, first, second)

	// input order does not matter to the layout pass
	reversed := make([]model.Booking, len(bookings))
	for i, b := range bookings {
		reversed[len(bookings)-1-i] = b
	}
	assert.Equal(t, first.Weeks, BuildLayout(reversed, view(2025, time.June)).Weeks)
}

func TestBuildLayoutDoesNotMutateSnapshot(t *testing.T) {
	bookings := []model.Booking{
		booking("z", at(2025, 6, 9, 9, 0), at(2025, 6, 9, 10, 0)),
		booking("a", at(2025, 6, 2, 9, 0), at(2025, 6, 2, 10, 0)),
	}
	BuildLayout(bookings, view(2025, time.June))
	assert.Equal(t, "z", bookings[0].ID)
	assert.Equal(t, "a", bookings[1].ID)
}

func TestSortBookingsTieBreaksOnID(t *testing.T) {
	start := at(2025, 6, 2, 9, 0)
	sorted := SortBookings([]model.Booking{
		booking("b", start, start.Add(time.Hour)),
		booking("a", start, start.Add(time.Hour)),
		booking("c", start.Add(-time.Hour), start),
	})
	assert.Equal(t, "c", sorted[0].ID)
	assert.Equal(t, "a", sorted[1].ID)
	assert.Equal(t, "b", sorted[2].ID)
}

func TestBuildLayoutZeroBookings(t *testing.T) {
	layout := BuildLayout(nil, view(2025, time.February))
	require.NotEmpty(t, layout.Weeks)
	for _, w := range layout.Weeks {
		assert.Empty(t, w.Lanes)
		for _, d := range w.Days {
			assert.Empty(t, d.Bookings)
		}
	}
}
