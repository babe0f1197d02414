package snapshot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcal/internal/model"
)

func TestCommitLatest(t *testing.T) {
	s := New()
	assert.Zero(t, s.Current().Version)

	tk := s.Begin()
	snap, err := s.Commit(tk, []model.Booking{{ID: "1"}}, []model.Account{{ID: "a"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(tk), snap.Version)
	assert.Len(t, s.Current().Bookings, 1)
	assert.False(t, s.Current().FetchedAt.IsZero())
}

func TestSlowEarlierFetchIsDiscarded(t *testing.T) {
	s := New()

	first := s.Begin()
	second := s.Begin()

	_, err := s.Commit(second, []model.Booking{{ID: "new"}}, nil)
	require.NoError(t, err)

	snap, err := s.Commit(first, []model.Booking{{ID: "old"}}, nil)
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, "new", snap.Bookings[0].ID)
	assert.Equal(t, "new", s.Current().Bookings[0].ID)
}

func TestEarlierFetchFinishingFirstIsDiscarded(t *testing.T) {
	s := New()

	first := s.Begin()
	second := s.Begin()

	_, err := s.Commit(first, []model.Booking{{ID: "old"}}, nil)
	assert.ErrorIs(t, err, ErrStale)
	assert.Empty(t, s.Current().Bookings)

	_, err = s.Commit(second, []model.Booking{{ID: "new"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "new", s.Current().Bookings[0].ID)
}

func TestCommitTwiceIsStale(t *testing.T) {
	s := New()
	tk := s.Begin()
	_, err := s.Commit(tk, nil, nil)
	require.NoError(t, err)
	_, err = s.Commit(tk, []model.Booking{{ID: "dup"}}, nil)
	assert.ErrorIs(t, err, ErrStale)
}

func TestCommitCopiesInput(t *testing.T) {
	s := New()
	in := []model.Booking{{ID: "1"}}
	_, err := s.Commit(s.Begin(), in, nil)
	require.NoError(t, err)

	in[0].ID = "mutated"
	assert.Equal(t, "1", s.Current().Bookings[0].ID)
}

func TestConcurrentCommitsKeepNewest(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	tickets := make([]Ticket, 20)
	for i := range tickets {
		tickets[i] = s.Begin()
	}
	for i, tk := range tickets {
		wg.Add(1)
		go func(i int, tk Ticket) {
			defer wg.Done()
			_, _ = s.Commit(tk, []model.Booking{{ID: string(rune('a' + i))}}, nil)
		}(i, tk)
	}
	wg.Wait()

	cur := s.Current()
	assert.Equal(t, uint64(tickets[len(tickets)-1]), cur.Version)
	assert.Equal(t, string(rune('a'+len(tickets)-1)), cur.Bookings[0].ID)
}

func TestEpochSeparatesStores(t *testing.T) {
	a, b := New(), New()
	assert.NotEmpty(t, a.Current().Epoch)
	assert.NotEqual(t, a.Current().Epoch, b.Current().Epoch)

	snapA, err := a.Commit(a.Begin(), []model.Booking{{ID: "a"}}, nil)
	require.NoError(t, err)
	snapB, err := b.Commit(b.Begin(), []model.Booking{{ID: "b"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, snapA.Version, snapB.Version)
	assert.NotEqual(t, snapA.Key(), snapB.Key())
	assert.Equal(t, a.Current().Epoch, snapA.Epoch)
}
