// Package snapshot keeps the booking list the layout engine reads from.
//
// Fetches are asynchronous and may finish out of order. Each fetch takes a
// Ticket before it starts; only the result of the most recently issued
// ticket is accepted, so a slow early response can never overwrite a later
// one.
package snapshot

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookcal/internal/model"
)

// ErrStale is returned by Commit when a newer fetch was issued after the
// ticket was taken.
var ErrStale = errors.New("snapshot: stale fetch result discarded")

// Ticket identifies one fetch request.
type Ticket uint64

// Snapshot is an immutable view of the booking list at one version.
// Versions restart at zero in every Store; Epoch tells stores apart, so
// Epoch plus Version identifies the content across processes.
type Snapshot struct {
	Epoch     string
	Version   uint64
	Bookings  []model.Booking
	Accounts  []model.Account
	FetchedAt time.Time
}

// Store holds the latest accepted snapshot.
type Store struct {
	mu     sync.RWMutex
	epoch  string
	issued uint64
	cur    Snapshot
	now    func() time.Time
}

// New returns an empty store at version 0 with a fresh random epoch.
func New() *Store {
	epoch := uuid.NewString()
	return &Store{
		epoch: epoch,
		cur:   Snapshot{Epoch: epoch},
		now:   time.Now,
	}
}

// Begin issues a new ticket. Any ticket issued earlier becomes stale.
func (s *Store) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return Ticket(s.issued)
}

// Commit installs the fetch result of t if t is still the latest ticket.
// The slices are copied; callers may reuse them afterwards.
func (s *Store) Commit(t Ticket, bookings []model.Booking, accounts []model.Account) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uint64(t) != s.issued || uint64(t) <= s.cur.Version {
		return s.cur, ErrStale
	}

	s.cur = Snapshot{
		Epoch:     s.epoch,
		Version:   uint64(t),
		Bookings:  append([]model.Booking(nil), bookings...),
		Accounts:  append([]model.Account(nil), accounts...),
		FetchedAt: s.now(),
	}
	return s.cur, nil
}

// Current returns the latest accepted snapshot. The returned slices must be
// treated as read-only.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Key identifies the snapshot content, e.g. for cache keys shared between
// processes.
func (s Snapshot) Key() string {
	return s.Epoch + "." + strconv.FormatUint(s.Version, 10)
}
