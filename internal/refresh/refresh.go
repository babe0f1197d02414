// Package refresh refetches bookings and installs them as the current
// snapshot, on a cron schedule and on demand.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	appLog "bookcal/internal/log"
	"bookcal/internal/snapshot"
	"bookcal/internal/source"
)

// Runner fetches from its sources into a snapshot store.
type Runner struct {
	bookings source.BookingSource
	accounts []source.AccountSource
	store    *snapshot.Store
	timeout  time.Duration
}

// New returns a Runner. Each refresh is bounded by timeout (30s if zero).
func New(store *snapshot.Store, bookings source.BookingSource, accounts []source.AccountSource, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		bookings: bookings,
		accounts: accounts,
		store:    store,
		timeout:  timeout,
	}
}

// Refresh runs one fetch-and-commit cycle. A partial fetch (some sources
// failed) is still committed and the source errors are returned alongside
// the new snapshot. If a newer refresh was started meanwhile, the result is
// dropped and snapshot.ErrStale returned.
func (r *Runner) Refresh(ctx context.Context) (snapshot.Snapshot, error) {
	runID := uuid.NewString()
	ticket := r.store.Begin()
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	appLog.Debug("refresh start", "run", runID, "ticket", ticket)

	bookings, fetchErr := r.bookings.FetchBookings(ctx)
	if fetchErr != nil && len(bookings) == 0 {
		appLog.Error("refresh failed", fetchErr, "run", runID)
		return r.store.Current(), fmt.Errorf("fetch bookings: %w", fetchErr)
	}

	accounts, accErr := source.MergeAccounts(ctx, r.accounts...)
	if accErr != nil {
		appLog.Error("refresh: account fetch failed", accErr, "run", runID)
	}

	snap, err := r.store.Commit(ticket, bookings, accounts)
	if errors.Is(err, snapshot.ErrStale) {
		appLog.Info("refresh result superseded", "run", runID, "ticket", ticket, "current", snap.Version)
		return snap, err
	}

	appLog.Info("refresh committed",
		"run", runID,
		"version", snap.Version,
		"bookings", len(snap.Bookings),
		"accounts", len(snap.Accounts),
		"took", time.Since(started).Round(time.Millisecond),
	)
	return snap, errors.Join(fetchErr, accErr)
}

// Start schedules Refresh with the cron spec until ctx is done. The first
// refresh is not run here; callers usually call Refresh once at startup.
func (r *Runner) Start(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := r.Refresh(ctx); err != nil && !errors.Is(err, snapshot.ErrStale) {
			appLog.Error("scheduled refresh", err, "spec", spec)
		}
	}); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}

	c.Start()
	appLog.Info("refresh scheduler started", "spec", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return nil
}
