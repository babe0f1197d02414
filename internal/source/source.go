// Package source defines where bookings and accounts come from. The layout
// engine never talks to a source directly; the refresh runner fetches a
// complete list and commits it as a snapshot.
package source

import (
	"context"
	"errors"
	"fmt"

	appLog "bookcal/internal/log"
	"bookcal/internal/model"
)

// ErrNoSources is returned by an empty Multi.
var ErrNoSources = errors.New("source: no booking sources configured")

// BookingSource returns all bookings regardless of date; callers filter.
type BookingSource interface {
	Name() string
	FetchBookings(ctx context.Context) ([]model.Booking, error)
}

// AccountSource returns the known accounts, used for labels only.
type AccountSource interface {
	FetchAccounts(ctx context.Context) ([]model.Account, error)
}

// Multi merges several booking sources. A failing source does not hide the
// others: their bookings are returned together with the joined errors.
type Multi []BookingSource

func (m Multi) Name() string { return "multi" }

func (m Multi) FetchBookings(ctx context.Context) ([]model.Booking, error) {
	if len(m) == 0 {
		return nil, ErrNoSources
	}

	out := make([]model.Booking, 0)
	var errs []error
	for _, src := range m {
		bookings, err := src.FetchBookings(ctx)
		if err != nil {
			appLog.Error("booking source failed", err, "source", src.Name())
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		appLog.Debug("booking source fetched", "source", src.Name(), "count", len(bookings))
		out = append(out, bookings...)
	}
	return out, errors.Join(errs...)
}

// StaticAccounts serves a fixed account list, typically from config.
type StaticAccounts []model.Account

func (s StaticAccounts) FetchAccounts(context.Context) ([]model.Account, error) {
	return append([]model.Account(nil), s...), nil
}

// MergeAccounts returns the accounts of all sources, first occurrence of an
// ID winning.
func MergeAccounts(ctx context.Context, sources ...AccountSource) ([]model.Account, error) {
	seen := make(map[string]bool)
	out := make([]model.Account, 0)
	var errs []error
	for _, src := range sources {
		accounts, err := src.FetchAccounts(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, a := range accounts {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	return out, errors.Join(errs...)
}
