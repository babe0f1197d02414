// Package feed reads bookings from ICS subscriptions. Each subscription is
// presented as one account; its events become bookings of that account.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	appLog "bookcal/internal/log"
	"bookcal/internal/model"
)

const (
	// DefaultPast / DefaultFuture bound recurrence expansion around now.
	// A year back keeps year-to-date statistics complete.
	DefaultPast   = 400 * 24 * time.Hour
	DefaultFuture = 400 * 24 * time.Hour
)

// Subscription is one ICS feed mapped to an account.
type Subscription struct {
	AccountID   string
	AccountName string
	URL         string
	Color       string
}

// Source is a BookingSource and AccountSource over ICS subscriptions.
type Source struct {
	client *Client
	subs   []Subscription
	loc    *time.Location

	Past         time.Duration
	Future       time.Duration
	MaxInstances int
	Now          func() time.Time
}

// NewSource builds a Source reading subs through client; floating event
// times are read in loc.
func NewSource(client *Client, subs []Subscription, loc *time.Location) *Source {
	if loc == nil {
		loc = time.Local
	}
	return &Source{
		client:       client,
		subs:         subs,
		loc:          loc,
		Past:         DefaultPast,
		Future:       DefaultFuture,
		MaxInstances: defaultMaxInstances,
		Now:          time.Now,
	}
}

func (s *Source) Name() string { return "ics" }

// FetchBookings downloads, parses and expands every subscription. Failing
// subscriptions are reported in the joined error; the others are returned.
func (s *Source) FetchBookings(ctx context.Context) ([]model.Booking, error) {
	now := s.Now().In(s.loc)
	from, to := now.Add(-s.Past), now.Add(s.Future)

	out := make([]model.Booking, 0)
	var errs []error
	for _, sub := range s.subs {
		body, fromCache, err := s.client.Download(ctx, sub.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.AccountID, err))
			continue
		}
		bookings, err := s.bookingsFromBody(sub, body, from, to)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.AccountID, err))
			continue
		}
		appLog.Info("feed loaded", "account", sub.AccountID, "url", redactURL(sub.URL),
			"from_cache", fromCache, "bookings", len(bookings))
		out = append(out, bookings...)
	}
	return out, errors.Join(errs...)
}

func (s *Source) bookingsFromBody(sub Subscription, body []byte, from, to time.Time) ([]model.Booking, error) {
	events, err := parseCalendar(body, s.loc)
	if err != nil {
		return nil, err
	}
	instances := expand(events, from, to, s.MaxInstances)

	out := make([]model.Booking, 0, len(instances))
	for _, in := range instances {
		out = append(out, toBooking(sub, in, s.loc))
	}
	return out, nil
}

// FetchAccounts lists one account per subscription.
func (s *Source) FetchAccounts(context.Context) ([]model.Account, error) {
	out := make([]model.Account, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, model.Account{ID: sub.AccountID, Name: sub.AccountName, ColorCode: sub.Color})
	}
	return out, nil
}

// toBooking maps an instance to a Booking in loc. All-day ends are
// exclusive in ICS; they are pulled back so the booking does not spill onto
// the following date.
func toBooking(sub Subscription, in instance, loc *time.Location) model.Booking {
	start := in.start.In(loc)
	end := in.end.In(loc)
	if in.ev.AllDay && end.After(start) {
		end = end.Add(-time.Nanosecond)
	}

	return model.Booking{
		ID:          instanceID(sub, in),
		Title:       in.ev.Summary,
		AccountID:   sub.AccountID,
		AccountName: sub.AccountName,
		Start:       start,
		End:         end,
		Description: in.ev.Description,
		Organizer:   in.ev.Organizer,
		Status:      in.ev.Status,
		MeetingURL:  in.ev.URL,
		Color:       sub.Color,
	}
}

// instanceID is UID plus the instance start. Events without UID get a
// name-based UUID so the ID is stable across refreshes.
func instanceID(sub Subscription, in instance) string {
	uid := in.ev.UID
	if uid == "" {
		name := sub.URL + "|" + in.ev.Start.UTC().Format(time.RFC3339) + "|" + in.ev.Summary
		uid = uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
	}
	return uid + "@" + in.start.UTC().Format("20060102T150405Z")
}
