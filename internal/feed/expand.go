package feed

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "bookcal/internal/log"
)

const defaultMaxInstances = 5000

// instance is one concrete occurrence of a vevent.
type instance struct {
	ev    vevent
	start time.Time
	end   time.Time
}

// expand turns parsed events into concrete instances intersecting
// [from, to]. RRULE/EXDATE are applied and RECURRENCE-ID overrides replace
// the instance they target. Instances beyond max per UID are dropped.
func expand(events []vevent, from, to time.Time, max int) []instance {
	if max <= 0 {
		max = defaultMaxInstances
	}

	overrides := make(map[string][]vevent)
	base := make([]vevent, 0, len(events))
	for _, ev := range events {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		base = append(base, ev)
	}

	out := make([]instance, 0, len(base))
	for _, ev := range base {
		if ev.RRule == "" {
			if overlaps(ev.Start, ev.End, from, to) {
				out = append(out, withOverride(ev, ev.Start, ev.End, overrides[ev.UID]))
			}
			continue
		}
		out = append(out, expandRecurring(ev, from, to, max, overrides[ev.UID])...)
	}
	return out
}

func expandRecurring(ev vevent, from, to time.Time, max int, ovs []vevent) []instance {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Warn("bad RRULE, using first instance only", "uid", ev.UID, "rrule", ev.RRule, "err", err)
		if overlaps(ev.Start, ev.End, from, to) {
			return []instance{withOverride(ev, ev.Start, ev.End, ovs)}
		}
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so instances that started
	// before the window but still run into it are kept.
	dur := ev.End.Sub(ev.Start)
	starts := set.Between(from.Add(-dur).In(ev.Start.Location()), to.In(ev.Start.Location()), true)
	if len(starts) > max {
		appLog.Warn("recurrence truncated", "uid", ev.UID, "cap", max, "instances", len(starts))
		starts = starts[:max]
	}

	out := make([]instance, 0, len(starts))
	for _, s := range starts {
		end := s.Add(dur)
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			end = s.AddDate(0, 0, allDaySpan(dur))
		}
		out = append(out, withOverride(ev, s, end, ovs))
	}
	return out
}

// withOverride returns the override whose RECURRENCE-ID equals start, or
// the instance itself.
func withOverride(ev vevent, start, end time.Time, ovs []vevent) instance {
	for _, o := range ovs {
		if o.Recurrence.Equal(start) {
			return instance{ev: o, start: o.Start, end: o.End}
		}
	}
	return instance{ev: ev, start: start, end: end}
}

// allDaySpan is the number of dates an all-day event of length d covers,
// at least one. Rounding absorbs DST-shortened days.
func allDaySpan(d time.Duration) int {
	n := int((d + 12*time.Hour) / (24 * time.Hour))
	if n < 1 {
		return 1
	}
	return n
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
