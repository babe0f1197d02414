package feed

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "bookcal/internal/log"
	"bookcal/internal/model"
)

// vevent is the subset of a VEVENT the booking mapping needs. Recurrences
// are kept raw and expanded later.
type vevent struct {
	UID         string
	Summary     string
	Description string
	URL         string
	Organizer   string
	Status      model.Status

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule      string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID of an overridden instance
}

// parseCalendar reads every VEVENT of an ICS body. Floating times are read
// in loc. Events that cannot be read are logged and skipped.
func parseCalendar(body []byte, loc *time.Location) ([]vevent, error) {
	if len(body) == 0 {
		return nil, errors.New("feed: empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]vevent, 0)
	for _, ve := range cal.Events() {
		ev, err := readVEvent(ve, loc)
		if err != nil {
			appLog.Warn("skipping vevent", "uid", ev.UID, "reason", err.Error())
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func readVEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	ev := vevent{
		UID:         propValue(ve, ical.ComponentPropertyUniqueId),
		Summary:     propValue(ve, ical.ComponentPropertySummary),
		Description: propValue(ve, ical.ComponentPropertyDescription),
		URL:         propValue(ve, ical.ComponentPropertyUrl),
		Organizer:   strings.TrimPrefix(strings.TrimPrefix(propValue(ve, ical.ComponentPropertyOrganizer), "mailto:"), "MAILTO:"),
		Status:      model.ParseStatus(propValue(ve, ical.ComponentPropertyStatus)),
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDateValue(dtStart)

	start, err := readTime(dtStart, loc)
	if err != nil {
		return ev, err
	}
	ev.Start = start

	switch dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); {
	case dtEnd != nil:
		if ev.End, err = readTime(dtEnd, loc); err != nil {
			return ev, err
		}
	case ev.AllDay:
		ev.End = ev.Start.AddDate(0, 0, 1)
	default:
		ev.End = ev.Start
	}

	ev.RRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, tzOf(p, loc)); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); rid != nil {
		if t, err := parseICSTime(rid.Value, tzOf(rid, loc)); err == nil {
			ev.Recurrence = &t
		}
	}

	return ev, nil
}

// isDateValue reports VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// tzOf resolves the TZID parameter of p, defaulting to loc.
func tzOf(p *ical.IANAProperty, loc *time.Location) *time.Location {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if l, err := time.LoadLocation(tzs[0]); err == nil {
			return l
		}
	}
	return loc
}

func readTime(p *ical.IANAProperty, loc *time.Location) (time.Time, error) {
	return parseICSTime(p.Value, tzOf(p, loc))
}

// parseICSTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
