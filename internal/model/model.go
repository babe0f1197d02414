package model

import (
	"strings"
	"time"
)

// Status is the informational state of a booking. It never affects layout,
// only how the rendering side styles a bar.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// ParseStatus maps a raw status string to a Status. Unknown or empty values
// are treated as confirmed, which is how rows without a status column are
// presented.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "tentative":
		return StatusPending
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return StatusConfirmed
	}
}

// Booking is a reservation of an account for a contiguous time span.
// Values are read-only once constructed; every derived view copies what it
// needs.
type Booking struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	// AccountID is the stable key of the reserved resource, AccountName a
	// denormalized label.
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`

	// Start / End are wall-clock instants in the display timezone.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Description  string `json:"description"`
	Organizer    string `json:"organizer"`
	Participants int    `json:"participants"`
	Status       Status `json:"status"`
	MeetingURL   string `json:"meeting_url"`
	Color        string `json:"color"`

	IsRecord bool `json:"is_record"`
	IsStudio bool `json:"is_studio"`
}

// Span returns the occupied interval of the booking. An inverted range is
// clamped so that end == start.
func (b Booking) Span() (time.Time, time.Time) {
	if b.End.Before(b.Start) {
		return b.Start, b.Start
	}
	return b.Start, b.End
}

// Duration is the positive length of the booking, zero for empty or
// inverted ranges.
func (b Booking) Duration() time.Duration {
	start, end := b.Span()
	return end.Sub(start)
}

// Account is a bookable resource (meeting room, license seat, ...).
type Account struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	ColorCode string `json:"color_code" yaml:"color"`
	Capacity  int    `json:"capacity" yaml:"capacity"`
}
