// Package mysqlsrc reads bookings and accounts from the meeting database
// (tables `events` and `account`).
package mysqlsrc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	appLog "bookcal/internal/log"
	"bookcal/internal/model"
)

const (
	queryBookings = `
SELECT e.e_id, e.e_title, e.a_id, e.e_startDate, e.e_endDate, e.memo,
       e.isRecord, e.isStudio, a.a_name, a.a_colorCode, a.a_participant
FROM events e
LEFT JOIN account a ON e.a_id = a.a_id
WHERE e.e_startDate IS NOT NULL AND e.e_startDate != ''`

	queryAccounts = `SELECT a_id, a_name, a_colorCode, a_participant FROM account`
)

// Source is a BookingSource and AccountSource backed by MySQL.
type Source struct {
	db  *sql.DB
	loc *time.Location
}

// Open connects using dsn and verifies the connection. Date columns are read
// as text and interpreted as wall-clock times in loc, so parseTime is
// forced off.
func Open(dsn string, loc *time.Location) (*Source, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = false
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Addr, err)
	}

	return New(db, loc), nil
}

// New wraps an existing handle.
func New(db *sql.DB, loc *time.Location) *Source {
	if loc == nil {
		loc = time.Local
	}
	return &Source{db: db, loc: loc}
}

func (s *Source) Name() string { return "mysql" }

func (s *Source) Close() error { return s.db.Close() }

// rawEvent is one joined row as stored; every column may be NULL.
type rawEvent struct {
	ID          sql.NullString
	Title       sql.NullString
	AccountID   sql.NullString
	Start       sql.NullString
	End         sql.NullString
	Memo        sql.NullString
	IsRecord    sql.NullString
	IsStudio    sql.NullString
	AccountName sql.NullString
	Color       sql.NullString
	Capacity    sql.NullString
}

// FetchBookings returns all bookings. Rows whose dates cannot be parsed are
// skipped and logged.
func (s *Source) FetchBookings(ctx context.Context) ([]model.Booking, error) {
	rows, err := s.db.QueryContext(ctx, queryBookings)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	skipped := 0
	for rows.Next() {
		var r rawEvent
		if err := rows.Scan(&r.ID, &r.Title, &r.AccountID, &r.Start, &r.End, &r.Memo,
			&r.IsRecord, &r.IsStudio, &r.AccountName, &r.Color, &r.Capacity); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		b, err := mapRawEvent(r, s.loc)
		if err != nil {
			skipped++
			appLog.Warn("skipping event row", "id", r.ID.String, "reason", err.Error())
			continue
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	appLog.Debug("mysql bookings loaded", "count", len(out), "skipped", skipped)
	return out, nil
}

// FetchAccounts returns every row of the account table.
func (s *Source) FetchAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, queryAccounts)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	out := make([]model.Account, 0)
	for rows.Next() {
		var id, name, color, capacity sql.NullString
		if err := rows.Scan(&id, &name, &color, &capacity); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, model.Account{
			ID:        id.String,
			Name:      name.String,
			ColorCode: color.String,
			Capacity:  parseInt(capacity.String),
		})
	}
	return out, rows.Err()
}

var errMissingStart = errors.New("missing start date")

// mapRawEvent converts a stored row into a Booking, defaulting absent
// optional columns. A missing end date means a zero-length booking.
func mapRawEvent(r rawEvent, loc *time.Location) (model.Booking, error) {
	if strings.TrimSpace(r.Start.String) == "" {
		return model.Booking{}, errMissingStart
	}
	start, err := parseDBTime(r.Start.String, loc)
	if err != nil {
		return model.Booking{}, fmt.Errorf("start: %w", err)
	}
	end := start
	if strings.TrimSpace(r.End.String) != "" {
		if end, err = parseDBTime(r.End.String, loc); err != nil {
			return model.Booking{}, fmt.Errorf("end: %w", err)
		}
	}

	return model.Booking{
		ID:           r.ID.String,
		Title:        r.Title.String,
		AccountID:    r.AccountID.String,
		AccountName:  r.AccountName.String,
		Start:        start,
		End:          end,
		Description:  r.Memo.String,
		Participants: parseInt(r.Capacity.String),
		Status:       model.StatusConfirmed,
		Color:        r.Color.String,
		IsRecord:     parseFlag(r.IsRecord.String),
		IsStudio:     parseFlag(r.IsStudio.String),
	}, nil
}

var dbLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDBTime reads a stored date as wall-clock time in loc. Values carrying
// an explicit offset are converted into loc.
func parseDBTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	// MySQL DATETIME(6) text form carries fractional seconds.
	if i := strings.IndexByte(s, '.'); i > 0 && len(s) > 19 {
		s = s[:i]
	}
	for _, layout := range dbLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseFlag accepts the ways a boolean column shows up: 0/1, true/false,
// empty.
func parseFlag(s string) bool {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	n, err := strconv.Atoi(s)
	return err == nil && n != 0
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
