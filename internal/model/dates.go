package model

import (
	"fmt"
	"strings"
	"time"
)

// DayFormat is the wire format for calendar days.
const DayFormat = "2006-01-02"

// Day is a calendar day, normalized to midnight UTC. All availability
// comparisons happen at day granularity, so every date entering the engine
// is collapsed to a Day first.
type Day struct {
	t time.Time
}

// NewDay truncates t to its UTC calendar day.
func NewDay(t time.Time) Day {
	u := t.UTC()
	return Day{time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// MakeDay builds a Day from its components.
func MakeDay(year int, month time.Month, day int) Day {
	return Day{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC calendar day.
func Today() Day {
	return NewDay(time.Now())
}

// ParseDay accepts either a plain date ("2006-01-02") or a full RFC 3339
// timestamp, which is normalized to its UTC day. Backends and older saved
// documents mix both representations.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Day{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(DayFormat, s); err == nil {
		return NewDay(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Day{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return NewDay(t), nil
}

// IsZero reports whether the day is unset.
func (d Day) IsZero() bool { return d.t.IsZero() }

// Time returns the underlying midnight-UTC time.
func (d Day) Time() time.Time { return d.t }

// Before reports whether d is strictly before other.
func (d Day) Before(other Day) bool { return d.t.Before(other.t) }

// After reports whether d is strictly after other.
func (d Day) After(other Day) bool { return d.t.After(other.t) }

// Equal reports whether d and other are the same calendar day.
func (d Day) Equal(other Day) bool { return d.t.Equal(other.t) }

// AddDays returns the day n days later (or earlier for negative n).
func (d Day) AddDays(n int) Day { return Day{d.t.AddDate(0, 0, n)} }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DayFormat)
}

// MarshalJSON encodes the day as "2006-01-02", or null when unset.
func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.t.Format(DayFormat) + `"`), nil
}

// UnmarshalJSON accepts null, "", a plain date, or an RFC 3339 timestamp.
func (d *Day) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = Day{}
		return nil
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Day
	End   Day
}

// NewDateRange normalizes both endpoints to UTC days.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: NewDay(start), End: NewDay(end)}
}

// IsZero reports whether either endpoint is unset.
func (r DateRange) IsZero() bool { return r.Start.IsZero() || r.End.IsZero() }

// Validate checks that both endpoints are set and ordered.
func (r DateRange) Validate() error {
	if r.IsZero() {
		return fmt.Errorf("date range requires both a check-out and a check-in date")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("check-in date %s is before check-out date %s", r.End, r.Start)
	}
	return nil
}

// Overlaps reports whether r and other share at least one day. Both ranges
// are closed intervals, so touching endpoints count as overlap.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.Start.After(other.End) && !r.End.Before(other.Start)
}

// Contains reports whether r fully covers other.
func (r DateRange) Contains(other DateRange) bool {
	return !r.Start.After(other.Start) && !r.End.Before(other.End)
}

// EndsBefore reports whether the whole range is over before the given day.
func (r DateRange) EndsBefore(day Day) bool {
	return r.End.Before(day)
}

func (r DateRange) String() string {
	return r.Start.String() + " to " + r.End.String()
}
