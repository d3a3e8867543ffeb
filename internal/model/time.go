package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates. Dates carry no time
// component; all comparisons happen in the hospital's timezone.
const DateLayout = "2006-01-02"

// ClockMinutes is a time of day expressed as minutes since midnight.
// Values may exceed 24h for shift windows that wrap past midnight; such
// values render with the hour unwrapped (e.g. 1560 -> "26:00") so the
// window stays attached to the calendar date it began on.
type ClockMinutes int

const MinutesPerDay = 24 * 60

func (c ClockMinutes) Hour() int   { return int(c) / 60 }
func (c ClockMinutes) Minute() int { return int(c) % 60 }

func (c ClockMinutes) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// ParseClock parses "HH:MM". Hours up to 47 are accepted to allow
// next-day shift boundaries.
func ParseClock(s string) (ClockMinutes, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 47 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return ClockMinutes(h*60 + m), nil
}

func (c ClockMinutes) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockMinutes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// DateOf truncates t to its calendar date in loc, normalized to UTC
// midnight so dates compare and hash by value.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
