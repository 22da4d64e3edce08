package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyTime       = errors.New("empty time")
	ErrInvalidTime     = errors.New("invalid time")
	ErrInvalidMinutes  = errors.New("invalid minutes")
	ErrInvalidRegister = errors.New("expected: room first_name last_name phone")
)

// slotLayouts are tried in order. Bot arguments are space separated, so every
// accepted layout is a single token.
var slotLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseSlotTime parses a reservation boundary. Layouts without an offset are
// interpreted in loc.
func ParseSlotTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyTime
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range slotLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTime, s)
}

// ParseInterval parses "start end" into an Interval. Shape checks (order,
// duration, past) are left to CheckAdmissible.
func ParseInterval(start, end string, loc *time.Location) (Interval, error) {
	st, err := ParseSlotTime(start, loc)
	if err != nil {
		return Interval{}, fmt.Errorf("start: %w", err)
	}
	et, err := ParseSlotTime(end, loc)
	if err != nil {
		return Interval{}, fmt.Errorf("end: %w", err)
	}
	return NewInterval(st, et), nil
}

// ParseLeadMinutes parses a whole number of minutes in [0, MaxLeadMinutes].
func ParseLeadMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !isAllDigits(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMinutes, s)
	}
	n, err := strconv.Atoi(s)
	if err != nil || !ValidLeadMinutes(n) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMinutes, s)
	}
	return n, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Registration is what a resident supplies before booking.
type Registration struct {
	Room        string
	DisplayName string
	Contact     string
}

// ParseRegistration parses "room first last phone".
func ParseRegistration(s string) (Registration, error) {
	parts := strings.Fields(s)
	if len(parts) != 4 {
		return Registration{}, ErrInvalidRegister
	}
	return Registration{
		Room:        parts[0],
		DisplayName: parts[1] + " " + parts[2],
		Contact:     parts[3],
	}, nil
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (*time.Location, error) {
	return time.LoadLocation(tz)
}

// FormatSlot renders an interval as "02.01.2006 15:04–16:00" in loc.
// A slot crossing midnight shows the end date too.
func FormatSlot(iv Interval, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	s, e := iv.Start.In(loc), iv.End.In(loc)
	if s.YearDay() == e.YearDay() && s.Year() == e.Year() {
		return s.Format("02.01.2006 15:04") + "–" + e.Format("15:04")
	}
	return s.Format("02.01.2006 15:04") + "–" + e.Format("02.01.2006 15:04")
}
