// Package schedule turns the human-entered parts of a class schedule (dates,
// 12-hour clock times, weekday names, locations, semester labels) into values
// the recurrence and sync layers can work with.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// DateLayout is the ISO calendar date layout used for every stored date.
const DateLayout = "2006-01-02"

// ErrMalformedTimeInput is returned when a date, clock time, time slot or
// time zone name cannot be parsed.
var ErrMalformedTimeInput = errors.New("malformed time input")

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])$`)

// Clock is a 24-hour wall clock time without a date.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "H:MM AM" / "H:MM PM".
// 12 AM is midnight, 12 PM stays noon, any other PM hour adds 12.
func ParseClock(s string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Clock{}, fmt.Errorf("%w: time %q does not match H:MM AM/PM", ErrMalformedTimeInput, s)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: time %q is out of range", ErrMalformedTimeInput, s)
	}

	pm := strings.EqualFold(m[3], "PM")
	switch {
	case hour == 12 && !pm:
		hour = 0
	case hour != 12 && pm:
		hour += 12
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// String formats the clock back into the 12-hour form it was parsed from.
func (c Clock) String() string {
	suffix := "AM"
	hour := c.Hour
	if hour >= 12 {
		suffix = "PM"
	}
	if hour > 12 {
		hour -= 12
	}
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, c.Minute, suffix)
}

// ParseDate parses a YYYY-MM-DD date. The result is midnight UTC on that date
// and only its year, month and day are meaningful.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrMalformedTimeInput, s, err)
	}
	return d, nil
}

// LoadZone resolves an IANA time zone name.
func LoadZone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %v", ErrMalformedTimeInput, name, err)
	}
	return loc, nil
}

// At places a clock time on a calendar date in loc. The zone offset is the one
// in effect on that date, so dates on either side of a daylight saving switch
// get different offsets. A wall time that does not exist (inside a spring
// forward gap) is moved forward by the length of the gap.
func At(date time.Time, clock Clock, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour, clock.Minute, 0, 0, loc)
}

// BuildInstant converts a calendar date, a 12-hour clock time and an IANA
// time zone name into an absolute instant.
func BuildInstant(dateISO, time12h, timeZone string) (time.Time, error) {
	loc, err := LoadZone(timeZone)
	if err != nil {
		return time.Time{}, err
	}
	date, err := ParseDate(dateISO)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := ParseClock(time12h)
	if err != nil {
		return time.Time{}, err
	}
	return At(date, clock, loc), nil
}

// ParseTimeSlot splits a "9:00 AM - 10:00 AM" label into its start and end
// clocks. The end must be later than the start.
func ParseTimeSlot(slot string) (start, end Clock, err error) {
	parts := strings.SplitN(slot, "-", 2)
	if len(parts) != 2 {
		return Clock{}, Clock{}, fmt.Errorf("%w: time slot %q must look like \"9:00 AM - 10:00 AM\"", ErrMalformedTimeInput, slot)
	}
	if start, err = ParseClock(parts[0]); err != nil {
		return Clock{}, Clock{}, err
	}
	if end, err = ParseClock(parts[1]); err != nil {
		return Clock{}, Clock{}, err
	}
	if end.Minutes() <= start.Minutes() {
		return Clock{}, Clock{}, fmt.Errorf("%w: time slot %q ends before it starts", ErrMalformedTimeInput, slot)
	}
	return start, end, nil
}
