// Package recurrence builds the weekly RRULE attached to a class event and
// expands a weekday set over a date range into concrete class dates.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beekhof/class-sync/internal/schedule"
)

// ErrUnsatisfiableRecurrence is returned when no selected weekday can be
// reached, or when the date range cannot hold any occurrence.
var ErrUnsatisfiableRecurrence = errors.New("unsatisfiable recurrence")

// untilLayout is the iCalendar UTC basic format.
const untilLayout = "20060102T150405Z"

var dayCodes = map[time.Weekday]string{
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
	time.Sunday:    "SU",
}

// BuildWeeklyRule returns "FREQ=WEEKLY;BYDAY=..;UNTIL=.." for a class meeting
// on weekdays between startISO and endISO inclusive. It returns "" when both
// dates are the same, which means a one-time event.
//
// UNTIL is derived by adding one day to endISO: it is the last second before
// midnight of the following day in loc, so every class on the end date is
// kept, whatever its time of day.
func BuildWeeklyRule(weekdays []time.Weekday, startISO, endISO string, loc *time.Location) (string, error) {
	if startISO == endISO {
		return "", nil
	}
	if len(weekdays) == 0 {
		return "", fmt.Errorf("%w: no weekdays selected", ErrUnsatisfiableRecurrence)
	}

	start, err := schedule.ParseDate(startISO)
	if err != nil {
		return "", err
	}
	end, err := schedule.ParseDate(endISO)
	if err != nil {
		return "", err
	}
	if end.Before(start) {
		return "", fmt.Errorf("%w: end date %s is before start date %s", ErrUnsatisfiableRecurrence, endISO, startISO)
	}

	codes := make([]string, 0, len(weekdays))
	for _, d := range weekdays {
		codes = append(codes, dayCodes[d])
	}

	dayAfter := end.AddDate(0, 0, 1)
	until := time.Date(dayAfter.Year(), dayAfter.Month(), dayAfter.Day(), 0, 0, 0, 0, loc).Add(-time.Second)

	return fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;UNTIL=%s", strings.Join(codes, ","), until.UTC().Format(untilLayout)), nil
}

// Line prefixes a rule for the recurrence list of a calendar event.
func Line(rule string) string {
	return "RRULE:" + rule
}

// FirstOccurrenceOnOrAfter walks forward from startISO, at most a week, to the
// first date that falls on one of weekdays.
func FirstOccurrenceOnOrAfter(startISO string, weekdays []time.Weekday) (time.Time, error) {
	start, err := schedule.ParseDate(startISO)
	if err != nil {
		return time.Time{}, err
	}

	selected := make(map[time.Weekday]bool, len(weekdays))
	for _, d := range weekdays {
		selected[d] = true
	}

	for i := 0; i < 7; i++ {
		candidate := start.AddDate(0, 0, i)
		if selected[candidate.Weekday()] {
			return candidate, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: no selected weekday within 7 days of %s", ErrUnsatisfiableRecurrence, startISO)
}
