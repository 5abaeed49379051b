package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/beekhof/class-sync/internal/schedule"
)

// maxSpan bounds how far Expand will enumerate.
const maxSpan = 5 * 366 * 24 * time.Hour

var rruleDays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Expand returns every date between startISO and endISO, both inclusive, that
// falls on one of weekdays, in ascending order. Dates are midnight UTC.
func Expand(startISO, endISO string, weekdays []time.Weekday) ([]time.Time, error) {
	return ExpandExcept(startISO, endISO, weekdays, nil)
}

// ExpandExcept is Expand with the given dates removed.
func ExpandExcept(startISO, endISO string, weekdays []time.Weekday, except []time.Time) ([]time.Time, error) {
	start, err := schedule.ParseDate(startISO)
	if err != nil {
		return nil, err
	}
	end, err := schedule.ParseDate(endISO)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, nil
	}
	if end.Sub(start) > maxSpan {
		return nil, fmt.Errorf("%w: range %s..%s is too long", ErrUnsatisfiableRecurrence, startISO, endISO)
	}
	if len(weekdays) == 0 {
		return nil, nil
	}

	days := make([]rrule.Weekday, 0, len(weekdays))
	for _, d := range weekdays {
		days = append(days, rruleDays[d])
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Until:     end,
		Byweekday: days,
		Wkst:      rrule.MO,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build weekly rule: %w", err)
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range except {
		set.ExDate(time.Date(ex.Year(), ex.Month(), ex.Day(), 0, 0, 0, 0, time.UTC))
	}

	return set.All(), nil
}

// FormatDates renders dates as YYYY-MM-DD strings.
func FormatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(schedule.DateLayout)
	}
	return out
}
