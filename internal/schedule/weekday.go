package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidWeekday is returned for day names outside Monday..Friday.
var ErrInvalidWeekday = errors.New("invalid weekday")

var weekdayByName = map[string]time.Weekday{
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
}

// ParseWeekdays parses a comma-joined list of weekday names into a sorted,
// de-duplicated set. At least one day is required.
func ParseWeekdays(days string) ([]time.Weekday, error) {
	seen := make(map[time.Weekday]bool)
	var out []time.Weekday
	for _, raw := range strings.Split(days, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		day, ok := weekdayByName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidWeekday, strings.TrimSpace(raw))
		}
		if !seen[day] {
			seen[day] = true
			out = append(out, day)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no days selected", ErrInvalidWeekday)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// FormatWeekdays joins days into the stored "Monday,Wednesday" form.
func FormatWeekdays(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, ",")
}

// SameWeekdays reports whether two stored day lists describe the same set,
// ignoring order, case and repeats. Unparseable input is compared verbatim.
func SameWeekdays(a, b string) bool {
	da, errA := ParseWeekdays(a)
	db, errB := ParseWeekdays(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return FormatWeekdays(da) == FormatWeekdays(db)
}
