package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownSemester is returned for labels without a known date window.
var ErrUnknownSemester = errors.New("unknown semester")

type monthDay struct {
	month time.Month
	day   int
}

type semesterSpan struct {
	start, end monthDay
}

var semesterSpans = map[string]semesterSpan{
	"Fall":   {start: monthDay{time.September, 1}, end: monthDay{time.December, 31}},
	"Winter": {start: monthDay{time.January, 1}, end: monthDay{time.April, 30}},
	"Spring": {start: monthDay{time.April, 1}, end: monthDay{time.July, 31}},
}

// Window is the inclusive date range of one semester.
type Window struct {
	Label string
	Start time.Time
	End   time.Time
}

// StartISO returns the first day of the window as YYYY-MM-DD.
func (w Window) StartISO() string { return w.Start.Format(DateLayout) }

// EndISO returns the last day of the window as YYYY-MM-DD.
func (w Window) EndISO() string { return w.End.Format(DateLayout) }

// SemesterWindow returns the date window for label relative to now. Once now
// is past this year's window the window of the following year is returned.
func SemesterWindow(label string, now time.Time) (Window, error) {
	key := canonicalSemester(label)
	span, ok := semesterSpans[key]
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrUnknownSemester, label)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	year := now.Year()
	if today.After(time.Date(year, span.end.month, span.end.day, 0, 0, 0, 0, time.UTC)) {
		year++
	}

	return Window{
		Label: key,
		Start: time.Date(year, span.start.month, span.start.day, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, span.end.month, span.end.day, 0, 0, 0, 0, time.UTC),
	}, nil
}

// AutoSelectSemester picks the semester label a schedule entered on now most
// likely belongs to.
func AutoSelectSemester(now time.Time) string {
	switch m := now.Month(); {
	case m <= time.April:
		return "Winter"
	case m <= time.August:
		return "Spring"
	default:
		return "Fall"
	}
}

func canonicalSemester(label string) string {
	label = strings.TrimSpace(label)
	for key := range semesterSpans {
		if strings.EqualFold(key, label) {
			return key
		}
	}
	return label
}
