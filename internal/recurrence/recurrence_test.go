package recurrence

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/beekhof/class-sync/internal/schedule"
)

var mwf = []time.Weekday{time.Monday, time.Wednesday, time.Friday}

func denver(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Denver")
	if err != nil {
		t.Fatalf("failed to load zone: %v", err)
	}
	return loc
}

// ruleDates fires a built rule from the first class instant and returns the
// local dates it produces.
func ruleDates(t *testing.T, rule, firstDate, clock string, loc *time.Location) []string {
	t.Helper()
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		t.Fatalf("StrToRRule(%q) failed: %v", rule, err)
	}
	dtstart, err := schedule.BuildInstant(firstDate, clock, loc.String())
	if err != nil {
		t.Fatalf("BuildInstant failed: %v", err)
	}
	r.DTStart(dtstart)

	var out []string
	for _, occ := range r.All() {
		out = append(out, occ.In(loc).Format(schedule.DateLayout))
	}
	return out
}

func TestBuildWeeklyRule(t *testing.T) {
	rule, err := BuildWeeklyRule(mwf, "2024-09-02", "2024-12-13", denver(t))
	if err != nil {
		t.Fatalf("BuildWeeklyRule failed: %v", err)
	}

	want := "FREQ=WEEKLY;BYDAY=MO,WE,FR;UNTIL=20241214T065959Z"
	if rule != want {
		t.Errorf("Expected '%s', got '%s'", want, rule)
	}
	if Line(rule) != "RRULE:"+want {
		t.Errorf("Expected RRULE prefix, got '%s'", Line(rule))
	}
}

func TestBuildWeeklyRuleKeepsEndDate(t *testing.T) {
	loc := denver(t)
	rule, err := BuildWeeklyRule(mwf, "2024-09-02", "2024-12-13", loc)
	if err != nil {
		t.Fatalf("BuildWeeklyRule failed: %v", err)
	}

	// An evening class on the end date is late enough to be on the next UTC day.
	for _, clock := range []string{"7:00 AM", "6:30 PM", "11:00 PM"} {
		dates := ruleDates(t, rule, "2024-09-02", clock, loc)
		last := dates[len(dates)-1]
		if last != "2024-12-13" {
			t.Errorf("%s: expected last occurrence 2024-12-13, got %s", clock, last)
		}
		for _, d := range dates {
			if d == "2024-12-20" {
				t.Errorf("%s: expected 2024-12-20 to be excluded", clock)
			}
		}
	}
}

func TestBuildWeeklyRuleSingleDay(t *testing.T) {
	rule, err := BuildWeeklyRule(mwf, "2024-09-04", "2024-09-04", denver(t))
	if err != nil {
		t.Fatalf("BuildWeeklyRule failed: %v", err)
	}
	if rule != "" {
		t.Errorf("Expected no rule for a one-time event, got '%s'", rule)
	}
}

func TestBuildWeeklyRuleErrors(t *testing.T) {
	loc := denver(t)
	if _, err := BuildWeeklyRule(nil, "2024-09-02", "2024-12-13", loc); !errors.Is(err, ErrUnsatisfiableRecurrence) {
		t.Errorf("Expected ErrUnsatisfiableRecurrence for empty weekdays, got %v", err)
	}
	if _, err := BuildWeeklyRule(mwf, "2024-12-13", "2024-09-02", loc); !errors.Is(err, ErrUnsatisfiableRecurrence) {
		t.Errorf("Expected ErrUnsatisfiableRecurrence for reversed range, got %v", err)
	}
	if _, err := BuildWeeklyRule(mwf, "2024-09-02", "12/13/2024", loc); !errors.Is(err, schedule.ErrMalformedTimeInput) {
		t.Errorf("Expected ErrMalformedTimeInput, got %v", err)
	}
}

func TestFirstOccurrenceOnOrAfter(t *testing.T) {
	tests := []struct {
		start string
		days  []time.Weekday
		want  string
	}{
		{start: "2024-09-01", days: mwf, want: "2024-09-02"}, // Sunday
		{start: "2024-09-02", days: mwf, want: "2024-09-02"},
		{start: "2024-09-03", days: mwf, want: "2024-09-04"},
		{start: "2024-09-07", days: []time.Weekday{time.Tuesday, time.Thursday}, want: "2024-09-10"},
		{start: "2024-09-06", days: []time.Weekday{time.Thursday}, want: "2024-09-12"},
	}

	for _, tt := range tests {
		got, err := FirstOccurrenceOnOrAfter(tt.start, tt.days)
		if err != nil {
			t.Fatalf("FirstOccurrenceOnOrAfter(%s) failed: %v", tt.start, err)
		}
		if got.Format(schedule.DateLayout) != tt.want {
			t.Errorf("From %s: expected %s, got %s", tt.start, tt.want, got.Format(schedule.DateLayout))
		}
	}
}

func TestFirstOccurrenceUnsatisfiable(t *testing.T) {
	if _, err := FirstOccurrenceOnOrAfter("2024-09-01", nil); !errors.Is(err, ErrUnsatisfiableRecurrence) {
		t.Errorf("Expected ErrUnsatisfiableRecurrence, got %v", err)
	}
}

func TestExpand(t *testing.T) {
	dates, err := Expand("2024-09-02", "2024-09-13", mwf)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	want := []string{"2024-09-02", "2024-09-04", "2024-09-06", "2024-09-09", "2024-09-11", "2024-09-13"}
	if got := FormatDates(dates); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	again, _ := Expand("2024-09-02", "2024-09-13", mwf)
	if !reflect.DeepEqual(dates, again) {
		t.Error("Expected Expand to be repeatable")
	}
}

func TestExpandMatchesRule(t *testing.T) {
	loc := denver(t)
	tests := []struct {
		start, end string
		days       []time.Weekday
	}{
		{start: "2024-09-01", end: "2024-12-13", days: mwf},
		{start: "2024-09-02", end: "2024-09-13", days: mwf},
		{start: "2025-01-06", end: "2025-04-30", days: []time.Weekday{time.Tuesday, time.Thursday}},
		{start: "2024-03-01", end: "2024-03-29", days: []time.Weekday{time.Friday}},
		{start: "2024-10-30", end: "2024-11-08", days: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}},
	}

	for _, tt := range tests {
		first, err := FirstOccurrenceOnOrAfter(tt.start, tt.days)
		if err != nil {
			t.Fatalf("FirstOccurrenceOnOrAfter failed: %v", err)
		}
		rule, err := BuildWeeklyRule(tt.days, tt.start, tt.end, loc)
		if err != nil {
			t.Fatalf("BuildWeeklyRule failed: %v", err)
		}

		fromRule := ruleDates(t, rule, first.Format(schedule.DateLayout), "8:00 PM", loc)
		expanded, err := Expand(tt.start, tt.end, tt.days)
		if err != nil {
			t.Fatalf("Expand failed: %v", err)
		}
		if got := FormatDates(expanded); !reflect.DeepEqual(got, fromRule) {
			t.Errorf("%s..%s: expander %v disagrees with rule %v", tt.start, tt.end, got, fromRule)
		}
	}
}

func TestExpandExcept(t *testing.T) {
	skip := []time.Time{
		time.Date(2024, 9, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 9, 5, 0, 0, 0, 0, time.UTC), // not a class day
	}
	dates, err := ExpandExcept("2024-09-02", "2024-09-06", mwf, skip)
	if err != nil {
		t.Fatalf("ExpandExcept failed: %v", err)
	}
	want := []string{"2024-09-02", "2024-09-06"}
	if got := FormatDates(dates); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestExpandEdges(t *testing.T) {
	dates, err := Expand("2024-09-13", "2024-09-02", mwf)
	if err != nil || len(dates) != 0 {
		t.Errorf("Expected nothing for a reversed range, got %v, %v", dates, err)
	}

	if _, err := Expand("2024-01-01", "2034-01-01", mwf); !errors.Is(err, ErrUnsatisfiableRecurrence) {
		t.Errorf("Expected ErrUnsatisfiableRecurrence for an oversized range, got %v", err)
	}
}
