package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"

	"github.com/beekhof/class-sync/internal/store"
)

func denver(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Denver")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	return loc
}

func classEvent() *store.ClassEvent {
	return &store.ClassEvent{
		ID:            "7d1f",
		ClassName:     "CSE 310",
		Location:      "ENGR 101",
		TimeSlot:      "9:00 AM - 9:50 AM",
		Days:          "Wednesday,Friday",
		StartDate:     "2024-08-26",
		EndDate:       "2024-12-13",
		Recurrence:    "FREQ=WEEKLY;BYDAY=WE,FR;UNTIL=20241214T065959Z",
		SemesterLabel: "Fall",
		Reminders:     []int{60},
	}
}

func TestWriteICS(t *testing.T) {
	loc := denver(t)
	var buf bytes.Buffer
	err := WriteICS(&buf, []Entry{{Event: classEvent(), Deleted: []string{"2024-09-04", "2024-11-29"}}}, loc)
	if err != nil {
		t.Fatalf("WriteICS failed: %v", err)
	}

	cal, err := ical.NewDecoder(strings.NewReader(buf.String())).Decode()
	if err != nil {
		t.Fatalf("Failed to decode exported data: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	vevent := events[0]

	if uid, _ := vevent.Props.Text(ical.PropUID); uid != "7d1f@class-sync" {
		t.Errorf("Expected UID '7d1f@class-sync', got '%s'", uid)
	}
	if summary, _ := vevent.Props.Text(ical.PropSummary); summary != "CSE 310" {
		t.Errorf("Expected summary 'CSE 310', got '%s'", summary)
	}
	if rule := vevent.Props.Get(ical.PropRecurrenceRule); rule == nil || rule.Value != "FREQ=WEEKLY;BYDAY=WE,FR;UNTIL=20241214T065959Z" {
		t.Errorf("Unexpected RRULE %+v", rule)
	}

	start, err := vevent.Props.DateTime(ical.PropDateTimeStart, nil)
	if err != nil {
		t.Fatalf("Failed to read DTSTART: %v", err)
	}
	// The first Wednesday on or after the start date.
	want := time.Date(2024, 8, 28, 9, 0, 0, 0, loc)
	if !start.Equal(want) {
		t.Errorf("Expected DTSTART %v, got %v", want, start)
	}
	if tzid := vevent.Props.Get(ical.PropDateTimeStart).Params.Get(ical.ParamTimezoneID); tzid != "America/Denver" {
		t.Errorf("Expected TZID America/Denver, got '%s'", tzid)
	}

	exdates := vevent.Props.Values(ical.PropExceptionDates)
	if len(exdates) != 2 {
		t.Fatalf("Expected 2 EXDATE properties, got %d", len(exdates))
	}
	ex, err := exdates[1].DateTime(nil)
	if err != nil {
		t.Fatalf("Failed to read EXDATE: %v", err)
	}
	// Standard time after the November switch.
	if !ex.Equal(time.Date(2024, 11, 29, 16, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected EXDATE 2024-11-29 09:00 MST, got %v", ex.UTC())
	}

	alarms := 0
	for _, child := range vevent.Children {
		if child.Name == ical.CompAlarm {
			alarms++
		}
	}
	if alarms != 2 {
		t.Errorf("Expected 2 alarms, got %d", alarms)
	}
	if id, _ := vevent.Props.Text(propEventID); id != "7d1f" {
		t.Errorf("Expected event id property '7d1f', got '%s'", id)
	}
}

func TestWriteICSDuplicateReminders(t *testing.T) {
	ev := classEvent()
	ev.Reminders = []int{60, 15, 60}

	var buf bytes.Buffer
	if err := WriteICS(&buf, []Entry{{Event: ev}}, denver(t)); err != nil {
		t.Fatalf("WriteICS failed: %v", err)
	}
	if got := strings.Count(buf.String(), "BEGIN:VALARM"); got != 2 {
		t.Errorf("Expected 2 alarms, got %d", got)
	}
}

func TestWriteICSOneTimeEvent(t *testing.T) {
	ev := classEvent()
	ev.EndDate = ev.StartDate
	ev.Recurrence = ""

	cal, err := Calendar([]Entry{{Event: ev, Deleted: []string{"2024-08-26"}}}, denver(t), time.Now())
	if err != nil {
		t.Fatalf("Calendar failed: %v", err)
	}
	vevent := cal.Events()[0]
	if vevent.Props.Get(ical.PropRecurrenceRule) != nil {
		t.Error("Expected no RRULE for a one-time event")
	}
	if len(vevent.Props.Values(ical.PropExceptionDates)) != 0 {
		t.Error("Expected no EXDATE for a one-time event")
	}
	start, _ := vevent.Props.DateTime(ical.PropDateTimeStart, nil)
	if start.Day() != 26 {
		t.Errorf("Expected the start date itself, got %v", start)
	}
}

func TestWriteICSRejectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteICS(&buf, nil, time.UTC); err == nil {
		t.Error("Expected an error for an empty export")
	}
}

func TestWriteICSBadTimeSlot(t *testing.T) {
	ev := classEvent()
	ev.TimeSlot = "whenever"
	var buf bytes.Buffer
	if err := WriteICS(&buf, []Entry{{Event: ev}}, time.UTC); err == nil {
		t.Error("Expected an error for a malformed time slot")
	}
}
