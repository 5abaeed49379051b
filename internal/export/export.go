// Package export writes class schedules as iCalendar data for calendar
// clients other than Google.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/beekhof/class-sync/internal/recurrence"
	"github.com/beekhof/class-sync/internal/schedule"
	"github.com/beekhof/class-sync/internal/store"
)

const (
	productID = "-//Class Sync//EN"
	uidDomain = "class-sync"

	propEventID = "X-CLASSSYNC-EVENT-ID"
)

// Entry is one class together with its locally deleted dates.
type Entry struct {
	Event   *store.ClassEvent
	Deleted []string
}

// Calendar builds an iCalendar object holding one VEVENT per entry. Times are
// written in loc with a TZID parameter.
func Calendar(entries []Entry, loc *time.Location, now time.Time) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, entry := range entries {
		vevent, err := eventComponent(entry, loc, now)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", entry.Event.ID, err)
		}
		cal.Children = append(cal.Children, vevent)
	}
	return cal, nil
}

// WriteICS encodes entries to w.
func WriteICS(w io.Writer, entries []Entry, loc *time.Location) error {
	cal, err := Calendar(entries, loc, time.Now())
	if err != nil {
		return err
	}
	if len(cal.Children) == 0 {
		// An empty VCALENDAR is not valid iCalendar.
		return fmt.Errorf("nothing to export")
	}
	return ical.NewEncoder(w).Encode(cal)
}

func eventComponent(entry Entry, loc *time.Location, now time.Time) (*ical.Component, error) {
	ev := entry.Event

	startClock, endClock, err := schedule.ParseTimeSlot(ev.TimeSlot)
	if err != nil {
		return nil, err
	}
	first, err := schedule.ParseDate(ev.StartDate)
	if err != nil {
		return nil, err
	}
	if ev.Recurrence != "" {
		days, err := schedule.ParseWeekdays(ev.Days)
		if err != nil {
			return nil, err
		}
		if first, err = recurrence.FirstOccurrenceOnOrAfter(ev.StartDate, days); err != nil {
			return nil, err
		}
	}

	vevent := ical.NewComponent(ical.CompEvent)

	uid := ev.ID
	if uid == "" {
		uid = uuid.NewString()
	}
	vevent.Props.SetText(ical.PropUID, uid+"@"+uidDomain)
	vevent.Props.SetText(ical.PropSummary, ev.ClassName)
	if ev.Location != "" {
		vevent.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.SemesterLabel != "" {
		vevent.Props.SetText(ical.PropCategories, ev.SemesterLabel)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	vevent.Props.SetDateTime(ical.PropDateTimeStart, schedule.At(first, startClock, loc))
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, schedule.At(first, endClock, loc))
	if ev.ID != "" {
		vevent.Props.SetText(propEventID, ev.ID)
	}

	if ev.Recurrence != "" {
		// Set the raw value: SetText would escape the commas in BYDAY.
		rule := ical.NewProp(ical.PropRecurrenceRule)
		rule.Value = ev.Recurrence
		vevent.Props.Set(rule)

		for _, d := range entry.Deleted {
			date, err := schedule.ParseDate(d)
			if err != nil {
				return nil, err
			}
			exdate := ical.NewProp(ical.PropExceptionDates)
			exdate.SetDateTime(schedule.At(date, startClock, loc))
			vevent.Props.Add(exdate)
		}
	}

	for _, minutes := range schedule.ReminderSet(ev.Reminders) {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, ev.ClassName)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.Value = fmt.Sprintf("-PT%dM", minutes)
		alarm.Props.Set(trigger)
		vevent.Children = append(vevent.Children, alarm)
	}

	return vevent, nil
}
