package sync

import (
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/beekhof/class-sync/internal/recurrence"
	"github.com/beekhof/class-sync/internal/schedule"
	"github.com/beekhof/class-sync/internal/store"
)

const (
	// maxReminderOverrides is the provider's limit on reminder overrides.
	maxReminderOverrides = 5
	// maxReminderMinutes is four weeks, the provider's limit.
	maxReminderMinutes = 40320

	localIDProperty = "classSyncEventId"
)

// firstClassDate is the date the remote event's own start and end use: the
// first selected weekday on or after the start date for a recurring class,
// the start date itself for a one-time event.
func firstClassDate(ev *store.ClassEvent) (time.Time, error) {
	if ev.Recurrence == "" {
		return schedule.ParseDate(ev.StartDate)
	}
	days, err := schedule.ParseWeekdays(ev.Days)
	if err != nil {
		return time.Time{}, err
	}
	return recurrence.FirstOccurrenceOnOrAfter(ev.StartDate, days)
}

// buildRemoteEvent prepares the calendar event mirroring ev.
func buildRemoteEvent(ev *store.ClassEvent, loc *time.Location) (*gcal.Event, error) {
	startClock, endClock, err := schedule.ParseTimeSlot(ev.TimeSlot)
	if err != nil {
		return nil, err
	}
	date, err := firstClassDate(ev)
	if err != nil {
		return nil, err
	}

	startAt := schedule.At(date, startClock, loc)
	endAt := schedule.At(date, endClock, loc)

	overrides := make([]*gcal.EventReminder, 0, len(ev.Reminders)+1)
	for _, m := range schedule.ReminderSet(ev.Reminders) {
		overrides = append(overrides, &gcal.EventReminder{Method: "popup", Minutes: int64(m)})
	}

	event := &gcal.Event{
		Summary:  ev.ClassName,
		Location: ev.Location,
		Start: &gcal.EventDateTime{
			DateTime: startAt.Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: endAt.Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		},
		ColorId: ev.ColorID,
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{localIDProperty: ev.ID},
		},
	}
	if ev.Recurrence != "" {
		event.Recurrence = []string{recurrence.Line(ev.Recurrence)}
	}

	return event, nil
}
