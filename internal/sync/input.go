package sync

import (
	"errors"
	"fmt"

	"github.com/beekhof/class-sync/internal/recurrence"
	"github.com/beekhof/class-sync/internal/schedule"
	"github.com/beekhof/class-sync/internal/store"
)

// ErrInvalidInput is returned for schedule input that fails validation.
var ErrInvalidInput = errors.New("invalid schedule input")

// EventInput is what the user enters for a class.
type EventInput struct {
	ClassName string
	Location  string
	TimeSlot  string
	Days      string
	StartDate string
	EndDate   string
	Reminders []int
}

// apply validates in and writes it onto ev, deriving the recurrence rule.
func (s *Syncer) apply(in EventInput, ev *store.ClassEvent) error {
	if in.ClassName == "" {
		return fmt.Errorf("%w: class name is required", ErrInvalidInput)
	}
	if _, _, err := schedule.ParseTimeSlot(in.TimeSlot); err != nil {
		return err
	}
	start, err := schedule.ParseDate(in.StartDate)
	if err != nil {
		return err
	}
	end, err := schedule.ParseDate(in.EndDate)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidInput, in.EndDate, in.StartDate)
	}

	days, err := schedule.ParseWeekdays(in.Days)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	location := in.Location
	if s.buildingCodes != nil {
		if location, err = schedule.ValidateLocation(in.Location, s.buildingCodes); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	reminders := schedule.ReminderSet(in.Reminders)
	if len(reminders) > maxReminderOverrides {
		return fmt.Errorf("%w: at most %d reminders are allowed", ErrInvalidInput, maxReminderOverrides)
	}
	for _, m := range reminders {
		if m < 0 || m > maxReminderMinutes {
			return fmt.Errorf("%w: reminder of %d minutes is out of range", ErrInvalidInput, m)
		}
	}

	rule, err := recurrence.BuildWeeklyRule(days, in.StartDate, in.EndDate, s.location)
	if err != nil {
		return err
	}
	if rule != "" {
		first, err := recurrence.FirstOccurrenceOnOrAfter(in.StartDate, days)
		if err != nil {
			return err
		}
		if first.After(end) {
			return fmt.Errorf("%w: no %s between %s and %s", recurrence.ErrUnsatisfiableRecurrence, in.Days, in.StartDate, in.EndDate)
		}
	}

	ev.ClassName = in.ClassName
	ev.Location = location
	ev.TimeSlot = in.TimeSlot
	ev.Days = schedule.FormatWeekdays(days)
	ev.StartDate = start.Format(schedule.DateLayout)
	ev.EndDate = end.Format(schedule.DateLayout)
	ev.Recurrence = rule
	ev.Reminders = schedule.ExtraReminders(reminders)
	return nil
}
