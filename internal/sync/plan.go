package sync

import (
	"reflect"

	"github.com/beekhof/class-sync/internal/schedule"
	"github.com/beekhof/class-sync/internal/store"
)

// updatePlan is how an edit reaches the remote calendar.
type updatePlan int

const (
	// planNoop: nothing the remote event carries has changed.
	planNoop updatePlan = iota
	// planInsert: the row was never synced, so the edit creates the event.
	planInsert
	// planInPlace: same weekday set, the remote event is updated and keeps
	// its id.
	planInPlace
	// planRecreate: the weekday set changed. The remote series is deleted and
	// a new one inserted; BYDAY is never edited in place.
	planRecreate
)

func (p updatePlan) String() string {
	switch p {
	case planNoop:
		return "no-op"
	case planInsert:
		return "insert"
	case planInPlace:
		return "in-place update"
	case planRecreate:
		return "delete and recreate"
	}
	return "unknown"
}

// planUpdate compares the edited row with what the calendar currently holds.
// The weekday set is checked against RemoteDays, the days of the live
// series, and a row that still owes the calendar an edit is never a no-op.
func planUpdate(before, after *store.ClassEvent) updatePlan {
	if before.RemoteEventID == "" {
		return planInsert
	}
	if !schedule.SameWeekdays(before.RemoteDays, after.Days) {
		return planRecreate
	}
	if !before.SyncPending && remoteFieldsEqual(before, after) {
		return planNoop
	}
	return planInPlace
}

// remoteFieldsEqual reports whether two rows produce the same remote event.
func remoteFieldsEqual(a, b *store.ClassEvent) bool {
	return a.ClassName == b.ClassName &&
		a.Location == b.Location &&
		a.TimeSlot == b.TimeSlot &&
		a.StartDate == b.StartDate &&
		a.EndDate == b.EndDate &&
		a.Recurrence == b.Recurrence &&
		a.ColorID == b.ColorID &&
		reflect.DeepEqual(schedule.ReminderSet(a.Reminders), schedule.ReminderSet(b.Reminders))
}
