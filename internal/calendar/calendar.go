// Package calendar is the remote side of class-sync: a thin client over the
// Google Calendar v3 API, the per-token connector that builds it, and the
// fixed colour palettes the API accepts.
package calendar

import (
	"context"

	"google.golang.org/api/calendar/v3"
)

// PrimaryCalendarID addresses the account's default calendar.
const PrimaryCalendarID = "primary"

// Service is the slice of the calendar API the sync engine depends on.
// All errors are classified as ErrAuthExpired, ErrNotFound or ErrTransient.
type Service interface {
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	PatchEventColor(ctx context.Context, calendarID, eventID, colorID string) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)

	InsertCalendar(ctx context.Context, cal *calendar.Calendar) (*calendar.Calendar, error)
	DeleteCalendar(ctx context.Context, calendarID string) error
	SetCalendarColor(ctx context.Context, calendarID, colorID string) error
}
