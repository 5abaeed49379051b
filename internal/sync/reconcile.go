package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/beekhof/class-sync/internal/calendar"
	"github.com/beekhof/class-sync/internal/store"
)

// SyncState is the reconciliation result for one event.
type SyncState string

const (
	StateSynced  SyncState = "synced"
	StateMissing SyncState = "missing"
	// StateOutdated: the remote event exists but a local edit has not
	// reached it.
	StateOutdated  SyncState = "outdated"
	StateNotSynced SyncState = "not_synced"
	StateNoAuth    SyncState = "no_auth"
	// StateUnknown: the lookup failed for another reason and the event's
	// remote state could not be determined.
	StateUnknown SyncState = "unknown"
)

// EventStatus pairs an event with its reconciliation state.
type EventStatus struct {
	EventID   string
	ClassName string
	State     SyncState
	Err       error
}

// Checker compares local events against the remote calendar. It only
// reports; missing events are not recreated.
type Checker struct {
	Store     store.Store
	Tokens    TokenSource
	Connector calendar.Connector
	// PrimaryCalendarID is the calendar for events without a semester
	// calendar; empty means "primary".
	PrimaryCalendarID string
	Logger            *slog.Logger
}

// NewChecker builds a Checker sharing the Syncer's dependencies.
func (s *Syncer) NewChecker() *Checker {
	return &Checker{
		Store:             s.store,
		Tokens:            s.tokens,
		Connector:         s.connector,
		PrimaryCalendarID: s.provisioner.primary,
		Logger:            s.logger,
	}
}

func (c *Checker) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// CheckAll reports the state of every event of the account. Individual
// lookup failures are recorded on that event and the batch continues.
func (c *Checker) CheckAll(ctx context.Context, account string) ([]EventStatus, error) {
	events, err := c.Store.ListEvents(ctx, account)
	if err != nil {
		return nil, err
	}

	statuses := make([]EventStatus, 0, len(events))

	var svc calendar.Service
	if token, err := c.Tokens.Token(ctx, account); err == nil {
		svc, err = c.Connector.Connect(ctx, token)
		if err != nil {
			c.logger().Warn("could not connect to calendar", "account", account, "error", err)
			svc = nil
		}
	}
	if svc == nil {
		for _, ev := range events {
			statuses = append(statuses, EventStatus{EventID: ev.ID, ClassName: ev.ClassName, State: StateNoAuth})
		}
		return statuses, nil
	}

	provisioner := &Provisioner{store: c.Store, primary: c.PrimaryCalendarID, logger: c.logger()}
	calendars := make(map[string]string)

	for _, ev := range events {
		status := EventStatus{EventID: ev.ID, ClassName: ev.ClassName}
		if !ev.Synced() {
			status.State = StateNotSynced
			statuses = append(statuses, status)
			continue
		}

		calendarID, ok := calendars[ev.SemesterLabel]
		if !ok {
			calendarID, err = provisioner.CalendarFor(ctx, account, ev.SemesterLabel)
			if err != nil {
				status.State, status.Err = StateUnknown, err
				statuses = append(statuses, status)
				continue
			}
			calendars[ev.SemesterLabel] = calendarID
		}

		remote, err := svc.GetEvent(ctx, calendarID, ev.RemoteEventID)
		switch {
		case err == nil && remote.Status == "cancelled":
			status.State = StateMissing
		case err == nil && ev.SyncPending:
			status.State = StateOutdated
		case err == nil:
			status.State = StateSynced
		case calendar.IsNotFound(err):
			status.State = StateMissing
		case calendar.IsAuthExpired(err):
			status.State, status.Err = StateNoAuth, err
		default:
			status.State, status.Err = StateUnknown, err
		}
		if status.State == StateMissing {
			c.logger().Warn("event missing from calendar", "event_id", ev.ID, "remote_event_id", ev.RemoteEventID, "calendar_id", calendarID)
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// CheckAfter waits delay, giving the calendar time to index new recurring
// events, and then runs CheckAll.
func (c *Checker) CheckAfter(ctx context.Context, account string, delay time.Duration) ([]EventStatus, error) {
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.CheckAll(ctx, account)
}
