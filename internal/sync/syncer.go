// Package sync keeps locally stored classes and their remote calendar events
// consistent. Every mutation is saved locally first; the remote side is then
// brought in line, and failures are reported per operation as synced,
// pending or rejected.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/beekhof/class-sync/internal/auth"
	"github.com/beekhof/class-sync/internal/calendar"
	"github.com/beekhof/class-sync/internal/recurrence"
	"github.com/beekhof/class-sync/internal/schedule"
	"github.com/beekhof/class-sync/internal/store"
)

// TokenSource hands out the access token for an account's next remote call.
// *auth.Manager implements it.
type TokenSource interface {
	Token(ctx context.Context, account string) (*oauth2.Token, error)
}

// Options configures a Syncer.
type Options struct {
	Store     store.Store
	Tokens    TokenSource
	Connector calendar.Connector
	// Location is the zone class times are entered in.
	Location *time.Location
	// PrimaryCalendarID replaces the account's default calendar for events
	// without a semester calendar. Empty means "primary".
	PrimaryCalendarID string
	// CalendarColorID is the colour new semester calendars get.
	CalendarColorID string
	// BuildingCodes enables location validation when non-nil.
	BuildingCodes map[string]string
	Logger        *slog.Logger
}

// Syncer mirrors class events into the remote calendar.
type Syncer struct {
	store         store.Store
	tokens        TokenSource
	connector     calendar.Connector
	provisioner   *Provisioner
	location      *time.Location
	buildingCodes map[string]string
	logger        *slog.Logger
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(opts Options) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	provisioner := NewProvisioner(opts.Store, loc.String(), opts.CalendarColorID, logger)
	provisioner.primary = opts.PrimaryCalendarID
	return &Syncer{
		store:         opts.Store,
		tokens:        opts.Tokens,
		connector:     opts.Connector,
		provisioner:   provisioner,
		location:      loc,
		buildingCodes: opts.BuildingCodes,
		logger:        logger,
	}
}

// Provisioner returns the semester calendar manager the Syncer uses.
func (s *Syncer) Provisioner() *Provisioner {
	return s.provisioner
}

// connect builds a calendar client from the account's current token.
func (s *Syncer) connect(ctx context.Context, account string) (calendar.Service, error) {
	token, err := s.tokens.Token(ctx, account)
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			return nil, ErrNeedsReauth
		}
		return nil, fmt.Errorf("%w: %w", ErrNeedsReauth, err)
	}
	svc, err := s.connector.Connect(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNeedsReauth, err)
	}
	return svc, nil
}

// Create saves a new class and inserts its remote event into the calendar
// chosen by target. The returned error is only set when the local store
// failed; every other outcome is described by the Result.
func (s *Syncer) Create(ctx context.Context, account string, in EventInput, target Target) (*Result, error) {
	// Step 1: validate and derive the rule; nothing is saved on rejection
	ev := &store.ClassEvent{AccountID: account, SyncPending: true}
	if err := s.apply(in, ev); err != nil {
		return rejected(nil, err.Error(), err), nil
	}
	if target.Mode != TargetPrimary && target.Label == "" {
		err := fmt.Errorf("%w: a semester label is required for a semester calendar", ErrInvalidInput)
		return rejected(nil, err.Error(), err), nil
	}

	// Step 2: save locally with the requested placement. The label only
	// becomes the event's calendar once the event has been placed.
	ev.CalendarTarget = target.Mode.String()
	if target.Mode != TargetPrimary {
		ev.SemesterLabel = target.Label
	}
	if err := s.store.CreateEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to save event: %w", err)
	}
	s.logger.Info("saved event", "event_id", ev.ID, "class", ev.ClassName, "rule", ev.Recurrence)

	// Step 3: place it remotely
	svc, err := s.connect(ctx, account)
	if err != nil {
		return pending(ev, "saved locally, calendar access needs re-authentication", err), nil
	}
	return s.place(ctx, svc, ev)
}

// place resolves the event's requested calendar and inserts the event
// there. It serves both a new event and a retry of one that never reached
// the calendar.
func (s *Syncer) place(ctx context.Context, svc calendar.Service, ev *store.ClassEvent) (*Result, error) {
	res, err := s.provisioner.ResolveCalendarTarget(ctx, svc, ev.AccountID, requestedTarget(ev))
	if err != nil {
		result := pending(ev, "saved locally, target calendar unavailable", err)
		if res != nil {
			result.Cleanup = res.Cleanup
		}
		return result, nil
	}

	// An existing-calendar request that fell back to primary loses its
	// label here, so the row always names the calendar holding the event.
	label := ev.SemesterLabel
	ev.SemesterLabel = res.Label

	result, err := s.insertRemote(ctx, svc, ev, res.CalendarID)
	if ev.RemoteEventID == "" {
		ev.SemesterLabel = label
	}
	if result != nil {
		result.CalendarCreated = res.Created
		if result.Cleanup == nil {
			result.Cleanup = res.Cleanup
		}
	}
	return result, err
}

// insertRemote inserts ev into calendarID and records the remote id together
// with the weekday set and placement of the new series.
func (s *Syncer) insertRemote(ctx context.Context, svc calendar.Service, ev *store.ClassEvent, calendarID string) (*Result, error) {
	payload, err := buildRemoteEvent(ev, s.location)
	if err != nil {
		return pending(ev, "saved locally, could not build calendar event", err), nil
	}

	created, err := svc.InsertEvent(ctx, calendarID, payload)
	if err != nil {
		s.logger.Warn("remote insert failed, event left pending", "event_id", ev.ID, "calendar_id", calendarID, "error", err)
		return pending(ev, "saved locally, calendar insert failed", err), nil
	}

	ev.RemoteEventID = created.Id
	ev.RemoteDays = ev.Days
	ev.SyncPending = false
	if err := s.store.UpdateEvent(ctx, ev); err != nil {
		// The remote event exists but nothing local points at it.
		s.logger.Error("remote event created but its id could not be saved",
			"event_id", ev.ID, "remote_event_id", created.Id, "calendar_id", calendarID, "error", err)
		ev.RemoteEventID, ev.RemoteDays, ev.SyncPending = "", "", true

		result := rejected(ev, "calendar event created but the local record could not be updated", err)
		result.CalendarID = calendarID
		result.Cleanup = s.undoInsert(ctx, svc, calendarID, created.Id)
		return result, fmt.Errorf("failed to save remote event id: %w", err)
	}

	s.logger.Info("synced event", "event_id", ev.ID, "remote_event_id", created.Id, "calendar_id", calendarID)
	return synced(ev, calendarID), nil
}

func (s *Syncer) undoInsert(ctx context.Context, svc calendar.Service, calendarID, remoteID string) *Compensation {
	return startCompensation(ctx, s.logger, "delete remote event "+remoteID, func(ctx context.Context) error {
		err := svc.DeleteEvent(ctx, calendarID, remoteID)
		if calendar.IsNotFound(err) {
			return nil
		}
		return err
	})
}

// markInSync clears the pending flag once the remote event has caught up.
func (s *Syncer) markInSync(ctx context.Context, ev *store.ClassEvent, calendarID string) (*Result, error) {
	ev.SyncPending = false
	if err := s.store.UpdateEvent(ctx, ev); err != nil {
		s.logger.Error("remote event updated but the local record still marks it pending",
			"event_id", ev.ID, "remote_event_id", ev.RemoteEventID, "calendar_id", calendarID, "error", err)
		return nil, fmt.Errorf("failed to save event: %w", err)
	}
	return synced(ev, calendarID), nil
}

// Update edits a class. The local row is updated first, then the remote
// event follows the plan chosen by planUpdate.
func (s *Syncer) Update(ctx context.Context, account, eventID string, in EventInput) (*Result, error) {
	before, err := s.store.GetEvent(ctx, account, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(nil, "event not found", err), nil
	}
	if err != nil {
		return nil, err
	}

	after := before.Clone()
	if err := s.apply(in, after); err != nil {
		return rejected(before, err.Error(), err), nil
	}

	// Step 1: plan against the live remote series, not the last local edit
	plan := planUpdate(before, after)
	s.logger.Debug("planned update", "event_id", eventID, "plan", plan.String())

	// Step 2: save locally; anything but a no-op leaves the calendar owing
	// this edit until it lands
	if plan != planNoop {
		after.SyncPending = true
	}
	if err := s.store.UpdateEvent(ctx, after); err != nil {
		return nil, fmt.Errorf("failed to save event: %w", err)
	}

	if plan == planNoop {
		calendarID, err := s.provisioner.CalendarFor(ctx, account, after.SemesterLabel)
		if err != nil {
			return nil, err
		}
		return synced(after, calendarID), nil
	}

	// Step 3: bring the calendar in line
	svc, err := s.connect(ctx, account)
	if err != nil {
		return pending(after, "saved locally, calendar access needs re-authentication", err), nil
	}

	if plan == planInsert {
		return s.place(ctx, svc, after)
	}

	calendarID, err := s.provisioner.CalendarFor(ctx, account, after.SemesterLabel)
	if err != nil {
		return nil, err
	}

	switch plan {
	case planInPlace:
		payload, err := buildRemoteEvent(after, s.location)
		if err != nil {
			return pending(after, "saved locally, could not build calendar event", err), nil
		}
		if _, err := svc.UpdateEvent(ctx, calendarID, after.RemoteEventID, payload); err != nil {
			s.logger.Warn("remote update failed, event left pending", "event_id", after.ID, "remote_event_id", after.RemoteEventID, "error", err)
			return pending(after, "saved locally, calendar update failed", err), nil
		}
		return s.markInSync(ctx, after, calendarID)

	case planRecreate:
		return s.recreate(ctx, svc, after, calendarID)
	}

	return nil, fmt.Errorf("unhandled update plan %s", plan)
}

// recreate replaces the remote series: the old event is deleted, then a new
// one is inserted and its id stored.
func (s *Syncer) recreate(ctx context.Context, svc calendar.Service, ev *store.ClassEvent, calendarID string) (*Result, error) {
	oldID := ev.RemoteEventID
	if err := svc.DeleteEvent(ctx, calendarID, oldID); err != nil && !calendar.IsNotFound(err) {
		s.logger.Warn("remote delete failed, not recreating", "event_id", ev.ID, "remote_event_id", oldID, "error", err)
		return pending(ev, "saved locally, old calendar event could not be removed", err), nil
	}

	// The old series is gone; until the insert lands the row has none.
	ev.RemoteEventID, ev.RemoteDays = "", ""
	if err := s.store.UpdateEvent(ctx, ev); err != nil {
		s.logger.Error("remote event deleted but the local record still references it",
			"event_id", ev.ID, "remote_event_id", oldID, "calendar_id", calendarID, "error", err)
		return nil, fmt.Errorf("failed to clear remote event id: %w", err)
	}

	return s.insertRemote(ctx, svc, ev, calendarID)
}

// Delete removes a class. When the class has a remote event it is deleted
// first and the local row is kept if that fails.
func (s *Syncer) Delete(ctx context.Context, account, eventID string) (*Result, error) {
	ev, err := s.store.GetEvent(ctx, account, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(nil, "event not found", err), nil
	}
	if err != nil {
		return nil, err
	}

	calendarID := ""
	if ev.Synced() {
		svc, err := s.connect(ctx, account)
		if err != nil {
			return rejected(ev, "calendar access needs re-authentication, nothing was deleted", err), nil
		}
		if calendarID, err = s.provisioner.CalendarFor(ctx, account, ev.SemesterLabel); err != nil {
			return nil, err
		}
		err = svc.DeleteEvent(ctx, calendarID, ev.RemoteEventID)
		switch {
		case err == nil:
		case calendar.IsNotFound(err):
			s.logger.Info("remote event already gone", "event_id", ev.ID, "remote_event_id", ev.RemoteEventID)
		default:
			return rejected(ev, "calendar delete failed, nothing was deleted", err), nil
		}
	}

	if err := s.store.DeleteEvent(ctx, account, eventID); err != nil {
		if ev.Synced() {
			s.logger.Error("remote event deleted but the local record remains",
				"event_id", ev.ID, "remote_event_id", ev.RemoteEventID, "calendar_id", calendarID, "error", err)
		}
		return nil, fmt.Errorf("failed to delete event: %w", err)
	}

	s.logger.Info("deleted event", "event_id", ev.ID)
	return synced(ev, calendarID), nil
}

// OccurrenceDeletion reports how many of the requested dates were newly
// recorded as deleted.
type OccurrenceDeletion struct {
	Deleted   int
	Requested int
}

// DeleteOccurrences hides individual dates of a class. Only the local record
// changes; the remote series keeps every instance.
func (s *Syncer) DeleteOccurrences(ctx context.Context, account, eventID string, dates []string) (*OccurrenceDeletion, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no dates given", ErrInvalidInput)
	}
	normalized := make([]string, 0, len(dates))
	for _, d := range dates {
		t, err := schedule.ParseDate(d)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, t.Format(schedule.DateLayout))
	}

	n, err := s.store.AddDeletedOccurrences(ctx, account, eventID, normalized)
	if err != nil {
		return nil, err
	}
	return &OccurrenceDeletion{Deleted: n, Requested: len(dates)}, nil
}

// Occurrences lists the dates a class meets, without the deleted ones.
func (s *Syncer) Occurrences(ctx context.Context, account, eventID string) ([]time.Time, error) {
	ev, err := s.store.GetEvent(ctx, account, eventID)
	if err != nil {
		return nil, err
	}
	return s.occurrences(ctx, ev)
}

func (s *Syncer) occurrences(ctx context.Context, ev *store.ClassEvent) ([]time.Time, error) {
	deleted, err := s.store.ListDeletedOccurrences(ctx, ev.AccountID, ev.ID)
	if err != nil {
		return nil, err
	}
	except := make([]time.Time, 0, len(deleted))
	for _, d := range deleted {
		t, err := schedule.ParseDate(d)
		if err != nil {
			return nil, err
		}
		except = append(except, t)
	}

	if ev.Recurrence == "" {
		start, err := schedule.ParseDate(ev.StartDate)
		if err != nil {
			return nil, err
		}
		for _, t := range except {
			if t.Equal(start) {
				return nil, nil
			}
		}
		return []time.Time{start}, nil
	}

	days, err := schedule.ParseWeekdays(ev.Days)
	if err != nil {
		return nil, err
	}
	return recurrence.ExpandExcept(ev.StartDate, ev.EndDate, days, except)
}

// SetEventColor gives one class its own colour, or clears it with "".
func (s *Syncer) SetEventColor(ctx context.Context, account, eventID, colorID string) (*Result, error) {
	if colorID != "" && !calendar.IsEventColorID(colorID) {
		id := calendar.EventColorIDFromHex(colorID)
		if strings.EqualFold(calendar.EventHexFromColorID(id), colorID) {
			colorID = id
		} else {
			err := fmt.Errorf("%w: unknown event colour %q", ErrInvalidInput, colorID)
			return rejected(nil, err.Error(), err), nil
		}
	}

	ev, err := s.store.GetEvent(ctx, account, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(nil, "event not found", err), nil
	}
	if err != nil {
		return nil, err
	}

	owed := ev.SyncPending
	ev.ColorID = colorID
	ev.SyncPending = true
	if err := s.store.UpdateEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to save event: %w", err)
	}
	if !ev.Synced() {
		return pending(ev, "saved locally, event is not in the calendar yet", nil), nil
	}

	calendarID, err := s.provisioner.CalendarFor(ctx, account, ev.SemesterLabel)
	if err != nil {
		return nil, err
	}
	svc, err := s.connect(ctx, account)
	if err != nil {
		return pending(ev, "saved locally, calendar access needs re-authentication", err), nil
	}
	if err := svc.PatchEventColor(ctx, calendarID, ev.RemoteEventID, colorID); err != nil {
		return pending(ev, "saved locally, calendar colour update failed", err), nil
	}
	if owed {
		// The patch only carried the colour; an earlier edit is still owed.
		return pending(ev, "colour updated, an earlier edit has not reached the calendar yet", nil), nil
	}
	return s.markInSync(ctx, ev, calendarID)
}

// SetCalendarColor changes a semester calendar's colour.
func (s *Syncer) SetCalendarColor(ctx context.Context, account, calendarID, idOrHex string) (*ColorChange, error) {
	svc, err := s.connect(ctx, account)
	if err != nil {
		return nil, err
	}
	return s.provisioner.SetCalendarColor(ctx, svc, account, calendarID, idOrHex)
}

// DeleteCalendar removes a semester calendar and all of its classes. The
// local side is cleaned up even when the account is not authorised.
func (s *Syncer) DeleteCalendar(ctx context.Context, account, label string) (int, error) {
	svc, err := s.connect(ctx, account)
	if err != nil {
		s.logger.Warn("deleting calendar without remote access", "semester", label, "error", err)
		svc = nil
	}
	return s.provisioner.DeleteCalendar(ctx, svc, account, label)
}

// ListCalendars returns the account's semester calendars.
func (s *Syncer) ListCalendars(ctx context.Context, account string) ([]*store.SemesterCalendar, error) {
	return s.provisioner.ListCalendars(ctx, account)
}

// ListEvents returns the account's classes.
func (s *Syncer) ListEvents(ctx context.Context, account string) ([]*store.ClassEvent, error) {
	return s.store.ListEvents(ctx, account)
}
