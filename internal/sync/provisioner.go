package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/beekhof/class-sync/internal/calendar"
	"github.com/beekhof/class-sync/internal/store"
)

// DefaultCalendarColorID is the colour given to new semester calendars.
const DefaultCalendarColorID = "16"

// TargetMode selects which remote calendar a new event goes to.
type TargetMode int

const (
	// TargetPrimary is the account's default calendar.
	TargetPrimary TargetMode = iota
	// TargetCreateNew creates (or reuses) a dedicated calendar for Label.
	TargetCreateNew
	// TargetExisting uses the dedicated calendar for Label if there is one,
	// and the primary calendar otherwise.
	TargetExisting
)

func (m TargetMode) String() string {
	switch m {
	case TargetCreateNew:
		return "new"
	case TargetExisting:
		return "existing"
	}
	return "primary"
}

// Target is the calendar placement requested for a new event.
type Target struct {
	Mode  TargetMode
	Label string
}

// Primary targets the default calendar.
func Primary() Target { return Target{Mode: TargetPrimary} }

// NewCalendar targets a dedicated calendar for label, creating it if needed.
func NewCalendar(label string) Target { return Target{Mode: TargetCreateNew, Label: label} }

// ExistingCalendar targets the dedicated calendar for label.
func ExistingCalendar(label string) Target { return Target{Mode: TargetExisting, Label: label} }

// requestedTarget is the placement stored on an event that has not been
// placed yet.
func requestedTarget(ev *store.ClassEvent) Target {
	if ev.SemesterLabel == "" {
		return Primary()
	}
	switch ev.CalendarTarget {
	case TargetCreateNew.String():
		return NewCalendar(ev.SemesterLabel)
	default:
		return ExistingCalendar(ev.SemesterLabel)
	}
}

// Resolution is where an event ended up.
type Resolution struct {
	CalendarID string
	// Label is the semester label to store on the event, empty for primary.
	Label   string
	Created bool
	// Cleanup is set if a freshly created calendar had to be undone.
	Cleanup *Compensation
}

// Provisioner manages the dedicated per-semester calendars.
type Provisioner struct {
	store          store.Store
	primary        string
	timeZone       string
	defaultColorID string
	logger         *slog.Logger
}

// NewProvisioner creates a Provisioner. New calendars get timeZone and
// colorID; an empty colorID means DefaultCalendarColorID.
func NewProvisioner(st store.Store, timeZone, colorID string, logger *slog.Logger) *Provisioner {
	if colorID == "" {
		colorID = DefaultCalendarColorID
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{store: st, timeZone: timeZone, defaultColorID: colorID, logger: logger}
}

func (p *Provisioner) primaryID() string {
	if p.primary != "" {
		return p.primary
	}
	return calendar.PrimaryCalendarID
}

// CalendarFor returns the remote calendar holding events with label. Labels
// without a calendar row resolve to the primary calendar.
func (p *Provisioner) CalendarFor(ctx context.Context, account, label string) (string, error) {
	if label == "" {
		return p.primaryID(), nil
	}
	cal, err := p.store.GetSemesterCalendar(ctx, account, label)
	if errors.Is(err, store.ErrNotFound) {
		return p.primaryID(), nil
	}
	if err != nil {
		return "", err
	}
	return cal.CalendarID, nil
}

// ResolveCalendarTarget turns a requested placement into a calendar id.
// svc is only used when a calendar has to be created.
func (p *Provisioner) ResolveCalendarTarget(ctx context.Context, svc calendar.Service, account string, target Target) (*Resolution, error) {
	switch target.Mode {
	case TargetPrimary:
		return &Resolution{CalendarID: p.primaryID()}, nil

	case TargetExisting:
		cal, err := p.store.GetSemesterCalendar(ctx, account, target.Label)
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("no calendar for semester, using primary", "account", account, "semester", target.Label)
			return &Resolution{CalendarID: p.primaryID()}, nil
		}
		if err != nil {
			return nil, err
		}
		return &Resolution{CalendarID: cal.CalendarID, Label: cal.Label}, nil

	case TargetCreateNew:
		if target.Label == "" {
			return nil, fmt.Errorf("%w: a semester label is required to create a calendar", ErrInvalidInput)
		}
		cal, err := p.store.GetSemesterCalendar(ctx, account, target.Label)
		if err == nil {
			return &Resolution{CalendarID: cal.CalendarID, Label: cal.Label}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return p.createCalendar(ctx, svc, account, target.Label)
	}

	return nil, fmt.Errorf("%w: unknown calendar target %d", ErrInvalidInput, target.Mode)
}

func (p *Provisioner) createCalendar(ctx context.Context, svc calendar.Service, account, label string) (*Resolution, error) {
	created, err := svc.InsertCalendar(ctx, &gcal.Calendar{
		Summary:     label,
		Description: "Calendar for " + label,
		TimeZone:    p.timeZone,
	})
	if err != nil {
		return nil, err
	}

	if err := svc.SetCalendarColor(ctx, created.Id, p.defaultColorID); err != nil {
		p.logger.Warn("failed to set calendar colour", "calendar_id", created.Id, "color_id", p.defaultColorID, "error", err)
	}

	row := &store.SemesterCalendar{
		AccountID:  account,
		Label:      label,
		CalendarID: created.Id,
		ColorHex:   calendar.CalendarHexFromColorID(p.defaultColorID),
	}
	err = p.store.CreateSemesterCalendar(ctx, row)
	if err == nil {
		p.logger.Info("created semester calendar", "account", account, "semester", label, "calendar_id", created.Id)
		return &Resolution{CalendarID: created.Id, Label: label, Created: true}, nil
	}

	undo := p.undoCalendar(ctx, svc, created.Id)
	if errors.Is(err, store.ErrDuplicate) {
		// Another request created the row first; use theirs.
		existing, getErr := p.store.GetSemesterCalendar(ctx, account, label)
		if getErr == nil {
			return &Resolution{CalendarID: existing.CalendarID, Label: label, Cleanup: undo}, nil
		}
	}
	p.logger.Error("failed to record semester calendar", "account", account, "semester", label, "calendar_id", created.Id, "error", err)
	return &Resolution{Cleanup: undo}, err
}

func (p *Provisioner) undoCalendar(ctx context.Context, svc calendar.Service, calendarID string) *Compensation {
	return startCompensation(ctx, p.logger, "delete calendar "+calendarID, func(ctx context.Context) error {
		err := svc.DeleteCalendar(ctx, calendarID)
		if calendar.IsNotFound(err) {
			return nil
		}
		return err
	})
}

// ColorChange reports the outcome of SetCalendarColor.
type ColorChange struct {
	Label      string
	CalendarID string
	ColorID    string
	ColorHex   string
	// Cleared lists the events whose individual colour was removed.
	Cleared []string
	// Failed lists the events whose remote colour could not be cleared.
	Failed []string
}

// SetCalendarColor sets a semester calendar's colour from a palette id or a
// hex value, always stored as the canonical palette pair. Events on that
// calendar lose their individual colour so the calendar colour shows.
func (p *Provisioner) SetCalendarColor(ctx context.Context, svc calendar.Service, account, calendarID, idOrHex string) (*ColorChange, error) {
	cals, err := p.store.ListSemesterCalendars(ctx, account)
	if err != nil {
		return nil, err
	}
	var cal *store.SemesterCalendar
	for _, c := range cals {
		if c.CalendarID == calendarID {
			cal = c
		}
	}
	if cal == nil {
		return nil, fmt.Errorf("calendar %s: %w", calendarID, store.ErrNotFound)
	}

	colorID, hex := calendar.ResolveCalendarColor(idOrHex)
	if err := svc.SetCalendarColor(ctx, calendarID, colorID); err != nil {
		return nil, err
	}

	cal.ColorHex = hex
	if err := p.store.UpdateSemesterCalendar(ctx, cal); err != nil {
		return nil, err
	}

	change := &ColorChange{Label: cal.Label, CalendarID: calendarID, ColorID: colorID, ColorHex: hex}

	events, err := p.store.ListEvents(ctx, account)
	if err != nil {
		return change, err
	}
	for _, ev := range events {
		if ev.SemesterLabel != cal.Label || ev.ColorID == "" {
			continue
		}
		// The row stays pending until the remote colour is cleared too.
		owed := ev.SyncPending
		ev.ColorID = ""
		if ev.Synced() {
			ev.SyncPending = true
		}
		if err := p.store.UpdateEvent(ctx, ev); err != nil {
			return change, err
		}
		change.Cleared = append(change.Cleared, ev.ID)

		if !ev.Synced() {
			continue
		}
		if err := svc.PatchEventColor(ctx, calendarID, ev.RemoteEventID, ""); err != nil {
			p.logger.Warn("failed to clear event colour", "event_id", ev.ID, "remote_event_id", ev.RemoteEventID, "calendar_id", calendarID, "error", err)
			change.Failed = append(change.Failed, ev.ID)
			continue
		}
		if !owed {
			ev.SyncPending = false
			if err := p.store.UpdateEvent(ctx, ev); err != nil {
				p.logger.Warn("event colour cleared but the local record still marks it pending", "event_id", ev.ID, "error", err)
			}
		}
	}

	return change, nil
}

// DeleteCalendar deletes a semester calendar remotely and then, whatever the
// remote outcome, removes it and every event bound to it locally. svc may be
// nil when the account has no usable token. Returns the number of events
// removed.
func (p *Provisioner) DeleteCalendar(ctx context.Context, svc calendar.Service, account, label string) (int, error) {
	cal, err := p.store.GetSemesterCalendar(ctx, account, label)
	if err != nil {
		return 0, err
	}

	switch {
	case svc == nil:
		p.logger.Warn("not authorised, skipping remote calendar delete", "semester", label, "calendar_id", cal.CalendarID)
	default:
		if err := svc.DeleteCalendar(ctx, cal.CalendarID); err != nil && !calendar.IsNotFound(err) {
			p.logger.Warn("failed to delete remote calendar, removing it locally anyway", "semester", label, "calendar_id", cal.CalendarID, "error", err)
		}
	}

	removed, err := p.store.DeleteSemesterCalendar(ctx, account, label)
	if err != nil {
		return 0, err
	}
	p.logger.Info("deleted semester calendar", "account", account, "semester", label, "events_removed", removed)
	return removed, nil
}

// ListCalendars returns the account's semester calendars.
func (p *Provisioner) ListCalendars(ctx context.Context, account string) ([]*store.SemesterCalendar, error) {
	return p.store.ListSemesterCalendars(ctx, account)
}
